package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Allocation assigns part of a payment or vendor credit to one bill.
type Allocation struct {
	BillID int             `json:"bill_id"`
	Amount decimal.Decimal `json:"amount"`
}

// SkippedAllocation reports an input allocation that was ignored.
type SkippedAllocation struct {
	Index  int             `json:"index"`
	BillID int             `json:"bill_id"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// splitAllocations rounds amounts to cents, drops those not positive after
// rounding and returns the rest with their sum.
// A positive amount without a bill is malformed and rejected.
func splitAllocations(in []Allocation) ([]Allocation, []SkippedAllocation, decimal.Decimal, error) {
	var (
		valid   []Allocation
		skipped []SkippedAllocation
		total   decimal.Decimal
	)
	for i, a := range in {
		rounded := a.Amount.Round(2)
		if !rounded.IsPositive() {
			reason := "amount must be greater than zero"
			if a.Amount.IsPositive() {
				reason = "amount rounds to zero cents"
			}
			skipped = append(skipped, SkippedAllocation{Index: i, BillID: a.BillID, Amount: a.Amount, Reason: reason})
			continue
		}
		if a.BillID <= 0 {
			return nil, nil, decimal.Zero, invalid("allocations", "allocation %d: bill_id is required", i)
		}
		a.Amount = rounded
		valid = append(valid, a)
		total = total.Add(a.Amount)
	}
	return valid, skipped, total, nil
}

// distinctBillIDs returns the bill ids referenced by allocs in ascending order.
func distinctBillIDs(allocs []Allocation) []int {
	seen := make(map[int]bool, len(allocs))
	ids := make([]int, 0, len(allocs))
	for _, a := range allocs {
		if !seen[a.BillID] {
			seen[a.BillID] = true
			ids = append(ids, a.BillID)
		}
	}
	sort.Ints(ids)
	return ids
}

// lockAllocationTargets takes row locks on every target bill in ascending id
// order, so that concurrent allocators never deadlock, then re-reads each
// bill's balance under the lock and checks that the batch fits.
//
// Targets must belong to supplierID and be in a status that accepts
// allocations.
func lockAllocationTargets(ctx context.Context, tx pgx.Tx, companyID, supplierID int, allocs []Allocation) error {
	ids := distinctBillIDs(allocs)

	rows, err := tx.Query(ctx, `
		SELECT id, supplier_id, status
		FROM bills
		WHERE company_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`, companyID, ids)
	if err != nil {
		return err
	}
	type target struct {
		supplierID int
		status     BillStatus
	}
	targets := make(map[int]target, len(ids))
	for rows.Next() {
		var id int
		var t target
		if err := rows.Scan(&id, &t.supplierID, &t.status); err != nil {
			rows.Close()
			return err
		}
		targets[id] = t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		t, ok := targets[id]
		if !ok {
			return invalid("allocations", "bill %d not found", id)
		}
		if t.supplierID != supplierID {
			return invalid("allocations", "bill %d belongs to a different supplier", id)
		}
		if !t.status.CanReceiveAllocation() {
			return fmt.Errorf("bill %d is %s and cannot receive allocations: %w", id, t.status, ErrInvalidState)
		}
	}

	pending := make(map[int]decimal.Decimal, len(ids))
	for _, a := range allocs {
		pending[a.BillID] = pending[a.BillID].Add(a.Amount)
	}
	for _, id := range ids {
		balance, err := billBalance(ctx, tx, companyID, id)
		if err != nil {
			return err
		}
		if balance.Sub(pending[id]).LessThan(Epsilon.Neg()) {
			return fmt.Errorf("bill %d: allocating %s against balance %s: %w",
				id, pending[id].StringFixed(2), balance.StringFixed(2), ErrBillOverAllocated)
		}
	}
	return nil
}

// settleBills runs markPaidIfSettledTx for each bill and returns those now paid.
func settleBills(ctx context.Context, tx pgx.Tx, companyID int, billIDs []int) ([]int, error) {
	var paid []int
	for _, id := range billIDs {
		ok, err := markPaidIfSettledTx(ctx, tx, companyID, id)
		if err != nil {
			return nil, err
		}
		if ok {
			paid = append(paid, id)
		}
	}
	return paid, nil
}
