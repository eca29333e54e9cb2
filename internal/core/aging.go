package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DaysPastDue is the whole number of calendar days from due to asOf.
// Both dates are truncated to their UTC calendar day.
func DaysPastDue(asOf, due time.Time) int {
	return int(dateOnly(asOf).Sub(dateOnly(due)).Hours() / 24)
}

// BucketFor classifies a due date relative to asOf. A nil due date, or one on
// or after asOf, is current; lower bounds are inclusive.
func BucketFor(asOf time.Time, due *time.Time) AgingBucket {
	if due == nil {
		return BucketCurrent
	}
	days := DaysPastDue(asOf, *due)
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}

func (r *AgingRow) add(bucket AgingBucket, amt decimal.Decimal) {
	switch bucket {
	case BucketCurrent:
		r.Current = r.Current.Add(amt)
	case Bucket1To30:
		r.Days1To30 = r.Days1To30.Add(amt)
	case Bucket31To60:
		r.Days31To60 = r.Days31To60.Add(amt)
	case Bucket61To90:
		r.Days61To90 = r.Days61To90.Add(amt)
	default:
		r.Days90Plus = r.Days90Plus.Add(amt)
	}
	r.Total = r.Total.Add(amt)
}

// AgeOpenBills aggregates bill balances per supplier. Balances within Epsilon
// of zero or below are ignored. Rows are sorted by total descending with
// ties broken by supplier id.
func AgeOpenBills(asOf time.Time, bills []OpenBill) []AgingRow {
	bySupplier := make(map[int]*AgingRow)
	for _, b := range bills {
		if b.Balance.LessThanOrEqual(Epsilon) {
			continue
		}
		row, ok := bySupplier[b.SupplierID]
		if !ok {
			row = &AgingRow{SupplierID: b.SupplierID, SupplierName: b.SupplierName}
			bySupplier[b.SupplierID] = row
		}
		row.add(BucketFor(asOf, b.DueDate), b.Balance)
	}

	rows := make([]AgingRow, 0, len(bySupplier))
	for _, r := range bySupplier {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].SupplierID < rows[j].SupplierID
	})
	return rows
}

var statementTypeOrder = map[string]int{EntryBill: 0, EntryPayment: 1, EntryVendorCredit: 2}

// BuildStatement orders entries by date then reference and fills the running
// balance: each entry's balance is the previous one plus debit minus credit.
// The returned closing balance equals opening + debits - credits.
func BuildStatement(opening decimal.Decimal, entries []StatementEntry) ([]StatementEntry, decimal.Decimal) {
	out := make([]StatementEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Reference != b.Reference {
			return a.Reference < b.Reference
		}
		if a.Type != b.Type {
			return statementTypeOrder[a.Type] < statementTypeOrder[b.Type]
		}
		return a.sourceID < b.sourceID
	})

	running := opening
	for i := range out {
		running = running.Add(out[i].Debit).Sub(out[i].Credit)
		out[i].Balance = running
	}
	return out, running
}
