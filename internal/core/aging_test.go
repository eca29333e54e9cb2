package core_test

import (
	"testing"
	"time"

	"ap-settlement/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func tp(t time.Time) *time.Time { return &t }

func TestBucketFor(t *testing.T) {
	asOf := day(2026, 6, 30)

	tests := []struct {
		name string
		due  *time.Time
		want core.AgingBucket
	}{
		{"no due date", nil, core.BucketCurrent},
		{"due today", tp(asOf), core.BucketCurrent},
		{"due in future", tp(asOf.AddDate(0, 0, 15)), core.BucketCurrent},
		{"one day late", tp(asOf.AddDate(0, 0, -1)), core.Bucket1To30},
		{"ten days late", tp(asOf.AddDate(0, 0, -10)), core.Bucket1To30},
		{"thirty days late", tp(asOf.AddDate(0, 0, -30)), core.Bucket1To30},
		{"thirty one days late", tp(asOf.AddDate(0, 0, -31)), core.Bucket31To60},
		{"sixty days late", tp(asOf.AddDate(0, 0, -60)), core.Bucket31To60},
		{"sixty one days late", tp(asOf.AddDate(0, 0, -61)), core.Bucket61To90},
		{"ninety days late", tp(asOf.AddDate(0, 0, -90)), core.Bucket61To90},
		{"ninety five days late", tp(asOf.AddDate(0, 0, -95)), core.Bucket90Plus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.BucketFor(asOf, tt.due))
		})
	}
}

func TestDaysPastDue_IgnoresTimeOfDay(t *testing.T) {
	asOf := time.Date(2026, 6, 30, 1, 0, 0, 0, time.UTC)
	due := time.Date(2026, 6, 29, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 1, core.DaysPastDue(asOf, due))
}

func TestAgeOpenBills(t *testing.T) {
	asOf := day(2026, 6, 30)
	bills := []core.OpenBill{
		{BillID: 1, SupplierID: 7, SupplierName: "Acme", DueDate: tp(asOf.AddDate(0, 0, -10)), Balance: d("600")},
		{BillID: 2, SupplierID: 7, SupplierName: "Acme", DueDate: nil, Balance: d("150")},
		{BillID: 3, SupplierID: 7, SupplierName: "Acme", DueDate: tp(asOf.AddDate(0, 0, -95)), Balance: d("50")},
		{BillID: 4, SupplierID: 3, SupplierName: "Bolt Co", DueDate: tp(asOf.AddDate(0, 0, -45)), Balance: d("200")},
		{BillID: 5, SupplierID: 3, SupplierName: "Bolt Co", DueDate: tp(asOf.AddDate(0, 0, -70)), Balance: d("0.00005")},
		{BillID: 6, SupplierID: 9, SupplierName: "Overpaid Ltd", DueDate: nil, Balance: d("-20")},
	}

	rows := core.AgeOpenBills(asOf, bills)
	require.Len(t, rows, 2)

	acme := rows[0]
	assert.Equal(t, 7, acme.SupplierID)
	assert.True(t, acme.Current.Equal(d("150")))
	assert.True(t, acme.Days1To30.Equal(d("600")))
	assert.True(t, acme.Days90Plus.Equal(d("50")))
	assert.True(t, acme.Total.Equal(d("800")))

	bolt := rows[1]
	assert.Equal(t, 3, bolt.SupplierID)
	assert.True(t, bolt.Days31To60.Equal(d("200")))
	assert.True(t, bolt.Days61To90.IsZero(), "balance within epsilon must be ignored")
	assert.True(t, bolt.Total.Equal(d("200")))
}

func TestAgeOpenBills_TieBreaksBySupplierID(t *testing.T) {
	asOf := day(2026, 6, 30)
	rows := core.AgeOpenBills(asOf, []core.OpenBill{
		{SupplierID: 12, Balance: d("100")},
		{SupplierID: 4, Balance: d("100")},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, 4, rows[0].SupplierID)
	assert.Equal(t, 12, rows[1].SupplierID)
}

func TestAgeOpenBills_BucketsSumToTotal(t *testing.T) {
	asOf := day(2026, 6, 30)
	var bills []core.OpenBill
	for i := 0; i < 40; i++ {
		bills = append(bills, core.OpenBill{
			BillID:     i + 1,
			SupplierID: i%3 + 1,
			DueDate:    tp(asOf.AddDate(0, 0, 20-i*4)),
			Balance:    decimal.NewFromInt(int64(10 + i)),
		})
	}
	for _, r := range core.AgeOpenBills(asOf, bills) {
		sum := r.Current.Add(r.Days1To30).Add(r.Days31To60).Add(r.Days61To90).Add(r.Days90Plus)
		assert.True(t, sum.Equal(r.Total), "supplier %d: buckets %s != total %s", r.SupplierID, sum, r.Total)
	}
}

func TestBuildStatement(t *testing.T) {
	entries := []core.StatementEntry{
		{Date: day(2026, 2, 10), Type: core.EntryPayment, Reference: "PP-0001", Credit: d("400")},
		{Date: day(2026, 2, 1), Type: core.EntryBill, Reference: "INV-1", Debit: d("1000")},
		{Date: day(2026, 2, 15), Type: core.EntryVendorCredit, Reference: "DN-0001", Credit: d("100")},
		{Date: day(2026, 2, 10), Type: core.EntryBill, Reference: "INV-2", Debit: d("250")},
	}

	out, closing := core.BuildStatement(d("50"), entries)
	require.Len(t, out, 4)

	wantRefs := []string{"INV-1", "INV-2", "PP-0001", "DN-0001"}
	wantBalances := []string{"1050", "1300", "900", "800"}
	for i := range out {
		assert.Equal(t, wantRefs[i], out[i].Reference)
		assert.True(t, out[i].Balance.Equal(d(wantBalances[i])), "entry %d balance = %s", i, out[i].Balance)
	}
	assert.True(t, closing.Equal(d("800")))

	// input is left untouched
	assert.Equal(t, "PP-0001", entries[0].Reference)
	assert.True(t, entries[0].Balance.IsZero())
}

func TestBuildStatement_ClosingIsOpeningPlusDebitsMinusCredits(t *testing.T) {
	opening := d("123.45")
	var entries []core.StatementEntry
	debits, credits := decimal.Zero, decimal.Zero
	for i := 0; i < 25; i++ {
		e := core.StatementEntry{Date: day(2026, 1, 1+i%28), Reference: string(rune('A' + i))}
		amt := decimal.NewFromInt(int64(i*7 + 3))
		if i%3 == 0 {
			e.Type, e.Credit = core.EntryPayment, amt
			credits = credits.Add(amt)
		} else {
			e.Type, e.Debit = core.EntryBill, amt
			debits = debits.Add(amt)
		}
		entries = append(entries, e)
	}

	out, closing := core.BuildStatement(opening, entries)
	assert.True(t, closing.Equal(opening.Add(debits).Sub(credits)))
	assert.True(t, out[len(out)-1].Balance.Equal(closing))
}

func TestBuildStatement_Empty(t *testing.T) {
	out, closing := core.BuildStatement(d("75"), nil)
	assert.Empty(t, out)
	assert.True(t, closing.Equal(d("75")))
}
