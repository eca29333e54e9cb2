package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAllocations(t *testing.T) {
	valid, skipped, total, err := splitAllocations([]Allocation{
		{BillID: 3, Amount: qty("400")},
		{BillID: 4, Amount: qty("0")},
		{BillID: 5, Amount: qty("-10")},
		{BillID: 3, Amount: qty("100.004")},
	})
	require.NoError(t, err)

	require.Len(t, valid, 2)
	assert.True(t, valid[1].Amount.Equal(qty("100")), "amounts round to cents")
	assert.True(t, total.Equal(qty("500")))

	require.Len(t, skipped, 2)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Equal(t, 5, skipped[1].BillID)
}

func TestSplitAllocations_SubCentAmountIsSkipped(t *testing.T) {
	valid, skipped, total, err := splitAllocations([]Allocation{
		{BillID: 1, Amount: qty("100")},
		{BillID: 2, Amount: qty("0.004")},
	})
	require.NoError(t, err)

	require.Len(t, valid, 1)
	assert.Equal(t, 1, valid[0].BillID)
	for _, a := range valid {
		assert.True(t, a.Amount.IsPositive(), "bill %d kept with amount %s", a.BillID, a.Amount)
	}
	assert.True(t, total.Equal(qty("100")))

	require.Len(t, skipped, 1)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Equal(t, 2, skipped[0].BillID)
	assert.True(t, skipped[0].Amount.Equal(qty("0.004")))
	assert.Equal(t, "amount rounds to zero cents", skipped[0].Reason)
}

func TestSplitAllocations_OnlySubCentAmounts(t *testing.T) {
	valid, skipped, total, err := splitAllocations([]Allocation{{BillID: 2, Amount: qty("0.004")}})
	require.NoError(t, err)
	assert.Empty(t, valid)
	assert.Len(t, skipped, 1)
	assert.True(t, total.IsZero())
}

func TestSplitAllocations_AllSkipped(t *testing.T) {
	valid, skipped, total, err := splitAllocations([]Allocation{{BillID: 1, Amount: qty("0")}})
	require.NoError(t, err)
	assert.Empty(t, valid)
	assert.Len(t, skipped, 1)
	assert.True(t, total.IsZero())
}

func TestSplitAllocations_MissingBill(t *testing.T) {
	_, _, _, err := splitAllocations([]Allocation{{Amount: qty("10")}})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDistinctBillIDs(t *testing.T) {
	ids := distinctBillIDs([]Allocation{{BillID: 9}, {BillID: 2}, {BillID: 9}, {BillID: 5}})
	assert.Equal(t, []int{2, 5, 9}, ids)
}
