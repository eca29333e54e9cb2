package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestValidationError_Unwraps(t *testing.T) {
	err := invalid("total", "must be greater than %d", 0)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "total: must be greater than 0", err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "total", ve.Field)
}

func TestPersistenceError_HidesNothingFromErrorsIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := persistFailure(zerolog.Nop(), "create payment", cause)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, isDomainError(err))
}

func TestLedgerPostingError(t *testing.T) {
	cause := errors.New("ledger down")
	err := error(&LedgerPostingError{Entity: "payment", EntityID: 9, Err: cause})

	assert.True(t, errors.Is(err, ErrLedgerPosting))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "payment 9")
}

func TestIsDomainError(t *testing.T) {
	for _, err := range []error{
		invalid("x", "bad"),
		notFound("bill", 3),
		fmt.Errorf("wrap: %w", ErrOverMatch),
		ErrDuplicateBill,
		ErrOverAllocation,
		ErrEmptyPayment,
	} {
		assert.True(t, isDomainError(err), "%v", err)
	}
	assert.False(t, isDomainError(errors.New("boom")))
}
