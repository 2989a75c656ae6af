package tripstore

import (
	"errors"
	"testing"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
	"github.com/stretchr/testify/assert"
)

func TestIsSQLiteBusyRecognizesDriverMessages(t *testing.T) {
	assert.True(t, isSQLiteBusy(errors.New("database is locked")))
	assert.True(t, isSQLiteBusy(errors.New("SQLITE_BUSY: database is locked")))
	assert.False(t, isSQLiteBusy(errors.New("no such table: trips")))
	assert.False(t, isSQLiteBusy(nil))
}

func TestRetryOnBusySucceedsAfterTransientBusy(t *testing.T) {
	attempts := 0
	err := retryOnBusy("test_op", func() error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryOnBusyReturnsStorageBusyAfterBudgetExhausted(t *testing.T) {
	attempts := 0
	err := retryOnBusy("test_op", func() error {
		attempts++
		return errors.New("database is locked")
	})
	var busy *dashcamerrors.StorageBusy
	assert.ErrorAs(t, err, &busy)
	assert.Equal(t, maxBusyRetries, attempts)
}

func TestRetryOnBusyPassesThroughNonBusyErrors(t *testing.T) {
	wantErr := errors.New("no such table: trips")
	attempts := 0
	err := retryOnBusy("test_op", func() error {
		attempts++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, attempts)
}
