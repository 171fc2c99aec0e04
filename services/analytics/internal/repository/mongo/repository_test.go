package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithUnmark(t *testing.T) {
	applyErr := errors.New("increment counter: timeout")

	t.Run("success: marker removed", func(t *testing.T) {
		assert.Same(t, applyErr, withUnmark(applyErr, nil))
	})

	t.Run("error: marker left behind is reported", func(t *testing.T) {
		unmarkErr := errors.New("unmark event e1: connection reset")

		err := withUnmark(applyErr, unmarkErr)
		assert.ErrorIs(t, err, applyErr)
		assert.ErrorIs(t, err, unmarkErr)
	})
}
