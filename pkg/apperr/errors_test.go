package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("room not found")))
	assert.Equal(t, CodePermissionDenied, CodeOf(fmt.Errorf("bind: %w", PermissionDenied("not a member"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("check constraint failed")
	err := Integrity("create report", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, CodeInternal))
	assert.Equal(t, "create report: check constraint failed", err.Error())
}
