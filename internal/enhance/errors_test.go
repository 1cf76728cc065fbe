package enhance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunError_Format(t *testing.T) {
	cause := errors.New("boom")

	err := classError(CodeIOFailure, "com.x.Foo", cause)
	assert.Equal(t, "IO_FAILURE: boom (class=com.x.Foo)", err.Error())
	assert.ErrorIs(t, err, cause)

	err = setupError("cannot read manifest", cause)
	assert.Equal(t, "SETUP_FAILURE: cannot read manifest: boom", err.Error())
}

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", setupError("x", nil))
	assert.True(t, IsSetupError(wrapped))
	assert.False(t, IsClassError(wrapped))
	assert.False(t, IsCancelled(wrapped))

	cls := fmt.Errorf("outer: %w", classError(CodeTransformFailure, "com.x.Foo", errors.New("bad")))
	assert.True(t, IsClassError(cls))
	assert.False(t, IsSetupError(cls))

	assert.True(t, IsCancelled(&RunError{Code: CodeCancelled}))
	assert.False(t, IsSetupError(errors.New("plain")))
	assert.False(t, IsClassError(nil))
}
