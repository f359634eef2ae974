package ole

import (
	"errors"
	"testing"

	"mailbridge/internal/automation"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[uint32]error{
		hrUnknownName:          automation.ErrNoSuchProperty,
		hrMemberNotFound:       automation.ErrNoSuchProperty,
		hrUnavailable:          automation.ErrNotRunning,
		hrDisconnected:         automation.ErrDisconnected,
		hrServerUnavailable:    automation.ErrDisconnected,
		hrServerCallRetryLater: automation.ErrNotReady,
		0x80004005:             nil,
	}
	for code, want := range cases {
		assert.Equal(t, want, classify(code), "0x%08X", code)
	}
}

func TestWrapCodeKeepsCause(t *testing.T) {
	cause := errors.New("call was rejected by callee")

	err := wrapCode(hrCallRejected, "Items.Count", cause)
	assert.ErrorIs(t, err, automation.ErrNotReady)
	assert.Contains(t, err.Error(), "Items.Count")

	err = wrapCode(0x80004005, "Save", cause)
	assert.ErrorIs(t, err, cause)
}
