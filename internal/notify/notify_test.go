package notify

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierUsesBackend(t *testing.T) {
	rec := &Recorder{}
	var bell bytes.Buffer
	n := NewWithBackend(rec, &bell, quiet())

	n.Success()
	n.Rejected()

	assert.Equal(t, []Event{EventSuccess, EventRejected}, rec.Events())
	assert.Empty(t, bell.String(), "bell only rings on fallback")
}

func TestNotifierFallsBackToBell(t *testing.T) {
	rec := &Recorder{Err: errors.New("no sound device")}
	var bell bytes.Buffer
	n := NewWithBackend(rec, &bell, quiet())

	n.Success()

	assert.Len(t, rec.Events(), 1)
	assert.Equal(t, Bell, bell.String())
}

func TestNotifierNilBackend(t *testing.T) {
	var bell bytes.Buffer
	n := NewWithBackend(nil, &bell, quiet())

	n.Rejected()
	n.Success()

	assert.Equal(t, Bell+Bell, bell.String())
}

func TestNotifierNilBell(t *testing.T) {
	n := NewWithBackend(nil, nil, quiet())
	assert.NotPanics(t, n.Success)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "success", EventSuccess.String())
	assert.Equal(t, "rejected", EventRejected.String())
	assert.Equal(t, "unknown", Event(7).String())
}

func TestNew(t *testing.T) {
	assert.NotNil(t, New(quiet()))
}
