//go:build linux

package sentinel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActiveWindow(t *testing.T) {
	id, err := parseActiveWindow("_NET_ACTIVE_WINDOW(WINDOW): window id # 0x3a00007\n")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x3a00007), id)

	_, err = parseActiveWindow("_NET_ACTIVE_WINDOW(WINDOW): window id # 0x0\n")
	assert.ErrorIs(t, err, ErrNoForeground)

	_, err = parseActiveWindow("garbage")
	assert.Error(t, err)
}

func TestParseWindowProps(t *testing.T) {
	out := `WM_NAME(STRING) = "notes.txt - gedit"
WM_CLASS(STRING) = "gedit", "Gedit"
_NET_WM_PID(CARDINAL) = 4242
`
	var info WindowInfo
	parseWindowProps(out, &info)

	assert.Equal(t, "notes.txt - gedit", info.Title)
	assert.Equal(t, "Gedit", info.Application)
	assert.Equal(t, 4242, info.PID)
}
