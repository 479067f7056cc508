package snippets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), FileName), quiet())
	require.NoError(t, err)
	return s
}

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	s := openTemp(t)

	text, ok := s.Lookup("::emailStarter")
	assert.True(t, ok)
	assert.Contains(t, text, "I hope this email finds you well.")
	assert.Equal(t, len(Defaults), s.Len())

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "Open must not create the file")
}

func TestOpenExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"::sig": "Best,\nSam", "::addr": "1 Main St"}`), 0600))

	s, err := Open(path, quiet())
	require.NoError(t, err)

	text, ok := s.Lookup("::sig")
	assert.True(t, ok)
	assert.Equal(t, "Best,\nSam", text)

	_, ok = s.Lookup("::emailStarter")
	assert.False(t, ok, "defaults only apply when the file is absent")
}

func TestOpenRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `::sig = "x"`},
		{"array", `["::sig"]`},
		{"missing prefix", `{"sig": "x"}`},
		{"bare prefix", `{"::": "x"}`},
		{"space in command", `{"::my sig": "x"}`},
		{"non-string text", `{"::sig": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := Open(path, quiet())
			assert.Error(t, err)
		})
	}
}

func TestSavePersists(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Save("::sig", "Best regards"))

	text, ok := s.Lookup("::sig")
	assert.True(t, ok)
	assert.Equal(t, "Best regards", text)

	reopened, err := Open(s.Path(), quiet())
	require.NoError(t, err)
	text, ok = reopened.Lookup("::sig")
	assert.True(t, ok)
	assert.Equal(t, "Best regards", text)
	_, ok = reopened.Lookup("::emailStarter")
	assert.True(t, ok, "defaults are written with the first save")

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveReplacesExisting(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save("::sig", "one"))
	require.NoError(t, s.Save("::sig", "two"))

	text, _ := s.Lookup("::sig")
	assert.Equal(t, "two", text)
}

func TestSaveRejectsInvalidCommand(t *testing.T) {
	s := openTemp(t)

	for _, cmd := range []string{"", "::", "sig", ":sig", "::two words"} {
		err := s.Save(cmd, "x")
		assert.ErrorIs(t, err, ErrInvalidCommand, "command %q", cmd)
	}
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDelete(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save("::sig", "x"))

	require.NoError(t, s.Delete("::sig"))
	_, ok := s.Lookup("::sig")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete("::sig"), ErrNotFound)

	reopened, err := Open(s.Path(), quiet())
	require.NoError(t, err)
	_, ok = reopened.Lookup("::sig")
	assert.False(t, ok)
}

func TestAllSorted(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save("::zeta", "z"))
	require.NoError(t, s.Save("::alpha", "a"))

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "::alpha", all[0].Command)
	assert.Equal(t, "::emailStarter", all[1].Command)
	assert.Equal(t, "::zeta", all[2].Command)
}

func TestOnChange(t *testing.T) {
	s := openTemp(t)
	calls := 0
	s.OnChange(func() { calls++ })

	require.NoError(t, s.Save("::a", "1"))
	require.NoError(t, s.Delete("::a"))
	assert.Error(t, s.Delete("::a"))

	assert.Equal(t, 2, calls)
}

func TestReloadKeepsPreviousOnInvalidFile(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save("::sig", "x"))

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"broken": `), 0600))
	assert.Error(t, s.Reload())

	text, ok := s.Lookup("::sig")
	assert.True(t, ok)
	assert.Equal(t, "x", text)
}

// startWatch runs Watch until the test ends and returns once the
// directory watch is registered.
func startWatch(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx, ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watch: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not registered")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Watch did not return after cancel")
		}
	})
}

func TestWatchPicksUpExternalEdits(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save("::sig", "old"))
	startWatch(t, s)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"::sig": "new"}`), 0600))

	assert.Eventually(t, func() bool {
		text, _ := s.Lookup("::sig")
		return text == "new"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchCoalescesBurstOfEdits(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Save("::sig", "old"))

	var reloads atomic.Int32
	s.OnChange(func() { reloads.Add(1) })
	startWatch(t, s)

	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"::sig": "edit %d"}`, i)
		require.NoError(t, os.WriteFile(s.Path(), []byte(body), 0600))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(3 * reloadDebounce)
	assert.Equal(t, int32(1), reloads.Load())

	text, _ := s.Lookup("::sig")
	assert.Equal(t, "edit 4", text)
}

func TestValidCommand(t *testing.T) {
	tests := []struct {
		cmd  string
		want bool
	}{
		{"::sig", true},
		{"::emailStarter", true},
		{"::", false},
		{"sig", false},
		{"::a b", false},
		{"::a\tb", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidCommand(tt.cmd), tt.cmd)
	}
}
