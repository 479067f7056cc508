package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"promptassist/internal/augment"
	"promptassist/internal/clipboard"
	"promptassist/internal/config"
	"promptassist/internal/coordinator"
	"promptassist/internal/keystroke"
	"promptassist/internal/notify"
	"promptassist/internal/sentinel"
	"promptassist/internal/snippets"
	"promptassist/internal/store"
	"promptassist/internal/trigger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoClient answers "Expanded: <query>" unless hold is set, in which case
// calls block until hold is closed.
type echoClient struct {
	mu    sync.Mutex
	calls int
	hold  chan struct{}
}

func (c *echoClient) Call(ctx context.Context, query string, policy augment.RetryPolicy) (string, error) {
	c.mu.Lock()
	c.calls++
	hold := c.hold
	c.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", &augment.Error{Kind: augment.KindTransport, Err: ctx.Err()}
		}
	}
	return "Expanded: " + query, nil
}

func (c *echoClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fixture struct {
	engine   *Engine
	hook     *keystroke.SimulatedHook
	synth    *keystroke.Recorder
	clip     *clipboard.MemoryAccessor
	reader   *sentinel.SimulatedReader
	client   *echoClient
	alerts   *notify.Recorder
	snippets *snippets.Store
	history  *store.Store
	cfg      *config.Config
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Storage.SnippetsPath = filepath.Join(dir, snippets.FileName)
	cfg.Storage.HistoryPath = filepath.Join(dir, "history.db")
	cfg.Focus.PollIntervalMs = 10
	cfg.Clipboard.SettleMs = 0
	cfg.Typing.KeysPerSecond = 0
	return cfg
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	snips, err := snippets.Open(cfg.Storage.SnippetsPath, quiet())
	require.NoError(t, err)

	hist, err := store.Open(cfg.Storage.HistoryPath, cfg.Storage.HistoryMaxEntries, quiet())
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })

	f := &fixture{
		hook:     keystroke.NewSimulated(),
		synth:    keystroke.NewRecorder(),
		clip:     clipboard.NewMemoryAccessor("saved by user"),
		reader:   sentinel.NewSimulatedReader(),
		client:   &echoClient{},
		alerts:   &notify.Recorder{},
		snippets: snips,
		history:  hist,
		cfg:      cfg,
	}
	f.synth.PasteSource = f.clip.ReadAll

	f.engine, err = New(cfg, Deps{
		Hook:      f.hook,
		Synth:     f.synth,
		Clipboard: f.clip,
		Focus:     f.reader,
		Client:    f.client,
		Notify:    notify.NewWithBackend(f.alerts, io.Discard, quiet()),
		Snippets:  snips,
		History:   hist,
		Logger:    quiet(),
	})
	require.NoError(t, err)
	return f
}

// start runs the engine until the test ends.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	require.Eventually(t, f.hook.IsRunning, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
}

func TestSnippetExpansion(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.start(t)

	f.synth.Seed("Hi ::emailStarter ")
	f.hook.Type("::emailStarter ")

	want := "Hi " + snippets.Defaults["::emailStarter"]
	require.Eventually(t, func() bool {
		return f.engine.Stats().Snippets == 1 && f.engine.buffer.Snapshot() == ""
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, want, f.synth.Screen())
	assert.Equal(t, "saved by user", f.clip.Text())
}

func TestUnknownCommandIsLiteral(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.start(t)

	f.hook.Type("::nothing ")

	assert.Equal(t, "::nothing ", f.engine.buffer.Snapshot())
	assert.Empty(t, f.synth.Ops())
}

func TestAugmentationRoundTrip(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.start(t)

	f.synth.Seed("::Prompt(make it formal) ")
	f.hook.Type("::Prompt(make it formal) ")

	require.Eventually(t, func() bool {
		return f.synth.Screen() == "Expanded: make it formal"
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := f.history.Count(context.Background())
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(f.alerts.Events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, notify.EventSuccess, f.alerts.Events()[0])
	assert.Equal(t, "saved by user", f.clip.Text())

	m := f.engine.Metrics()
	assert.Equal(t, uint64(1), m.Succeeded())
	assert.Equal(t, uint64(1), m.PromptTriggers.Value())
	assert.Equal(t, uint64(1), m.AugmentLatency.Count())
	assert.Equal(t, uint64(len("::Prompt(make it formal) ")), f.engine.Stats().KeyEvents/2, "press and release per character")
}

func TestSecondPromptRejectedWhileInFlight(t *testing.T) {
	f := newFixture(t, testConfig(t))
	hold := make(chan struct{})
	f.client.hold = hold
	f.start(t)

	f.hook.Type("::Prompt(first) ")
	require.Eventually(t, func() bool { return f.client.Calls() == 1 }, time.Second, 5*time.Millisecond)

	f.hook.Type("::Prompt(second) ")
	require.Eventually(t, func() bool { return f.engine.Stats().Rejected == 1 }, time.Second, 5*time.Millisecond)

	close(hold)
	require.Eventually(t, func() bool {
		return f.engine.coord.State() == coordinator.Idle
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, f.client.Calls())
	events := f.alerts.Events()
	assert.Contains(t, events, notify.EventRejected)
	assert.Contains(t, events, notify.EventSuccess)
}

func TestFocusChangeClearsBuffer(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.reader.Focus(1, "notepad.exe")
	f.start(t)

	require.Eventually(t, func() bool { return f.engine.focus.Current() != nil }, time.Second, 5*time.Millisecond)

	f.hook.Type("::email")
	assert.Equal(t, "::email", f.engine.buffer.Snapshot())

	f.reader.Focus(2, "chrome.exe")
	require.Eventually(t, func() bool {
		return f.engine.Stats().FocusClears == 1 && f.engine.buffer.Snapshot() == ""
	}, time.Second, 5*time.Millisecond)

	f.hook.Type("abc")
	f.reader.Focus(3, "C:\\Windows\\System32\\CMD.EXE")
	reads := f.reader.Reads()
	require.Eventually(t, func() bool { return f.reader.Reads() > reads+2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, "abc", f.engine.buffer.Snapshot(), "excluded app keeps the buffer")
	assert.Equal(t, 1, f.engine.Stats().FocusClears)
}

func TestQueueDropsWhenFull(t *testing.T) {
	f := newFixture(t, testConfig(t))

	a := trigger.Action{Kind: trigger.SnippetTrigger, Command: "::x", Rendered: "::x"}
	for i := 0; i < QueueSize; i++ {
		require.True(t, f.engine.enqueue(a))
	}
	assert.False(t, f.engine.enqueue(a))
	assert.Equal(t, uint64(1), f.engine.Stats().Dropped)
}

func TestApplyUpdatesRuntimeSettings(t *testing.T) {
	cfg := testConfig(t)
	f := newFixture(t, cfg)

	next := cfg.Clone()
	next.Focus.ExcludedApps = []string{"Notepad.exe"}
	next.Trigger.SnippetMatch = "trailing"
	next.Storage.HistoryMaxEntries = 5
	f.engine.Apply(next)

	assert.True(t, f.engine.focus.Excluded("notepad.exe"))
	assert.False(t, f.engine.focus.Excluded("cmd.exe"))
	assert.Equal(t, 5, f.history.MaxEntries())

	// Trailing mode fires on a command typed after other words.
	f.hook.Start(context.Background(), f.engine.onKey)
	defer f.hook.Stop()
	f.hook.Type("see ::emailStarter ")
	select {
	case a := <-f.engine.actions:
		assert.Equal(t, trigger.SnippetTrigger, a.Kind)
		assert.Equal(t, "::emailStarter", a.Command)
	default:
		t.Fatal("no action queued")
	}
}

func TestConfigHotReload(t *testing.T) {
	cfg := testConfig(t)
	cfg.Focus.PollIntervalMs = 50
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveConfig(cfg, path))

	loader := config.NewLoader(path, quiet())
	loaded, err := loader.Load()
	require.NoError(t, err)

	f := newFixture(t, loaded)
	f.engine.deps.Loader = loader
	f.start(t)

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	edited := loaded.Clone()
	edited.Focus.ExcludedApps = []string{"editor.exe"}
	require.NoError(t, config.SaveConfig(edited, path))

	require.Eventually(t, func() bool {
		return f.engine.focus.Excluded("editor.exe")
	}, 3*time.Second, 10*time.Millisecond)
}

type unavailableHook struct {
	*keystroke.SimulatedHook
}

func (unavailableHook) Available() (bool, string) {
	return false, "no input devices"
}

func TestRunFailsWithoutHook(t *testing.T) {
	cfg := testConfig(t)
	f := newFixture(t, cfg)
	f.engine.deps.Hook = unavailableHook{keystroke.NewSimulated()}

	err := f.engine.Run(context.Background())
	assert.ErrorIs(t, err, keystroke.ErrNotAvailable)
}

func TestRunTwice(t *testing.T) {
	f := newFixture(t, testConfig(t))
	f.start(t)

	err := f.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(testConfig(t), Deps{})
	assert.Error(t, err)

	_, err = New(nil, Deps{})
	assert.Error(t, err)
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicy(config.AugmentConfig{MaxAttempts: 2, RetryDelayMs: 500})
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.Delay)
}
