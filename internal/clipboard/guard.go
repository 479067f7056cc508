// Package clipboard delivers text through a scoped clipboard swap.
//
// Guard.Paste snapshots the user's clipboard, writes the text, sends the
// paste chord and restores the snapshot on every exit path, including
// panics. Snapshot and restore failures are logged, never returned: failing
// to deliver text is worse than failing to restore the clipboard.
package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSettle is how long the target gets to consume a paste before the
// clipboard is restored.
const DefaultSettle = 150 * time.Millisecond

// Paster sends the paste key chord to the focused target.
type Paster interface {
	Paste(ctx context.Context) error
}

// Options configures a Guard.
type Options struct {
	// Settle is the wait after the paste chord. Zero means DefaultSettle;
	// negative means no wait.
	Settle time.Duration

	// ClearAfterPaste empties the clipboard after a paste whose snapshot
	// could not be taken, instead of leaving the pasted text behind.
	ClearAfterPaste bool

	Logger *slog.Logger
}

// Guard owns the clipboard for the duration of each Paste.
type Guard struct {
	mu     sync.Mutex
	acc    Accessor
	paster Paster
	settle time.Duration
	clear  bool
	logger *slog.Logger
}

// NewGuard creates a Guard writing through acc and pasting with p.
func NewGuard(acc Accessor, p Paster, opts Options) *Guard {
	settle := opts.Settle
	if settle == 0 {
		settle = DefaultSettle
	}
	if settle < 0 {
		settle = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "clipboard")
	}
	return &Guard{
		acc:    acc,
		paster: p,
		settle: settle,
		clear:  opts.ClearAfterPaste,
		logger: logger,
	}
}

// snapshot is the clipboard content captured before a paste.
type snapshot struct {
	text     string
	captured bool
}

// Paste delivers text into the focused target. Calls are serialized.
func (g *Guard) Paste(ctx context.Context, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := g.take()
	defer g.restore(snap)

	if err := g.acc.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	if err := g.paster.Paste(ctx); err != nil {
		return fmt.Errorf("clipboard: paste: %w", err)
	}

	if g.settle > 0 {
		t := time.NewTimer(g.settle)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			// The chord is already sent; only the wait is cut short.
			g.logger.Debug("clipboard settle cut short", "error", ctx.Err())
		}
	}
	return nil
}

func (g *Guard) take() snapshot {
	prev, err := g.acc.ReadAll()
	if err != nil {
		g.logger.Warn("clipboard snapshot unavailable, original content will not be restored", "error", err)
		return snapshot{}
	}
	return snapshot{text: prev, captured: true}
}

func (g *Guard) restore(snap snapshot) {
	switch {
	case snap.captured:
		if err := g.acc.WriteAll(snap.text); err != nil {
			g.logger.Warn("clipboard restore failed", "error", err)
		}
	case g.clear:
		if err := g.acc.WriteAll(""); err != nil {
			g.logger.Warn("clipboard clear failed", "error", err)
		}
	}
}
