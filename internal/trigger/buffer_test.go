package trigger

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptassist/internal/keystroke"
)

type snippetMap map[string]string

func (m snippetMap) Lookup(cmd string) (string, bool) {
	s, ok := m[cmd]
	return s, ok
}

func down(name string) keystroke.Event {
	return keystroke.Event{Name: name, Direction: keystroke.KeyDown}
}

func up(name string) keystroke.Event {
	return keystroke.Event{Name: name, Direction: keystroke.KeyUp}
}

// typeText feeds text through b as key presses and returns every non-empty
// action produced.
func typeText(b *Buffer, text string) []Action {
	var actions []Action
	for _, r := range text {
		name := string(r)
		if r == ' ' {
			name = keystroke.KeySpace
		}
		if act := b.Process(down(name)); !act.None() {
			actions = append(actions, act)
		}
		b.Process(up(name))
	}
	return actions
}

func TestLiteralInput(t *testing.T) {
	b := New(snippetMap{"::sig": "Regards"})

	actions := typeText(b, "hello there, friend")

	assert.Empty(t, actions)
	assert.Equal(t, "hello there, friend", b.Snapshot())
}

func TestBackspace(t *testing.T) {
	b := New(nil)

	typeText(b, "abc")
	b.Process(down(keystroke.KeyBackspace))
	assert.Equal(t, "ab", b.Snapshot())

	b.Process(down(keystroke.KeyBackspace))
	b.Process(down(keystroke.KeyBackspace))
	b.Process(down(keystroke.KeyBackspace))
	assert.Equal(t, "", b.Snapshot(), "backspace on an empty buffer is a no-op")
}

func TestSnippetTrigger(t *testing.T) {
	b := New(snippetMap{"::emailStarter": "Hi,"})

	actions := typeText(b, "::emailStarter ")

	want := []Action{{Kind: SnippetTrigger, Command: "::emailStarter", Rendered: "::emailStarter"}}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, len("::emailStarter")+1, actions[0].Erase())
}

func TestSnippetExactRequiresWholeBuffer(t *testing.T) {
	b := New(snippetMap{"::sig": "Regards"})

	actions := typeText(b, "see ::sig ")

	assert.Empty(t, actions)
	assert.Equal(t, "see ::sig ", b.Snapshot())
}

func TestSnippetTrailingMode(t *testing.T) {
	b := New(snippetMap{"::sig": "Regards"}, WithMatchMode(MatchTrailing))

	actions := typeText(b, "see ::sig ")

	require.Len(t, actions, 1)
	assert.Equal(t, SnippetTrigger, actions[0].Kind)
	assert.Equal(t, "::sig", actions[0].Command)
	assert.Equal(t, 6, actions[0].Erase())
	assert.Equal(t, 0, b.Len())
}

func TestUnknownSnippetAppendsSpace(t *testing.T) {
	b := New(snippetMap{"::sig": "Regards"})

	actions := typeText(b, "::nope ")

	assert.Empty(t, actions)
	assert.Equal(t, "::nope ", b.Snapshot())
}

func TestAugmentationTrigger(t *testing.T) {
	b := New(nil)

	actions := typeText(b, "::Prompt(hello world) ")

	want := []Action{{
		Kind:     AugmentationTrigger,
		Query:    "hello world",
		Rendered: "::Prompt(hello world)",
	}}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, len("::Prompt(hello world)")+1, actions[0].Erase())
}

func TestAugmentationEmptyQuery(t *testing.T) {
	b := New(nil)

	actions := typeText(b, "::Prompt() ")

	assert.Empty(t, actions)
	assert.Equal(t, "::Prompt() ", b.Snapshot())
}

func TestAugmentationRequiresMarkerAtStart(t *testing.T) {
	b := New(nil)

	actions := typeText(b, "x::Prompt(hi) ")

	assert.Empty(t, actions)
}

func TestNestedMarkerIsTextual(t *testing.T) {
	b := New(nil)

	actions := typeText(b, "::Prompt(a ::Prompt(b) ")

	require.Len(t, actions, 1)
	assert.Equal(t, "a ::Prompt(b", actions[0].Query)
}

func TestSnippetTakesPrecedenceOverPrompt(t *testing.T) {
	b := New(snippetMap{"::Prompt(x)": "literal"})

	actions := typeText(b, "::Prompt(x) ")

	require.Len(t, actions, 1)
	assert.Equal(t, SnippetTrigger, actions[0].Kind)
}

func TestDestructiveCombos(t *testing.T) {
	for _, key := range []string{"a", "c", "v", "x", "z", "V"} {
		t.Run(key, func(t *testing.T) {
			b := New(nil)
			typeText(b, "some text")

			b.Process(down(keystroke.KeyLeftCtrl))
			act := b.Process(down(key))
			b.Process(up(keystroke.KeyLeftCtrl))

			assert.True(t, act.None())
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestCtrlPrintableDropped(t *testing.T) {
	b := New(nil)
	typeText(b, "ab")

	b.Process(down(keystroke.KeyCtrl))
	assert.True(t, b.ModifierHeld())
	b.Process(down("s"))
	b.Process(up(keystroke.KeyCtrl))
	assert.False(t, b.ModifierHeld())

	b.Process(down("c"))
	assert.Equal(t, "abc", b.Snapshot())
}

func TestOtherKeysIgnored(t *testing.T) {
	b := New(nil)
	typeText(b, "ab")

	for _, name := range []string{keystroke.KeyShift, "f5", keystroke.KeyEnter, "left", keystroke.KeyUnknown, ""} {
		assert.True(t, b.Process(down(name)).None())
	}
	assert.Equal(t, "ab", b.Snapshot())
}

func TestKeyUpIgnored(t *testing.T) {
	b := New(nil)

	b.Process(up("a"))
	b.Process(up(keystroke.KeyBackspace))
	b.Process(up(keystroke.KeySpace))

	assert.Equal(t, 0, b.Len())
}

func TestClearIdempotent(t *testing.T) {
	b := New(nil)
	typeText(b, "abc")

	b.Clear()
	assert.Equal(t, 0, b.Len())
	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func TestOverflowOrdinary(t *testing.T) {
	b := New(nil)

	var typed strings.Builder
	for i := 0; i < 260; i++ {
		typed.WriteByte(byte('a' + i%26))
	}
	actions := typeText(b, typed.String())

	assert.Empty(t, actions)
	assert.Equal(t, KeepLen, b.Len())
	assert.Equal(t, typed.String()[260-KeepLen:], b.Snapshot())
}

func TestOverflowAtCap(t *testing.T) {
	b := New(nil)

	typeText(b, strings.Repeat("q", MaxLen))
	assert.Equal(t, MaxLen, b.Len(), "no trim until the cap is exceeded")

	typeText(b, "r")
	assert.Equal(t, KeepLen, b.Len())
}

func TestOverflowOpenLiteral(t *testing.T) {
	b := New(nil)

	var body strings.Builder
	for i := 0; i < 1100; i++ {
		body.WriteByte(byte('a' + i%26))
	}
	typed := PromptOpen + body.String()
	actions := typeText(b, typed)

	assert.Empty(t, actions)
	assert.Equal(t, KeepLiteralLen, b.Len())
	assert.Equal(t, typed[len(typed)-KeepLiteralLen:], b.Snapshot())
}

func TestOpenLiteralAllowsLongQuery(t *testing.T) {
	b := New(nil)
	query := strings.Repeat("w", 500)

	actions := typeText(b, PromptOpen+query+") ")

	require.Len(t, actions, 1)
	assert.Equal(t, query, actions[0].Query)
}

func TestOverflowWindowResetsOnClear(t *testing.T) {
	b := New(nil)
	typeText(b, strings.Repeat("z", MaxLen+1))
	require.Equal(t, KeepLen, b.Len())

	b.Clear()
	typeText(b, strings.Repeat("y", 100))
	assert.Equal(t, 100, b.Len())
}

func TestOverflowWindowResetsWhenBackspacedEmpty(t *testing.T) {
	b := New(nil)
	typeText(b, strings.Repeat("x", MaxLen+1))
	require.Equal(t, KeepLen, b.Len())

	for i := 0; i < KeepLen; i++ {
		b.Process(down(keystroke.KeyBackspace))
	}
	require.Zero(t, b.Len())

	query := strings.Repeat("w", 60)
	actions := typeText(b, PromptOpen+query+") ")

	require.Len(t, actions, 1)
	assert.Equal(t, AugmentationTrigger, actions[0].Kind)
	assert.Equal(t, query, actions[0].Query)
}

func TestClosedLiteralUsesOrdinaryCap(t *testing.T) {
	b := New(nil)

	typeText(b, PromptOpen+"a)"+strings.Repeat("z", 400))

	assert.Equal(t, KeepLen, b.Len())
	assert.Equal(t, strings.Repeat("z", KeepLen), b.Snapshot())
}

func TestLiteralWithInnerParensStaysOpen(t *testing.T) {
	b := New(nil)
	query := "explain f(x) for " + strings.Repeat("w", 300)

	actions := typeText(b, PromptOpen+query+") ")

	require.Len(t, actions, 1)
	assert.Equal(t, query, actions[0].Query)
}

func TestLiteralClosingParenAtCap(t *testing.T) {
	b := New(nil)
	// The balancing ")" lands past the ordinary cap; the space must still fire.
	query := strings.Repeat("q", MaxLen-len(PromptOpen))

	actions := typeText(b, PromptOpen+query+") ")

	require.Len(t, actions, 1)
	assert.Equal(t, query, actions[0].Query)
}

func TestUnicodeCharacters(t *testing.T) {
	b := New(nil)

	actions := typeText(b, "::Prompt(café ☕) ")

	require.Len(t, actions, 1)
	assert.Equal(t, "café ☕", actions[0].Query)
	assert.Equal(t, len([]rune("::Prompt(café ☕)"))+1, actions[0].Erase())
}

func TestSetMatchMode(t *testing.T) {
	b := New(snippetMap{"::sig": "Regards"})
	b.SetMatchMode("bogus")
	b.SetMatchMode(MatchTrailing)

	actions := typeText(b, "x ::sig ")
	require.Len(t, actions, 1)
}

func TestConcurrentProcessAndClear(t *testing.T) {
	b := New(nil)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Process(down("k"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.Clear()
		}
	}()
	wg.Wait()

	assert.LessOrEqual(t, b.Len(), MaxLen)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "none", NoAction.String())
	assert.Equal(t, "snippet", SnippetTrigger.String())
	assert.Equal(t, "augmentation", AugmentationTrigger.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.Equal(t, 0, Action{}.Erase())
}
