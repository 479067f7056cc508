package trigger

import (
	"fmt"
	"unicode/utf8"
)

// Kind classifies the outcome of processing one key event.
type Kind int

const (
	// NoAction means the event was literal input or ignored.
	NoAction Kind = iota
	// SnippetTrigger means a stored snippet command was completed.
	SnippetTrigger
	// AugmentationTrigger means a ::Prompt(<query>) literal was completed.
	AugmentationTrigger
)

func (k Kind) String() string {
	switch k {
	case NoAction:
		return "none"
	case SnippetTrigger:
		return "snippet"
	case AugmentationTrigger:
		return "augmentation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Action is the classification result for one key event.
type Action struct {
	Kind Kind

	// Command is the matched snippet command (SnippetTrigger only).
	Command string

	// Query is the text between the prompt markers (AugmentationTrigger only).
	Query string

	// Rendered is the trigger text as it appears on screen, excluding the
	// space that completed it.
	Rendered string
}

// None reports whether the action requires no follow-up.
func (a Action) None() bool {
	return a.Kind == NoAction
}

// Erase returns how many backspaces remove the trigger from the screen:
// the rendered text plus the completing space.
func (a Action) Erase() int {
	if a.Kind == NoAction {
		return 0
	}
	return utf8.RuneCountInString(a.Rendered) + 1
}
