package journal

import (
	"fmt"

	"github.com/samwightt/rubberdux/internal/ir"
)

// DivergenceKind classifies a replay mismatch.
type DivergenceKind string

const (
	// DivergenceMismatch means both runs produced an action at this index
	// but the actions differ.
	DivergenceMismatch DivergenceKind = "mismatch"

	// DivergenceMissing means the replay produced fewer actions.
	DivergenceMissing DivergenceKind = "missing"

	// DivergenceExtra means the replay produced more actions.
	DivergenceExtra DivergenceKind = "extra"
)

// Divergence describes one action that differs between a recorded run and
// its replay.
type Divergence struct {
	Kind     DivergenceKind `json:"kind"`
	Index    int            `json:"index"`
	Recorded *Entry         `json:"recorded,omitempty"`
	Replayed *Entry         `json:"replayed,omitempty"`
}

func (d Divergence) String() string {
	switch d.Kind {
	case DivergenceMissing:
		return fmt.Sprintf("action %d: missing in replay (%s from %s)", d.Index, d.Recorded.Name, d.Recorded.Pipe)
	case DivergenceExtra:
		return fmt.Sprintf("action %d: unexpected in replay (%s from %s)", d.Index, d.Replayed.Name, d.Replayed.Pipe)
	default:
		return fmt.Sprintf("action %d: recorded %s from %s, replayed %s from %s",
			d.Index, d.Recorded.Name, d.Recorded.Pipe, d.Replayed.Name, d.Replayed.Pipe)
	}
}

// Compare matches the action entries of two runs position by position.
// Events and sequence numbers are ignored; actions match when pipe, type
// and payload are equal. Returns an empty slice when the runs agree.
func Compare(recorded, replayed []Entry) []Divergence {
	a := actionsOf(recorded)
	b := actionsOf(replayed)

	divs := []Divergence{}
	for i := 0; i < max(len(a), len(b)); i++ {
		switch {
		case i >= len(b):
			divs = append(divs, Divergence{Kind: DivergenceMissing, Index: i, Recorded: &a[i]})
		case i >= len(a):
			divs = append(divs, Divergence{Kind: DivergenceExtra, Index: i, Replayed: &b[i]})
		case !sameAction(a[i], b[i]):
			divs = append(divs, Divergence{Kind: DivergenceMismatch, Index: i, Recorded: &a[i], Replayed: &b[i]})
		}
	}
	return divs
}

func actionsOf(entries []Entry) []Entry {
	out := []Entry{}
	for _, e := range entries {
		if e.Kind == KindAction {
			out = append(out, e)
		}
	}
	return out
}

func sameAction(a, b Entry) bool {
	return a.Pipe == b.Pipe && a.Name == b.Name && ir.Equal(a.Value, b.Value)
}
