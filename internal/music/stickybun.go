package music

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// StickyBunResolution is the range of each stored random value.
const StickyBunResolution = 100

// StickyBun holds random values for one pattern event so that its atonal
// notes resolve the same way in every segment that plays it.
type StickyBun struct {
	EventID string `json:"eventId"`
	Values  []int  `json:"values"`
}

func NewStickyBun(eventID string, size int, rng *rand.Rand) StickyBun {
	if size < 1 {
		size = 1
	}
	values := make([]int, size)
	for i := range values {
		values[i] = rng.IntN(StickyBunResolution)
	}
	return StickyBun{EventID: eventID, Values: values}
}

// Compute picks the voicing note for the index-th note of the event.
func (b StickyBun) Compute(voicingNotes []Note, index int) Note {
	if len(voicingNotes) == 0 {
		return AtonalNote()
	}
	sorted := SortNotes(append([]Note(nil), voicingNotes...))
	v := 0
	if len(b.Values) > 0 {
		v = b.Values[index%len(b.Values)]
	}
	return sorted[v*len(sorted)/StickyBunResolution]
}

func (b StickyBun) Marshal() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal sticky bun: %w", err)
	}
	return string(data), nil
}

func ParseStickyBun(s string) (StickyBun, error) {
	var b StickyBun
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return StickyBun{}, fmt.Errorf("parse sticky bun: %w", err)
	}
	return b, nil
}
