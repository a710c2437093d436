package music

// NotePicker chooses voicing notes for pattern events, keeping picks close to
// the event note and, when seeking inversions, inside the optimal range.
type NotePicker struct {
	target         NoteRange
	voicing        []Note
	seekInversions bool
	picked         NoteRange
}

func NewNotePicker(target NoteRange, voicingNotes []Note, seekInversions bool) *NotePicker {
	var tonal []Note
	for _, n := range voicingNotes {
		if !n.IsAtonal() {
			tonal = append(tonal, n)
		}
	}
	return &NotePicker{target: target, voicing: SortNotes(tonal), seekInversions: seekInversions}
}

// Pick returns the voicing note that best stands in for the event note.
// Atonal events and empty voicings pass through unchanged.
func (p *NotePicker) Pick(event Note) Note {
	if event.IsAtonal() || len(p.voicing) == 0 {
		return event
	}

	var candidates []Note
	if p.seekInversions {
		for _, v := range p.voicing {
			n := event.NearestOf(v.PitchClass)
			candidates = append(candidates, n.ShiftOctave(-1), n, n.ShiftOctave(1))
		}
	} else {
		candidates = p.voicing
	}

	best := candidates[0]
	bestCost := p.cost(event, best)
	for _, c := range candidates[1:] {
		cost := p.cost(event, c)
		if cost < bestCost || (cost == bestCost && c.IsLower(best)) {
			best, bestCost = c, cost
		}
	}
	p.picked.Expand(best)
	return best
}

func (p *NotePicker) cost(event, candidate Note) int {
	cost := abs(event.Delta(candidate))
	if p.seekInversions && !p.target.IsEmpty() && !p.target.Includes(candidate) {
		cost += 12
	}
	return cost
}

// Picked is the range covered by everything picked so far.
func (p *NotePicker) Picked() NoteRange {
	return p.picked
}
