// Package retrospective gives a fabricator read-only access to the segments
// of its chain that were crafted before the current one.
package retrospective

import (
	"cmp"
	"slices"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

// Retrospective is scoped to one segment and looks backwards from it.
type Retrospective struct {
	store    *store.SegmentStore
	repos    *store.Repositories
	segment  *domain.Segment
	previous *domain.Segment
}

// New builds the retrospective of a segment. The previous segment is the one
// at offset-1; it is nil for the first segment of a chain.
func New(s *store.SegmentStore, segmentID string) (*Retrospective, error) {
	seg, err := s.ReadSegment(segmentID)
	if err != nil {
		return nil, err
	}

	r := &Retrospective{store: s, repos: store.NewRepositories(s), segment: seg}
	if seg.Offset > 0 {
		prev, err := s.ReadSegmentAtOffset(seg.ChainID, seg.Offset-1)
		if err != nil && !domain.IsExistence(err) {
			return nil, err
		}
		r.previous = prev
	}
	return r, nil
}

// PreviousSegment returns nil when there is none.
func (r *Retrospective) PreviousSegment() *domain.Segment {
	return r.previous
}

func (r *Retrospective) previousID() (string, bool) {
	if r.previous == nil {
		return "", false
	}
	return r.previous.ID, true
}

// Choices of the previous segment.
func (r *Retrospective) Choices() []domain.SegmentChoice {
	id, ok := r.previousID()
	if !ok {
		return nil
	}
	return r.repos.Choices.List(id)
}

func (r *Retrospective) Arrangements() []domain.SegmentChoiceArrangement {
	id, ok := r.previousID()
	if !ok {
		return nil
	}
	return r.repos.Arrangements.List(id)
}

// Picks of the previous segment, ordered by start time.
func (r *Retrospective) Picks() []domain.SegmentChoiceArrangementPick {
	id, ok := r.previousID()
	if !ok {
		return nil
	}
	picks := r.repos.Picks.List(id)
	slices.SortStableFunc(picks, func(a, b domain.SegmentChoiceArrangementPick) int {
		return cmp.Compare(a.StartAtSegmentMicros, b.StartAtSegmentMicros)
	})
	return picks
}

// PreviousChoicesOfType returns every previous choice of a program type, in
// the order they were made.
func (r *Retrospective) PreviousChoicesOfType(t domain.ProgramType) []domain.SegmentChoice {
	var out []domain.SegmentChoice
	for _, c := range r.Choices() {
		if c.ProgramType == t {
			out = append(out, c)
		}
	}
	return out
}

// PreviousChoiceOfType returns the previous segment's choice of a program
// type. When the current segment starts a new macro the last matching choice
// wins, otherwise the first. A missing Main choice after the first segment is
// fatal; any other missing type returns nil.
func (r *Retrospective) PreviousChoiceOfType(t domain.ProgramType, current domain.SegmentType) (*domain.SegmentChoice, error) {
	if r.previous == nil {
		return nil, nil
	}

	matches := r.PreviousChoicesOfType(t)
	if len(matches) == 0 {
		if t == domain.ProgramTypeMain {
			return nil, domain.Wrap(domain.KindFatal, domain.ErrNoMainChoice, "segment %s", r.previous.ID)
		}
		return nil, nil
	}

	c := matches[0]
	if current == domain.SegmentTypeNextMacro {
		c = matches[len(matches)-1]
	}
	return &c, nil
}

// PreviousChoicesOfInstrument returns previous choices that used an instrument type,
// optionally narrowed to a mode.
func (r *Retrospective) PreviousChoicesOfInstrument(t domain.InstrumentType, modes ...domain.InstrumentMode) []domain.SegmentChoice {
	var out []domain.SegmentChoice
	for _, c := range r.Choices() {
		if c.InstrumentType != t {
			continue
		}
		if len(modes) > 0 && !slices.Contains(modes, c.InstrumentMode) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PreviousPicksForInstrument returns the previous segment's picks made on an instrument.
func (r *Retrospective) PreviousPicksForInstrument(instrumentID string) []domain.SegmentChoiceArrangementPick {
	choices := make(map[string]bool)
	for _, c := range r.Choices() {
		if c.InstrumentID == instrumentID {
			choices[c.ID] = true
		}
	}
	arrangements := make(map[string]bool)
	for _, a := range r.Arrangements() {
		if choices[a.SegmentChoiceID] {
			arrangements[a.ID] = true
		}
	}

	var out []domain.SegmentChoiceArrangementPick
	for _, p := range r.Picks() {
		if arrangements[p.SegmentChoiceArrangementID] {
			out = append(out, p)
		}
	}
	return out
}

// ChoiceOfPick resolves the choice a previous pick was arranged under.
func (r *Retrospective) ChoiceOfPick(pick domain.SegmentChoiceArrangementPick) (domain.SegmentChoice, bool) {
	arrangement, err := r.repos.Arrangements.Get(pick.SegmentID, pick.SegmentChoiceArrangementID)
	if err != nil {
		return domain.SegmentChoice{}, false
	}
	choice, err := r.repos.Choices.Get(pick.SegmentID, arrangement.SegmentChoiceID)
	if err != nil {
		return domain.SegmentChoice{}, false
	}
	return choice, true
}

// PreviousMeta returns a meta by exact key from the nearest earlier segment that set it.
func (r *Retrospective) PreviousMeta(key string) (domain.SegmentMeta, bool) {
	earlier, err := r.store.ReadSegmentsFromToOffset(r.segment.ChainID, 0, r.segment.Offset-1)
	if err != nil {
		return domain.SegmentMeta{}, false
	}
	for i := len(earlier) - 1; i >= 0; i-- {
		for _, m := range r.repos.Metas.List(earlier[i].ID) {
			if m.Key == key {
				return m, true
			}
		}
	}
	return domain.SegmentMeta{}, false
}
