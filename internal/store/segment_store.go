package store

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

var validate = validator.New()

// SegmentStore is the in-memory home of chains, their segments and every
// segment child entity. Each chain has its own scope and lock, so different
// chains never contend while a chain's own mutations are atomic to readers.
type SegmentStore struct {
	mu           sync.RWMutex
	chains       map[string]*domain.Chain
	scopes       map[string]*chainScope
	segmentChain map[string]string
}

type chainScope struct {
	mu       sync.RWMutex
	segments map[string]*domain.Segment
	byOffset map[int]string
	children map[string]*entityTable
}

// entityTable keeps insertion order per kind so reads are deterministic.
type entityTable struct {
	byKind map[domain.EntityKind]map[string]domain.SegmentEntity
	order  map[domain.EntityKind][]string
}

func newEntityTable() *entityTable {
	return &entityTable{
		byKind: make(map[domain.EntityKind]map[string]domain.SegmentEntity),
		order:  make(map[domain.EntityKind][]string),
	}
}

func NewSegmentStore() *SegmentStore {
	return &SegmentStore{
		chains:       make(map[string]*domain.Chain),
		scopes:       make(map[string]*chainScope),
		segmentChain: make(map[string]string),
	}
}

// Chains

// PutChain upserts a chain after checking required fields and that its ship
// key does not collide with another non-failed chain.
func (s *SegmentStore) PutChain(chain *domain.Chain) error {
	if err := validate.Struct(chain); err != nil {
		return domain.Validationf("invalid chain: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if chain.ShipKey != "" && chain.State != domain.ChainStateFailed {
		for id, other := range s.chains {
			if id != chain.ID && other.ShipKey == chain.ShipKey && other.State != domain.ChainStateFailed {
				return domain.Validationf("ship key %q already in use by chain %s", chain.ShipKey, id)
			}
		}
	}

	c := *chain
	s.chains[chain.ID] = &c
	if _, ok := s.scopes[chain.ID]; !ok {
		s.scopes[chain.ID] = &chainScope{
			segments: make(map[string]*domain.Segment),
			byOffset: make(map[int]string),
			children: make(map[string]*entityTable),
		}
	}
	return nil
}

func (s *SegmentStore) GetChain(id string) (*domain.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chains[id]
	if !ok {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrChainNotFound, "chain %s", id)
	}
	out := *c
	return &out, nil
}

// ChainByShipKey resolves a ship key, preferring a chain that has not failed.
func (s *SegmentStore) ChainByShipKey(shipKey string) (*domain.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Chain
	for _, c := range s.chains {
		if c.ShipKey != shipKey {
			continue
		}
		if found == nil || (found.State == domain.ChainStateFailed && c.State != domain.ChainStateFailed) {
			found = c
		}
	}
	if found == nil {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrChainNotFound, "ship key %q", shipKey)
	}
	out := *found
	return &out, nil
}

// Chains lists chains, optionally only those in the given states, oldest first.
func (s *SegmentStore) Chains(states ...domain.ChainState) []*domain.Chain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Chain
	for _, c := range s.chains {
		if len(states) > 0 && !slices.Contains(states, c.State) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *domain.Chain) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// DeleteChain removes a chain that no longer has segments.
func (s *SegmentStore) DeleteChain(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chains[id]; !ok {
		return domain.Wrap(domain.KindExistence, domain.ErrChainNotFound, "chain %s", id)
	}
	if sc := s.scopes[id]; sc != nil {
		sc.mu.RLock()
		n := len(sc.segments)
		sc.mu.RUnlock()
		if n > 0 {
			return domain.Validationf("chain %s still has %d segments", id, n)
		}
	}
	delete(s.chains, id)
	delete(s.scopes, id)
	return nil
}

func (s *SegmentStore) scope(chainID string) (*chainScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scopes[chainID]
	if !ok {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrChainNotFound, "chain %s", chainID)
	}
	return sc, nil
}

func (s *SegmentStore) scopeOfSegment(segmentID string) (*chainScope, error) {
	s.mu.RLock()
	chainID, ok := s.segmentChain[segmentID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrSegmentNotFound, "segment %s", segmentID)
	}
	return s.scope(chainID)
}

// Segments

// PutSegment upserts a segment. New segments must not collide with an
// existing offset; updates may not move the segment to another chain or
// offset and must follow the segment state table.
func (s *SegmentStore) PutSegment(seg *domain.Segment) error {
	if seg.ID == "" {
		return domain.Wrap(domain.KindValidation, domain.ErrMissingID, "segment")
	}
	if err := validate.Struct(seg); err != nil {
		return domain.Validationf("invalid segment: %v", err)
	}

	// s.mu is held for the whole write so the chain check and the index
	// update cannot interleave with another put of the same id.
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingChain, exists := s.segmentChain[seg.ID]; exists && existingChain != seg.ChainID {
		return domain.Validationf("cannot change chain id of segment %s", seg.ID)
	}
	sc, ok := s.scopes[seg.ChainID]
	if !ok {
		return domain.Wrap(domain.KindExistence, domain.ErrChainNotFound, "chain %s", seg.ChainID)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if prior, ok := sc.segments[seg.ID]; ok {
		if prior.Offset != seg.Offset {
			return domain.Validationf("cannot change offset of segment %s", seg.ID)
		}
		if err := domain.ValidateSegmentTransition(prior.State, seg.State); err != nil {
			return err
		}
	} else if other, taken := sc.byOffset[seg.Offset]; taken && other != seg.ID {
		return domain.Validationf("found segment at same offset %d in chain %s", seg.Offset, seg.ChainID)
	}

	sc.segments[seg.ID] = seg.Clone()
	sc.byOffset[seg.Offset] = seg.ID
	if _, ok := sc.children[seg.ID]; !ok {
		sc.children[seg.ID] = newEntityTable()
	}
	s.segmentChain[seg.ID] = seg.ChainID
	return nil
}

func (s *SegmentStore) ReadSegment(id string) (*domain.Segment, error) {
	sc, err := s.scopeOfSegment(id)
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	seg, ok := sc.segments[id]
	if !ok {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrSegmentNotFound, "segment %s", id)
	}
	return seg.Clone(), nil
}

func (s *SegmentStore) ReadSegmentAtOffset(chainID string, offset int) (*domain.Segment, error) {
	sc, err := s.scope(chainID)
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	id, ok := sc.byOffset[offset]
	if !ok {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrSegmentNotFound, "chain %s offset %d", chainID, offset)
	}
	return sc.segments[id].Clone(), nil
}

// ReadAllSegments returns a chain's segments ordered by offset.
func (s *SegmentStore) ReadAllSegments(chainID string) ([]*domain.Segment, error) {
	sc, err := s.scope(chainID)
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.sorted(func(*domain.Segment) bool { return true }), nil
}

func (sc *chainScope) sorted(keep func(*domain.Segment) bool) []*domain.Segment {
	var out []*domain.Segment
	for _, seg := range sc.segments {
		if keep(seg) {
			out = append(out, seg.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Segment) int { return cmp.Compare(a.Offset, b.Offset) })
	return out
}

// ReadSegmentsFromToOffset returns segments with offsets in [from, to],
// clamped to what exists. Windows outside the chain yield nothing.
func (s *SegmentStore) ReadSegmentsFromToOffset(chainID string, from, to int) ([]*domain.Segment, error) {
	sc, err := s.scope(chainID)
	if err != nil {
		return nil, err
	}
	if from > to || to < 0 {
		return nil, nil
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.sorted(func(seg *domain.Segment) bool { return seg.Offset >= from && seg.Offset <= to }), nil
}

// ReadLastSegment returns the highest-offset segment, or nil if there are none.
func (s *SegmentStore) ReadLastSegment(chainID string) (*domain.Segment, error) {
	segs, err := s.ReadAllSegments(chainID)
	if err != nil || len(segs) == 0 {
		return nil, err
	}
	return segs[len(segs)-1], nil
}

// ReadSegmentsFromTime returns crafted segments overlapping the window
// [at-before, at+ahead).
func (s *SegmentStore) ReadSegmentsFromTime(chainID string, at time.Time, before, ahead time.Duration) ([]*domain.Segment, error) {
	sc, err := s.scope(chainID)
	if err != nil {
		return nil, err
	}
	from := at.Add(-before)
	until := at.Add(ahead)
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.sorted(func(seg *domain.Segment) bool {
		return seg.EndAt != nil && seg.BeginAt.Before(until) && seg.EndAt.After(from)
	}), nil
}

func (s *SegmentStore) CountSegments(chainID string) int {
	sc, err := s.scope(chainID)
	if err != nil {
		return 0
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.segments)
}

// DeleteSegment removes a segment and everything it owns.
func (s *SegmentStore) DeleteSegment(id string) error {
	sc, err := s.scopeOfSegment(id)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	sc.remove(id)
	sc.mu.Unlock()

	s.mu.Lock()
	delete(s.segmentChain, id)
	s.mu.Unlock()
	return nil
}

func (sc *chainScope) remove(id string) {
	if seg, ok := sc.segments[id]; ok {
		delete(sc.byOffset, seg.Offset)
	}
	delete(sc.segments, id)
	delete(sc.children, id)
}

// DeleteSegmentsAfter removes every segment with an offset greater than offset.
func (s *SegmentStore) DeleteSegmentsAfter(chainID string, offset int) ([]string, error) {
	return s.deleteWhere(chainID, func(seg *domain.Segment) bool { return seg.Offset > offset })
}

// DeleteSegmentsBefore removes every segment with an offset less than offset.
func (s *SegmentStore) DeleteSegmentsBefore(chainID string, offset int) ([]string, error) {
	return s.deleteWhere(chainID, func(seg *domain.Segment) bool { return seg.Offset < offset })
}

func (s *SegmentStore) deleteWhere(chainID string, match func(*domain.Segment) bool) ([]string, error) {
	sc, err := s.scope(chainID)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	var ids []string
	for id, seg := range sc.segments {
		if match(seg) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		sc.remove(id)
	}
	sc.mu.Unlock()

	s.mu.Lock()
	for _, id := range ids {
		delete(s.segmentChain, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids, nil
}

// Segment children

// PutEntity upserts a child entity into its segment.
func (s *SegmentStore) PutEntity(e domain.SegmentEntity) error {
	return s.putEntity(e, true)
}

func (s *SegmentStore) putEntity(e domain.SegmentEntity, enforceSeal bool) error {
	if e.EntityID() == "" {
		return domain.Wrap(domain.KindValidation, domain.ErrMissingID, "%s", e.Kind())
	}
	if e.SegmentRef() == "" {
		return domain.Wrap(domain.KindValidation, domain.ErrMissingSegmentID, "%s %s", e.Kind(), e.EntityID())
	}
	sc, err := s.scopeOfSegment(e.SegmentRef())
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	seg, ok := sc.segments[e.SegmentRef()]
	if !ok {
		return domain.Wrap(domain.KindExistence, domain.ErrSegmentNotFound, "segment %s", e.SegmentRef())
	}
	if enforceSeal && seg.State.IsSealed() && e.Kind() != domain.KindMessage && e.Kind() != domain.KindMeta {
		return domain.Privilegef("cannot put %s into %s segment %s", e.Kind(), seg.State, seg.ID)
	}
	if err := validate.Struct(e); err != nil {
		return domain.Validationf("invalid %s: %v", e.Kind(), err)
	}

	table := sc.children[seg.ID]
	kind := e.Kind()
	if table.byKind[kind] == nil {
		table.byKind[kind] = make(map[string]domain.SegmentEntity)
	}
	if _, exists := table.byKind[kind][e.EntityID()]; !exists {
		table.order[kind] = append(table.order[kind], e.EntityID())
	}
	table.byKind[kind][e.EntityID()] = e
	return nil
}

func (s *SegmentStore) GetEntity(kind domain.EntityKind, segmentID, id string) (domain.SegmentEntity, error) {
	sc, err := s.scopeOfSegment(segmentID)
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if table, ok := sc.children[segmentID]; ok {
		if e, ok := table.byKind[kind][id]; ok {
			return e, nil
		}
	}
	return nil, domain.Existencef("%s %s not found in segment %s", kind, id, segmentID)
}

// ListEntities returns entities of a kind across the given segments, in
// segment order then insertion order.
func (s *SegmentStore) ListEntities(kind domain.EntityKind, segmentIDs ...string) []domain.SegmentEntity {
	var out []domain.SegmentEntity
	for _, segID := range segmentIDs {
		sc, err := s.scopeOfSegment(segID)
		if err != nil {
			continue
		}
		sc.mu.RLock()
		if table, ok := sc.children[segID]; ok {
			for _, id := range table.order[kind] {
				out = append(out, table.byKind[kind][id])
			}
		}
		sc.mu.RUnlock()
	}
	return out
}

func (s *SegmentStore) DeleteEntity(kind domain.EntityKind, segmentID, id string) error {
	sc, err := s.scopeOfSegment(segmentID)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	table, ok := sc.children[segmentID]
	if !ok {
		return nil
	}
	if _, ok := table.byKind[kind][id]; !ok {
		return nil
	}
	delete(table.byKind[kind], id)
	table.order[kind] = slices.DeleteFunc(table.order[kind], func(x string) bool { return x == id })
	return nil
}

// DeleteEntities removes every entity of the given kinds from a segment.
func (s *SegmentStore) DeleteEntities(segmentID string, kinds ...domain.EntityKind) error {
	sc, err := s.scopeOfSegment(segmentID)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	table, ok := sc.children[segmentID]
	if !ok {
		return nil
	}
	for _, k := range kinds {
		delete(table.byKind, k)
		delete(table.order, k)
	}
	return nil
}

// Revert drops crafted content from a segment, keeping messages and metas,
// and returns it to Planned in one atomic step.
func (s *SegmentStore) Revert(segmentID string) (*domain.Segment, error) {
	sc, err := s.scopeOfSegment(segmentID)
	if err != nil {
		return nil, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()

	seg, ok := sc.segments[segmentID]
	if !ok {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrSegmentNotFound, "segment %s", segmentID)
	}
	if err := domain.ValidateSegmentTransition(seg.State, domain.SegmentStatePlanned); err != nil {
		return nil, err
	}
	if table, ok := sc.children[segmentID]; ok {
		for _, k := range domain.CraftedKinds {
			delete(table.byKind, k)
			delete(table.order, k)
		}
	}
	seg.State = domain.SegmentStatePlanned
	return seg.Clone(), nil
}
