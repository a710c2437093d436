package store

import (
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

// Repository is a typed view over one kind of segment child entity.
type Repository[E domain.SegmentEntity] struct {
	store *SegmentStore
	kind  domain.EntityKind
}

func NewRepository[E domain.SegmentEntity](s *SegmentStore) *Repository[E] {
	var zero E
	return &Repository[E]{store: s, kind: zero.Kind()}
}

func (r *Repository[E]) Put(e E) error {
	return r.store.PutEntity(e)
}

func (r *Repository[E]) Get(segmentID, id string) (E, error) {
	var zero E
	got, err := r.store.GetEntity(r.kind, segmentID, id)
	if err != nil {
		return zero, err
	}
	e, ok := got.(E)
	if !ok {
		return zero, domain.Fatalf("%s %s has unexpected type %T", r.kind, id, got)
	}
	return e, nil
}

// List returns entities from the given segments, in segment order.
func (r *Repository[E]) List(segmentIDs ...string) []E {
	raw := r.store.ListEntities(r.kind, segmentIDs...)
	out := make([]E, 0, len(raw))
	for _, x := range raw {
		if e, ok := x.(E); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *Repository[E]) Delete(segmentID, id string) error {
	return r.store.DeleteEntity(r.kind, segmentID, id)
}

func (r *Repository[E]) DeleteAll(segmentID string) error {
	return r.store.DeleteEntities(segmentID, r.kind)
}

// Repositories bundles a typed repository per child kind.
type Repositories struct {
	Choices      *Repository[domain.SegmentChoice]
	Arrangements *Repository[domain.SegmentChoiceArrangement]
	Picks        *Repository[domain.SegmentChoiceArrangementPick]
	Chords       *Repository[domain.SegmentChord]
	Voicings     *Repository[domain.SegmentChordVoicing]
	Memes        *Repository[domain.SegmentMeme]
	Messages     *Repository[domain.SegmentMessage]
	Metas        *Repository[domain.SegmentMeta]
}

func NewRepositories(s *SegmentStore) *Repositories {
	return &Repositories{
		Choices:      NewRepository[domain.SegmentChoice](s),
		Arrangements: NewRepository[domain.SegmentChoiceArrangement](s),
		Picks:        NewRepository[domain.SegmentChoiceArrangementPick](s),
		Chords:       NewRepository[domain.SegmentChord](s),
		Voicings:     NewRepository[domain.SegmentChordVoicing](s),
		Memes:        NewRepository[domain.SegmentMeme](s),
		Messages:     NewRepository[domain.SegmentMessage](s),
		Metas:        NewRepository[domain.SegmentMeta](s),
	}
}
