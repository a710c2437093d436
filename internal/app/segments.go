package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/config"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/storage"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

var segmentEntityKinds = []domain.EntityKind{
	domain.KindMeme,
	domain.KindChord,
	domain.KindChordVoicing,
	domain.KindChoice,
	domain.KindArrangement,
	domain.KindPick,
	domain.KindMeta,
	domain.KindMessage,
}

// SegmentArchive keeps a copy of every shipped segment outside the store.
// *storage.Archive satisfies it.
type SegmentArchive interface {
	Write(shipKey string, seg *domain.Segment, entities []domain.SegmentEntity) (*storage.Shipment, error)
	Remove(shipKey string, seg *domain.Segment) error
}

type SegmentService struct {
	Store   *store.SegmentStore
	Repo    Persister
	Archive SegmentArchive
	Config  *config.Config
	Logger  *logger.Logger
}

func NewSegmentService(st *store.SegmentStore, repo Persister, cfg *config.Config, log *logger.Logger) *SegmentService {
	return &SegmentService{Store: st, Repo: repo, Config: cfg, Logger: log}
}

// Create stores a new segment. Segments always begin Planned and may not
// take an offset already used in their chain.
func (s *SegmentService) Create(input *domain.Segment) (*domain.Segment, error) {
	seg := input.Clone()
	if seg.ID == "" {
		seg.ID = uuid.New().String()
	}
	if seg.Type == "" {
		seg.Type = domain.SegmentTypePending
	}
	seg.State = domain.SegmentStatePlanned
	now := time.Now().UTC()
	seg.CreatedAt = now
	seg.UpdatedAt = now

	if _, err := s.Store.ReadSegment(seg.ID); err == nil {
		return nil, domain.Validationf("segment %s already exists", seg.ID)
	}
	if err := s.Store.PutSegment(seg); err != nil {
		return nil, err
	}
	if err := s.persist(context.Background(), seg, false); err != nil {
		return nil, err
	}
	s.Logger.Debug("Segment created", "segment_id", seg.ID, "chain_id", seg.ChainID, "offset", seg.Offset)
	return seg, nil
}

func (s *SegmentService) ReadOne(id string) (*domain.Segment, error) {
	return s.Store.ReadSegment(id)
}

func (s *SegmentService) ReadOneAtChainOffset(chainID string, offset int) (*domain.Segment, error) {
	return s.Store.ReadSegmentAtOffset(chainID, offset)
}

func (s *SegmentService) ReadMany(chainID string) ([]*domain.Segment, error) {
	return s.Store.ReadAllSegments(chainID)
}

// ReadManyByShipKey returns the segments of the chain with the ship key,
// newest first.
func (s *SegmentService) ReadManyByShipKey(shipKey string) ([]*domain.Segment, error) {
	chain, err := s.Store.ChainByShipKey(NormalizeShipKey(shipKey))
	if err != nil {
		return nil, err
	}
	segs, err := s.Store.ReadAllSegments(chain.ID)
	if err != nil {
		return nil, err
	}
	slices.Reverse(segs)
	return segs, nil
}

func (s *SegmentService) ReadManyFromToOffset(chainID string, from, to int) ([]*domain.Segment, error) {
	return s.Store.ReadSegmentsFromToOffset(chainID, from, to)
}

// ReadManyFromSecondsUTC returns the crafted segments around an instant,
// padded by the configured buffers.
func (s *SegmentService) ReadManyFromSecondsUTC(chainID string, seconds int64) ([]*domain.Segment, error) {
	return s.Store.ReadSegmentsFromTime(chainID, time.Unix(seconds, 0).UTC(),
		time.Duration(s.Config.BufferBeforeSeconds)*time.Second,
		time.Duration(s.Config.BufferAheadSeconds)*time.Second)
}

func (s *SegmentService) ReadManyFromSecondsUTCByShipKey(shipKey string, seconds int64) ([]*domain.Segment, error) {
	chain, err := s.Store.ChainByShipKey(NormalizeShipKey(shipKey))
	if err != nil {
		return nil, err
	}
	return s.ReadManyFromSecondsUTC(chain.ID, seconds)
}

// ReadLastSegment returns nil when the chain has no segments.
func (s *SegmentService) ReadLastSegment(chainID string) (*domain.Segment, error) {
	return s.Store.ReadLastSegment(chainID)
}

// ReadLastDubbedSegment returns nil when no segment has been dubbed yet.
func (s *SegmentService) ReadLastDubbedSegment(chainID string) (*domain.Segment, error) {
	segs, err := s.Store.ReadAllSegments(chainID)
	if err != nil {
		return nil, err
	}
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].State == domain.SegmentStateDubbed {
			return segs[i], nil
		}
	}
	return nil, nil
}

// ReadEntities returns every child entity of a segment, parents first.
func (s *SegmentService) ReadEntities(segmentID string) []domain.SegmentEntity {
	var out []domain.SegmentEntity
	for _, kind := range segmentEntityKinds {
		out = append(out, s.Store.ListEntities(kind, segmentID)...)
	}
	return out
}

// Update replaces a segment's fields. The chain and offset of a segment
// never change and its state follows the segment state table.
func (s *SegmentService) Update(id string, input *domain.Segment) (*domain.Segment, error) {
	existing, err := s.Store.ReadSegment(id)
	if err != nil {
		return nil, err
	}
	seg := input.Clone()
	seg.ID = id
	if seg.ChainID != existing.ChainID {
		return nil, domain.Validationf("cannot change chain id of segment %s", id)
	}
	seg.CreatedAt = existing.CreatedAt
	seg.UpdatedAt = time.Now().UTC()

	if err := s.Store.PutSegment(seg); err != nil {
		return nil, err
	}
	if err := s.persist(context.Background(), seg, false); err != nil {
		return nil, err
	}
	return seg, nil
}

func (s *SegmentService) UpdateState(id string, state domain.SegmentState) (*domain.Segment, error) {
	seg, err := s.Store.ReadSegment(id)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateSegmentTransition(seg.State, state); err != nil {
		return nil, err
	}
	seg.State = state
	return s.Update(id, seg)
}

// Ship hands a crafted segment over to playback, moving it through Dubbing
// to Dubbed.
func (s *SegmentService) Ship(id string) (*domain.Segment, error) {
	seg, err := s.Store.ReadSegment(id)
	if err != nil {
		return nil, err
	}
	if seg.State == domain.SegmentStateCrafted {
		if seg, err = s.UpdateState(id, domain.SegmentStateDubbing); err != nil {
			return nil, err
		}
	}
	seg, err = s.UpdateState(id, domain.SegmentStateDubbed)
	if err != nil {
		return nil, err
	}
	if s.Archive != nil {
		chain, err := s.Store.GetChain(seg.ChainID)
		if err != nil {
			return nil, err
		}
		shipment, err := s.Archive.Write(chain.ShipKey, seg, s.ReadEntities(id))
		if err != nil {
			return nil, fmt.Errorf("failed to archive segment: %w", err)
		}
		s.Logger.Debug("Segment archived", "segment_id", id, "path", shipment.Path, "sha256", shipment.SHA256)
	}
	s.Logger.Info("Segment shipped", "segment_id", id, "chain_id", seg.ChainID, "offset", seg.Offset)
	return seg, nil
}

// Revert drops the crafted content of a segment and returns it to Planned.
// Messages and metas are kept.
func (s *SegmentService) Revert(ctx context.Context, id string) (*domain.Segment, error) {
	seg, err := s.Store.Revert(id)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, seg, true); err != nil {
		return nil, err
	}
	s.Logger.Info("Segment reverted", "segment_id", id, "chain_id", seg.ChainID, "offset", seg.Offset)
	return seg, nil
}

func (s *SegmentService) Destroy(id string) error {
	seg, err := s.Store.ReadSegment(id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteSegment(id); err != nil {
		return err
	}
	if s.Archive != nil && seg.State == domain.SegmentStateDubbed {
		if chain, err := s.Store.GetChain(seg.ChainID); err == nil {
			if err := s.Archive.Remove(chain.ShipKey, seg); err != nil {
				s.Logger.Warn("Failed to remove archived segment", "segment_id", id, "error", err)
			}
		}
	}
	if s.Repo != nil {
		if err := s.Repo.DeleteSegment(id); err != nil {
			return fmt.Errorf("failed to delete persisted segment: %w", err)
		}
	}
	return nil
}

func (s *SegmentService) persist(ctx context.Context, seg *domain.Segment, withEntities bool) error {
	if s.Repo == nil {
		return nil
	}
	if err := s.Repo.SaveSegment(seg); err != nil {
		return fmt.Errorf("failed to persist segment: %w", err)
	}
	if !withEntities {
		return nil
	}
	if err := s.Repo.SaveSegmentEntities(ctx, seg.ID, s.ReadEntities(seg.ID)); err != nil {
		return fmt.Errorf("failed to persist segment entities: %w", err)
	}
	return nil
}
