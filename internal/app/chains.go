package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/config"
	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

// Persister mirrors the in-memory store to durable storage. *store.DB
// satisfies it; a nil Persister keeps everything in memory.
type Persister interface {
	SaveChain(chain *domain.Chain) error
	DeleteChain(id string) error
	SaveSegment(seg *domain.Segment) error
	DeleteSegment(id string) error
	SaveSegmentEntities(ctx context.Context, segmentID string, entities []domain.SegmentEntity) error
}

var reviveFromStates = []domain.ChainState{
	domain.ChainStateFabricate,
	domain.ChainStateComplete,
	domain.ChainStateFailed,
}

type ChainService struct {
	Store     *store.SegmentStore
	Repo      Persister
	Templates *TemplateCatalog
	Config    *config.Config
	Logger    *logger.Logger
	Now       func() time.Time

	rng *rand.Rand
}

func NewChainService(st *store.SegmentStore, repo Persister, templates *TemplateCatalog, cfg *config.Config, log *logger.Logger) *ChainService {
	return &ChainService{
		Store:     st,
		Repo:      repo,
		Templates: templates,
		Config:    cfg,
		Logger:    log,
		Now:       func() time.Time { return time.Now().UTC() },
		rng:       marble.NewSecureRand(),
	}
}

// Create stores a new chain in Draft state. Production chains bring their
// own ship key; preview chains are given a generated one.
func (s *ChainService) Create(input *domain.Chain) (*domain.Chain, error) {
	chain := *input
	chain.ID = uuid.New().String()
	chain.State = domain.ChainStateDraft
	if chain.Type == "" {
		chain.Type = domain.ChainTypePreview
	}
	if strings.TrimSpace(chain.Name) == "" {
		return nil, domain.Validationf("chain name is required")
	}

	switch chain.Type {
	case domain.ChainTypeProduction:
		chain.ShipKey = NormalizeShipKey(chain.ShipKey)
		if chain.ShipKey == "" {
			return nil, domain.Validationf("production chain requires a ship key")
		}
	case domain.ChainTypePreview:
		chain.ShipKey = s.previewShipKey()
	}

	if chain.TemplateID != "" {
		if _, err := s.Templates.Get(chain.TemplateID); err != nil {
			return nil, err
		}
	}

	now := s.Now()
	s.restart(&chain)
	chain.CreatedAt = now
	chain.UpdatedAt = now

	if err := s.save(&chain); err != nil {
		return nil, err
	}
	s.Logger.Info("Chain created", "chain_id", chain.ID, "ship_key", chain.ShipKey, "type", chain.Type)
	return &chain, nil
}

// Bootstrap creates a production chain and moves it straight to Fabricate.
func (s *ChainService) Bootstrap(input *domain.Chain) (*domain.Chain, error) {
	in := *input
	in.Type = domain.ChainTypeProduction
	chain, err := s.Create(&in)
	if err != nil {
		return nil, err
	}
	if _, err := s.UpdateState(chain.ID, domain.ChainStateReady); err != nil {
		return nil, err
	}
	return s.UpdateState(chain.ID, domain.ChainStateFabricate)
}

func (s *ChainService) ReadOne(id string) (*domain.Chain, error) {
	return s.Store.GetChain(id)
}

func (s *ChainService) ReadOneByShipKey(shipKey string) (*domain.Chain, error) {
	return s.Store.ChainByShipKey(NormalizeShipKey(shipKey))
}

// ReadMany lists the chains of the given accounts, or every chain when no
// account is given.
func (s *ChainService) ReadMany(accountIDs ...string) []*domain.Chain {
	chains := s.Store.Chains()
	if len(accountIDs) == 0 {
		return chains
	}
	return slices.DeleteFunc(chains, func(c *domain.Chain) bool {
		return !slices.Contains(accountIDs, c.AccountID)
	})
}

func (s *ChainService) ReadManyInState(state domain.ChainState) []*domain.Chain {
	return s.Store.Chains(state)
}

// Update changes the editable fields of a chain. The type never changes,
// preview chains keep their ship key and stop time, and the start time is
// frozen once the chain has segments.
func (s *ChainService) Update(id string, input *domain.Chain) (*domain.Chain, error) {
	existing, err := s.Store.GetChain(id)
	if err != nil {
		return nil, err
	}
	if input.Type != "" && input.Type != existing.Type {
		return nil, domain.Validationf("cannot modify chain type")
	}

	chain := *existing
	if input.Name != "" {
		chain.Name = input.Name
	}
	if input.AccountID != "" {
		chain.AccountID = input.AccountID
	}
	if input.TemplateID != "" && input.TemplateID != chain.TemplateID {
		if _, err := s.Templates.Get(input.TemplateID); err != nil {
			return nil, err
		}
		chain.TemplateID = input.TemplateID
	}
	if chain.Type == domain.ChainTypeProduction {
		if key := NormalizeShipKey(input.ShipKey); key != "" {
			chain.ShipKey = key
		}
		if input.StopAt != nil {
			chain.StopAt = input.StopAt
		}
	}
	if input.StartAt != nil && (existing.StartAt == nil || !input.StartAt.Equal(*existing.StartAt)) {
		if s.Store.CountSegments(id) > 0 {
			return nil, domain.Validationf("cannot change chain start time after it has segments")
		}
		chain.StartAt = input.StartAt
	}
	if input.State != "" && input.State != existing.State {
		if err := s.transition(&chain, input.State); err != nil {
			return nil, err
		}
	}

	chain.UpdatedAt = s.Now()
	if err := s.save(&chain); err != nil {
		return nil, err
	}
	s.Logger.Debug("Chain updated", "chain_id", chain.ID)
	return &chain, nil
}

// UpdateState moves a chain to another state following the chain state table.
func (s *ChainService) UpdateState(id string, state domain.ChainState) (*domain.Chain, error) {
	chain, err := s.Store.GetChain(id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(chain, state); err != nil {
		return nil, err
	}
	chain.UpdatedAt = s.Now()
	if err := s.save(chain); err != nil {
		return nil, err
	}

	switch state {
	case domain.ChainStateFabricate, domain.ChainStateFailed:
		s.Logger.Info("Chain state updated", "chain_id", chain.ID, "ship_key", chain.ShipKey, "state", state)
	default:
		s.Logger.Debug("Chain state updated", "chain_id", chain.ID, "state", state)
	}
	return chain, nil
}

// transition validates a state change and applies the fields that follow
// from entering the new state.
func (s *ChainService) transition(chain *domain.Chain, to domain.ChainState) error {
	from := chain.State
	if err := domain.ValidateChainTransition(from, to); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if to == domain.ChainStateReady {
		if chain.TemplateID == "" {
			return domain.Validationf("chain must be bound to a template before it is ready")
		}
		if _, err := s.Templates.Get(chain.TemplateID); err != nil {
			return err
		}
	}
	chain.State = to
	switch to {
	case domain.ChainStateDraft, domain.ChainStateReady, domain.ChainStateFabricate:
		if s.Store.CountSegments(chain.ID) == 0 {
			s.restart(chain)
		}
	}
	return nil
}

// restart schedules the chain to begin shortly from now. Preview chains stop
// after the maximum preview length.
func (s *ChainService) restart(chain *domain.Chain) {
	start := s.Now().Add(time.Duration(s.Config.ChainStartInFutureSeconds) * time.Second)
	chain.StartAt = &start
	if chain.Type == domain.ChainTypePreview {
		stop := start.Add(time.Duration(s.Config.PreviewLengthMaxHours) * time.Hour)
		chain.StopAt = &stop
	}
}

// Revive retires a chain to Failed and hands its ship key to a fresh copy
// that goes straight to Fabricate.
func (s *ChainService) Revive(priorID, reason string) (*domain.Chain, error) {
	prior, err := s.Store.GetChain(priorID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(reviveFromStates, prior.State) {
		names := make([]string, len(reviveFromStates))
		for i, st := range reviveFromStates {
			names[i] = string(st)
		}
		return nil, domain.Privilegef("cannot revive a chain unless it is in state %s", strings.Join(names, " or "))
	}

	shipKey := prior.ShipKey
	revived := *prior

	prior.State = domain.ChainStateFailed
	prior.ShipKey = ""
	prior.UpdatedAt = s.Now()
	if err := s.save(prior); err != nil {
		return nil, err
	}

	now := s.Now()
	revived.ID = uuid.New().String()
	revived.ShipKey = shipKey
	revived.State = domain.ChainStateDraft
	revived.CreatedAt = now
	revived.UpdatedAt = now
	s.restart(&revived)
	if err := s.save(&revived); err != nil {
		return nil, err
	}
	if _, err := s.UpdateState(revived.ID, domain.ChainStateReady); err != nil {
		return nil, err
	}
	out, err := s.UpdateState(revived.ID, domain.ChainStateFabricate)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Chain revived", "chain_id", out.ID, "prior_chain_id", priorID, "ship_key", shipKey, "reason", reason)
	return out, nil
}

// Destroy deletes a chain after deleting all of its segments.
func (s *ChainService) Destroy(id string) error {
	if _, err := s.Store.GetChain(id); err != nil {
		return err
	}
	removed, err := s.Store.DeleteSegmentsAfter(id, -1)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteChain(id); err != nil {
		return err
	}
	if s.Repo != nil {
		if err := s.Repo.DeleteChain(id); err != nil {
			return fmt.Errorf("failed to delete persisted chain: %w", err)
		}
	}
	s.Logger.Info("Chain destroyed", "chain_id", id, "segments", len(removed))
	return nil
}

// DestroyIfExistsForShipKey is a no-op when no chain has the ship key.
func (s *ChainService) DestroyIfExistsForShipKey(shipKey string) error {
	chain, err := s.ReadOneByShipKey(shipKey)
	if domain.IsExistence(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Destroy(chain.ID)
}

// PlanNextOrComplete returns the planned template of the segment that
// follows the last one in the chain, or nil when there is nothing to plan.
// Nothing is planned while the last segment is still being crafted, when
// the next one would begin after segmentBeginBefore, or once the chain has
// run past its stop time. A chain whose stop time is before
// chainStopCompleteAfter and whose last segment has been dubbed is marked
// Complete.
func (s *ChainService) PlanNextOrComplete(chainID string, segmentBeginBefore, chainStopCompleteAfter time.Time) (*domain.Segment, error) {
	chain, err := s.Store.GetChain(chainID)
	if err != nil {
		return nil, err
	}
	last, err := s.Store.ReadLastSegment(chainID)
	if err != nil {
		return nil, err
	}

	if last == nil {
		if chain.StartAt == nil {
			return nil, domain.Validationf("chain %s has no start time", chainID)
		}
		return s.plan(chain, 0, *chain.StartAt, 0, 0, segmentBeginBefore), nil
	}

	if last.EndAt == nil {
		return nil, nil
	}

	if chain.StopAt != nil && last.EndAt.After(*chain.StopAt) {
		if chain.StopAt.Before(chainStopCompleteAfter) && last.State == domain.SegmentStateDubbed {
			if _, err := s.UpdateState(chainID, domain.ChainStateComplete); err != nil {
				return nil, err
			}
		}
		s.Logger.Info("Chain is complete", "chain_id", chainID, "ship_key", chain.ShipKey)
		return nil, nil
	}

	endMicros, _ := last.EndMicros()
	return s.plan(chain, last.Offset+1, *last.EndAt, endMicros, last.Delta, segmentBeginBefore), nil
}

func (s *ChainService) plan(chain *domain.Chain, offset int, beginAt time.Time, beginMicros int64, delta int, beginBefore time.Time) *domain.Segment {
	if !beginBefore.IsZero() && !beginAt.Before(beginBefore) {
		return nil
	}
	return &domain.Segment{
		ID:                 uuid.New().String(),
		ChainID:            chain.ID,
		Offset:             offset,
		Type:               domain.SegmentTypePending,
		State:              domain.SegmentStatePlanned,
		BeginAt:            beginAt,
		BeginAtChainMicros: beginMicros,
		Delta:              delta,
	}
}

func (s *ChainService) save(chain *domain.Chain) error {
	if err := s.Store.PutChain(chain); err != nil {
		return err
	}
	if s.Repo == nil {
		return nil
	}
	if err := s.Repo.SaveChain(chain); err != nil {
		return fmt.Errorf("failed to persist chain: %w", err)
	}
	return nil
}

func (s *ChainService) previewShipKey() string {
	n := s.Config.PreviewShipKeyLength
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + s.rng.IntN(26))
	}
	return constants.PreviewShipKeyPrefix + string(b)
}

// NormalizeShipKey lowercases a ship key and strips anything that is not a
// letter, digit or underscore.
func NormalizeShipKey(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, strings.TrimSpace(raw))
}
