package app

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/config"
	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/craft"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/metrics"
)

type override struct {
	craft.Overrides
	rewrite bool
}

// CraftWork drives fabrication of chains: it plans and crafts the next
// segment when the chain is not crafted far enough ahead, rewrites the
// future when an override arrives and drops segments that have aged out.
// Callers must not run two cycles of the same chain at once.
type CraftWork struct {
	Chains    *ChainService
	Segments  *SegmentService
	Templates *TemplateCatalog
	Config    *config.Config
	Logger    *logger.Logger
	// Rand returns the generator for one segment's craft.
	Rand func() *rand.Rand

	mu        sync.Mutex
	overrides map[string]*override
}

func NewCraftWork(chains *ChainService, segments *SegmentService, templates *TemplateCatalog, cfg *config.Config, log *logger.Logger) *CraftWork {
	return &CraftWork{
		Chains:    chains,
		Segments:  segments,
		Templates: templates,
		Config:    cfg,
		Logger:    log.WithComponent("craft_work"),
		Rand:      marble.NewSecureRand,
		overrides: make(map[string]*override),
	}
}

// OverrideMacro makes every following segment of the chain use the macro
// program. Segments already crafted ahead are rewritten on the next cycle.
func (w *CraftWork) OverrideMacro(chainID, programID string) error {
	chain, err := w.Chains.ReadOne(chainID)
	if err != nil {
		return err
	}
	material, err := w.Templates.MaterialFor(chain.TemplateID)
	if err != nil {
		return err
	}
	p, ok := material.Program(programID)
	if !ok || p.Type != domain.ProgramTypeMacro {
		return domain.Existencef("macro program %s not found", programID)
	}
	w.setOverride(chainID, func(o *override) { o.MacroProgramID = programID })
	w.Logger.Info("Next craft cycle will override macro", "chain_id", chainID, "program", p.Name)
	return nil
}

// OverrideMemes makes every following segment carry the memes.
func (w *CraftWork) OverrideMemes(chainID string, memes []string) error {
	if _, err := w.Chains.ReadOne(chainID); err != nil {
		return err
	}
	if len(memes) == 0 {
		return domain.Validationf("at least one meme is required")
	}
	sorted := slices.Clone(memes)
	slices.Sort(sorted)
	w.setOverride(chainID, func(o *override) { o.Memes = sorted })
	w.Logger.Info("Next craft cycle will override memes", "chain_id", chainID, "memes", strings.Join(sorted, ","))
	return nil
}

func (w *CraftWork) setOverride(chainID string, apply func(*override)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	o, ok := w.overrides[chainID]
	if !ok {
		o = &override{}
		w.overrides[chainID] = o
	}
	apply(o)
	if w.Chains.Store.CountSegments(chainID) > 0 {
		o.rewrite = true
	}
}

// takeOverride returns the chain's overrides and whether a rewrite is due,
// clearing the rewrite flag.
func (w *CraftWork) takeOverride(chainID string) (craft.Overrides, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	o, ok := w.overrides[chainID]
	if !ok {
		return craft.Overrides{}, false
	}
	rewrite := o.rewrite
	o.rewrite = false
	return o.Overrides, rewrite
}

func (w *CraftWork) forget(chainID string) {
	w.mu.Lock()
	delete(w.overrides, chainID)
	w.mu.Unlock()
}

// RunCycle performs one work cycle for a chain in Fabricate state.
func (w *CraftWork) RunCycle(ctx context.Context, chainID string, now time.Time) error {
	chain, err := w.Chains.ReadOne(chainID)
	if err != nil {
		return err
	}
	if chain.State != domain.ChainStateFabricate {
		w.forget(chainID)
		return nil
	}

	o, rewrite := w.takeOverride(chainID)
	if rewrite {
		err = w.Rewrite(ctx, chain, now, o)
	} else {
		err = w.Fabricate(ctx, chain, now, o)
	}
	if err != nil {
		return err
	}
	return w.Cleanup(chain.ID, now)
}

// Fabricate crafts the next segment if the chain is not yet crafted
// CraftAhead past now. A segment left Planned by a failed attempt is
// crafted again before anything new is planned.
func (w *CraftWork) Fabricate(ctx context.Context, chain *domain.Chain, now time.Time, o craft.Overrides) error {
	last, err := w.Segments.ReadLastSegment(chain.ID)
	if err != nil {
		return err
	}
	if last != nil && last.State == domain.SegmentStatePlanned {
		return w.craftSegment(ctx, chain, last.ID, "", o)
	}

	template, err := w.Chains.PlanNextOrComplete(chain.ID, now.Add(w.Config.CraftAhead()), now)
	if err != nil {
		return fmt.Errorf("failed to plan next segment: %w", err)
	}
	if template == nil {
		return nil
	}
	seg, err := w.Segments.Create(template)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	return w.craftSegment(ctx, chain, seg.ID, "", o)
}

// Rewrite cuts the segment playing at now short at the next cutoff
// boundary of its main program, deletes every later segment and crafts the
// following one as NextMacro under the overrides.
func (w *CraftWork) Rewrite(ctx context.Context, chain *domain.Chain, now time.Time, o craft.Overrides) error {
	log := w.Logger.WithChain(chain.ID, chain.ShipKey)

	current, err := w.segmentAt(chain.ID, now, domain.SegmentStateCrafted)
	if err != nil {
		return err
	}
	if current == nil {
		log.Warn("Will not delete any segments because fabrication is already at the end of the known chain")
		return nil
	}

	material, err := w.Templates.MaterialFor(chain.TemplateID)
	if err != nil {
		return err
	}
	main, ok := w.mainProgramOf(current.ID, material.Program)
	if !ok {
		log.Warn("Will not delete any segments because current segment has no main program", "segment_id", current.ID)
		return nil
	}

	subBeats := main.Config.BarBeats * main.Config.CutoffMinimumBars
	if subBeats > 0 && current.Tempo > 0 {
		microsPerBeat := float64(constants.MicrosPerMinute) / current.Tempo
		dubbedBeats := math.Floor(float64(now.Sub(current.BeginAt).Microseconds()) / microsPerBeat)
		cutoff := int(float64(subBeats) * math.Ceil(dubbedBeats/float64(subBeats)))
		if cutoff < current.Total {
			if err := w.cutoff(ctx, current, cutoff); err != nil {
				return err
			}
		}
	}

	removed, err := w.Chains.Store.DeleteSegmentsAfter(chain.ID, current.Offset)
	if err != nil {
		return err
	}
	if w.Segments.Repo != nil {
		for _, id := range removed {
			if err := w.Segments.Repo.DeleteSegment(id); err != nil {
				return fmt.Errorf("failed to delete persisted segment: %w", err)
			}
		}
	}
	log.Info("Deleted segments to refabricate", "after_offset", current.Offset, "deleted", len(removed),
		"macro_override", o.MacroProgramID, "meme_override", strings.Join(o.Memes, ","))

	template, err := w.Chains.PlanNextOrComplete(chain.ID, time.Time{}, now)
	if err != nil {
		return fmt.Errorf("failed to plan next segment: %w", err)
	}
	if template == nil {
		return nil
	}
	template.Type = domain.SegmentTypeNextMacro
	seg, err := w.Segments.Create(template)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	return w.craftSegment(ctx, chain, seg.ID, domain.SegmentTypeNextMacro, o)
}

// cutoff shortens a segment to the given number of beats, dropping picks
// that start after the new end and trimming those that run past it.
func (w *CraftWork) cutoff(ctx context.Context, seg *domain.Segment, beats int) error {
	duration := int64(float64(beats) * float64(constants.MicrosPerMinute) / seg.Tempo)
	seg.Total = beats
	seg.SetDuration(duration)
	if _, err := w.Segments.Update(seg.ID, seg); err != nil {
		return fmt.Errorf("failed to cut segment short: %w", err)
	}

	st := w.Segments.Store
	for _, e := range st.ListEntities(domain.KindPick, seg.ID) {
		pick := e.(domain.SegmentChoiceArrangementPick)
		switch {
		case pick.StartAtSegmentMicros >= duration:
			if err := st.DeleteEntity(domain.KindPick, seg.ID, pick.ID); err != nil {
				return err
			}
		case pick.LengthMicros != nil && pick.StartAtSegmentMicros+*pick.LengthMicros > duration:
			length := duration - pick.StartAtSegmentMicros
			pick.LengthMicros = &length
			if err := st.PutEntity(pick); err != nil {
				return err
			}
		}
	}
	w.Logger.Info("Cut segment short", "segment_id", seg.ID, "offset", seg.Offset, "beats", beats)
	return w.Segments.persist(ctx, seg, true)
}

// craftSegment runs every craft stage on a planned segment. On failure the
// segment goes back to Planned with its messages kept; a fatal failure also
// fails the chain.
func (w *CraftWork) craftSegment(ctx context.Context, chain *domain.Chain, segmentID string, forced domain.SegmentType, o craft.Overrides) error {
	tmpl, err := w.Templates.Get(chain.TemplateID)
	if err != nil {
		return err
	}
	material, err := w.Templates.MaterialFor(chain.TemplateID)
	if err != nil {
		return err
	}
	tuning, err := w.Config.Tuning()
	if err != nil {
		return domain.Wrap(domain.KindValidation, err, "tuning")
	}
	if _, err := w.Segments.UpdateState(segmentID, domain.SegmentStateCrafting); err != nil {
		return err
	}

	started := time.Now()
	f, err := fabricator.New(fabricator.Params{
		Store:     w.Segments.Store,
		Material:  material,
		Config:    tmpl.Config,
		SegmentID: segmentID,
		Type:      forced,
		Tuning:    tuning,
		Rand:      w.Rand(),
		Logger:    w.Logger.WithChain(chain.ID, chain.ShipKey),
	})
	if err != nil {
		return w.fail(ctx, chain, nil, segmentID, err)
	}
	if err := craft.Run(f, o); err != nil {
		return w.fail(ctx, chain, f, segmentID, err)
	}

	var persister fabricator.Persister
	if w.Segments.Repo != nil {
		persister = w.Segments.Repo
	}
	if err := f.Done(ctx, persister); err != nil {
		return w.fail(ctx, chain, f, segmentID, err)
	}

	seg := f.Segment()
	metrics.RecordSegmentCrafted(string(seg.Type), time.Since(started))
	w.Logger.Debug("Segment crafted", "chain_id", chain.ID, "segment_id", seg.ID, "offset", seg.Offset,
		"type", seg.Type, "elapsed", time.Since(started))
	return nil
}

func (w *CraftWork) fail(ctx context.Context, chain *domain.Chain, f *fabricator.Fabricator, segmentID string, cause error) error {
	metrics.RecordSegmentFailed(string(domain.KindOf(cause)))
	log := w.Logger.WithChain(chain.ID, chain.ShipKey)

	if f != nil {
		f.AddErrorMessage(cause.Error())
		if err := f.FlushMessages(); err != nil {
			log.Warn("Failed to keep craft messages", "segment_id", segmentID, "error", err)
		}
	}
	if _, err := w.Segments.Revert(ctx, segmentID); err != nil {
		log.Error("Failed to revert segment", "segment_id", segmentID, "error", err)
	}

	if domain.IsFatal(cause) {
		if _, err := w.Chains.UpdateState(chain.ID, domain.ChainStateFailed); err != nil {
			log.Error("Failed to fail chain", "error", err)
		}
		log.Error("Chain fabrication failed", "segment_id", segmentID, "error", cause)
	}
	return fmt.Errorf("failed to craft segment %s: %w", segmentID, cause)
}

// Cleanup deletes segments that ended more than the persistence window ago.
func (w *CraftWork) Cleanup(chainID string, now time.Time) error {
	seg, err := w.segmentAt(chainID, now.Add(-w.Config.PersistenceWindow()))
	if err != nil || seg == nil {
		return err
	}
	removed, err := w.Chains.Store.DeleteSegmentsBefore(chainID, seg.Offset)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		metrics.RecordSegmentsCleaned(len(removed))
		w.Logger.Debug("Cleaned up segments", "chain_id", chainID, "count", len(removed))
	}
	return nil
}

// segmentAt returns the segment playing at the instant, if any, optionally
// only when it is in one of the states.
func (w *CraftWork) segmentAt(chainID string, at time.Time, states ...domain.SegmentState) (*domain.Segment, error) {
	segs, err := w.Chains.Store.ReadSegmentsFromTime(chainID, at, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, seg := range segs {
		if len(states) == 0 || slices.Contains(states, seg.State) {
			return seg, nil
		}
	}
	return nil, nil
}

func (w *CraftWork) mainProgramOf(segmentID string, program func(string) (domain.Program, bool)) (domain.Program, bool) {
	for _, e := range w.Chains.Store.ListEntities(domain.KindChoice, segmentID) {
		choice := e.(domain.SegmentChoice)
		if choice.ProgramType == domain.ProgramTypeMain {
			return program(choice.ProgramID)
		}
	}
	return domain.Program{}, false
}
