// Package fabricator holds the per-segment workbench that craft stages read
// from and write to while one segment is being crafted.
package fabricator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/content"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/meme"
	"github.com/cesargomez89/segmentcraft/internal/music"
	"github.com/cesargomez89/segmentcraft/internal/retrospective"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

// ErrMemeStackRefused is returned by Put when a choice would bring in memes
// that cannot coexist with the segment's memes.
var ErrMemeStackRefused = errors.New("meme stack refused")

// flushOrder puts parents before the children that reference them.
var flushOrder = []domain.EntityKind{
	domain.KindMeme,
	domain.KindChord,
	domain.KindChordVoicing,
	domain.KindChoice,
	domain.KindArrangement,
	domain.KindPick,
	domain.KindMeta,
	domain.KindMessage,
}

// Persister is the durable storage the finished segment is flushed to.
type Persister interface {
	SaveSegment(seg *domain.Segment) error
	SaveSegmentEntities(ctx context.Context, segmentID string, entities []domain.SegmentEntity) error
}

type Params struct {
	Store     *store.SegmentStore
	Material  *content.SourceMaterial
	Config    domain.TemplateConfig
	SegmentID string
	// Type forces the segment type instead of computing it from the retrospective.
	Type domain.SegmentType
	// Tuning defaults to the stock root note and pitch.
	Tuning *music.Tuning
	Rand   *rand.Rand
	Logger *logger.Logger
}

// Fabricator is bound to one segment. Crafted entities go to a private
// workbench and only reach the shared store on Done.
type Fabricator struct {
	logger   *logger.Logger
	store    *store.SegmentStore
	bench    *store.SegmentStore
	repos    *store.Repositories
	chain    *domain.Chain
	segment  *domain.Segment
	config   domain.TemplateConfig
	material *content.SourceMaterial
	retro    *retrospective.Retrospective
	rng      *rand.Rand
	taxonomy *meme.Taxonomy
	tuning   *music.Tuning

	typeOverride domain.SegmentType
	segmentType  domain.SegmentType

	report          map[string]any
	preferredAudios map[string]domain.InstrumentAudio
	chordAt         map[float64]*domain.SegmentChord
	sequences       map[string]domain.ProgramSequence
	programRanges   map[string]music.NoteRange
}

func New(p Params) (*Fabricator, error) {
	if p.Store == nil || p.Material == nil {
		return nil, domain.Validationf("fabricator requires a store and source material")
	}
	seg, err := p.Store.ReadSegment(p.SegmentID)
	if err != nil {
		return nil, err
	}
	chain, err := p.Store.GetChain(seg.ChainID)
	if err != nil {
		return nil, err
	}
	retro, err := retrospective.New(p.Store, seg.ID)
	if err != nil {
		return nil, err
	}

	bench := store.NewSegmentStore()
	if err := bench.PutChain(chain); err != nil {
		return nil, err
	}
	if err := bench.PutSegment(seg); err != nil {
		return nil, err
	}

	log := p.Logger
	if log == nil {
		log = logger.Default()
	}
	rng := p.Rand
	if rng == nil {
		rng = marble.NewSecureRand()
	}

	tuning := p.Tuning
	if tuning == nil {
		if tuning, err = music.NewTuning(music.NoteOf(constants.DefaultTuningRootNote), constants.DefaultTuningRootPitchHz); err != nil {
			return nil, domain.Wrap(domain.KindFatal, err, "default tuning")
		}
	}

	categories := make([]meme.Category, 0, len(p.Config.MemeTaxonomy))
	for _, c := range p.Config.MemeTaxonomy {
		categories = append(categories, meme.Category{Name: c.Name, Memes: c.Memes})
	}

	f := &Fabricator{
		logger:          log.WithComponent("fabricator").WithSegment(seg.ID, seg.Offset),
		store:           p.Store,
		bench:           bench,
		repos:           store.NewRepositories(bench),
		chain:           chain,
		segment:         seg,
		config:          p.Config,
		material:        p.Material,
		retro:           retro,
		rng:             rng,
		taxonomy:        meme.NewTaxonomy(categories...),
		tuning:          tuning,
		typeOverride:    p.Type,
		report:          make(map[string]any),
		preferredAudios: make(map[string]domain.InstrumentAudio),
		chordAt:         make(map[float64]*domain.SegmentChord),
		sequences:       make(map[string]domain.ProgramSequence),
		programRanges:   make(map[string]music.NoteRange),
	}
	f.ensureStorageKey()
	f.loadPreferredAudios()
	return f, nil
}

func (f *Fabricator) ensureStorageKey() {
	if f.segment.StorageKey != "" {
		return
	}
	prefix := f.chain.ShipKey
	if prefix == "" {
		prefix = "chain" + constants.ShipKeyNameSeparator + f.chain.ID
	}
	f.segment.StorageKey = fmt.Sprintf("%s%s%d", prefix, constants.ShipKeyNameSeparator, f.segment.BeginAtChainMicros)
}

func (f *Fabricator) Chain() *domain.Chain                        { return f.chain }
func (f *Fabricator) Config() domain.TemplateConfig                { return f.config }
func (f *Fabricator) Material() *content.SourceMaterial            { return f.material }
func (f *Fabricator) Retrospective() *retrospective.Retrospective { return f.retro }
func (f *Fabricator) Rand() *rand.Rand                             { return f.rng }
func (f *Fabricator) Logger() *logger.Logger                       { return f.logger }
func (f *Fabricator) Taxonomy() *meme.Taxonomy                     { return f.taxonomy }
func (f *Fabricator) Tuning() *music.Tuning                        { return f.tuning }

// PitchOf returns the frequency in Hz of a note name, or 0 when atonal.
func (f *Fabricator) PitchOf(note string) float64 {
	return f.tuning.Pitch(music.NoteOf(note))
}

// Segment is the working copy. Stages mutate it directly; Done commits it.
func (f *Fabricator) Segment() *domain.Segment { return f.segment }

// Type returns the segment type, computing it once from the retrospective.
func (f *Fabricator) Type() (domain.SegmentType, error) {
	if f.typeOverride != "" {
		return f.typeOverride, nil
	}
	if f.segmentType == "" {
		t, err := f.computeType()
		if err != nil {
			return "", err
		}
		f.segmentType = t
	}
	return f.segmentType, nil
}

func (f *Fabricator) isType(types ...domain.SegmentType) bool {
	t, err := f.Type()
	if err != nil {
		return false
	}
	for _, x := range types {
		if t == x {
			return true
		}
	}
	return false
}

// Put adds an entity to the workbench. Choices also add the memes of their
// program, sequence binding and instrument; unless forced, a choice whose
// memes would break the meme stack is refused with ErrMemeStackRefused.
func (f *Fabricator) Put(e domain.SegmentEntity, force bool) error {
	if e.EntityID() == "" {
		return domain.Wrap(domain.KindValidation, domain.ErrMissingID, "%s", e.Kind())
	}
	if e.SegmentRef() == "" {
		return domain.Wrap(domain.KindValidation, domain.ErrMissingSegmentID, "%s %s", e.Kind(), e.EntityID())
	}

	switch v := e.(type) {
	case domain.SegmentChoice:
		names := f.memeNamesOfChoice(v)
		if !force && !meme.NewStack(f.taxonomy, append(f.memeNames(), names...)).IsAllowed() {
			f.AddErrorMessage(fmt.Sprintf("Refused to add choice of %s %s because memes [%s] conflict with [%s]",
				v.ProgramType, firstNonEmpty(v.ProgramID, v.InstrumentID), strings.Join(names, ","), strings.Join(f.memeNames(), ",")))
			return ErrMemeStackRefused
		}
		if err := f.bench.PutEntity(v); err != nil {
			return err
		}
		for _, name := range names {
			if err := f.putMeme(domain.SegmentMeme{ID: uuid.NewString(), SegmentID: f.segment.ID, Name: name}, force); err != nil {
				return err
			}
		}
		return nil

	case domain.SegmentMeme:
		return f.putMeme(v, force)

	case domain.SegmentChord:
		clear(f.chordAt)
	}
	return f.bench.PutEntity(e)
}

func (f *Fabricator) putMeme(m domain.SegmentMeme, force bool) error {
	m.Name = meme.Upper(m.Name)
	existing := f.memeNames()
	for _, name := range existing {
		if name == m.Name {
			return nil
		}
	}
	if !force && !meme.NewStack(f.taxonomy, append(existing, m.Name)).IsAllowed() {
		return nil
	}
	return f.bench.PutEntity(m)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// UpdatePick replaces a pick already on the workbench.
func (f *Fabricator) UpdatePick(p domain.SegmentChoiceArrangementPick) error {
	return f.bench.PutEntity(p)
}

func (f *Fabricator) DeletePick(id string) error {
	return f.bench.DeleteEntity(domain.KindPick, f.segment.ID, id)
}

// Messages

func (f *Fabricator) AddMessage(t domain.MessageType, body string) {
	msg := domain.SegmentMessage{ID: uuid.NewString(), SegmentID: f.segment.ID, Type: t, Body: body}
	if err := f.bench.PutEntity(msg); err != nil {
		f.logger.Error("Failed to add segment message", "type", t, "error", err)
	}
}

func (f *Fabricator) AddInfoMessage(body string)    { f.AddMessage(domain.MessageTypeInfo, body) }
func (f *Fabricator) AddWarningMessage(body string) { f.AddMessage(domain.MessageTypeWarning, body) }

func (f *Fabricator) AddErrorMessage(body string) {
	f.logger.Warn("Craft error", "message", body)
	f.AddMessage(domain.MessageTypeError, body)
}

// PutReport records a diagnostic value emitted as one debug message on Done.
func (f *Fabricator) PutReport(key string, value any) {
	f.report[key] = value
}

// reportPickedPitches adds the frequency of every tonal note picked.
func (f *Fabricator) reportPickedPitches() {
	pitches := make(map[string]float64)
	for _, pick := range f.Picks() {
		for _, n := range music.NotesOf(pick.Tones) {
			if n.IsAtonal() {
				continue
			}
			pitches[n.Name(music.Sharp)] = math.Round(f.tuning.Pitch(n)*100) / 100
		}
	}
	if len(pitches) > 0 {
		f.PutReport("pickedPitches", pitches)
	}
}

// Done freezes the segment type and commits the workbench to the shared
// store and the persister, if any. The segment turns Crafted only after
// both hold its entities.
func (f *Fabricator) Done(ctx context.Context, persister Persister) error {
	t, err := f.Type()
	if err != nil {
		return err
	}
	f.segment.Type = t
	f.segment.UpdatedAt = time.Now().UTC()

	f.reportPickedPitches()
	if len(f.report) > 0 {
		body, err := json.Marshal(f.report)
		if err != nil {
			f.logger.Warn("Failed to encode craft report", "error", err)
		} else {
			f.AddMessage(domain.MessageTypeDebug, string(body))
		}
	}

	// Everything lands while the segment is still Crafting so a failure
	// below can still revert it to Planned.
	if err := f.store.PutSegment(f.segment); err != nil {
		return fmt.Errorf("failed to commit segment %s: %w", f.segment.ID, err)
	}

	var all []domain.SegmentEntity
	for _, kind := range flushOrder {
		for _, e := range f.bench.ListEntities(kind, f.segment.ID) {
			if err := f.store.PutEntity(e); err != nil {
				return fmt.Errorf("failed to commit %s %s: %w", kind, e.EntityID(), err)
			}
			all = append(all, e)
		}
	}

	crafted := f.segment.Clone()
	crafted.State = domain.SegmentStateCrafted
	if persister != nil {
		if err := persister.SaveSegmentEntities(ctx, crafted.ID, all); err != nil {
			return fmt.Errorf("failed to persist entities of segment %s: %w", crafted.ID, err)
		}
		if err := persister.SaveSegment(crafted); err != nil {
			return fmt.Errorf("failed to persist segment %s: %w", crafted.ID, err)
		}
	}
	if err := f.store.PutSegment(crafted); err != nil {
		return fmt.Errorf("failed to commit segment %s: %w", crafted.ID, err)
	}
	f.segment = crafted
	f.logger.Debug("Segment committed", "type", t, "entities", len(all))
	return nil
}

// FlushMessages copies workbench messages to the shared store, so a failed
// craft still leaves its diagnostics behind.
func (f *Fabricator) FlushMessages() error {
	for _, e := range f.bench.ListEntities(domain.KindMessage, f.segment.ID) {
		if err := f.store.PutEntity(e); err != nil {
			return err
		}
	}
	return nil
}
