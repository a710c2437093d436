package fabricator

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/content"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/music"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

const fixture = `
templates:
  - {id: tmpl-1, name: Test}
programs:
  - {id: main-1, type: Main, state: Published, name: Main One, key: C, tempo: 120}
  - {id: main-2, type: Main, state: Published, name: Main Two, key: G, tempo: 100}
  - {id: macro-1, type: Macro, state: Published, name: Macro One, key: C, tempo: 120}
programMemes:
  - {id: pm-1, programId: main-1, name: Red}
  - {id: pm-2, programId: main-2, name: Blue}
programSequences:
  - {id: seq-main, programId: main-1, name: A, key: C, total: 16, intensity: 0.5}
  - {id: seq-main-2, programId: main-2, name: B, key: G, total: 8, intensity: 0.5}
  - {id: seq-macro, programId: macro-1, name: M, key: C, total: 0, intensity: 0.4}
programSequenceBindings:
  - {id: main-b0, programId: main-1, programSequenceId: seq-main, offset: 0}
  - {id: main-b1, programId: main-1, programSequenceId: seq-main, offset: 1}
  - {id: main2-b0, programId: main-2, programSequenceId: seq-main-2, offset: 0}
  - {id: macro-b0, programId: macro-1, programSequenceId: seq-macro, offset: 0}
  - {id: macro-b1, programId: macro-1, programSequenceId: seq-macro, offset: 1}
  - {id: macro-b2, programId: macro-1, programSequenceId: seq-macro, offset: 2}
programSequenceBindingMemes:
  - {id: bm-1, programId: main-1, programSequenceBindingId: main-b0, name: Winter}
programVoices:
  - {id: v-sticky, programId: main-1, type: Sticky, name: Sticky}
programVoiceTracks:
  - {id: t-sticky, programId: main-1, programVoiceId: v-sticky, name: STICKY}
programSequencePatterns:
  - {id: pat-1, programId: main-1, programSequenceId: seq-main, programVoiceId: v-sticky, name: Loop, total: 4}
programSequencePatternEvents:
  - {id: e-1, programId: main-1, programSequencePatternId: pat-1, programVoiceTrackId: t-sticky, position: 0, duration: 1, velocity: 1, tones: "X, X, X"}
  - {id: e-2, programId: main-1, programSequencePatternId: pat-1, programVoiceTrackId: t-sticky, position: 1, duration: 1, velocity: 1, tones: "C3, G3"}
`

func loadMaterial(t *testing.T) *content.SourceMaterial {
	t.Helper()
	sm, err := content.LoadYAML(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}
	return sm
}

var chainBegin = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *store.SegmentStore {
	t.Helper()
	s := store.NewSegmentStore()
	chain := &domain.Chain{ID: "chain-1", Type: domain.ChainTypeProduction, State: domain.ChainStateFabricate, ShipKey: "radio"}
	if err := s.PutChain(chain); err != nil {
		t.Fatalf("PutChain failed: %v", err)
	}
	return s
}

func addSegment(t *testing.T, s *store.SegmentStore, offset int, state domain.SegmentState) *domain.Segment {
	t.Helper()
	seg := &domain.Segment{
		ID:                 "seg-" + string(rune('0'+offset)),
		ChainID:            "chain-1",
		Offset:             offset,
		Type:               domain.SegmentTypePending,
		State:              state,
		BeginAt:            chainBegin.Add(time.Duration(offset) * 8 * time.Second),
		BeginAtChainMicros: int64(offset) * 8_000_000,
		Total:              16,
		Tempo:              120,
	}
	if err := s.PutSegment(seg); err != nil {
		t.Fatalf("PutSegment failed: %v", err)
	}
	return seg
}

func newFabricator(t *testing.T, s *store.SegmentStore, sm *content.SourceMaterial, segmentID string) *Fabricator {
	t.Helper()
	f, err := New(Params{
		Store:     s,
		Material:  sm,
		Config:    domain.DefaultTemplateConfig(),
		SegmentID: segmentID,
		Rand:      marble.NewSource(42),
		Logger:    logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f
}

func TestFabricator_Type(t *testing.T) {
	sm := loadMaterial(t)

	tests := []struct {
		name         string
		mainBinding  string
		macroBinding string
		expected     domain.SegmentType
	}{
		{"main has one more offset", "main-b0", "macro-b0", domain.SegmentTypeContinue},
		{"macro has two more offsets", "main-b1", "macro-b0", domain.SegmentTypeNextMain},
		{"macro has one more offset", "main-b1", "macro-b1", domain.SegmentTypeNextMacro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupStore(t)
			addSegment(t, s, 0, domain.SegmentStateCrafted)
			addSegment(t, s, 1, domain.SegmentStateCrafting)
			choices := []domain.SegmentChoice{
				{ID: "macro", SegmentID: "seg-0", ProgramID: "macro-1", ProgramType: domain.ProgramTypeMacro, ProgramSequenceBindingID: tt.macroBinding},
				{ID: "main", SegmentID: "seg-0", ProgramID: "main-1", ProgramType: domain.ProgramTypeMain, ProgramSequenceBindingID: tt.mainBinding},
			}
			for _, c := range choices {
				if err := s.PutEntity(c); err != nil {
					t.Fatalf("PutEntity failed: %v", err)
				}
			}

			f := newFabricator(t, s, sm, "seg-1")
			got, err := f.Type()
			if err != nil {
				t.Fatalf("Type failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestFabricator_TypeInitialAndOverride(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)

	f := newFabricator(t, s, sm, "seg-0")
	if got, _ := f.Type(); got != domain.SegmentTypeInitial {
		t.Errorf("Expected Initial, got %s", got)
	}

	f, err := New(Params{Store: s, Material: sm, Config: domain.DefaultTemplateConfig(), SegmentID: "seg-0", Type: domain.SegmentTypeNextMacro, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got, _ := f.Type(); got != domain.SegmentTypeNextMacro {
		t.Errorf("Expected override NextMacro, got %s", got)
	}
}

func TestFabricator_TypeWithoutMainChoiceIsFatal(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafted)
	addSegment(t, s, 1, domain.SegmentStateCrafting)

	f := newFabricator(t, s, sm, "seg-1")
	_, err := f.Type()
	if !domain.IsFatal(err) || !errors.Is(err, domain.ErrNoMainChoice) {
		t.Errorf("Expected fatal ErrNoMainChoice, got %v", err)
	}
}

func TestFabricator_StorageKey(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafted)
	addSegment(t, s, 1, domain.SegmentStateCrafting)

	f := newFabricator(t, s, sm, "seg-1")
	if f.Segment().StorageKey != "radio-8000000" {
		t.Errorf("Expected storage key radio-8000000, got %s", f.Segment().StorageKey)
	}
}

func TestFabricator_PutValidation(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)
	f := newFabricator(t, s, sm, "seg-0")

	tests := []struct {
		name     string
		entity   domain.SegmentEntity
		sentinel error
		kind     domain.ErrorKind
	}{
		{"missing id", domain.SegmentChoice{SegmentID: "seg-0", ProgramID: "main-1"}, domain.ErrMissingID, domain.KindValidation},
		{"missing segment", domain.SegmentChoice{ID: "c1", ProgramID: "main-1"}, domain.ErrMissingSegmentID, domain.KindValidation},
		{"unknown segment", domain.SegmentChoice{ID: "c1", SegmentID: "nope", ProgramID: "main-1"}, domain.ErrSegmentNotFound, domain.KindExistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Put(tt.entity, false)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Expected %v, got %v", tt.sentinel, err)
			}
			if domain.KindOf(err) != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, domain.KindOf(err))
			}
		})
	}
}

func TestFabricator_PutDerivesMemes(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)
	f := newFabricator(t, s, sm, "seg-0")

	choice := domain.SegmentChoice{ID: "c1", SegmentID: "seg-0", ProgramID: "main-1", ProgramType: domain.ProgramTypeMain, ProgramSequenceBindingID: "main-b0"}
	if err := f.Put(choice, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	again := choice
	again.ID = "c2"
	if err := f.Put(again, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	names := f.memeNames()
	slices.Sort(names)
	if !slices.Equal(names, []string{"RED", "WINTER"}) {
		t.Errorf("Expected memes [RED WINTER] once each, got %v", names)
	}

	conflicting := domain.SegmentChoice{ID: "c3", SegmentID: "seg-0", ProgramID: "main-2", ProgramType: domain.ProgramTypeMain}
	if err := f.Put(conflicting, false); !errors.Is(err, ErrMemeStackRefused) {
		t.Fatalf("Expected ErrMemeStackRefused, got %v", err)
	}
	if len(f.Choices()) != 2 {
		t.Errorf("Expected refused choice not stored, got %d choices", len(f.Choices()))
	}
	refusals := 0
	for _, m := range f.Messages() {
		if m.Type == domain.MessageTypeError {
			refusals++
		}
	}
	if refusals != 1 {
		t.Errorf("Expected 1 error message, got %d", refusals)
	}

	if err := f.Put(conflicting, true); err != nil {
		t.Fatalf("Forced put failed: %v", err)
	}
	if len(f.Memes()) != 3 {
		t.Errorf("Expected forced choice to add BLUE, got %d memes", len(f.Memes()))
	}
}

func TestFabricator_GetChordAt(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)
	f := newFabricator(t, s, sm, "seg-0")

	for _, c := range []domain.SegmentChord{
		{ID: "ch-8", SegmentID: "seg-0", Name: "G", Position: 8},
		{ID: "ch-2", SegmentID: "seg-0", Name: "C", Position: 2},
	} {
		if err := f.Put(c, false); err != nil {
			t.Fatalf("Put chord failed: %v", err)
		}
	}

	if _, ok := f.GetChordAt(1); ok {
		t.Error("Expected no chord before the first one")
	}
	tests := []struct {
		position float64
		expected string
	}{
		{2, "ch-2"},
		{7.9, "ch-2"},
		{8, "ch-8"},
		{20, "ch-8"},
	}
	for _, tt := range tests {
		got, ok := f.GetChordAt(tt.position)
		if !ok || got.ID != tt.expected {
			t.Errorf("At %v expected %s, got %s (%v)", tt.position, tt.expected, got.ID, ok)
		}
	}

	if err := f.Put(domain.SegmentChord{ID: "ch-0", SegmentID: "seg-0", Name: "Am", Position: 0}, false); err != nil {
		t.Fatalf("Put chord failed: %v", err)
	}
	if got, ok := f.GetChordAt(1); !ok || got.ID != "ch-0" {
		t.Errorf("Expected cached lookup refreshed after put, got %s (%v)", got.ID, ok)
	}
}

type recordingPersister struct {
	segments []string
	entities int
}

func (p *recordingPersister) SaveSegment(seg *domain.Segment) error {
	p.segments = append(p.segments, seg.ID)
	return nil
}

func (p *recordingPersister) SaveSegmentEntities(_ context.Context, _ string, entities []domain.SegmentEntity) error {
	p.entities += len(entities)
	return nil
}

func TestFabricator_StickyBunContinuity(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)

	first := newFabricator(t, s, sm, "seg-0")
	bun, ok := first.StickyBun("e-1")
	if !ok {
		t.Fatal("Expected sticky bun")
	}
	if len(bun.Values) != 3 {
		t.Errorf("Expected one value per event note, got %d", len(bun.Values))
	}
	again, _ := first.StickyBun("e-1")
	if !slices.Equal(again.Values, bun.Values) {
		t.Errorf("Expected same bun within the segment, got %v and %v", bun.Values, again.Values)
	}

	persister := &recordingPersister{}
	if err := first.Done(context.Background(), persister); err != nil {
		t.Fatalf("Done failed: %v", err)
	}
	if len(persister.segments) != 1 || persister.entities == 0 {
		t.Errorf("Expected segment and entities persisted, got %v / %d", persister.segments, persister.entities)
	}

	addSegment(t, s, 1, domain.SegmentStateCrafting)
	next, err := New(Params{Store: s, Material: sm, Config: domain.DefaultTemplateConfig(), SegmentID: "seg-1", Rand: marble.NewSource(7), Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	carried, ok := next.StickyBun("e-1")
	if !ok {
		t.Fatal("Expected sticky bun in next segment")
	}
	if !slices.Equal(carried.Values, bun.Values) {
		t.Errorf("Expected values %v carried over, got %v", bun.Values, carried.Values)
	}
}

func TestFabricator_StickyBunDisabledOrMissing(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)

	cfg := domain.DefaultTemplateConfig()
	cfg.StickyBunEnabled = false
	f, err := New(Params{Store: s, Material: sm, Config: cfg, SegmentID: "seg-0", Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := f.StickyBun("e-1"); ok {
		t.Error("Expected no sticky bun when disabled")
	}

	f = newFabricator(t, s, sm, "seg-0")
	if _, ok := f.StickyBun("missing"); ok {
		t.Error("Expected no sticky bun for missing event")
	}
	if len(f.Messages()) != 1 || f.Messages()[0].Type != domain.MessageTypeError {
		t.Errorf("Expected one error message, got %+v", f.Messages())
	}
}

func TestFabricator_SequenceBindingOffsets(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)
	f := newFabricator(t, s, sm, "seg-0")

	macro := domain.SegmentChoice{ID: "m", ProgramID: "macro-1", ProgramSequenceBindingID: "macro-b0"}
	if got := f.NextSequenceBindingOffset(macro); got != 1 {
		t.Errorf("Expected next offset 1, got %d", got)
	}
	if !f.HasMoreSequenceBindingOffsets(macro, 2) {
		t.Error("Expected two more offsets after macro-b0")
	}
	last := domain.SegmentChoice{ID: "l", ProgramID: "macro-1", ProgramSequenceBindingID: "macro-b2"}
	if got := f.NextSequenceBindingOffset(last); got != 0 {
		t.Errorf("Expected wrap to offset 0, got %d", got)
	}
	if f.HasMoreSequenceBindingOffsets(last, 1) {
		t.Error("Expected no more offsets after the last binding")
	}
	if got := f.SecondMacroSequenceBindingOffset("macro-1"); got != 1 {
		t.Errorf("Expected second macro offset 1, got %d", got)
	}
	if key := f.KeyForChoice(domain.SegmentChoice{ID: "k", ProgramID: "main-1", ProgramSequenceBindingID: "main-b0"}); key != "C" {
		t.Errorf("Expected key C, got %s", key)
	}
}

func TestFabricator_MicrosAtPosition(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)
	f := newFabricator(t, s, sm, "seg-0")

	if got := f.MicrosAtPosition(4); got != 2_000_000 {
		t.Errorf("Expected 2000000 micros for 4 beats at 120bpm, got %d", got)
	}
	if got := f.TotalMicros(); got != 8_000_000 {
		t.Errorf("Expected 8000000 total micros, got %d", got)
	}
}

func TestFabricator_MicrosAtPositionIgnoresPreviousTempo(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafted)
	seg := addSegment(t, s, 1, domain.SegmentStateCrafting)
	seg.Tempo = 60
	if err := s.PutSegment(seg); err != nil {
		t.Fatalf("PutSegment failed: %v", err)
	}
	f := newFabricator(t, s, sm, "seg-1")

	tests := []struct {
		position float64
		expected int64
	}{
		{0, 0},
		{1, 1_000_000},
		{8, 8_000_000},
		{16, 16_000_000},
	}
	for _, tt := range tests {
		if got := f.MicrosAtPosition(tt.position); got != tt.expected {
			t.Errorf("At beat %v expected %d micros, got %d", tt.position, tt.expected, got)
		}
	}
}

func TestFabricator_Tuning(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)

	tuning, err := music.NewTuning(music.NoteOf("A4"), 440)
	if err != nil {
		t.Fatalf("NewTuning failed: %v", err)
	}
	f, err := New(Params{Store: s, Material: sm, Config: domain.DefaultTemplateConfig(), SegmentID: "seg-0", Tuning: tuning, Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		note     string
		expected float64
	}{
		{"A4", 440},
		{"A5", 880},
		{"A3", 220},
		{"X", 0},
	}
	for _, tt := range tests {
		if got := f.PitchOf(tt.note); got != tt.expected {
			t.Errorf("Expected %s at %v Hz, got %v", tt.note, tt.expected, got)
		}
	}

	pick := domain.SegmentChoiceArrangementPick{ID: "p-1", SegmentID: "seg-0", SegmentChoiceArrangementID: "arr-1", InstrumentAudioID: "a-1", Tones: "A4"}
	if err := f.Put(pick, false); err != nil {
		t.Fatalf("Put pick failed: %v", err)
	}
	if err := f.Done(context.Background(), nil); err != nil {
		t.Fatalf("Done failed: %v", err)
	}

	var report string
	for _, m := range f.Messages() {
		if m.Type == domain.MessageTypeDebug {
			report = m.Body
		}
	}
	if !strings.Contains(report, `"pickedPitches":{"A4":440}`) {
		t.Errorf("Expected picked pitches in the craft report, got %q", report)
	}
}

func TestFabricator_DefaultTuning(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)
	f := newFabricator(t, s, sm, "seg-0")

	if got := f.PitchOf("A4"); got != 432 {
		t.Errorf("Expected default A4 at 432 Hz, got %v", got)
	}
}

type failingPersister struct{}

func (failingPersister) SaveSegment(*domain.Segment) error { return nil }

func (failingPersister) SaveSegmentEntities(context.Context, string, []domain.SegmentEntity) error {
	return errors.New("disk full")
}

func TestFabricator_DoneCommitsCraftedLast(t *testing.T) {
	sm := loadMaterial(t)
	s := setupStore(t)
	addSegment(t, s, 0, domain.SegmentStateCrafting)

	f := newFabricator(t, s, sm, "seg-0")
	if err := f.Done(context.Background(), failingPersister{}); err == nil {
		t.Fatal("Expected Done to fail when entities cannot be persisted")
	}
	seg, err := s.ReadSegment("seg-0")
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}
	if seg.State != domain.SegmentStateCrafting {
		t.Fatalf("Expected segment still Crafting, got %s", seg.State)
	}
	if _, err := s.Revert("seg-0"); err != nil {
		t.Errorf("Expected revert to succeed after failed persist, got %v", err)
	}

	other := setupStore(t)
	addSegment(t, other, 0, domain.SegmentStateCrafting)
	f = newFabricator(t, other, sm, "seg-0")
	if err := f.Done(context.Background(), &recordingPersister{}); err != nil {
		t.Fatalf("Done failed: %v", err)
	}
	if seg, _ := other.ReadSegment("seg-0"); seg.State != domain.SegmentStateCrafted {
		t.Errorf("Expected segment Crafted after Done, got %s", seg.State)
	}
}
