// Package craft fills a segment's workbench with choices, arrangements and
// picks. Each stage reads and writes only through the fabricator.
package craft

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/fabricator"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/music"
)

// Craft holds what the stages share: the fabricator and the delta arc
// computed for the layers of the stage in progress.
type Craft struct {
	f      *fabricator.Fabricator
	logger *logger.Logger

	layerOf   func(domain.SegmentChoice) string
	deltaIns  map[string]int
	deltaOuts map[string]int
}

func newCraft(f *fabricator.Fabricator, stage string) *Craft {
	return &Craft{
		f:         f,
		logger:    f.Logger().WithComponent(stage),
		layerOf:   func(domain.SegmentChoice) string { return "" },
		deltaIns:  make(map[string]int),
		deltaOuts: make(map[string]int),
	}
}

// put adds an entity, treating a refused meme stack as a skipped choice.
func (c *Craft) put(e domain.SegmentEntity) (bool, error) {
	err := c.f.Put(e, false)
	if errors.Is(err, fabricator.ErrMemeStackRefused) {
		return false, nil
	}
	return err == nil, err
}

func (c *Craft) computeMute(t domain.InstrumentType) bool {
	return marble.QuickBooleanChanceOf(c.f.Rand(), c.f.Config().MuteProbability(t))
}

// mainProgramConfig is the config of the segment's main program, or the
// defaults before one is chosen.
func (c *Craft) mainProgramConfig() domain.ProgramConfig {
	choice, ok := c.f.CurrentChoiceOfType(domain.ProgramTypeMain)
	if !ok {
		return domain.DefaultProgramConfig()
	}
	p, ok := c.f.Material().Program(choice.ProgramID)
	if !ok {
		return domain.DefaultProgramConfig()
	}
	return p.Config
}

// precomputeDeltas assigns every layer its deltaIn and deltaOut. Fresh arcs
// start from a random point before the segment and bring layers in one by
// one, prioritized layers first. Continuing segments keep the arc of the
// previous segment.
func (c *Craft) precomputeDeltas(matches func(domain.SegmentChoice) bool, layerOf func(domain.SegmentChoice) string, layers, prioritize []string, incoming int) error {
	c.layerOf = layerOf
	clear(c.deltaIns)
	clear(c.deltaOuts)

	cfg := c.f.Config()
	if !cfg.DeltaArcEnabled {
		for _, l := range layers {
			c.deltaIns[l] = constants.DeltaUnlimited
			c.deltaOuts[l] = constants.DeltaUnlimited
		}
		return nil
	}

	t, err := c.f.Type()
	if err != nil {
		return err
	}

	switch t {
	case domain.SegmentTypeInitial, domain.SegmentTypeNextMain, domain.SegmentTypeNextMacro:
		bar, err := music.BarOf(c.mainProgramConfig().BarBeats)
		if err != nil {
			return domain.Validationf("main program: %v", err)
		}
		units := bar.ComputeSubsectionBeats(c.f.Segment().Total)

		var prioritized, rest []string
		for _, l := range layers {
			if matchesAny(l, prioritize) {
				prioritized = append(prioritized, l)
			} else {
				rest = append(rest, l)
			}
		}
		rng := c.f.Rand()
		rng.Shuffle(len(prioritized), func(i, j int) { prioritized[i], prioritized[j] = prioritized[j], prioritized[i] })
		rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		if len(prioritized) > 0 {
			c.f.AddInfoMessage(fmt.Sprintf("Prioritized %s", strings.Join(prioritized, ",")))
		}

		delta := roundToNearest(units, marble.QuickPick(rng, units*4)-units*2*incoming)
		for _, l := range append(prioritized, rest...) {
			c.deltaIns[l] = constants.DeltaUnlimited
			if delta > 0 {
				c.deltaIns[l] = delta
			}
			c.deltaOuts[l] = constants.DeltaUnlimited
			delta += roundToNearest(units, marble.QuickPick(rng, units*5))
		}

	case domain.SegmentTypeContinue:
		for _, l := range layers {
			for _, prior := range c.f.Retrospective().Choices() {
				if matches(prior) && layerOf(prior) == l {
					c.deltaIns[l] = prior.DeltaIn
					c.deltaOuts[l] = prior.DeltaOut
				}
			}
		}
	}
	return nil
}

func (c *Craft) computeDeltaIn(choice domain.SegmentChoice) int {
	if d, ok := c.deltaIns[c.layerOf(choice)]; ok {
		return d
	}
	return constants.DeltaUnlimited
}

func (c *Craft) computeDeltaOut(choice domain.SegmentChoice) int {
	if d, ok := c.deltaOuts[c.layerOf(choice)]; ok {
		return d
	}
	return constants.DeltaUnlimited
}

// volumeRatio silences a pick whose position in the arc falls outside the
// choice's delta bounds.
func (c *Craft) volumeRatio(choice domain.SegmentChoice, position float64) float64 {
	if !c.f.Config().DeltaArcEnabled {
		return 1
	}
	if inBounds(choice.DeltaIn, choice.DeltaOut, float64(c.f.Segment().Delta)+position) {
		return 1
	}
	return 0
}

// inBounds treats DeltaUnlimited as an open bound.
func inBounds(floor, ceiling int, value float64) bool {
	if floor == constants.DeltaUnlimited && ceiling == constants.DeltaUnlimited {
		return true
	}
	if floor == constants.DeltaUnlimited {
		return value <= float64(ceiling)
	}
	if ceiling == constants.DeltaUnlimited {
		return value >= float64(floor)
	}
	return value >= float64(floor) && value <= float64(ceiling)
}

func roundToNearest(multiple, value int) int {
	if multiple <= 0 {
		return value
	}
	return int(math.Round(float64(value)/float64(multiple))) * multiple
}

func matchesAny(layer string, searches []string) bool {
	l := strings.ToLower(layer)
	for _, s := range searches {
		if s != "" && strings.Contains(l, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// isOneShot is true for one-shot instruments unless the track is configured
// to keep its event length.
func isOneShot(instrument domain.Instrument, trackName string) bool {
	return instrument.Config.IsOneShot && !instrument.Config.ObservesLengthOf(trackName)
}

func (c *Craft) trackName(event domain.ProgramSequencePatternEvent) string {
	if name, ok := c.f.Material().TrackNameOfEvent(event); ok {
		return name
	}
	return constants.UnknownKey
}
