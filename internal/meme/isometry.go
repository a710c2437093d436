// Package meme scores how closely sets of memes agree with each other.
package meme

import (
	"slices"
	"strings"

	"github.com/kljensen/snowball/english"
)

// ConstellationSeparator joins memes of a constellation.
const ConstellationSeparator = "_"

// Normalizer folds a meme into the form used for comparison.
type Normalizer func(string) string

// Upper compares memes case-insensitively.
func Upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Stemmed folds English inflections so "Dreams" and "dreaming" compare equal.
func Stemmed(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, AntiPrefix) {
		return AntiPrefix + strings.ToUpper(english.Stem(strings.TrimPrefix(s, AntiPrefix), false))
	}
	return strings.ToUpper(english.Stem(s, false))
}

// Isometry is an affinity fingerprint of a source set of memes.
type Isometry struct {
	taxonomy  *Taxonomy
	normalize Normalizer
	sources   map[string]struct{}
	// raw keeps the upper-cased memes; the taxonomy is keyed on those.
	raw map[string]struct{}
}

func NewIsometry(taxonomy *Taxonomy, normalize Normalizer, sources []string) *Isometry {
	if normalize == nil {
		normalize = Upper
	}
	iso := &Isometry{
		taxonomy:  taxonomy,
		normalize: normalize,
		sources:   make(map[string]struct{}),
		raw:       make(map[string]struct{}),
	}
	for _, s := range sources {
		iso.Add(s)
	}
	return iso
}

func (iso *Isometry) Add(meme string) {
	if n := iso.normalize(meme); n != "" {
		iso.sources[n] = struct{}{}
		iso.raw[Upper(meme)] = struct{}{}
	}
}

// Score counts distinct targets found in the source set.
func (iso *Isometry) Score(targets []string) float64 {
	matched := make(map[string]struct{})
	for _, t := range targets {
		n := iso.normalize(t)
		if _, ok := iso.sources[n]; ok {
			matched[n] = struct{}{}
		}
	}
	return float64(len(matched))
}

// IsAllowed reports whether the sources together with the targets form an allowed stack.
func (iso *Isometry) IsAllowed(targets []string) bool {
	all := make([]string, 0, len(iso.raw)+len(targets))
	for s := range iso.raw {
		all = append(all, s)
	}
	all = append(all, targets...)
	return NewStack(iso.taxonomy, all).IsAllowed()
}

// Sources returns the normalized source memes in sorted order.
func (iso *Isometry) Sources() []string {
	out := make([]string, 0, len(iso.sources))
	for s := range iso.sources {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Constellation is a canonical key for this exact combination of memes.
func (iso *Isometry) Constellation() string {
	return strings.Join(iso.Sources(), ConstellationSeparator)
}
