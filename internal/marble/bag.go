// Package marble implements weighted random selection over tiers of candidates.
package marble

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

// DefaultTier is used by Add.
const DefaultTier = 1

// Bag is a marble bag: each candidate id holds a quantity of marbles and a
// draw picks an id with probability proportional to its quantity. Candidates
// live in tiers; a draw only considers the lowest tier that has any marbles.
type Bag struct {
	rng   *rand.Rand
	tiers map[int]*tier
}

type tier struct {
	order []string
	qty   map[string]int
}

func New(rng *rand.Rand) *Bag {
	if rng == nil {
		rng = NewSecureRand()
	}
	return &Bag{rng: rng, tiers: make(map[int]*tier)}
}

// Add puts qty marbles for id into the default tier.
func (b *Bag) Add(id string, qty int) {
	b.AddTier(DefaultTier, id, qty)
}

// AddTier puts qty marbles for id into a tier, accumulating repeat adds.
func (b *Bag) AddTier(t int, id string, qty int) {
	if qty < 0 {
		qty = 0
	}
	tr, ok := b.tiers[t]
	if !ok {
		tr = &tier{qty: make(map[string]int)}
		b.tiers[t] = tr
	}
	if _, seen := tr.qty[id]; !seen {
		tr.order = append(tr.order, id)
	}
	tr.qty[id] += qty
}

// Pick draws one id. If the lowest populated tier has zero total weight its
// first candidate is returned.
func (b *Bag) Pick() (string, error) {
	if b.IsEmpty() {
		return "", domain.ErrEmptyBag
	}

	for _, t := range b.tierNumbers() {
		tr := b.tiers[t]
		total := 0
		for _, id := range tr.order {
			total += tr.qty[id]
		}
		if total <= 0 {
			continue
		}
		n := b.rng.IntN(total)
		for _, id := range tr.order {
			n -= tr.qty[id]
			if n < 0 {
				return id, nil
			}
		}
	}

	// all weights zero
	first := b.tiers[b.tierNumbers()[0]]
	return first.order[0], nil
}

// Size is the number of distinct candidates across tiers.
func (b *Bag) Size() int {
	n := 0
	for _, tr := range b.tiers {
		n += len(tr.order)
	}
	return n
}

func (b *Bag) IsEmpty() bool {
	return b.Size() == 0
}

func (b *Bag) tierNumbers() []int {
	nums := make([]int, 0, len(b.tiers))
	for t, tr := range b.tiers {
		if len(tr.order) > 0 {
			nums = append(nums, t)
		}
	}
	slices.Sort(nums)
	return nums
}

// String renders the bag contents for craft reports.
func (b *Bag) String() string {
	var parts []string
	for _, t := range b.tierNumbers() {
		tr := b.tiers[t]
		items := make([]string, len(tr.order))
		for i, id := range tr.order {
			items[i] = fmt.Sprintf("%s:%d", id, tr.qty[id])
		}
		parts = append(parts, fmt.Sprintf("T%d[%s]", t, strings.Join(items, " ")))
	}
	return strings.Join(parts, " ")
}
