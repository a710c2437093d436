package craft

import (
	"fmt"

	"github.com/cesargomez89/segmentcraft/internal/fabricator"
)

type stage interface {
	Do() error
}

// Run crafts a segment by running every stage in order. Later stages read
// the choices of earlier ones, so the order is fixed.
func Run(f *fabricator.Fabricator, o Overrides) error {
	stages := []struct {
		name string
		s    stage
	}{
		{"macro_main", NewMacroMain(f, o)},
		{"beat", NewBeat(f)},
		{"detail", NewDetail(f)},
		{"transition", NewTransition(f)},
		{"background", NewBackground(f)},
	}
	for _, st := range stages {
		if err := st.s.Do(); err != nil {
			return fmt.Errorf("%s craft failed: %w", st.name, err)
		}
	}
	return nil
}
