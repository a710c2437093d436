package music

import (
	"strings"
)

// NoChordName is the symbol for a section with no harmony.
const NoChordName = "NC"

// Chord is a parsed chord symbol such as "Cm7", "F#maj9" or "Eb/G".
type Chord struct {
	Root        PitchClass
	SlashRoot   PitchClass
	Description string
	name        string
}

var qualityPrefixes = []struct {
	prefix  string
	quality string
}{
	{"maj", "major"},
	{"M", "major"},
	{"min", "minor"},
	{"m", "minor"},
	{"-", "minor"},
	{"dim", "diminished"},
	{"°", "diminished"},
	{"aug", "augmented"},
	{"+", "augmented"},
	{"sus", "suspended"},
}

// ChordOf parses a chord symbol. Unparseable names yield a no-chord.
func ChordOf(name string) Chord {
	name = strings.TrimSpace(name)
	c := Chord{Root: None, SlashRoot: None, name: name}
	if name == "" || strings.EqualFold(name, NoChordName) {
		return c
	}

	body := name
	if i := strings.LastIndex(name, "/"); i > 0 {
		if pc, rest := parsePitchClass(name[i+1:]); pc != None && strings.TrimSpace(rest) == "" {
			c.SlashRoot = pc
			body = name[:i]
		}
	}

	root, rest := parsePitchClass(body)
	if root == None {
		return c
	}
	c.Root = root
	c.Description = strings.TrimSpace(rest)
	if c.SlashRoot == None {
		c.SlashRoot = root
	}
	return c
}

func (c Chord) IsNoChord() bool {
	return c.Root == None
}

func (c Chord) Name() string {
	return c.name
}

func (c Chord) String() string {
	if c.IsNoChord() {
		return NoChordName
	}
	s := c.Root.Name(Sharp) + c.Description
	if c.SlashRoot != c.Root {
		s += "/" + c.SlashRoot.Name(Sharp)
	}
	return s
}

// Quality reduces the description to a triad family.
func (c Chord) Quality() string {
	if c.IsNoChord() {
		return ""
	}
	d := c.Description
	for _, q := range qualityPrefixes {
		if strings.HasPrefix(d, q.prefix) {
			return q.quality
		}
	}
	return "major"
}

// Equals compares root, bass and description.
func (c Chord) Equals(other Chord) bool {
	if c.IsNoChord() || other.IsNoChord() {
		return c.IsNoChord() && other.IsNoChord()
	}
	return c.Root == other.Root && c.SlashRoot == other.SlashRoot && c.Description == other.Description
}

// IsAcceptable is a looser match: same root and triad family, any bass or extension.
func (c Chord) IsAcceptable(other Chord) bool {
	if c.IsNoChord() || other.IsNoChord() {
		return c.IsNoChord() && other.IsNoChord()
	}
	return c.Root == other.Root && c.Quality() == other.Quality()
}
