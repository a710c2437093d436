package meme

import "strings"

// AntiPrefix marks a meme that forbids its positive counterpart.
const AntiPrefix = "!"

// Stack is a set of memes checked against the taxonomy's exclusivity rules.
type Stack struct {
	taxonomy *Taxonomy
	memes    map[string]struct{}
}

func NewStack(taxonomy *Taxonomy, memes []string) *Stack {
	s := &Stack{taxonomy: taxonomy, memes: make(map[string]struct{}, len(memes))}
	for _, m := range memes {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			s.memes[m] = struct{}{}
		}
	}
	return s
}

// IsAllowed rejects a meme alongside its anti-meme, and two memes from the
// same taxonomy category.
func (s *Stack) IsAllowed() bool {
	seen := make(map[string]string)
	for m := range s.memes {
		if strings.HasPrefix(m, AntiPrefix) {
			if _, ok := s.memes[strings.TrimPrefix(m, AntiPrefix)]; ok {
				return false
			}
			continue
		}
		cat, ok := s.taxonomy.CategoryOf(m)
		if !ok {
			continue
		}
		if other, dup := seen[cat]; dup && other != m {
			return false
		}
		seen[cat] = m
	}
	return true
}

func (s *Stack) Size() int {
	return len(s.memes)
}
