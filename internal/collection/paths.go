package collection

import (
	"math"

	"github.com/conorfennell/flipdeck/internal/domain"
)

// PathSeparator joins category names in a path.
const PathSeparator = " › "

// CategoryMeta describes a category together with its full path from the root.
type CategoryMeta struct {
	Name     string  `json:"name"`
	Locked   bool    `json:"locked"`
	ParentID *string `json:"parentId"`
	Path     string  `json:"path"`
}

// Paths returns the metadata of every category keyed by id.
func (s *Store) Paths() map[string]CategoryMeta {
	return BuildPaths(s.Categories())
}

// BuildPaths computes "Root › Child › Leaf" paths. Parent lookups are memoized;
// a parent cycle is cut where it closes.
func BuildPaths(categories []domain.Category) map[string]CategoryMeta {
	byID := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	cache := make(map[string]string, len(categories))
	visiting := make(map[string]bool)

	var pathOf func(c domain.Category) string
	pathOf = func(c domain.Category) string {
		if p, ok := cache[c.ID]; ok {
			return p
		}
		path := c.Name
		if c.ParentID != nil && !visiting[c.ID] {
			if parent, ok := byID[*c.ParentID]; ok && !visiting[parent.ID] {
				visiting[c.ID] = true
				path = pathOf(parent) + PathSeparator + c.Name
				delete(visiting, c.ID)
			}
		}
		cache[c.ID] = path
		return path
	}

	meta := make(map[string]CategoryMeta, len(categories))
	for _, c := range categories {
		meta[c.ID] = CategoryMeta{
			Name:     c.Name,
			Locked:   c.Locked,
			ParentID: c.ParentID,
			Path:     pathOf(c),
		}
	}
	return meta
}

// Stats summarizes learning progress over the whole collection.
type Stats struct {
	Total               int `json:"total"`
	Learned             int `json:"learned"`
	Unlearned           int `json:"unlearned"`
	LearnedPercentage   int `json:"learnedPercentage"`
	UnlearnedPercentage int `json:"unlearnedPercentage"`
}

// Stats counts learned and unlearned cards.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.flashcards)}
	for _, c := range s.flashcards {
		if c.Learned {
			st.Learned++
		}
	}
	st.Unlearned = st.Total - st.Learned
	if st.Total > 0 {
		st.LearnedPercentage = percent(st.Learned, st.Total)
		st.UnlearnedPercentage = percent(st.Unlearned, st.Total)
	}
	return st
}

func percent(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}
