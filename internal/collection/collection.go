// Package collection holds the categories and flashcards a user studies and
// enforces the rules around them: every card belongs to an existing category,
// and cards in a locked category cannot be changed.
package collection

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/flipdeck/internal/domain"
)

// DefaultCategoryName names the category created when none is usable.
const DefaultCategoryName = "General"

var (
	ErrNotFound       = errors.New("collection: not found")
	ErrCategoryLocked = errors.New("collection: category is locked")
	ErrEmptyName      = errors.New("collection: name must not be empty")
	ErrLastCategory   = errors.New("collection: cannot delete the last category")
	ErrEmptyCard      = errors.New("collection: front and back must not be empty")
)

// Store is an in-memory, concurrency-safe collection.
type Store struct {
	mu         sync.RWMutex
	categories []domain.Category
	flashcards []domain.Flashcard

	newID func() string
	now   func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Load replaces the contents of the store with a normalized copy of c.
func (s *Store) Load(c domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = slices.Clone(c.Categories)
	s.flashcards = slices.Clone(c.Flashcards)
	s.normalize()
}

// Snapshot returns a copy of every category and card.
func (s *Store) Snapshot() domain.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Collection{
		Categories: cloneCategories(s.categories),
		Flashcards: append(make([]domain.Flashcard, 0, len(s.flashcards)), s.flashcards...),
	}
}

// normalize drops dangling parent references and moves cards whose category
// is missing into the first unlocked category, creating one if needed.
func (s *Store) normalize() {
	ids := make(map[string]bool, len(s.categories))
	for _, c := range s.categories {
		ids[c.ID] = true
	}
	for i, c := range s.categories {
		if c.ParentID != nil && !ids[*c.ParentID] {
			s.categories[i].ParentID = nil
		}
	}

	fallback := s.fallbackCategory()
	if fallback == nil {
		s.categories = append(s.categories, s.newCategory(DefaultCategoryName, nil, false))
		fallback = &s.categories[len(s.categories)-1]
		ids[fallback.ID] = true
	}
	fallbackID := fallback.ID

	for i, card := range s.flashcards {
		if card.CategoryID == "" || !ids[card.CategoryID] {
			s.flashcards[i].CategoryID = fallbackID
		}
	}
}

// fallbackCategory returns the first unlocked category,
// or nil when every category is locked.
func (s *Store) fallbackCategory() *domain.Category {
	for i := range s.categories {
		if !s.categories[i].Locked {
			return &s.categories[i]
		}
	}
	return nil
}

func (s *Store) newCategory(name string, parentID *string, locked bool) domain.Category {
	return domain.Category{
		ID:        s.newID(),
		Name:      name,
		Locked:    locked,
		CreatedAt: s.now().UTC(),
		ParentID:  parentID,
	}
}

func (s *Store) categoryIndex(id string) int {
	return slices.IndexFunc(s.categories, func(c domain.Category) bool { return c.ID == id })
}

func (s *Store) cardIndex(id string) int {
	return slices.IndexFunc(s.flashcards, func(c domain.Flashcard) bool { return c.ID == id })
}

func (s *Store) locked(categoryID string) bool {
	i := s.categoryIndex(categoryID)
	return i >= 0 && s.categories[i].Locked
}

// AddCategory creates a category. An unknown parent id creates a root category.
func (s *Store) AddCategory(name, parentID string, locked bool) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var parent *string
	if parentID != "" && s.categoryIndex(parentID) >= 0 {
		parent = &parentID
	}
	c := s.newCategory(name, parent, locked)
	s.categories = append(s.categories, c)
	return cloneCategory(c), nil
}

// RenameCategory sets a new, non-empty name.
func (s *Store) RenameCategory(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.categories[i].Name = name
	return nil
}

// ToggleCategoryLock flips the locked flag and returns the new value.
func (s *Store) ToggleCategoryLock(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return false, ErrNotFound
	}
	s.categories[i].Locked = !s.categories[i].Locked
	return s.categories[i].Locked, nil
}

// DeleteCategory removes a category. Its cards and child categories move to
// the first unlocked remaining category, or the first remaining one if all are
// locked. The ids of the moved cards are returned.
func (s *Store) DeleteCategory(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	if len(s.categories) == 1 {
		return nil, ErrLastCategory
	}

	s.categories = slices.Delete(s.categories, i, i+1)
	target := s.fallbackCategory()
	if target == nil {
		target = &s.categories[0]
	}
	targetID := target.ID

	var moved []string
	for j, card := range s.flashcards {
		if card.CategoryID == id {
			s.flashcards[j].CategoryID = targetID
			moved = append(moved, card.ID)
		}
	}
	for j, c := range s.categories {
		if c.ParentID != nil && *c.ParentID == id {
			pid := targetID
			s.categories[j].ParentID = &pid
		}
	}
	return moved, nil
}

// AddFlashcard creates an unlearned card in an existing, unlocked category.
func (s *Store) AddFlashcard(front, back, categoryID, img string) (domain.Flashcard, error) {
	if strings.TrimSpace(front) == "" || strings.TrimSpace(back) == "" {
		return domain.Flashcard{}, ErrEmptyCard
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(categoryID)
	if i < 0 {
		return domain.Flashcard{}, ErrNotFound
	}
	if s.categories[i].Locked {
		return domain.Flashcard{}, ErrCategoryLocked
	}

	card := domain.Flashcard{
		ID:         s.newID(),
		Front:      front,
		Back:       back,
		CategoryID: categoryID,
		Img:        img,
	}
	s.flashcards = append(s.flashcards, card)
	return card, nil
}

// FlashcardUpdate lists the fields to change; nil fields are left alone.
type FlashcardUpdate struct {
	Front      *string
	Back       *string
	CategoryID *string
	Img        *string
	Learned    *bool
}

// UpdateFlashcard applies u to a card. Neither the current nor the target
// category may be locked.
func (s *Store) UpdateFlashcard(id string, u FlashcardUpdate) (domain.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cardIndex(id)
	if i < 0 {
		return domain.Flashcard{}, ErrNotFound
	}
	card := s.flashcards[i]
	if s.locked(card.CategoryID) {
		return domain.Flashcard{}, ErrCategoryLocked
	}

	if u.CategoryID != nil && *u.CategoryID != "" && *u.CategoryID != card.CategoryID {
		j := s.categoryIndex(*u.CategoryID)
		if j < 0 {
			return domain.Flashcard{}, ErrNotFound
		}
		if s.categories[j].Locked {
			return domain.Flashcard{}, ErrCategoryLocked
		}
		card.CategoryID = *u.CategoryID
	}
	if u.Front != nil {
		card.Front = *u.Front
	}
	if u.Back != nil {
		card.Back = *u.Back
	}
	if u.Img != nil {
		card.Img = *u.Img
	}
	if u.Learned != nil {
		card.Learned = *u.Learned
	}

	s.flashcards[i] = card
	return card, nil
}

// DeleteFlashcard removes a card outside a locked category.
func (s *Store) DeleteFlashcard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cardIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	if s.locked(s.flashcards[i].CategoryID) {
		return ErrCategoryLocked
	}
	s.flashcards = slices.Delete(s.flashcards, i, i+1)
	return nil
}

// MarkLearned flags a card as learned.
func (s *Store) MarkLearned(id string) error {
	return s.setLearned(id, true)
}

// MarkUnlearned clears the learned flag.
func (s *Store) MarkUnlearned(id string) error {
	return s.setLearned(id, false)
}

func (s *Store) setLearned(id string, learned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cardIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	if s.locked(s.flashcards[i].CategoryID) {
		return ErrCategoryLocked
	}
	s.flashcards[i].Learned = learned
	return nil
}

// Flashcard returns the card with the given id.
func (s *Store) Flashcard(id string) (domain.Flashcard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.cardIndex(id)
	if i < 0 {
		return domain.Flashcard{}, false
	}
	return s.flashcards[i], true
}

// Flashcards returns every card in insertion order.
func (s *Store) Flashcards() []domain.Flashcard {
	return s.filter(func(domain.Flashcard) bool { return true })
}

// Learned returns the learned cards.
func (s *Store) Learned() []domain.Flashcard {
	return s.filter(func(c domain.Flashcard) bool { return c.Learned })
}

// Unlearned returns the cards still to study.
func (s *Store) Unlearned() []domain.Flashcard {
	return s.filter(func(c domain.Flashcard) bool { return !c.Learned })
}

// ByCategory returns the cards of one category.
func (s *Store) ByCategory(categoryID string) []domain.Flashcard {
	return s.filter(func(c domain.Flashcard) bool { return c.CategoryID == categoryID })
}

func (s *Store) filter(keep func(domain.Flashcard) bool) []domain.Flashcard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Flashcard, 0, len(s.flashcards))
	for _, c := range s.flashcards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Category returns the category with the given id.
func (s *Store) Category(id string) (domain.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.categoryIndex(id)
	if i < 0 {
		return domain.Category{}, false
	}
	return cloneCategory(s.categories[i]), true
}

// Categories returns every category in insertion order.
func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCategories(s.categories)
}

// IsCategoryLocked reports whether the category exists and is locked.
func (s *Store) IsCategoryLocked(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked(id)
}

func cloneCategory(c domain.Category) domain.Category {
	if c.ParentID != nil {
		pid := *c.ParentID
		c.ParentID = &pid
	}
	return c
}

func cloneCategories(in []domain.Category) []domain.Category {
	out := make([]domain.Category, len(in))
	for i, c := range in {
		out[i] = cloneCategory(c)
	}
	return out
}
