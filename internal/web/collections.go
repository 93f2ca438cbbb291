package web

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/domain"
)

type collectionsPayload struct {
	Categories *[]domain.Category  `json:"categories"`
	Flashcards *[]domain.Flashcard `json:"flashcards"`
}

// handleGetCollections returns every category and flashcard.
func (s *Server) handleGetCollections() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(s.cards.Snapshot())
	}
}

// handlePutCollections replaces the whole collection and drops schedule
// entries for cards that no longer exist.
func (s *Server) handlePutCollections() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req collectionsPayload
		if err := c.BodyParser(&req); err != nil || req.Categories == nil || req.Flashcards == nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		coll := domain.Collection{Categories: *req.Categories, Flashcards: *req.Flashcards}

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		if err := s.repo.ReplaceCollections(coll); err != nil {
			s.logger.Error("Failed to replace collections", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		s.cards.Load(coll)

		if _, err := s.study.Prune(c.UserContext(), cardIDs(coll.Flashcards)); err != nil {
			s.logger.Warn("Failed to prune study state", "error", err)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// handleGetCategories lists categories with their display paths.
func (s *Server) handleGetCategories() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"categories": s.cards.Categories(),
			"paths":      s.cards.Paths(),
		})
	}
}

type createCategoryRequest struct {
	Name     string `json:"name" validate:"required"`
	ParentID string `json:"parentId"`
	Locked   bool   `json:"locked"`
}

func (s *Server) handleCreateCategory() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createCategoryRequest
		if err := s.parseBody(c, &req); err != nil {
			return err
		}

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		category, err := s.cards.AddCategory(req.Name, req.ParentID, req.Locked)
		if err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(category)
	}
}

type renameCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) handleRenameCategory() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req renameCategoryRequest
		if err := s.parseBody(c, &req); err != nil {
			return err
		}
		id := c.Params("id")

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		if err := s.cards.RenameCategory(id, req.Name); err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		category, _ := s.cards.Category(id)
		return c.JSON(category)
	}
}

func (s *Server) handleToggleLock() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		locked, err := s.cards.ToggleCategoryLock(c.Params("id"))
		if err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"locked": locked})
	}
}

// handleDeleteCategory removes a category. Its cards move to another category
// and lose their study schedule.
func (s *Server) handleDeleteCategory() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		moved, err := s.cards.DeleteCategory(c.Params("id"))
		if err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		s.forget(c.UserContext(), moved...)
		return c.JSON(fiber.Map{"movedFlashcards": len(moved)})
	}
}

type createFlashcardRequest struct {
	Front      string `json:"front" validate:"required"`
	Back       string `json:"back" validate:"required"`
	CategoryID string `json:"categoryId" validate:"required"`
	Img        string `json:"img"`
}

func (s *Server) handleCreateFlashcard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createFlashcardRequest
		if err := s.parseBody(c, &req); err != nil {
			return err
		}

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		card, err := s.cards.AddFlashcard(req.Front, req.Back, req.CategoryID, req.Img)
		if err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(card)
	}
}

type updateFlashcardRequest struct {
	Front      *string `json:"front"`
	Back       *string `json:"back"`
	CategoryID *string `json:"categoryId"`
	Img        *string `json:"img"`
	Learned    *bool   `json:"learned"`
}

func (s *Server) handleUpdateFlashcard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req updateFlashcardRequest
		if err := s.parseBody(c, &req); err != nil {
			return err
		}

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		card, err := s.cards.UpdateFlashcard(c.Params("id"), collection.FlashcardUpdate(req))
		if err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		return c.JSON(card)
	}
}

func (s *Server) handleDeleteFlashcard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		if err := s.cards.DeleteFlashcard(id); err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		s.forget(c.UserContext(), id)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (s *Server) handleSetLearned(learned bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		var err error
		if learned {
			err = s.cards.MarkLearned(id)
		} else {
			err = s.cards.MarkUnlearned(id)
		}
		if err != nil {
			return err
		}
		if err := s.persist(); err != nil {
			return err
		}
		card, _ := s.cards.Flashcard(id)
		return c.JSON(card)
	}
}

// handleListFlashcards lists cards, optionally filtered by ?categoryId= and ?learned=true|false.
func (s *Server) handleListFlashcards() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cards []domain.Flashcard
		switch c.Query("learned") {
		case "":
			cards = s.cards.Flashcards()
		case "true":
			cards = s.cards.Learned()
		case "false":
			cards = s.cards.Unlearned()
		default:
			return fiber.NewError(fiber.StatusBadRequest, "learned must be true or false")
		}

		if categoryID := c.Query("categoryId"); categoryID != "" {
			if _, ok := s.cards.Category(categoryID); !ok {
				return collection.ErrNotFound
			}
			filtered := make([]domain.Flashcard, 0, len(cards))
			for _, card := range cards {
				if card.CategoryID == categoryID {
					filtered = append(filtered, card)
				}
			}
			cards = filtered
		}
		return c.JSON(cards)
	}
}

// handleGetProgress reports learned/unlearned totals.
func (s *Server) handleGetProgress() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(s.cards.Stats())
	}
}

// forget drops schedule entries. The collection change already succeeded, so
// failures are only logged.
func (s *Server) forget(ctx context.Context, ids ...string) {
	if err := s.study.Forget(ctx, ids...); err != nil {
		s.logger.Warn("Failed to remove study state", "cards", ids, "error", err)
	}
}

func cardIDs(cards []domain.Flashcard) []string {
	ids := make([]string, len(cards))
	for i, card := range cards {
		ids[i] = card.ID
	}
	return ids
}
