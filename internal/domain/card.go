package domain

import (
	"strings"
	"time"
)

// Flashcard represents a single front/back pair owned by one category.
type Flashcard struct {
	ID         string `json:"id"`
	Front      string `json:"front"`
	Back       string `json:"back"`
	Learned    bool   `json:"learned"`
	CategoryID string `json:"categoryId"`
	Img        string `json:"img,omitempty"`
}

// Quizzable reports whether both sides of the card carry text once trimmed.
func (c Flashcard) Quizzable() bool {
	return strings.TrimSpace(c.Front) != "" && strings.TrimSpace(c.Back) != ""
}

// Category groups flashcards. A nil ParentID marks a root category.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt"`
	ParentID  *string   `json:"parentId"`
}

// Collection is the full persisted state: every category and every card.
type Collection struct {
	Categories []Category  `json:"categories"`
	Flashcards []Flashcard `json:"flashcards"`
}

// QuizAttempt records the outcome of one completed quiz.
type QuizAttempt struct {
	ID             string    `json:"id"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// DailyQuizSummary aggregates the quiz attempts submitted on one UTC day.
type DailyQuizSummary struct {
	Date           string `json:"date"` // YYYY-MM-DD
	AttemptCount   int    `json:"attemptCount"`
	TotalQuestions int    `json:"totalQuestions"`
	CorrectAnswers int    `json:"correctAnswers"`
}
