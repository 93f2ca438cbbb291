package storage

import (
	"database/sql"
	"fmt"

	"github.com/conorfennell/flipdeck/internal/domain"
)

// GetCollections reads every category and flashcard.
func (db *DB) GetCollections() (domain.Collection, error) {
	coll := domain.Collection{
		Categories: []domain.Category{},
		Flashcards: []domain.Flashcard{},
	}

	rows, err := db.conn.Query(`
		SELECT id, name, locked, created_at, parent_id
		FROM categories
		ORDER BY rowid
	`)
	if err != nil {
		return coll, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c         domain.Category
			createdAt string
			parentID  sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Locked, &createdAt, &parentID); err != nil {
			return coll, fmt.Errorf("failed to scan category row: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		if parentID.Valid && parentID.String != "" {
			p := parentID.String
			c.ParentID = &p
		}
		coll.Categories = append(coll.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return coll, fmt.Errorf("failed to read categories: %w", err)
	}

	cardRows, err := db.conn.Query(`
		SELECT id, front, back, learned, category_id, img
		FROM flashcards
		ORDER BY rowid
	`)
	if err != nil {
		return coll, fmt.Errorf("failed to get flashcards: %w", err)
	}
	defer cardRows.Close()

	for cardRows.Next() {
		var (
			f   domain.Flashcard
			img sql.NullString
		)
		if err := cardRows.Scan(&f.ID, &f.Front, &f.Back, &f.Learned, &f.CategoryID, &img); err != nil {
			return coll, fmt.Errorf("failed to scan flashcard row: %w", err)
		}
		f.Img = img.String
		coll.Flashcards = append(coll.Flashcards, f)
	}
	if err := cardRows.Err(); err != nil {
		return coll, fmt.Errorf("failed to read flashcards: %w", err)
	}
	return coll, nil
}

// ReplaceCollections swaps the stored categories and flashcards for coll in
// one transaction. On error nothing changes.
func (db *DB) ReplaceCollections(coll domain.Collection) (err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM flashcards`); err != nil {
		return fmt.Errorf("failed to clear flashcards: %w", err)
	}
	if _, err = tx.Exec(`DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	for _, c := range coll.Categories {
		var parentID any
		if c.ParentID != nil {
			parentID = *c.ParentID
		}
		if _, err = tx.Exec(`
			INSERT INTO categories (id, name, locked, created_at, parent_id)
			VALUES (?, ?, ?, ?, ?)
		`, c.ID, c.Name, c.Locked, formatTime(c.CreatedAt), parentID); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.ID, err)
		}
	}

	for _, f := range coll.Flashcards {
		var img any
		if f.Img != "" {
			img = f.Img
		}
		if _, err = tx.Exec(`
			INSERT INTO flashcards (id, front, back, learned, category_id, img)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.ID, f.Front, f.Back, f.Learned, f.CategoryID, img); err != nil {
			return fmt.Errorf("failed to insert flashcard %s: %w", f.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collections: %w", err)
	}
	return nil
}
