package storage

const schema = `
-- The 'categories' table stores the folders flashcards are grouped into.
CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    locked INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    parent_id TEXT
);

-- The 'flashcards' table stores each front/back pair. Cards go with their category.
CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    learned INTEGER NOT NULL DEFAULT 0,
    category_id TEXT NOT NULL,
    img TEXT,

    FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
);

-- The 'quiz_attempts' table records every completed quiz.
CREATE TABLE IF NOT EXISTS quiz_attempts (
    id TEXT PRIMARY KEY,
    total_questions INTEGER NOT NULL,
    correct_answers INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_created_at ON quiz_attempts(created_at);

-- The 'kv' table holds small JSON documents, such as the study schedule.
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`
