// Package store persists conversations and scraped-site snapshots in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ConversationStatus represents the lifecycle state of a conversation
type ConversationStatus string

const (
	// StatusActive indicates an ongoing conversation
	StatusActive ConversationStatus = "active"
	// StatusClosed indicates a closed conversation
	StatusClosed ConversationStatus = "closed"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	// UserRole indicates a message from the visitor
	UserRole MessageRole = "user"
	// AssistantRole indicates a message from the assistant
	AssistantRole MessageRole = "assistant"
)

// Message is one turn in a conversation. Append-only; ordering is
// insertion order.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Conversation is a visitor's multi-turn chat, keyed by session token.
// Name and email are set on creation and never change for that token.
type Conversation struct {
	ID         int64              `json:"-"`
	SessionID  string             `json:"sessionId"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	WebsiteURL string             `json:"websiteUrl,omitempty"`
	Messages   []Message          `json:"messages"`
	Status     ConversationStatus `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// PageExtract is the extracted text of one scraped page
type PageExtract struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Title   string `json:"title,omitempty"`
}

// SiteSnapshot is a cached plain-text extract of a website, keyed by URL.
// It is refreshed only when older than the configured staleness window.
type SiteSnapshot struct {
	WebsiteURL  string        `json:"websiteUrl"`
	Content     string        `json:"content"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Pages       []PageExtract `json:"pages"`
	LastScraped time.Time     `json:"lastScraped"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Age returns how long ago the snapshot was last refreshed
func (s *SiteSnapshot) Age() time.Duration {
	return time.Since(s.LastScraped)
}

// Store handles queries to the SQLite database
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// New opens the database at dbPath and initializes the schema
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time, and an in-memory database exists
	// per connection. A single pooled connection avoids both SQLITE_BUSY
	// and split in-memory state.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:           db,
		logger:       logger,
		sessionLocks: make(map[string]*sync.Mutex),
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is usable
func (s *Store) Ping() error {
	return s.db.Ping()
}

// initSchema creates the tables if they don't exist
func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			website_url TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, id)`,
		`CREATE TABLE IF NOT EXISTS site_snapshots (
			website_url TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			title TEXT,
			description TEXT,
			pages TEXT,
			last_scraped DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// LockSession serializes read-modify-write cycles for one session token.
// Without it two concurrent turns against the same token could interleave
// their appends. The returned func releases the lock.
func (s *Store) LockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.sessionLocks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// GetConversation returns the conversation for a session token, with its
// messages in insertion order. Returns (nil, nil) when absent.
func (s *Store) GetConversation(sessionID string) (*Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, session_id, name, email, COALESCE(website_url, ''), status, created_at, updated_at
		 FROM conversations WHERE session_id = ?`, sessionID)

	var conv Conversation
	err := row.Scan(&conv.ID, &conv.SessionID, &conv.Name, &conv.Email,
		&conv.WebsiteURL, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	messages, err := s.loadMessages(conv.ID)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages

	return &conv, nil
}

// loadMessages returns the messages for a conversation in insertion order
func (s *Store) loadMessages(conversationID int64) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

// CreateConversation inserts a new conversation for a session token
func (s *Store) CreateConversation(sessionID, name, email, websiteURL string) (*Conversation, error) {
	now := time.Now().UTC()

	result, err := s.db.Exec(
		`INSERT INTO conversations (session_id, name, email, website_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, name, email, websiteURL, StatusActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation id: %w", err)
	}

	s.logger.Info("Created conversation",
		zap.String("session_id", sessionID),
		zap.String("website_url", websiteURL))

	return &Conversation{
		ID:         id,
		SessionID:  sessionID,
		Name:       name,
		Email:      email,
		WebsiteURL: websiteURL,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AppendMessages appends turns to a conversation and bumps updated_at
func (s *Store) AppendMessages(sessionID string, messages ...Message) error {
	conv, err := s.GetConversation(sessionID)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation not found for session %s", sessionID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, msg := range messages {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			conv.ID, msg.Role, msg.Content, ts); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), conv.ID); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("Appended messages",
		zap.String("session_id", sessionID),
		zap.Int("count", len(messages)))

	return nil
}

// CloseConversation marks a conversation as closed
func (s *Store) CloseConversation(sessionID string) error {
	result, err := s.db.Exec(
		`UPDATE conversations SET status = ?, updated_at = ? WHERE session_id = ?`,
		StatusClosed, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to close conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("conversation not found for session %s", sessionID)
	}

	return nil
}

// ListConversations returns conversations newest-updated first, optionally
// filtered by status and bounded by limit
func (s *Store) ListConversations(status ConversationStatus, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, name, email, COALESCE(website_url, ''), status, created_at, updated_at
		FROM conversations`
	var args []interface{}

	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var conv Conversation
		err := rows.Scan(&conv.ID, &conv.SessionID, &conv.Name, &conv.Email,
			&conv.WebsiteURL, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	for _, conv := range conversations {
		messages, err := s.loadMessages(conv.ID)
		if err != nil {
			return nil, err
		}
		conv.Messages = messages
	}

	return conversations, nil
}

// GetSnapshot returns the snapshot for a website URL, or (nil, nil) when absent
func (s *Store) GetSnapshot(websiteURL string) (*SiteSnapshot, error) {
	row := s.db.QueryRow(
		`SELECT website_url, content, COALESCE(title, ''), COALESCE(description, ''),
			COALESCE(pages, '[]'), last_scraped, created_at, updated_at
		 FROM site_snapshots WHERE website_url = ?`, websiteURL)

	var snap SiteSnapshot
	var pagesJSON string
	err := row.Scan(&snap.WebsiteURL, &snap.Content, &snap.Title, &snap.Description,
		&pagesJSON, &snap.LastScraped, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(pagesJSON), &snap.Pages); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot pages: %w", err)
	}

	return &snap, nil
}

// UpsertSnapshot inserts or replaces the snapshot for a website URL
func (s *Store) UpsertSnapshot(snap *SiteSnapshot) error {
	pagesJSON, err := json.Marshal(snap.Pages)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot pages: %w", err)
	}

	now := time.Now().UTC()
	if snap.LastScraped.IsZero() {
		snap.LastScraped = now
	}

	_, err = s.db.Exec(
		`INSERT INTO site_snapshots (website_url, content, title, description, pages, last_scraped, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(website_url) DO UPDATE SET
			content = excluded.content,
			title = excluded.title,
			description = excluded.description,
			pages = excluded.pages,
			last_scraped = excluded.last_scraped,
			updated_at = excluded.updated_at`,
		snap.WebsiteURL, snap.Content, snap.Title, snap.Description,
		string(pagesJSON), snap.LastScraped, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	s.logger.Info("Stored site snapshot",
		zap.String("website_url", snap.WebsiteURL),
		zap.Int("content_length", len(snap.Content)))

	return nil
}
