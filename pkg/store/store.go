package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/segmentio/ksuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("record not found")
)

// timeFormat is fixed-width so MAX() over stored timestamps sorts correctly.
const timeFormat = "2006-01-02 15:04:05.000"

// Store manages users, bookmarks, and search analytics in SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the database at dbPath and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		book_id TEXT NOT NULL,
		title TEXT NOT NULL,
		search_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_search_history_book ON search_history(book_id);

	CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		book_id TEXT NOT NULL,
		title TEXT NOT NULL,
		response_data TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bookmarks_user ON bookmarks(user_id);

	CREATE VIEW IF NOT EXISTS book_analytics AS
	SELECT
		book_id,
		title,
		COUNT(*) AS search_count,
		MAX(search_date) AS last_searched
	FROM search_history
	GROUP BY book_id, title;
	`

	_, err := s.db.Exec(schema)
	return err
}

// User is a registered account. The password hash never leaves this package.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUser registers a new user with a bcrypt-hashed password.
func (s *Store) CreateUser(username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), now.Format(timeFormat),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username, CreatedAt: now}, nil
}

// AuthenticateUser verifies the credentials and returns the matching user.
func (s *Store) AuthenticateUser(username, password string) (*User, error) {
	var (
		user      User
		hash      string
		createdAt string
	)
	err := s.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	user.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &user, nil
}

// GetUser looks a user up by id.
func (s *Store) GetUser(id int64) (*User, error) {
	var (
		user      User
		createdAt string
	)
	err := s.db.QueryRow(
		`SELECT id, username, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Username, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &user, nil
}

// RecordSearch appends one entry to a user's search history.
func (s *Store) RecordSearch(ctx context.Context, userID int64, bookID, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (user_id, book_id, title, search_date) VALUES (?, ?, ?, ?)`,
		userID, bookID, title, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// SearchEntry is one row of a user's search history.
type SearchEntry struct {
	BookID     string    `json:"book_id"`
	Title      string    `json:"title"`
	SearchDate time.Time `json:"search_date"`
}

// SearchHistory returns a user's searches, most recent first.
func (s *Store) SearchHistory(userID int64) ([]SearchEntry, error) {
	rows, err := s.db.Query(
		`SELECT book_id, title, search_date FROM search_history WHERE user_id = ? ORDER BY search_date DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	var entries []SearchEntry
	for rows.Next() {
		var (
			entry SearchEntry
			date  string
		)
		if err := rows.Scan(&entry.BookID, &entry.Title, &date); err != nil {
			return nil, err
		}
		entry.SearchDate, _ = time.Parse(timeFormat, date)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// TrendingBook is one row of the book_analytics view.
type TrendingBook struct {
	BookID       string    `json:"book_id"`
	Title        string    `json:"title"`
	SearchCount  int64     `json:"search_count"`
	LastSearched time.Time `json:"last_searched"`
}

// Trending returns the most searched books, ordered by search count then
// recency.
func (s *Store) Trending(limit int) ([]TrendingBook, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT book_id, title, search_count, last_searched FROM book_analytics
		 ORDER BY search_count DESC, last_searched DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending books: %w", err)
	}
	defer rows.Close()

	var books []TrendingBook
	for rows.Next() {
		var (
			book TrendingBook
			date string
		)
		if err := rows.Scan(&book.BookID, &book.Title, &book.SearchCount, &date); err != nil {
			return nil, err
		}
		book.LastSearched, _ = time.Parse(timeFormat, date)
		books = append(books, book)
	}
	return books, rows.Err()
}

// Bookmark is a saved analysis result.
type Bookmark struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"-"`
	BookID       string          `json:"book_id"`
	Title        string          `json:"title"`
	ResponseData json.RawMessage `json:"response_data,omitempty"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AddBookmark stores an analysis result under a fresh ksuid.
func (s *Store) AddBookmark(userID int64, bookID, title string, responseData json.RawMessage, note string) (*Bookmark, error) {
	bookmark := &Bookmark{
		ID:           ksuid.New().String(),
		UserID:       userID,
		BookID:       bookID,
		Title:        title,
		ResponseData: responseData,
		Note:         note,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO bookmarks (id, user_id, book_id, title, response_data, note, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bookmark.ID, userID, bookID, title, string(responseData), note, bookmark.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return bookmark, nil
}

// UserBookmarks returns all bookmarks owned by the user, newest first.
func (s *Store) UserBookmarks(userID int64) ([]Bookmark, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, book_id, title, response_data, note, created_at FROM bookmarks
		 WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []Bookmark
	for rows.Next() {
		bookmark, err := scanBookmark(rows.Scan)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, *bookmark)
	}
	return bookmarks, rows.Err()
}

// Bookmark fetches one bookmark scoped to its owner.
func (s *Store) Bookmark(id string, userID int64) (*Bookmark, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, book_id, title, response_data, note, created_at FROM bookmarks
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	bookmark, err := scanBookmark(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmark: %w", err)
	}
	return bookmark, nil
}

func scanBookmark(scan func(...any) error) (*Bookmark, error) {
	var (
		bookmark  Bookmark
		data      string
		note      sql.NullString
		createdAt string
	)
	if err := scan(&bookmark.ID, &bookmark.UserID, &bookmark.BookID, &bookmark.Title, &data, &note, &createdAt); err != nil {
		return nil, err
	}
	bookmark.ResponseData = json.RawMessage(data)
	bookmark.Note = note.String
	bookmark.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &bookmark, nil
}
