package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lyrehero/lyrehero-engine/pkg/song"
)

// Store persists the song library cache, the live engine configuration,
// and a history of calibration runs, backed by SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (and if necessary creates) the database at dbPath and
// ensures the schema exists.
func NewStore(dbPath string) (*Store, error) {
	s := &Store{dbPath: dbPath}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return s, nil
}

func (s *Store) initialize() error {
	if dir := filepath.Dir(s.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if s.dbPath == "" {
		s.dbPath = "./lyrehero.db"
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Printf("Storage initialized: %s", s.dbPath)
	return nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL,
		note_count INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS engine_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		sample_rate INTEGER NOT NULL,
		gain REAL NOT NULL,
		rms_threshold REAL NOT NULL,
		clarity_threshold REAL NOT NULL,
		hold_duration_ms INTEGER NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS calibration_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phase TEXT NOT NULL,
		value REAL NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title)",
		"CREATE INDEX IF NOT EXISTS idx_calibration_history_recorded_at ON calibration_history(recorded_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_calibration_history_phase ON calibration_history(phase)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// songRow is the intermediate shape used to marshal a song.Song into the
// cache table without importing encoding/json at every call site.
type songRow struct {
	ID         string
	Title      string
	Artist     string
	Difficulty song.Difficulty
	NoteCount  int
	Payload    string
}

func rowFromSong(s *song.Song, payload []byte) songRow {
	return songRow{
		ID:         s.ID,
		Title:      s.Title,
		Artist:     s.Artist,
		Difficulty: s.Difficulty,
		NoteCount:  len(s.Notes),
		Payload:    string(payload),
	}
}
