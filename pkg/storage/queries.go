package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lyrehero/lyrehero-engine/pkg/song"
)

// EngineConfigRow is the persisted slice of config.Config.Engine that
// survives a daemon restart without re-reading the YAML file.
type EngineConfigRow struct {
	SampleRate       int
	Gain             float64
	RMSThreshold     float64
	ClarityThreshold float64
	HoldDurationMs   int
	UpdatedAt        time.Time
}

// CalibrationRecord is one completed calibration wizard run.
type CalibrationRecord struct {
	Phase      string
	Value      float64
	RecordedAt time.Time
}

// CacheSongs replaces the cached song library with the given set, the way
// a directory rescan refreshes the cache on daemon startup.
func (s *Store) CacheSongs(songs []*song.Song) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM songs"); err != nil {
		return fmt.Errorf("failed to clear song cache: %w", err)
	}

	for _, sg := range songs {
		payload, err := json.Marshal(sg)
		if err != nil {
			return fmt.Errorf("failed to marshal song %q: %w", sg.ID, err)
		}
		row := rowFromSong(sg, payload)

		_, err = tx.Exec(`
			INSERT INTO songs (id, title, artist, difficulty, note_count, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				difficulty = excluded.difficulty,
				note_count = excluded.note_count,
				payload = excluded.payload,
				cached_at = CURRENT_TIMESTAMP
		`, row.ID, row.Title, row.Artist, row.Difficulty, row.NoteCount, row.Payload)
		if err != nil {
			return fmt.Errorf("failed to cache song %q: %w", sg.ID, err)
		}
	}

	return tx.Commit()
}

// ListCachedSongs returns the cached library's summaries, ordered by title,
// without unmarshaling each song's full note payload.
func (s *Store) ListCachedSongs() ([]song.SongSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, title, artist, difficulty, note_count
		FROM songs ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached songs: %w", err)
	}
	defer rows.Close()

	var out []song.SongSummary
	for rows.Next() {
		var sum song.SongSummary
		var difficulty string
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Artist, &difficulty, &sum.NoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan cached song: %w", err)
		}
		sum.Difficulty = song.Difficulty(difficulty)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetCachedSong returns the full song payload for id, or sql.ErrNoRows if
// it isn't cached.
func (s *Store) GetCachedSong(id string) (*song.Song, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM songs WHERE id = ?", id).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("failed to load cached song %q: %w", id, err)
	}

	var sg song.Song
	if err := json.Unmarshal([]byte(payload), &sg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached song %q: %w", id, err)
	}
	return &sg, nil
}

// SaveEngineConfig upserts the single persisted engine-config row.
func (s *Store) SaveEngineConfig(cfg EngineConfigRow) error {
	_, err := s.db.Exec(`
		INSERT INTO engine_config (id, sample_rate, gain, rms_threshold, clarity_threshold, hold_duration_ms)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sample_rate = excluded.sample_rate,
			gain = excluded.gain,
			rms_threshold = excluded.rms_threshold,
			clarity_threshold = excluded.clarity_threshold,
			hold_duration_ms = excluded.hold_duration_ms,
			updated_at = CURRENT_TIMESTAMP
	`, cfg.SampleRate, cfg.Gain, cfg.RMSThreshold, cfg.ClarityThreshold, cfg.HoldDurationMs)
	if err != nil {
		return fmt.Errorf("failed to save engine config: %w", err)
	}
	return nil
}

// LoadEngineConfig returns the persisted engine config row, or
// sql.ErrNoRows if the daemon has never saved one (first run).
func (s *Store) LoadEngineConfig() (*EngineConfigRow, error) {
	var row EngineConfigRow
	err := s.db.QueryRow(`
		SELECT sample_rate, gain, rms_threshold, clarity_threshold, hold_duration_ms, updated_at
		FROM engine_config WHERE id = 1
	`).Scan(&row.SampleRate, &row.Gain, &row.RMSThreshold, &row.ClarityThreshold, &row.HoldDurationMs, &row.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load engine config: %w", err)
	}
	return &row, nil
}

// RecordCalibration appends a completed calibration wizard run to the
// history table.
func (s *Store) RecordCalibration(phase string, value float64) error {
	_, err := s.db.Exec(`
		INSERT INTO calibration_history (phase, value) VALUES (?, ?)
	`, phase, value)
	if err != nil {
		return fmt.Errorf("failed to record calibration: %w", err)
	}
	return nil
}

// GetCalibrationHistory returns the most recent calibration runs, newest
// first.
func (s *Store) GetCalibrationHistory(limit int) ([]CalibrationRecord, error) {
	query := `SELECT phase, value, recorded_at FROM calibration_history ORDER BY recorded_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration history: %w", err)
	}
	defer rows.Close()

	var out []CalibrationRecord
	for rows.Next() {
		var rec CalibrationRecord
		if err := rows.Scan(&rec.Phase, &rec.Value, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan calibration record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
