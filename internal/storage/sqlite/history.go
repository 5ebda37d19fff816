package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
)

// HistoryEntry is one saved calibration.
type HistoryEntry struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Data      gaze.CalibrationData `json:"data"`
}

func newHistoryID() string { return uuid.New().String() }

func insertHistory(ctx context.Context, tx *sql.Tx, id string, data gaze.CalibrationData, rec calibration.Record, now int64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO calibration_history (
			id, mode, transform_x, transform_y, screen_width, screen_height,
			calibration_error, created_unix_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Mode, rec.TransformX, rec.TransformY, data.ScreenWidth, data.ScreenHeight,
		data.CalibrationError, now,
	)
	return err
}

// History returns saved calibrations for mode, newest first. A limit of
// zero or less returns all of them. Rows that no longer decode are skipped.
func (s *Store) History(ctx context.Context, mode gaze.CalibrationMode, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
			id, mode, transform_x, transform_y, screen_width, screen_height,
			calibration_error, created_unix_ms
		FROM calibration_history
		WHERE mode = ?
		ORDER BY created_unix_ms DESC, rowid DESC
		LIMIT ?`, mode.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query calibration history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			id            string
			rec           calibration.Record
			width, height int
			calErr        float64
			created       int64
		)
		if err := rows.Scan(&id, &rec.Mode, &rec.TransformX, &rec.TransformY,
			&width, &height, &calErr, &created); err != nil {
			return nil, fmt.Errorf("scan calibration history: %w", err)
		}
		rec.ScreenWidth = strconv.Itoa(width)
		rec.ScreenHeight = strconv.Itoa(height)
		rec.CalibrationError = strconv.FormatFloat(calErr, 'g', -1, 64)

		data, err := calibration.Decode(rec)
		if err != nil {
			s.log.Warn("skipping calibration history row", "id", id, "error", err)
			continue
		}
		out = append(out, HistoryEntry{ID: id, CreatedAt: time.UnixMilli(created).UTC(), Data: data})
	}
	return out, rows.Err()
}

// Restore makes history entry id the active calibration of its mode, which
// also appends it to the history again. It returns the restored data, or an
// error wrapping gaze.ErrNotFound.
func (s *Store) Restore(ctx context.Context, id string) (gaze.CalibrationData, error) {
	var (
		rec           calibration.Record
		width, height int
		calErr        float64
	)
	err := s.db.QueryRowContext(ctx, `SELECT
			mode, transform_x, transform_y, screen_width, screen_height, calibration_error
		FROM calibration_history WHERE id = ?`, id).
		Scan(&rec.Mode, &rec.TransformX, &rec.TransformY, &width, &height, &calErr)
	if errors.Is(err, sql.ErrNoRows) {
		return gaze.CalibrationData{}, fmt.Errorf("calibration history %s: %w", id, gaze.ErrNotFound)
	}
	if err != nil {
		return gaze.CalibrationData{}, fmt.Errorf("query calibration history: %w", err)
	}
	rec.ScreenWidth = strconv.Itoa(width)
	rec.ScreenHeight = strconv.Itoa(height)
	rec.CalibrationError = strconv.FormatFloat(calErr, 'g', -1, 64)

	data, err := calibration.Decode(rec)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	if err := s.SaveCalibrationData(ctx, data.Mode, data); err != nil {
		return gaze.CalibrationData{}, err
	}
	return data, nil
}
