package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

// Connection pragmas, applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

// Store is a SQLite backed implementation of the tracker's storage. It is
// safe for concurrent use.
type Store struct {
	db    *sql.DB
	path  string
	clock timeutil.Clock
	log   monitoring.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for row timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger. The default is monitoring.L().
func WithLogger(l monitoring.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Store{db: db, path: path, clock: timeutil.RealClock{}, log: monitoring.L()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug("store opened", "path", path)
	return s, nil
}

// DB returns the underlying handle, for read-only consoles.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) nowMillis() int64 { return s.clock.Now().UnixMilli() }

const upsertKV = `INSERT INTO kv (key, value, updated_unix_ms) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_unix_ms = excluded.updated_unix_ms`

func (s *Store) put(ctx context.Context, key, value string) error {
	err := retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, upsertKV, key, value, s.nowMillis())
		return err
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return v, true, nil
}

// calibrationPrefix is the LIKE pattern matching every field of mode.
// Mode names contain no LIKE wildcards.
func calibrationPrefix(mode gaze.CalibrationMode) string {
	return calibration.Key(mode, "")
}

// SaveCalibrationData replaces the stored record for mode and appends the
// data to the calibration history. Both happen in one transaction.
func (s *Store) SaveCalibrationData(ctx context.Context, mode gaze.CalibrationMode, data gaze.CalibrationData) error {
	if data.Mode != mode {
		return fmt.Errorf("save calibration: %s data under mode %s", data.Mode, mode)
	}
	rec, err := calibration.Encode(data)
	if err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	id := newHistoryID()

	err = retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		now := s.nowMillis()
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key LIKE ?`, calibrationPrefix(mode)+"%"); err != nil {
			return err
		}
		fields := rec.Map()
		for _, f := range calibration.Fields {
			if _, err := tx.ExecContext(ctx, upsertKV, calibration.Key(mode, f), fields[f], now); err != nil {
				return err
			}
		}
		if err := insertHistory(ctx, tx, id, data, rec, now); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		s.log.Error("save calibration failed", err, "mode", mode.String())
		return fmt.Errorf("save calibration: %w", err)
	}
	s.log.Info("calibration saved", "mode", mode.String(), "history_id", id,
		"calibration_error", data.CalibrationError)
	return nil
}

// LoadCalibrationData returns the stored record for mode, gaze.ErrNotFound
// when there is none, or an error wrapping gaze.ErrCorruptRecord when the
// stored fields do not form a valid record.
func (s *Store) LoadCalibrationData(ctx context.Context, mode gaze.CalibrationMode) (gaze.CalibrationData, error) {
	prefix := calibrationPrefix(mode)
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE key LIKE ?`, prefix+"%")
	if err != nil {
		return gaze.CalibrationData{}, fmt.Errorf("load calibration: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]string, len(calibration.Fields))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return gaze.CalibrationData{}, fmt.Errorf("load calibration: %w", err)
		}
		fields[strings.TrimPrefix(key, prefix)] = value
	}
	if err := rows.Err(); err != nil {
		return gaze.CalibrationData{}, fmt.Errorf("load calibration: %w", err)
	}
	if len(fields) == 0 {
		return gaze.CalibrationData{}, fmt.Errorf("calibration %s: %w", mode, gaze.ErrNotFound)
	}

	rec, err := calibration.RecordFromMap(fields)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	return calibration.Decode(rec)
}

// DeleteCalibrationData removes the stored record for mode. History rows
// are kept.
func (s *Store) DeleteCalibrationData(ctx context.Context, mode gaze.CalibrationMode) error {
	err := retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key LIKE ?`, calibrationPrefix(mode)+"%")
		return err
	})
	if err != nil {
		return fmt.Errorf("delete calibration %s: %w", mode, err)
	}
	s.log.Info("calibration deleted", "mode", mode.String())
	return nil
}

// SaveString stores value under key.
func (s *Store) SaveString(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value)
}

// LoadString returns the value under key, or def when absent.
func (s *Store) LoadString(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

func (s *Store) SaveFloat(ctx context.Context, key string, value float64) error {
	return s.put(ctx, key, strconv.FormatFloat(value, 'g', -1, 64))
}

func (s *Store) LoadFloat(ctx context.Context, key string, def float64) (float64, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptValue, key, err)
	}
	return f, nil
}

func (s *Store) SaveBool(ctx context.Context, key string, value bool) error {
	return s.put(ctx, key, strconv.FormatBool(value))
}

func (s *Store) LoadBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptValue, key, err)
	}
	return b, nil
}

func (s *Store) SaveInt(ctx context.Context, key string, value int) error {
	return s.put(ctx, key, strconv.Itoa(value))
}

func (s *Store) LoadInt(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptValue, key, err)
	}
	return n, nil
}
