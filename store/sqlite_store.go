package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunRecord is a journal entry of a single pipeline run
type RunRecord struct {
	RunID    string
	VideoRef string
	Stage    string
	Outcome  string
	Detail   string
	Duration time.Duration
}

// RunJournal is implemented by stores able to keep history of runs
type RunJournal interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, videoRef string) ([]RunRecord, error)
}

// SQLiteStore keeps artifacts and run journal in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) database at path and applies pending migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open sqlite database %s", path)
	}
	// Single writer keeps SQLite away from "database is locked" errors
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't set busy timeout")
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "Can't read embedded migrations")
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "Can't create sqlite migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "Can't create migrate instance")
	}
	// Note: m is not closed here since it would close the underlying DB connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, videoRef string, kind Kind) (bool, error) {
	if err := validate(videoRef, kind); err != nil {
		return false, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE video_ref = ? AND kind = ?`,
		videoRef, string(kind),
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "Can't check artifact")
	}
	return count > 0, nil
}

func (s *SQLiteStore) Get(ctx context.Context, videoRef string, kind Kind) ([]byte, error) {
	if err := validate(videoRef, kind); err != nil {
		return nil, err
	}
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM artifacts WHERE video_ref = ? AND kind = ?`,
		videoRef, string(kind),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%s/%s", videoRef, kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Can't read artifact")
	}
	return body, nil
}

func (s *SQLiteStore) Put(ctx context.Context, videoRef string, kind Kind, body []byte) error {
	if err := validate(videoRef, kind); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (video_ref, kind, body) VALUES (?, ?, ?) ON CONFLICT (video_ref, kind) DO NOTHING`,
		videoRef, string(kind), body,
	)
	if err != nil {
		return errors.Wrap(err, "Can't insert artifact")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "Can't get affected rows")
	}
	if affected == 0 {
		return errors.Wrapf(ErrExists, "%s/%s", videoRef, kind)
	}
	return nil
}

// RecordRun appends a run to the journal
func (s *SQLiteStore) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, video_ref, stage, outcome, detail, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.VideoRef, rec.Stage, rec.Outcome, rec.Detail, rec.Duration.Milliseconds(),
	)
	return errors.Wrap(err, "Can't record run")
}

// ListRuns returns journal entries of a video, oldest first
func (s *SQLiteStore) ListRuns(ctx context.Context, videoRef string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, video_ref, stage, outcome, detail, duration_ms FROM runs WHERE video_ref = ? ORDER BY rowid`,
		videoRef,
	)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query runs")
	}
	defer rows.Close()

	records := make([]RunRecord, 0)
	for rows.Next() {
		var rec RunRecord
		var durationMs int64
		if err := rows.Scan(&rec.RunID, &rec.VideoRef, &rec.Stage, &rec.Outcome, &rec.Detail, &durationMs); err != nil {
			return nil, errors.Wrap(err, "Can't scan run")
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "Can't iterate runs")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
