package jobs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	video_path TEXT NOT NULL,
	csv_path TEXT NOT NULL,
	state TEXT NOT NULL,
	frames_done INTEGER NOT NULL,
	frames_total INTEGER NOT NULL,
	error TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);`

// jobRow flattens Job for SQLite; timestamps are stored as Unix milliseconds
// so the round trip does not depend on driver time parsing.
type jobRow struct {
	ID          string `db:"id"`
	ContentHash string `db:"content_hash"`
	VideoPath   string `db:"video_path"`
	CSVPath     string `db:"csv_path"`
	State       string `db:"state"`
	FramesDone  int    `db:"frames_done"`
	FramesTotal int    `db:"frames_total"`
	Error       string `db:"error"`
	CreatedAtMs int64  `db:"created_at_ms"`
	UpdatedAtMs int64  `db:"updated_at_ms"`
}

func rowFromJob(job Job) jobRow {
	return jobRow{
		ID:          job.ID,
		ContentHash: job.ContentHash,
		VideoPath:   job.VideoPath,
		CSVPath:     job.CSVPath,
		State:       string(job.State),
		FramesDone:  job.FramesDone,
		FramesTotal: job.FramesTotal,
		Error:       job.Error,
		CreatedAtMs: job.CreatedAt.UnixMilli(),
		UpdatedAtMs: job.UpdatedAt.UnixMilli(),
	}
}

func (r jobRow) job() Job {
	return Job{
		ID:          r.ID,
		ContentHash: r.ContentHash,
		VideoPath:   r.VideoPath,
		CSVPath:     r.CSVPath,
		State:       State(r.State),
		FramesDone:  r.FramesDone,
		FramesTotal: r.FramesTotal,
		Error:       r.Error,
		CreatedAt:   time.UnixMilli(r.CreatedAtMs).UTC(),
		UpdatedAt:   time.UnixMilli(r.UpdatedAtMs).UTC(),
	}
}

// SQLiteStore persists jobs in a single-file database so job history survives
// server restarts. The driver is pure Go; no C toolchain is needed.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, pfx.Err(err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(job Job) error {
	_, err := s.db.NamedExec(`
		INSERT INTO jobs (id, content_hash, video_path, csv_path, state, frames_done, frames_total, error, created_at_ms, updated_at_ms)
		VALUES (:id, :content_hash, :video_path, :csv_path, :state, :frames_done, :frames_total, :error, :created_at_ms, :updated_at_ms)`,
		rowFromJob(job))

	return pfx.Err(err)
}

func (s *SQLiteStore) Get(id string) (Job, bool, error) {
	var row jobRow
	err := s.db.Get(&row, `SELECT * FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, pfx.Err(err)
	}

	return row.job(), true, nil
}

func (s *SQLiteStore) SetState(id string, state State, errMsg string) error {
	res, err := s.db.Exec(`UPDATE jobs SET state = ?, error = ?, updated_at_ms = ? WHERE id = ?`,
		string(state), errMsg, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return pfx.Err(err)
	}

	return rowTouched(res, id)
}

func (s *SQLiteStore) SetProgress(id string, done, total int) error {
	res, err := s.db.Exec(`UPDATE jobs SET frames_done = ?, frames_total = ?, updated_at_ms = ? WHERE id = ?`,
		done, total, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return pfx.Err(err)
	}

	return rowTouched(res, id)
}

func (s *SQLiteStore) List() ([]Job, error) {
	var rows []jobRow
	if err := s.db.Select(&rows, `SELECT * FROM jobs ORDER BY created_at_ms DESC, id ASC`); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.job())
	}

	return out, nil
}

func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	return pfx.Err(err)
}

func (s *SQLiteStore) Close() error {
	return pfx.Err(s.db.Close())
}

func rowTouched(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return pfx.Err(err)
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", id)
	}

	return nil
}
