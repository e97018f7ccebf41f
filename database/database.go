package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lucsky/cuid"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/database/db"
	"github.com/ddp-org/detectbot/ddp"
	"github.com/ddp-org/detectbot/model"
)

type Database struct {
	connString string
	pool       *pgxpool.Pool
}

func NewDatabase(connString string) *Database {
	return &Database{
		connString: connString,
	}
}

func (d *Database) Connect(ctx context.Context) error {
	var err error
	d.pool, err = pgxpool.New(ctx, d.connString)
	if err != nil {
		return err
	}
	return nil
}

func (d *Database) Disconnect() {
	d.pool.Close()
}

func (d *Database) AddSubmission(ctx context.Context, kind model.SourceKind, source string, mode analysis.Mode) (string, error) {
	id := cuid.New()
	_, err := d.pool.Exec(ctx, `
	INSERT INTO submission_queue (id, kind, source, mode, media_id, enqueued) VALUES ($1, $2, $3, $4, $5, $6)`,
		id,
		kind,
		source,
		mode,
		"",
		time.Now().UTC(), // the DB stores timezones and assumes UTC
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// SetSubmissionMedia records the backend handle once a queued item has
// been submitted, so a retried run doesn't submit the same source
// twice.
func (d *Database) SetSubmissionMedia(ctx context.Context, submissionID string, mediaID ddp.MediaID) error {
	_, err := d.pool.Exec(ctx, `
	UPDATE submission_queue SET media_id = $1 WHERE id = $2`,
		mediaID,
		submissionID,
	)
	if err != nil {
		return err
	}
	return nil
}

func (d *Database) DeleteSubmission(ctx context.Context, submissionID string) error {
	// don't really care about the result, as long as this succeeds
	_, err := d.pool.Exec(ctx, `
	DELETE FROM submission_queue WHERE id = $1`,
		submissionID,
	)
	if err != nil {
		return err
	}
	return nil
}

func (d *Database) GetPendingSubmissions(ctx context.Context) ([]model.Submission, error) {
	var submissions []model.Submission
	var raws []db.SubmissionQueue
	rows, err := d.pool.Query(ctx, `
	SELECT
		id,
		kind,
		source,
		mode,
		media_id,
		enqueued
	FROM submission_queue
	ORDER BY enqueued ASC`,
	)
	if err != nil {
		return nil, err
	}

	raws, err = pgx.CollectRows(rows, pgx.RowToStructByName[db.SubmissionQueue])
	if err != nil {
		return nil, err
	}

	for _, raw := range raws {
		submission, err := model.SubmissionFromQueue(raw)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *submission)
	}

	return submissions, nil
}

func (d *Database) AddHistory(ctx context.Context, source string, resultID ddp.ResultID, verdict analysis.Verdict, summary string, visualURL string) (string, error) {
	id := cuid.New()
	_, err := d.pool.Exec(ctx, `
	INSERT INTO analysis_history (id, source, result_id, verdict, summary, visual_url, analyzed) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		source,
		resultID,
		verdict,
		summary,
		visualURL,
		time.Now().UTC(), // the DB stores timezones and assumes UTC
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *Database) FindHistoryBySource(ctx context.Context, source string) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord
	var raws []db.AnalysisHistory
	rows, err := d.pool.Query(ctx, `
	SELECT
		id,
		source,
		result_id,
		verdict,
		summary,
		visual_url,
		analyzed
	FROM analysis_history
	WHERE lower(source) = lower($1)
	ORDER BY analyzed DESC`,
		source,
	)
	if err != nil {
		return nil, err
	}

	raws, err = pgx.CollectRows(rows, pgx.RowToStructByName[db.AnalysisHistory])
	if err != nil {
		return nil, err
	}

	for _, raw := range raws {
		records = append(records, *model.HistoryFromRow(raw))
	}

	return records, nil
}

// MarkReported claims the right to report a result. Returns true only
// for the first caller per result id; the conflict target makes the
// claim idempotent across retries and concurrent runs.
func (d *Database) MarkReported(ctx context.Context, resultID ddp.ResultID) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
	INSERT INTO report_mark (result_id, reported) VALUES ($1, $2)
	ON CONFLICT (result_id) DO NOTHING`,
		resultID,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) IsReported(ctx context.Context, resultID ddp.ResultID) (bool, error) {
	var id string
	err := d.pool.QueryRow(ctx, `
	SELECT result_id FROM report_mark WHERE result_id = $1`,
		resultID,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
