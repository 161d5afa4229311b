package submissions

import (
	"context"
	"database/sql"
	"fmt"

	"schoolsite/pkg/models"
)

const (
	StatusForwarded = "forwarded"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

// Repo is the local ledger of everything forwarded to the CMS.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Record(ctx context.Context, s models.Submission) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO submissions (kind, cms_id, status, error)
		VALUES (?, ?, ?, ?)
	`, s.Kind, s.CMSID, s.Status, s.Error)
	if err != nil {
		return 0, fmt.Errorf("record submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record submission id: %w", err)
	}
	return id, nil
}

type ListQuery struct {
	Kind   string
	Status string
	Limit  int
	Offset int
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Submission, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, kind, cms_id, status, error, created_at
		FROM submissions
		WHERE (? = '' OR kind = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, q.Kind, q.Kind, q.Status, q.Status, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := []models.Submission{}
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.Kind, &s.CMSID, &s.Status, &s.Error, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// Counts returns the number of submissions per kind and status.
func (r *Repo) Counts(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT kind, status, COUNT(*)
		FROM submissions
		GROUP BY kind, status
	`)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	defer rows.Close()

	out := map[string]map[string]int{}
	for rows.Next() {
		var kind, status string
		var n int
		if err := rows.Scan(&kind, &status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		if out[kind] == nil {
			out[kind] = map[string]int{}
		}
		out[kind][status] = n
	}
	return out, rows.Err()
}
