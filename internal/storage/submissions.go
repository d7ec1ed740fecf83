package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/terra-clan/judge-engine/internal/models"
)

// SQLSubmissionRepository reads submissions from the host application's
// database through database/sql and the lib/pq driver.
type SQLSubmissionRepository struct {
	db *sql.DB
}

// NewSQLSubmissionRepository opens and pings the submissions database
func NewSQLSubmissionRepository(ctx context.Context, dsn string) (*SQLSubmissionRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open submissions database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping submissions database: %w", err)
	}

	return NewSQLSubmissionRepositoryFromDB(db), nil
}

// NewSQLSubmissionRepositoryFromDB wraps an existing handle
func NewSQLSubmissionRepositoryFromDB(db *sql.DB) *SQLSubmissionRepository {
	return &SQLSubmissionRepository{db: db}
}

const submissionColumns = `id, hackathon_id, team_name, title, problem_statement_id, status, submitted_at`

// FindByHackathon returns every submission of a hackathon, oldest first
func (r *SQLSubmissionRepository) FindByHackathon(ctx context.Context, hackathonID models.HackathonID) ([]models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE hackathon_id = $1
		ORDER BY submitted_at ASC NULLS LAST, id ASC
	`
	return r.query(ctx, query, string(hackathonID))
}

// FindByIDs returns the submissions matching ids
func (r *SQLSubmissionRepository) FindByIDs(ctx context.Context, ids []models.SubmissionID) ([]models.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE id = ANY($1)
		ORDER BY submitted_at ASC NULLS LAST, id ASC
	`
	return r.query(ctx, query, pq.Array(raw))
}

// Ping checks database connectivity
func (r *SQLSubmissionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database handle
func (r *SQLSubmissionRepository) Close() error {
	return r.db.Close()
}

func (r *SQLSubmissionRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		var (
			s           models.Submission
			id, hackID  string
			psID        sql.NullString
			status      string
			submittedAt sql.NullTime
		)

		if err := rows.Scan(&id, &hackID, &s.TeamName, &s.Title, &psID, &status, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		s.ID = models.SubmissionID(id)
		s.HackathonID = models.HackathonID(hackID)
		s.ProblemStatementID = models.ProblemStatementID(psID.String)
		s.Status = models.SubmissionStatus(status)
		if submittedAt.Valid {
			t := submittedAt.Time
			s.SubmittedAt = &t
		}

		submissions = append(submissions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}

	return submissions, nil
}
