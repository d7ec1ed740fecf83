package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/judge-engine/internal/models"
)

// PostgresRepository implements AssignmentRepository using PostgreSQL.
// Each assignment is stored as one JSONB document next to its key columns.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	// Set pool configuration
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the underlying pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const assignmentColumns = `id, hackathon_id, judge_email, status, document, version, created_at, updated_at`

// CreateAssignment inserts a new assignment with version 1
func (r *PostgresRepository) CreateAssignment(ctx context.Context, a *models.JudgeAssignment) error {
	a.Version = 1
	document, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal assignment: %w", err)
	}

	query := `
		INSERT INTO judge_assignments (` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		string(a.ID),
		string(a.HackathonID),
		models.NormalizeEmail(a.Judge.Email),
		string(a.Status),
		document,
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		a.Version = 0
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

// GetAssignment retrieves an assignment by id
func (r *PostgresRepository) GetAssignment(ctx context.Context, id models.AssignmentID) (*models.JudgeAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM judge_assignments WHERE id = $1`
	return r.getOne(ctx, query, string(id))
}

// FindByEmail retrieves the assignment of a judge within a hackathon
func (r *PostgresRepository) FindByEmail(ctx context.Context, hackathonID models.HackathonID, email string) (*models.JudgeAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM judge_assignments WHERE hackathon_id = $1 AND judge_email = $2`
	return r.getOne(ctx, query, string(hackathonID), models.NormalizeEmail(email))
}

// FindActiveByHackathon returns the active assignments of a hackathon
func (r *PostgresRepository) FindActiveByHackathon(ctx context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM judge_assignments
		WHERE hackathon_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, query, string(hackathonID), string(models.AssignmentActive))
}

// ListByHackathon returns every assignment of a hackathon
func (r *PostgresRepository) ListByHackathon(ctx context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM judge_assignments
		WHERE hackathon_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, query, string(hackathonID))
}

// SaveAssignment replaces the stored document if the version matches
func (r *PostgresRepository) SaveAssignment(ctx context.Context, a *models.JudgeAssignment) error {
	expected := a.Version
	a.Version = expected + 1
	document, err := json.Marshal(a)
	if err != nil {
		a.Version = expected
		return fmt.Errorf("failed to marshal assignment: %w", err)
	}

	query := `
		UPDATE judge_assignments
		SET judge_email = $2, status = $3, document = $4, version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $6
	`

	result, err := r.pool.Exec(ctx, query,
		string(a.ID),
		models.NormalizeEmail(a.Judge.Email),
		string(a.Status),
		document,
		a.UpdatedAt,
		expected,
	)
	if err != nil {
		a.Version = expected
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	if result.RowsAffected() == 0 {
		a.Version = expected
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM judge_assignments WHERE id = $1)`, string(a.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check assignment: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.JudgeAssignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.JudgeAssignment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.JudgeAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

// scanAssignment decodes a row; key columns win over the document copy
func scanAssignment(row pgx.Row) (*models.JudgeAssignment, error) {
	var (
		a                    models.JudgeAssignment
		id, hackathonID      string
		email, status        string
		document             []byte
		version              int64
		createdAt, updatedAt time.Time
	)

	if err := row.Scan(&id, &hackathonID, &email, &status, &document, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(document, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assignment document: %w", err)
	}

	a.ID = models.AssignmentID(id)
	a.HackathonID = models.HackathonID(hackathonID)
	if a.Judge.Email == "" {
		a.Judge.Email = email
	}
	a.Status = models.AssignmentStatus(status)
	a.Version = version
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
