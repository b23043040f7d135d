// Package storage is the durable system of record: users, resumes, job
// descriptions and interview records in Postgres. Live turn-by-turn state
// lives in the session store, not here.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound signals that no record matched the query.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate signals a unique constraint violation.
var ErrDuplicate = errors.New("record already exists")

// Storage wraps a Postgres connection pool.
type Storage struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS resumes (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	file_name TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	parsed_data JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_descriptions (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	parsed_data JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interviews (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id),
	job_description_id UUID NOT NULL REFERENCES job_descriptions(id),
	status TEXT NOT NULL,
	skill_gap_analysis JSONB NOT NULL DEFAULT '[]',
	transcript JSONB NOT NULL DEFAULT '[]',
	evaluation JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema when missing.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const createUser = `
INSERT INTO users (id, name, email)
VALUES ($1, $2, $3)
RETURNING id, name, email, created_at
`

type CreateUserParams struct {
	ID    uuid.UUID
	Name  string
	Email string
}

func (s *Storage) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := s.db.QueryRowContext(ctx, createUser, arg.ID, arg.Name, arg.Email)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return User{}, ErrDuplicate
	}
	return u, err
}

const getUser = `
SELECT id, name, email, created_at
FROM users
WHERE id = $1
`

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.db.QueryRowContext(ctx, getUser, id)
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const createResume = `
INSERT INTO resumes (id, user_id, file_name, raw_text, parsed_data)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, file_name, raw_text, parsed_data, created_at
`

type CreateResumeParams struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	FileName   string
	RawText    string
	ParsedData json.RawMessage
}

func (s *Storage) CreateResume(ctx context.Context, arg CreateResumeParams) (Resume, error) {
	row := s.db.QueryRowContext(ctx, createResume, arg.ID, arg.UserID, arg.FileName, arg.RawText, arg.ParsedData)
	var r Resume
	err := row.Scan(&r.ID, &r.UserID, &r.FileName, &r.RawText, &r.ParsedData, &r.CreatedAt)
	return r, err
}

const getResume = `
SELECT id, user_id, file_name, raw_text, parsed_data, created_at
FROM resumes
WHERE id = $1 AND user_id = $2
`

func (s *Storage) GetResume(ctx context.Context, id, userID uuid.UUID) (Resume, error) {
	row := s.db.QueryRowContext(ctx, getResume, id, userID)
	var r Resume
	err := row.Scan(&r.ID, &r.UserID, &r.FileName, &r.RawText, &r.ParsedData, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	return r, err
}

const createJobDescription = `
INSERT INTO job_descriptions (id, title, company, raw_text, parsed_data)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, title, company, raw_text, parsed_data, created_at
`

type CreateJobDescriptionParams struct {
	ID         uuid.UUID
	Title      string
	Company    string
	RawText    string
	ParsedData json.RawMessage
}

func (s *Storage) CreateJobDescription(ctx context.Context, arg CreateJobDescriptionParams) (JobDescription, error) {
	row := s.db.QueryRowContext(ctx, createJobDescription, arg.ID, arg.Title, arg.Company, arg.RawText, arg.ParsedData)
	var jd JobDescription
	err := row.Scan(&jd.ID, &jd.Title, &jd.Company, &jd.RawText, &jd.ParsedData, &jd.CreatedAt)
	return jd, err
}

const getJobDescription = `
SELECT id, title, company, raw_text, parsed_data, created_at
FROM job_descriptions
WHERE id = $1
`

func (s *Storage) GetJobDescription(ctx context.Context, id uuid.UUID) (JobDescription, error) {
	row := s.db.QueryRowContext(ctx, getJobDescription, id)
	var jd JobDescription
	err := row.Scan(&jd.ID, &jd.Title, &jd.Company, &jd.RawText, &jd.ParsedData, &jd.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JobDescription{}, ErrNotFound
	}
	return jd, err
}

const createInterview = `
INSERT INTO interviews (id, user_id, job_description_id, status, skill_gap_analysis, transcript)
VALUES ($1, $2, $3, $4, $5, '[]')
RETURNING id, user_id, job_description_id, status, skill_gap_analysis, transcript, evaluation, created_at, updated_at
`

type CreateInterviewParams struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	JobDescriptionID uuid.UUID
	Status           string
	SkillGapAnalysis json.RawMessage
}

func (s *Storage) CreateInterview(ctx context.Context, arg CreateInterviewParams) (Interview, error) {
	row := s.db.QueryRowContext(ctx, createInterview, arg.ID, arg.UserID, arg.JobDescriptionID, arg.Status, arg.SkillGapAnalysis)
	return scanInterview(row)
}

const getInterview = `
SELECT id, user_id, job_description_id, status, skill_gap_analysis, transcript, evaluation, created_at, updated_at
FROM interviews
WHERE id = $1 AND user_id = $2
`

func (s *Storage) GetInterview(ctx context.Context, id, userID uuid.UUID) (Interview, error) {
	row := s.db.QueryRowContext(ctx, getInterview, id, userID)
	iv, err := scanInterview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Interview{}, ErrNotFound
	}
	return iv, err
}

const updateInterviewTranscript = `
UPDATE interviews
SET transcript = $1, updated_at = now()
WHERE id = $2
`

func (s *Storage) UpdateInterviewTranscript(ctx context.Context, id uuid.UUID, transcript json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, updateInterviewTranscript, transcript, id)
	return err
}

const completeInterview = `
UPDATE interviews
SET status = $1, evaluation = $2, updated_at = now()
WHERE id = $3
`

// CompleteInterview marks the record COMPLETED. A nil evaluation is allowed:
// the interview still completes when report generation failed.
func (s *Storage) CompleteInterview(ctx context.Context, id uuid.UUID, status string, evaluation json.RawMessage) error {
	var eval any
	if len(evaluation) > 0 {
		eval = []byte(evaluation)
	}
	_, err := s.db.ExecContext(ctx, completeInterview, status, eval, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (Interview, error) {
	var iv Interview
	var evaluation sql.Null[[]byte]
	err := row.Scan(
		&iv.ID,
		&iv.UserID,
		&iv.JobDescriptionID,
		&iv.Status,
		&iv.SkillGapAnalysis,
		&iv.Transcript,
		&evaluation,
		&iv.CreatedAt,
		&iv.UpdatedAt,
	)
	if evaluation.Valid {
		iv.Evaluation = json.RawMessage(evaluation.V)
	}
	return iv, err
}
