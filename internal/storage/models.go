package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User is the owner of resumes and interviews. Authentication lives outside
// this service; records here only anchor ownership.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
}

// Resume is an ingested resume: the raw extracted text plus the structured
// fields the oracle produced (or the placeholder record when parsing failed).
type Resume struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	FileName   string
	RawText    string
	ParsedData json.RawMessage
	CreatedAt  time.Time
}

// JobDescription is a parsed job posting an interview runs against.
type JobDescription struct {
	ID         uuid.UUID
	Title      string
	Company    string
	RawText    string
	ParsedData json.RawMessage
	CreatedAt  time.Time
}

// Interview is the durable system of record for one mock interview. The
// transcript mirrors the live session after every turn; the evaluation is
// written once at completion.
type Interview struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	JobDescriptionID uuid.UUID
	Status           string
	SkillGapAnalysis json.RawMessage
	Transcript       json.RawMessage
	Evaluation       json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
