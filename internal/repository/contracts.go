// Package repository holds the persistence collaborators the pipeline is
// built against: a document store with a conditional status update, an
// extraction store, and an append-only log store. Implementations exist for
// Postgres (pgx) and embedded SQLite.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
)

// Document is an uploaded report file. Status is mutated only by the
// pipeline: pending → processing → {completed, failed}.
type Document struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PatientID   *uuid.UUID
	Filename    string
	FileType    string
	FileSize    int64
	StoragePath string
	Status      constants.DocumentStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Extraction is the validated structured payload for a completed document,
// with a denormalized summary and BI-RADS score for fast listing. Immutable
// once written.
type Extraction struct {
	ID               uuid.UUID
	DocumentID       uuid.UUID
	UserID           uuid.UUID
	Data             json.RawMessage
	Summary          *string
	BiradsScore      *int
	ProcessingTimeMs *int64
	CreatedAt        time.Time
}

// ExtractionSummary is one row of a user's extraction listing (joined with
// the document for its filename).
type ExtractionSummary struct {
	ID               uuid.UUID
	DocumentFilename string
	Summary          *string
	BiradsScore      *int
	ProcessingTimeMs *int64
	CreatedAt        time.Time
}

// UsageLog is an append-only audit entry.
type UsageLog struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Action     string
	DocumentID *uuid.UUID
	Metadata   json.RawMessage
	CreatedAt  time.Time
}

// ErrorLog is an append-only failure entry carrying enough raw context to
// reproduce the failure offline.
type ErrorLog struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	DocumentID   *uuid.UUID
	ErrorType    string
	ErrorMessage string
	Metadata     json.RawMessage
	CreatedAt    time.Time
}

// UsageStats aggregates a user's pipeline activity.
type UsageStats struct {
	TotalDocuments       int         `json:"totalDocuments"`
	CompletedExtractions int         `json:"completedExtractions"`
	FailedExtractions    int         `json:"failedExtractions"`
	AvgProcessingTimeMs  float64     `json:"avgProcessingTime"`
	RecentActivity       []*UsageLog `json:"recentActivity"`
}

// DocumentStore is the document collaborator. BeginProcessing is the
// conditional update that serializes extraction attempts: it moves the row
// to processing only when no attempt is in flight, reporting whether this
// caller won the transition.
type DocumentStore interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error
}

// ExtractionStore persists validated extractions.
type ExtractionStore interface {
	Insert(ctx context.Context, x *Extraction) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ExtractionSummary, error)
}

// LogStore is the append-only audit trail. Entries are never mutated or
// deleted by the core.
type LogStore interface {
	InsertUsage(ctx context.Context, entry *UsageLog) error
	InsertError(ctx context.Context, entry *ErrorLog) error
	UsageStats(ctx context.Context, userID uuid.UUID) (*UsageStats, error)
}
