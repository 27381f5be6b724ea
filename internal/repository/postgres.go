package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
)

type pgDocumentStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresDocumentStore returns a DocumentStore over a pgx pool.
func NewPostgresDocumentStore(pool *pgxpool.Pool, log *slog.Logger) DocumentStore {
	return &pgDocumentStore{pool: pool, log: log}
}

func (s *pgDocumentStore) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = constants.StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, patient_id, filename, file_type, file_size, storage_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.UserID, doc.PatientID, doc.Filename, doc.FileType,
		doc.FileSize, doc.StoragePath, string(doc.Status), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		s.log.Error("document create failed", "document_id", doc.ID, "error", err)
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *pgDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var d Document
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, patient_id, filename, file_type, file_size, storage_path, status, created_at, updated_at
		FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.UserID, &d.PatientID, &d.Filename, &d.FileType,
		&d.FileSize, &d.StoragePath, &status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	d.Status = constants.DocumentStatus(status)
	return &d, nil
}

// BeginProcessing is the compare-and-swap that keeps at most one extraction
// attempt in flight per document. A concurrent second request observes zero
// affected rows. Terminal states may be re-entered: a brand-new request on a
// completed or failed document starts a fresh attempt.
func (s *pgDocumentStore) BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> $2`,
		id, string(constants.StatusProcessing),
	)
	if err != nil {
		s.log.Error("document begin-processing failed", "document_id", id, "error", err)
		return false, fmt.Errorf("begin processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pgDocumentStore) SetStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		s.log.Error("document status update failed", "document_id", id, "status", status, "error", err)
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

type pgExtractionStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresExtractionStore returns an ExtractionStore over a pgx pool.
func NewPostgresExtractionStore(pool *pgxpool.Pool, log *slog.Logger) ExtractionStore {
	return &pgExtractionStore{pool: pool, log: log}
}

func (s *pgExtractionStore) Insert(ctx context.Context, x *Extraction) error {
	if x.ID == uuid.Nil {
		x.ID = uuid.New()
	}
	x.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO extractions (id, document_id, user_id, extraction_data, summary, birads_score, processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		x.ID, x.DocumentID, x.UserID, x.Data, x.Summary, x.BiradsScore, x.ProcessingTimeMs, x.CreatedAt,
	)
	if err != nil {
		s.log.Error("extraction insert failed", "document_id", x.DocumentID, "error", err)
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (s *pgExtractionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ExtractionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, d.filename, e.summary, e.birads_score, e.processing_time_ms, e.created_at
		FROM extractions e
		JOIN documents d ON d.id = e.document_id
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}
	defer rows.Close()

	var out []*ExtractionSummary
	for rows.Next() {
		var e ExtractionSummary
		if err := rows.Scan(&e.ID, &e.DocumentFilename, &e.Summary, &e.BiradsScore, &e.ProcessingTimeMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type pgLogStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresLogStore returns a LogStore over a pgx pool.
func NewPostgresLogStore(pool *pgxpool.Pool, log *slog.Logger) LogStore {
	return &pgLogStore{pool: pool, log: log}
}

func (s *pgLogStore) InsertUsage(ctx context.Context, entry *UsageLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_logs (id, user_id, action, document_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Action, entry.DocumentID, entry.Metadata, entry.CreatedAt,
	)
	if err != nil {
		s.log.Error("usage log insert failed", "action", entry.Action, "error", err)
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

func (s *pgLogStore) InsertError(ctx context.Context, entry *ErrorLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO error_logs (id, user_id, document_id, error_type, error_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.DocumentID, entry.ErrorType, entry.ErrorMessage, entry.Metadata, entry.CreatedAt,
	)
	if err != nil {
		s.log.Error("error log insert failed", "error_type", entry.ErrorType, "error", err)
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

func (s *pgLogStore) UsageStats(ctx context.Context, userID uuid.UUID) (*UsageStats, error) {
	stats := &UsageStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM documents WHERE user_id = $1),
			(SELECT count(*) FROM documents WHERE user_id = $1 AND status = 'completed'),
			(SELECT count(*) FROM documents WHERE user_id = $1 AND status = 'failed'),
			(SELECT coalesce(avg(processing_time_ms), 0) FROM extractions WHERE user_id = $1)`,
		userID,
	).Scan(&stats.TotalDocuments, &stats.CompletedExtractions, &stats.FailedExtractions, &stats.AvgProcessingTimeMs)
	if err != nil {
		return nil, fmt.Errorf("usage stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, action, document_id, metadata, created_at
		FROM usage_logs WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 10`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l UsageLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.DocumentID, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		stats.RecentActivity = append(stats.RecentActivity, &l)
	}
	return stats, rows.Err()
}
