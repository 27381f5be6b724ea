package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	patient_id TEXT,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	extraction_data BLOB NOT NULL,
	summary TEXT,
	birads_score INTEGER,
	processing_time_ms INTEGER,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS usage_logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	document_id TEXT,
	metadata BLOB,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS error_logs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	document_id TEXT,
	error_type TEXT NOT NULL,
	error_message TEXT NOT NULL,
	metadata BLOB,
	created_at TIMESTAMP NOT NULL
);
`

// SQLiteStores bundles the embedded-store implementations. Used for local
// single-binary deployments and in tests; Postgres is the production store.
type SQLiteStores struct {
	Documents   DocumentStore
	Extractions ExtractionStore
	Logs        LogStore

	db *sql.DB
}

// OpenSQLite opens (and bootstraps) an embedded SQLite database. Pass
// ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteStores, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers, which sqlite requires anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap sqlite schema: %w", err)
	}

	log.Info("sqlite store ready", "path", path)
	return &SQLiteStores{
		Documents:   &sqliteDocumentStore{db: db, log: log},
		Extractions: &sqliteExtractionStore{db: db, log: log},
		Logs:        &sqliteLogStore{db: db, log: log},
		db:          db,
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStores) Close() error {
	return s.db.Close()
}

// Ping reports store liveness.
func (s *SQLiteStores) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type sqliteDocumentStore struct {
	db  *sql.DB
	log *slog.Logger
}

func (s *sqliteDocumentStore) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = constants.StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt, doc.UpdatedAt = now, now

	var patientID any
	if doc.PatientID != nil {
		patientID = doc.PatientID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, patient_id, filename, file_type, file_size, storage_path, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID.String(), doc.UserID.String(), patientID, doc.Filename, doc.FileType,
		doc.FileSize, doc.StoragePath, string(doc.Status), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		s.log.Error("document create failed", "document_id", doc.ID, "error", err)
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *sqliteDocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var d Document
	var docID, userID, status string
	var patientID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, patient_id, filename, file_type, file_size, storage_path, status, created_at, updated_at
		FROM documents WHERE id = ?`, id.String(),
	).Scan(&docID, &userID, &patientID, &d.Filename, &d.FileType,
		&d.FileSize, &d.StoragePath, &status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	if d.ID, err = uuid.Parse(docID); err != nil {
		return nil, fmt.Errorf("parse document id: %w", err)
	}
	if d.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if patientID.Valid {
		pid, err := uuid.Parse(patientID.String)
		if err != nil {
			return nil, fmt.Errorf("parse patient id: %w", err)
		}
		d.PatientID = &pid
	}
	d.Status = constants.DocumentStatus(status)
	return &d, nil
}

func (s *sqliteDocumentStore) BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ?
		WHERE id = ? AND status <> ?`,
		string(constants.StatusProcessing), time.Now().UTC(), id.String(), string(constants.StatusProcessing),
	)
	if err != nil {
		s.log.Error("document begin-processing failed", "document_id", id, "error", err)
		return false, fmt.Errorf("begin processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("begin processing: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteDocumentStore) SetStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id.String(),
	)
	if err != nil {
		s.log.Error("document status update failed", "document_id", id, "status", status, "error", err)
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

type sqliteExtractionStore struct {
	db  *sql.DB
	log *slog.Logger
}

func (s *sqliteExtractionStore) Insert(ctx context.Context, x *Extraction) error {
	if x.ID == uuid.Nil {
		x.ID = uuid.New()
	}
	x.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extractions (id, document_id, user_id, extraction_data, summary, birads_score, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		x.ID.String(), x.DocumentID.String(), x.UserID.String(), []byte(x.Data),
		x.Summary, x.BiradsScore, x.ProcessingTimeMs, x.CreatedAt,
	)
	if err != nil {
		s.log.Error("extraction insert failed", "document_id", x.DocumentID, "error", err)
		return fmt.Errorf("insert extraction: %w", err)
	}
	return nil
}

func (s *sqliteExtractionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*ExtractionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, d.filename, e.summary, e.birads_score, e.processing_time_ms, e.created_at
		FROM extractions e
		JOIN documents d ON d.id = e.document_id
		WHERE e.user_id = ?
		ORDER BY e.created_at DESC`, userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list extractions: %w", err)
	}
	defer rows.Close()

	var out []*ExtractionSummary
	for rows.Next() {
		var e ExtractionSummary
		var id string
		if err := rows.Scan(&id, &e.DocumentFilename, &e.Summary, &e.BiradsScore, &e.ProcessingTimeMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse extraction id: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type sqliteLogStore struct {
	db  *sql.DB
	log *slog.Logger
}

func (s *sqliteLogStore) InsertUsage(ctx context.Context, entry *UsageLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	var docID any
	if entry.DocumentID != nil {
		docID = entry.DocumentID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_logs (id, user_id, action, document_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.UserID.String(), entry.Action, docID, []byte(entry.Metadata), entry.CreatedAt,
	)
	if err != nil {
		s.log.Error("usage log insert failed", "action", entry.Action, "error", err)
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

func (s *sqliteLogStore) InsertError(ctx context.Context, entry *ErrorLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now().UTC()

	var docID any
	if entry.DocumentID != nil {
		docID = entry.DocumentID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO error_logs (id, user_id, document_id, error_type, error_message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.UserID.String(), docID, entry.ErrorType, entry.ErrorMessage, []byte(entry.Metadata), entry.CreatedAt,
	)
	if err != nil {
		s.log.Error("error log insert failed", "error_type", entry.ErrorType, "error", err)
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

func (s *sqliteLogStore) UsageStats(ctx context.Context, userID uuid.UUID) (*UsageStats, error) {
	stats := &UsageStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM documents WHERE user_id = ?1),
			(SELECT count(*) FROM documents WHERE user_id = ?1 AND status = 'completed'),
			(SELECT count(*) FROM documents WHERE user_id = ?1 AND status = 'failed'),
			(SELECT coalesce(avg(processing_time_ms), 0) FROM extractions WHERE user_id = ?1)`,
		userID.String(),
	).Scan(&stats.TotalDocuments, &stats.CompletedExtractions, &stats.FailedExtractions, &stats.AvgProcessingTimeMs)
	if err != nil {
		return nil, fmt.Errorf("usage stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, document_id, metadata, created_at
		FROM usage_logs WHERE user_id = ?
		ORDER BY created_at DESC LIMIT 10`, userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l UsageLog
		var id, uid string
		var docID sql.NullString
		var meta []byte
		if err := rows.Scan(&id, &uid, &l.Action, &docID, &meta, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		if l.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse log id: %w", err)
		}
		if l.UserID, err = uuid.Parse(uid); err != nil {
			return nil, fmt.Errorf("parse log user id: %w", err)
		}
		if docID.Valid {
			d, err := uuid.Parse(docID.String)
			if err != nil {
				return nil, fmt.Errorf("parse log document id: %w", err)
			}
			l.DocumentID = &d
		}
		l.Metadata = meta
		stats.RecentActivity = append(stats.RecentActivity, &l)
	}
	return stats, rows.Err()
}
