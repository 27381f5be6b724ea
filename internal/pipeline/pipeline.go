// Package pipeline drives a document from raw bytes to a stored structured
// extraction: admission via the document status machine, text extraction,
// model completion, validation, and the usage/error audit trail.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
	"github.com/RaphaelThineyUE/radiology-insight/internal/extract"
	"github.com/RaphaelThineyUE/radiology-insight/internal/llm"
	"github.com/RaphaelThineyUE/radiology-insight/internal/report"
	"github.com/RaphaelThineyUE/radiology-insight/internal/repository"
)

// ErrAlreadyProcessing is returned when the document lost the admission race:
// another extraction currently holds the processing status.
var ErrAlreadyProcessing = errors.New("document is already being processed")

// Request carries one extraction job.
type Request struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	FileName   string
	MIMEType   string
	Data       []byte
	APIKey     string
}

// Result is the outcome of a completed extraction.
type Result struct {
	Extraction       *report.RadiologyExtraction
	ProcessingTimeMs int64
	Warnings         []string
}

// Orchestrator owns the end-to-end extraction flow. Safe for concurrent use;
// per-document mutual exclusion is enforced by the store, not by locks here.
type Orchestrator struct {
	docs        repository.DocumentStore
	extractions repository.ExtractionStore
	logs        repository.LogStore
	extractor   extract.Extractor
	chat        llm.ChatClient

	maxInputChars int
	modelTimeout  time.Duration
	log           *slog.Logger
}

// Options tunes the orchestrator.
type Options struct {
	MaxInputChars int           // prompt input ceiling, 0 means default
	ModelTimeout  time.Duration // per-call completion deadline, 0 means default
}

func NewOrchestrator(
	docs repository.DocumentStore,
	extractions repository.ExtractionStore,
	logs repository.LogStore,
	extractor extract.Extractor,
	chat llm.ChatClient,
	opts Options,
	log *slog.Logger,
) *Orchestrator {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 48000
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 2 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		docs:          docs,
		extractions:   extractions,
		logs:          logs,
		extractor:     extractor,
		chat:          chat,
		maxInputChars: opts.MaxInputChars,
		modelTimeout:  opts.ModelTimeout,
		log:           log,
	}
}

// Process runs one extraction. Before admission any failure returns without
// side effects; after the document is moved to processing, every outcome
// lands it in a terminal status with a matching audit record.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	doc, err := o.docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc.UserID != req.UserID {
		return nil, common.ErrNotFound
	}

	admitted, err := o.docs.BeginProcessing(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("admit document: %w", err)
	}
	if !admitted {
		return nil, ErrAlreadyProcessing
	}

	// From here the document is ours. Detach from the caller's context so a
	// dropped client connection cannot strand the row in processing.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	o.logUsage(ctx, req, constants.ActionExtractionStarted, map[string]any{
		"filename":  req.FileName,
		"file_type": doc.FileType,
	})

	format := extract.DetectFormat(req.FileName, req.MIMEType)
	res, err := o.extractor.Extract(ctx, req.Data, format)
	var warnings []string
	if err != nil {
		if !errors.Is(err, extract.ErrUnreadablePackage) {
			return nil, o.fail(ctx, req, constants.ErrorTypeExtraction, err, nil)
		}
		// Corrupt archive: salvage what the sieve can read and press on.
		res = extract.Result{Text: extract.Sieve(req.Data), Method: extract.MethodPDFSieve}
		warnings = append(warnings, "document archive unreadable, recovered text via character sieve")
		o.log.Warn("pipeline.extract.degraded", "document_id", req.DocumentID, "error", err)
	}
	warnings = append(warnings, res.Warnings...)

	system, user := llm.BuildExtractionPrompts(res.Text, o.maxInputChars)

	callCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
	defer cancel()
	raw, err := o.chat.Complete(callCtx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		APIKey: req.APIKey,
	})
	if err != nil {
		return nil, o.fail(ctx, req, constants.ErrorTypeOpenAIAPI, err, nil)
	}

	extraction, canonical, err := report.ParseExtraction(raw)
	if err != nil {
		meta := map[string]any{"raw_response": raw}
		return nil, o.fail(ctx, req, constants.ErrorTypeParse, err, meta)
	}
	warnings = append(warnings, report.CheckEvidence(extraction, res.Text)...)

	elapsed := time.Since(start).Milliseconds()
	stored := &repository.Extraction{
		DocumentID:       req.DocumentID,
		UserID:           req.UserID,
		Data:             canonical,
		ProcessingTimeMs: &elapsed,
	}
	if extraction.Summary != "" {
		s := extraction.Summary
		stored.Summary = &s
	}
	if extraction.Birads.Value != nil {
		v := *extraction.Birads.Value
		stored.BiradsScore = &v
	}
	if err := o.extractions.Insert(ctx, stored); err != nil {
		return nil, o.fail(ctx, req, constants.ErrorTypeExtraction, err, nil)
	}

	if err := o.docs.SetStatus(ctx, req.DocumentID, constants.StatusCompleted); err != nil {
		// The extraction is stored; report the status slip but do not fail.
		o.log.Error("pipeline.status.completed_failed", "document_id", req.DocumentID, "error", err)
	}

	completedMeta := map[string]any{
		"processing_time_ms": elapsed,
		"findings_count":     len(extraction.Findings),
		"extraction_method":  res.Method,
	}
	if extraction.Birads.Value != nil {
		completedMeta["birads_score"] = *extraction.Birads.Value
	}
	if len(warnings) > 0 {
		completedMeta["warnings"] = warnings
	}
	o.logUsage(ctx, req, constants.ActionExtractionCompleted, completedMeta)

	o.log.Info("pipeline.completed",
		"document_id", req.DocumentID,
		"processing_time_ms", elapsed,
		"findings", len(extraction.Findings))

	return &Result{
		Extraction:       extraction,
		ProcessingTimeMs: elapsed,
		Warnings:         warnings,
	}, nil
}

// fail records the error, moves the document to failed and returns the cause
// wrapped so callers can still classify it with errors.As.
func (o *Orchestrator) fail(ctx context.Context, req Request, errorType string, cause error, meta map[string]any) error {
	var metaJSON json.RawMessage
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			metaJSON = b
		}
	}
	docID := req.DocumentID
	if err := o.logs.InsertError(ctx, &repository.ErrorLog{
		UserID:       req.UserID,
		DocumentID:   &docID,
		ErrorType:    errorType,
		ErrorMessage: cause.Error(),
		Metadata:     metaJSON,
	}); err != nil {
		o.log.Error("pipeline.error_log_failed", "document_id", req.DocumentID, "error", err)
	}
	if err := o.docs.SetStatus(ctx, req.DocumentID, constants.StatusFailed); err != nil {
		o.log.Error("pipeline.status.failed_failed", "document_id", req.DocumentID, "error", err)
	}
	o.log.Error("pipeline.failed", "document_id", req.DocumentID, "error_type", errorType, "error", cause)
	return fmt.Errorf("%s: %w", errorType, cause)
}

func (o *Orchestrator) logUsage(ctx context.Context, req Request, action string, meta map[string]any) {
	var metaJSON json.RawMessage
	if meta != nil {
		if b, err := json.Marshal(meta); err == nil {
			metaJSON = b
		}
	}
	docID := req.DocumentID
	if err := o.logs.InsertUsage(ctx, &repository.UsageLog{
		UserID:     req.UserID,
		Action:     action,
		DocumentID: &docID,
		Metadata:   metaJSON,
	}); err != nil {
		o.log.Error("pipeline.usage_log_failed", "document_id", req.DocumentID, "action", action, "error", err)
	}
}
