package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
	"github.com/RaphaelThineyUE/radiology-insight/internal/consolidate"
	"github.com/RaphaelThineyUE/radiology-insight/internal/llm"
	"github.com/RaphaelThineyUE/radiology-insight/internal/pipeline"
	"github.com/RaphaelThineyUE/radiology-insight/internal/report"
	"github.com/RaphaelThineyUE/radiology-insight/internal/repository"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin mints a bearer token for a configured user.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user := s.cfg.Auth.FindUser(req.Username)
	if user == nil || !CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, expiresAt, err := GenerateToken(req.Username, &s.cfg.Auth)
	if err != nil {
		s.log.Error("auth.token_failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.log.Info("auth.login", "username", req.Username)
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": expiresAt})
}

type createDocumentRequest struct {
	Filename  string  `json:"filename"`
	FileType  string  `json:"fileType"`
	FileSize  int64   `json:"fileSize"`
	PatientID *string `json:"patientId"`
}

// handleCreateDocument registers an uploaded document in pending status.
func (s *Server) handleCreateDocument(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	doc := &repository.Document{
		UserID:   GetUserID(c),
		Filename: req.Filename,
		FileType: req.FileType,
		FileSize: req.FileSize,
	}
	if req.PatientID != nil {
		pid, err := uuid.Parse(*req.PatientID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patientId"})
			return
		}
		doc.PatientID = &pid
	}

	if err := s.docs.Create(c.Request.Context(), doc); err != nil {
		s.log.Error("documents.create_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": doc.ID, "status": doc.Status})
}

type extractRequest struct {
	DocumentID   string `json:"documentId"`
	FileBase64   string `json:"fileBase64"`
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	OpenAIAPIKey string `json:"openaiApiKey"`
}

// handleExtract runs the extraction pipeline for one document.
func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: documentId and fileBase64"})
		return
	}
	if req.DocumentID == "" || req.FileBase64 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: documentId and fileBase64"})
		return
	}
	if req.OpenAIAPIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OpenAI API key is required"})
		return
	}

	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid documentId"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.FileBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 in fileBase64"})
		return
	}

	result, err := s.pipe.Process(c.Request.Context(), pipeline.Request{
		DocumentID: docID,
		UserID:     GetUserID(c),
		FileName:   req.FileName,
		MIMEType:   req.FileType,
		Data:       data,
		APIKey:     req.OpenAIAPIKey,
	})
	if err != nil {
		s.writeExtractionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"extraction":     result.Extraction,
		"processingTime": result.ProcessingTimeMs,
	})
}

// writeExtractionError maps pipeline failures onto the response contract.
func (s *Server) writeExtractionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
	case errors.Is(err, pipeline.ErrAlreadyProcessing):
		c.JSON(http.StatusConflict, gin.H{"error": "Document is already being processed"})
	default:
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			writeUpstreamError(c, apiErr)
			return
		}
		var parseErr *report.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse extraction result"})
			return
		}
		s.log.Error("extract.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// writeUpstreamError passes rate-limit and quota statuses through distinctly.
func writeUpstreamError(c *gin.Context, apiErr *llm.APIError) {
	switch apiErr.Status {
	case http.StatusTooManyRequests:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again later."})
	case http.StatusPaymentRequired:
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Usage limit reached. Please add credits to continue."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("OpenAI API error: %d", apiErr.Status)})
	}
}

type consolidateRequest struct {
	PatientName  string                    `json:"patientName"`
	Extractions  []consolidate.ReportInput `json:"extractions"`
	OpenAIAPIKey string                    `json:"openaiApiKey"`
}

// handleConsolidate composes a cross-report narrative from prior extractions.
func (s *Server) handleConsolidate(c *gin.Context) {
	var req consolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PatientName == "" || len(req.Extractions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: patientName and extractions"})
		return
	}
	if req.OpenAIAPIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OpenAI API key is required"})
		return
	}

	out, err := s.composer.Consolidate(c.Request.Context(), req.PatientName, req.Extractions, req.OpenAIAPIKey)
	if err != nil {
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			writeUpstreamError(c, apiErr)
			return
		}
		s.log.Error("consolidate.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": out})
}

// handleExport streams the caller's extractions as an XLSX workbook.
func (s *Server) handleExport(c *gin.Context) {
	data, err := s.exporter.ExportExtractionsXLSX(c.Request.Context(), GetUserID(c))
	if err != nil {
		s.log.Error("export.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export extractions"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="extractions.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// handleStats returns the caller's usage aggregates.
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.logs.UsageStats(c.Request.Context(), GetUserID(c))
	if err != nil {
		s.log.Error("stats.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load usage stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleHealthz reports liveness and store reachability.
func (s *Server) handleHealthz(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
