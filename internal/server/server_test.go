package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
	"github.com/RaphaelThineyUE/radiology-insight/internal/consolidate"
	"github.com/RaphaelThineyUE/radiology-insight/internal/export"
	"github.com/RaphaelThineyUE/radiology-insight/internal/extract"
	"github.com/RaphaelThineyUE/radiology-insight/internal/llm"
	"github.com/RaphaelThineyUE/radiology-insight/internal/pipeline"
	"github.com/RaphaelThineyUE/radiology-insight/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Complete(_ context.Context, _ llm.ChatRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

const reportText = "FINDINGS: Irregular mass in the left upper outer quadrant.\nIMPRESSION: BI-RADS 4. Biopsy recommended."

const modelReply = `{
  "summary": "Irregular left breast mass, biopsy recommended.",
  "birads": {"value": 4, "confidence": "high", "evidence": ["BI-RADS 4"]},
  "breast_density": {"value": null, "evidence": []},
  "exam": {"type": "Mammogram", "laterality": "left", "evidence": ["Irregular mass in the left upper outer quadrant"]},
  "comparison": {"prior_exam_date": null, "evidence": []},
  "findings": [],
  "recommendations": [],
  "red_flags": []
}`

type testEnv struct {
	router *gin.Engine
	stores *repository.SQLiteStores
	token  string
	userID uuid.UUID
}

func newTestEnv(t *testing.T, chat llm.ChatClient) *testEnv {
	t.Helper()

	cfg := &common.Config{
		Auth: common.AuthConfig{
			JWTSecret:   "test-secret",
			TokenExpiry: time.Hour,
			Users:       []common.User{{Username: "alice", Password: "secret"}},
		},
	}

	stores, err := repository.OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	orch := pipeline.NewOrchestrator(
		stores.Documents, stores.Extractions, stores.Logs,
		extract.NewHeuristicExtractor(nil), chat, pipeline.Options{}, nil,
	)
	srv := New(cfg, stores.Documents, stores.Logs, orch,
		consolidate.NewComposer(chat, nil),
		export.NewService(stores.Extractions, nil),
		stores.Ping, nil)

	token, _, err := GenerateToken("alice", &cfg.Auth)
	require.NoError(t, err)

	return &testEnv{
		router: srv.Router(),
		stores: stores,
		token:  token,
		userID: UserIDFor("alice"),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createDocument(t *testing.T) uuid.UUID {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/documents", gin.H{
		"filename": "report.txt",
		"fileType": "text/plain",
		"fileSize": len(reportText),
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func extractBody(docID uuid.UUID) gin.H {
	return gin.H{
		"documentId":   docID.String(),
		"fileBase64":   base64.StdEncoding.EncodeToString([]byte(reportText)),
		"fileName":     "report.txt",
		"fileType":     "text/plain",
		"openaiApiKey": "sk-test",
	}
}

func TestExtractRequiresAuth(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})
	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(uuid.New()), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, &stubChat{})

	w := env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "alice", "password": "secret"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"username": "alice", "password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExtractHappyPath(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})
	docID := env.createDocument(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(docID), true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success    bool `json:"success"`
		Extraction struct {
			Birads struct {
				Value *int `json:"value"`
			} `json:"birads"`
		} `json:"extraction"`
		ProcessingTime *int64 `json:"processingTime"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Extraction.Birads.Value)
	assert.Equal(t, 4, *resp.Extraction.Birads.Value)
	require.NotNil(t, resp.ProcessingTime)
}

func TestExtractMissingFields(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})

	w := env.do(t, http.MethodPost, "/api/v1/extract", gin.H{"documentId": ""}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing required fields: documentId and fileBase64")
}

func TestExtractMissingAPIKey(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})
	body := extractBody(uuid.New())
	body["openaiApiKey"] = ""

	w := env.do(t, http.MethodPost, "/api/v1/extract", body, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "OpenAI API key is required")
}

func TestExtractUnknownDocument(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})
	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(uuid.New()), true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractConflict(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})
	docID := env.createDocument(t)

	ok, err := env.stores.Documents.BeginProcessing(context.Background(), docID)
	require.NoError(t, err)
	require.True(t, ok)

	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(docID), true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExtractRateLimitPassThrough(t *testing.T) {
	env := newTestEnv(t, &stubChat{err: &llm.APIError{Status: http.StatusTooManyRequests}})
	docID := env.createDocument(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(docID), true)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Rate limit exceeded. Please try again later.")
}

func TestExtractQuotaPassThrough(t *testing.T) {
	env := newTestEnv(t, &stubChat{err: &llm.APIError{Status: http.StatusPaymentRequired}})
	docID := env.createDocument(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(docID), true)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "Usage limit reached. Please add credits to continue.")
}

func TestExtractUnparseableReply(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: "not json"})
	docID := env.createDocument(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(docID), true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to parse extraction result")
}

func TestConsolidateEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: "## Patient Overview\nOne report."})

	w := env.do(t, http.MethodPost, "/api/v1/consolidate", gin.H{
		"patientName": "Jane Doe",
		"extractions": []gin.H{
			{"filename": "a.pdf", "date": "2024-03-15", "extraction": json.RawMessage(modelReply)},
		},
		"openaiApiKey": "sk-test",
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Report string `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Report, "Patient Overview")
}

func TestConsolidateMissingFields(t *testing.T) {
	env := newTestEnv(t, &stubChat{})
	w := env.do(t, http.MethodPost, "/api/v1/consolidate", gin.H{"patientName": ""}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndExport(t *testing.T) {
	env := newTestEnv(t, &stubChat{reply: modelReply})
	docID := env.createDocument(t)

	w := env.do(t, http.MethodPost, "/api/v1/extract", extractBody(docID), true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/stats", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		TotalDocuments       int `json:"totalDocuments"`
		CompletedExtractions int `json:"completedExtractions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 1, stats.CompletedExtractions)

	w = env.do(t, http.MethodGet, "/api/v1/extractions/export", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	// XLSX is a zip archive.
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, &stubChat{})
	w := env.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}
