package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaphaelThineyUE/radiology-insight/constants"
	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
)

func newTestStores(t *testing.T) *SQLiteStores {
	t.Helper()
	stores, err := OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })
	return stores
}

func newTestDocument(t *testing.T, stores *SQLiteStores, userID uuid.UUID) *Document {
	t.Helper()
	doc := &Document{
		UserID:   userID,
		Filename: "report.pdf",
		FileType: "application/pdf",
		FileSize: 1024,
	}
	require.NoError(t, stores.Documents.Create(context.Background(), doc))
	return doc
}

func TestDocumentCreateAndGet(t *testing.T) {
	stores := newTestStores(t)
	userID := uuid.New()
	doc := newTestDocument(t, stores, userID)

	got, err := stores.Documents.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, constants.StatusPending, got.Status)
}

func TestDocumentGetNotFound(t *testing.T) {
	stores := newTestStores(t)
	_, err := stores.Documents.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBeginProcessingTransitions(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	doc := newTestDocument(t, stores, uuid.New())

	ok, err := stores.Documents.BeginProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := stores.Documents.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)

	// Second attempt must lose while processing.
	ok, err = stores.Documents.BeginProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Terminal states are re-admittable.
	require.NoError(t, stores.Documents.SetStatus(ctx, doc.ID, constants.StatusFailed))
	ok, err = stores.Documents.BeginProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBeginProcessingExactlyOneWinner(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	doc := newTestDocument(t, stores, uuid.New())

	const attempts = 8
	results := make([]bool, attempts)
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = stores.Documents.BeginProcessing(ctx, doc.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		if results[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestExtractionInsertAndList(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	userID := uuid.New()
	doc := newTestDocument(t, stores, userID)

	summary := "Benign findings."
	birads := 2
	elapsed := int64(1234)
	require.NoError(t, stores.Extractions.Insert(ctx, &Extraction{
		DocumentID:       doc.ID,
		UserID:           userID,
		Data:             json.RawMessage(`{"summary":"Benign findings."}`),
		Summary:          &summary,
		BiradsScore:      &birads,
		ProcessingTimeMs: &elapsed,
	}))

	list, err := stores.Extractions.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "report.pdf", list[0].DocumentFilename)
	require.NotNil(t, list[0].BiradsScore)
	assert.Equal(t, 2, *list[0].BiradsScore)

	// Other users see nothing.
	other, err := stores.Extractions.ListByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUsageLogsAndStats(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	userID := uuid.New()
	doc := newTestDocument(t, stores, userID)

	docID := doc.ID
	require.NoError(t, stores.Logs.InsertUsage(ctx, &UsageLog{
		UserID:     userID,
		Action:     constants.ActionExtractionStarted,
		DocumentID: &docID,
		Metadata:   json.RawMessage(`{"file_name":"report.pdf"}`),
	}))
	require.NoError(t, stores.Logs.InsertError(ctx, &ErrorLog{
		UserID:       userID,
		DocumentID:   &docID,
		ErrorType:    constants.ErrorTypeParse,
		ErrorMessage: "bad reply",
	}))
	require.NoError(t, stores.Documents.SetStatus(ctx, doc.ID, constants.StatusFailed))

	stats, err := stores.Logs.UsageStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 0, stats.CompletedExtractions)
	assert.Equal(t, 1, stats.FailedExtractions)
	require.Len(t, stats.RecentActivity, 1)
	assert.Equal(t, constants.ActionExtractionStarted, stats.RecentActivity[0].Action)
}
