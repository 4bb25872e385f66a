package api_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/receiptvault/server/internal/api/testutils"
	"github.com/receiptvault/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Concurrent publishes against the same file must collapse into a single
// invoice row keyed by the file.
func TestConcurrentPublishSameDocument(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	testutils.WriteDoc(t, testCtx, dir, "receipt1.jpg", "jpeg-bytes")

	const numGoroutines = 10
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			req := models.PublishInvoiceRequest{
				Category:     8,
				PurchaseDate: "2026-03-14",
				Reason:       fmt.Sprintf("travel attempt %d", n),
				Total:        int64(100 + n),
			}

			w := testutils.PerformRequest(
				testCtx.Router,
				http.MethodPut,
				"/api/dirs/example.com/daniel/docs/receipt1.jpg",
				req,
				testutils.AuthHeaders(token),
			)

			assert.Equal(t, http.StatusOK, w.Code)
		}(i)
	}

	wg.Wait()

	invoices, err := testCtx.Repository.InvoicesByDirPrefix(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

// Concurrent uploads of distinct files must all land.
func TestConcurrentUploads(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")

	const numGoroutines = 8
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			name := fmt.Sprintf("receipt%d.jpg", n)
			w := testutils.PerformUpload(t, testCtx.Router,
				"/api/dirs/example.com/daniel/docs",
				map[string]string{name: "jpeg-bytes"},
				testutils.AuthHeaders(token),
			)
			assert.Equal(t, http.StatusCreated, w.Code)
		}(i)
	}

	wg.Wait()

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var list models.DocumentListResponse
	testutils.DecodeJSON(t, w, &list)
	assert.Len(t, list.Entries, numGoroutines)
}
