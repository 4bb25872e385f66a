package api_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/receiptvault/server/internal/api/testutils"
	"github.com/receiptvault/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndListDocuments(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")

	// Upload two files into the agent's own directory
	w := testutils.PerformUpload(t, testCtx.Router,
		"/api/dirs/example.com/daniel/docs",
		map[string]string{
			"receipt1.jpg": "jpeg-bytes",
			"receipt2.pdf": "pdf-bytes",
		},
		testutils.AuthHeaders(token),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var upload models.UploadResponse
	testutils.DecodeJSON(t, w, &upload)
	assert.ElementsMatch(t, []string{"receipt1.jpg", "receipt2.pdf"}, upload.Uploaded)

	// The listing reports both files, classified by extension
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var list models.DocumentListResponse
	testutils.DecodeJSON(t, w, &list)
	assert.Equal(t, "example.com/daniel", list.Directory)
	assert.Equal(t, 1, list.Page)
	require.Len(t, list.Entries, 2)

	byName := map[string]models.DocumentEntry{}
	for _, e := range list.Entries {
		byName[e.Name] = e
	}
	assert.Equal(t, "image", byName["receipt1.jpg"].Kind)
	assert.Equal(t, "link", byName["receipt2.pdf"].Kind)
	assert.False(t, byName["receipt1.jpg"].HasInvoice)

	// The directory summary reflects the upload
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var dirs models.DirectoryListResponse
	testutils.DecodeJSON(t, w, &dirs)
	require.Len(t, dirs.Directories, 1)
	assert.Equal(t, models.DirectorySummary{Path: "example.com/daniel", FileCount: 2}, dirs.Directories[0])
}

func TestListDocumentsPagination(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")

	for i := 0; i < 35; i++ {
		testutils.WriteDoc(t, testCtx, "example.com/daniel", fmt.Sprintf("receipt%02d.jpg", i), "x")
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs?page=1", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var list models.DocumentListResponse
	testutils.DecodeJSON(t, w, &list)
	assert.Len(t, list.Entries, 30)
	assert.Equal(t, 2, list.NextPage)
	assert.Zero(t, list.PrevPage)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs?page=2", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var page2 models.DocumentListResponse
	testutils.DecodeJSON(t, w, &page2)
	assert.Len(t, page2.Entries, 5)
	assert.Zero(t, page2.NextPage)
	assert.Equal(t, 1, page2.PrevPage)
}

func TestPublishAndFetchInvoice(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")
	testutils.WriteDoc(t, testCtx, "example.com/daniel", "receipt1.jpg", "jpeg-bytes")

	req := models.PublishInvoiceRequest{
		Category:     8,
		PurchaseDate: "2026-03-14",
		Reason:       "train to client site",
		Total:        12550,
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPut,
		"/api/dirs/example.com/daniel/docs/receipt1.jpg", req, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var published models.InvoiceResponse
	testutils.DecodeJSON(t, w, &published)
	require.NotNil(t, published.Invoice)
	assert.Equal(t, "example.com/daniel/receipt1.jpg", published.Invoice.Doc)
	assert.Equal(t, "CAD", published.Invoice.Currency)

	// The document view now carries the invoice
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs/receipt1.jpg", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)

	var doc models.DocumentResponse
	testutils.DecodeJSON(t, w, &doc)
	assert.True(t, doc.Entry.HasInvoice)
	require.NotNil(t, doc.Invoice)
	assert.Equal(t, int64(12550), doc.Invoice.Total)

	// Bad field values surface as a per-field validation map
	req.Category = 99
	req.Currency = "XYZ"
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut,
		"/api/dirs/example.com/daniel/docs/receipt1.jpg", req, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var verr models.ValidationErrorResponse
	testutils.DecodeJSON(t, w, &verr)
	assert.Equal(t, "VALIDATION_FAILED", verr.Code)
	assert.Contains(t, verr.Errors, "category")
	assert.Contains(t, verr.Errors, "currency")
}

func TestDeleteDocument(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")
	testutils.WriteDoc(t, testCtx, "example.com/daniel", "receipt1.jpg", "jpeg-bytes")

	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete,
		"/api/dirs/example.com/daniel/docs/receipt1.jpg", nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	// Second delete reports not found
	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete,
		"/api/dirs/example.com/daniel/docs/receipt1.jpg", nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDocumentRaw(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, token := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")
	testutils.WriteDoc(t, testCtx, "example.com/daniel", "receipt1.jpg", "jpeg-bytes")
	testutils.WriteDoc(t, testCtx, "example.com/daniel", "statement.pdf", "pdf-bytes")

	// Images serve inline
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs/receipt1.jpg?raw=1", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg-bytes", w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	// Everything else downloads as an attachment
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs/statement.pdf?raw=1", nil, testutils.AuthHeaders(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statement.pdf")
}
