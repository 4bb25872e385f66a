package service

import (
	"context"
	"errors"
	"testing"

	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvoiceRoundTrip(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")

	req := models.PublishInvoiceRequest{
		Category:     8,
		PurchaseDate: "2026-03-14",
		Reason:       "train to client site",
		Total:        12550,
		Currency:     "CAD",
		ExchangeRate: 5.0, // ignored: base currency forces 1.0
	}

	invoice, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	require.NoError(t, err)
	assert.Equal(t, "example.com/daniel/receipt1.jpg", invoice.Doc)
	assert.Equal(t, 8, invoice.Category)
	assert.Equal(t, int64(12550), invoice.Total)
	assert.Equal(t, "CAD", invoice.Currency)
	assert.Equal(t, 1.0, invoice.ExchangeRate)

	found, err := repo.InvoicesByDirPrefix(ctx, dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, invoice.Doc, found[0].Doc)
	assert.Equal(t, invoice.Total, found[0].Total)
}

func TestPublishInvoiceUpsertsByDocKey(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")

	req := models.PublishInvoiceRequest{
		Category: 8, PurchaseDate: "2026-03-14", Reason: "train fare", Total: 100,
	}
	first, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	require.NoError(t, err)

	req.Total = 200
	second, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Still exactly one invoice per physical file
	found, err := repo.InvoicesByDirPrefix(ctx, dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(200), found[0].Total)
}

func TestPublishInvoiceValidation(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")

	req := models.PublishInvoiceRequest{
		Category:     99,
		PurchaseDate: "2026-03-14",
		Reason:       "mystery",
		Total:        100,
		Currency:     "XYZ",
	}

	_, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "category")
	assert.Contains(t, verr.Fields, "currency")
	assert.Len(t, verr.Fields, 2)
}

func TestPublishInvoiceDefaultsCurrency(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")

	req := models.PublishInvoiceRequest{
		Category: 2, PurchaseDate: "2026-03-14", Reason: "team lunch", Total: 4500,
	}

	invoice, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	require.NoError(t, err)
	assert.Equal(t, models.BaseCurrency, invoice.Currency)
	assert.Equal(t, 1.0, invoice.ExchangeRate)
}

func TestPublishInvoiceRequiresFile(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	require.NoError(t, store.EnsureDir("example.com/daniel"))

	req := models.PublishInvoiceRequest{
		Category: 8, PurchaseDate: "2026-03-14", Reason: "x", Total: 100,
	}

	_, err := svc.PublishInvoice(ctx, dan, "example.com/daniel", "ghost.jpg", req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishInvoiceForbiddenOutsideGrants(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	createAgent(t, repo, "lanny@example.com", "Lanny Olsen")
	writeDoc(t, store, "example.com/lanny", "receipt1.jpg")

	req := models.PublishInvoiceRequest{
		Category: 8, PurchaseDate: "2026-03-14", Reason: "x", Total: 100,
	}

	_, err := svc.PublishInvoice(ctx, dan, "example.com/lanny", "receipt1.jpg", req)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteDocumentRemovesInvoice(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")

	req := models.PublishInvoiceRequest{
		Category: 8, PurchaseDate: "2026-03-14", Reason: "x", Total: 100,
	}
	_, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(ctx, dan, dir, "receipt1.jpg"))

	assert.False(t, store.Exists(dir, "receipt1.jpg"))
	found, err := repo.InvoicesByDirPrefix(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, found)

	// Deleting a gone document reports not found
	err = svc.DeleteDocument(ctx, dan, dir, "receipt1.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

// invoiceDeleteFailRepo fails the invoice delete to pin down ordering
type invoiceDeleteFailRepo struct {
	*repository.MemoryRepository
}

func (r *invoiceDeleteFailRepo) DeleteInvoiceByDoc(ctx context.Context, doc string) error {
	return errors.New("data layer unavailable")
}

func TestDeleteDocumentKeepsFileWhenInvoiceDeleteFails(t *testing.T) {
	repo := &invoiceDeleteFailRepo{repository.NewMemoryRepository()}
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")

	err := svc.DeleteDocument(ctx, dan, dir, "receipt1.jpg")
	assert.ErrorContains(t, err, "data layer unavailable")

	// The invoice delete runs before the unlink, so the file survives and a
	// retry can still reach both halves. The reverse order would leave a
	// fileless invoice no retry could find.
	assert.True(t, store.Exists(dir, "receipt1.jpg"))
}

func TestListDocumentsTagsInvoices(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, store := newTestService(t, repo, &stubConverter{})
	ctx := context.Background()

	dan := createAgent(t, repo, "daniel@example.com", "Daniel Marchand")
	dir := "example.com/daniel"
	writeDoc(t, store, dir, "receipt1.jpg")
	writeDoc(t, store, dir, "receipt2.pdf")

	req := models.PublishInvoiceRequest{
		Category: 8, PurchaseDate: "2026-03-14", Reason: "x", Total: 100,
	}
	_, err := svc.PublishInvoice(ctx, dan, dir, "receipt1.jpg", req)
	require.NoError(t, err)

	resp, err := svc.ListDocuments(ctx, dan, dir, 1)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)

	byName := map[string]models.DocumentEntry{}
	for _, e := range resp.Entries {
		byName[e.Name] = e
	}
	assert.True(t, byName["receipt1.jpg"].HasInvoice)
	assert.Equal(t, "image", byName["receipt1.jpg"].Kind)
	assert.False(t, byName["receipt2.pdf"].HasInvoice)
	assert.Equal(t, "link", byName["receipt2.pdf"].Kind)
}
