package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/storage"
)

// ListDocuments returns one page of a directory listing with each entry
// tagged by whether it has been published as an invoice.
func (s *DefaultService) ListDocuments(ctx context.Context, agent *models.Agent, dir string, page int) (*models.DocumentListResponse, error) {
	ok, err := s.CanRead(ctx, agent, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	listing, err := s.store.ListDocuments(dir, page)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", dir, err)
	}

	invoiced, err := s.invoicedDocs(ctx, dir)
	if err != nil {
		return nil, err
	}

	entries := make([]models.DocumentEntry, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		entries = append(entries, models.DocumentEntry{
			Name:       e.Name,
			Kind:       e.Kind,
			HasInvoice: invoiced[strings.ToLower(path.Join(dir, e.Name))],
		})
	}

	return &models.DocumentListResponse{
		Status:    "success",
		Directory: dir,
		Entries:   entries,
		Page:      listing.Page,
		NextPage:  listing.NextPage,
		PrevPage:  listing.PrevPage,
	}, nil
}

// invoicedDocs returns the lowercased doc keys published under dir
func (s *DefaultService) invoicedDocs(ctx context.Context, dir string) (map[string]bool, error) {
	invoices, err := s.repo.InvoicesByDirPrefix(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("error loading invoices for %s: %w", dir, err)
	}

	docs := make(map[string]bool, len(invoices))
	for _, inv := range invoices {
		docs[strings.ToLower(inv.Doc)] = true
	}
	return docs, nil
}

// GetDocument returns one document entry and its invoice, if published
func (s *DefaultService) GetDocument(ctx context.Context, agent *models.Agent, dir, name string) (*models.DocumentResponse, error) {
	ok, err := s.CanRead(ctx, agent, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	if !s.store.Exists(dir, name) {
		return nil, ErrNotFound
	}

	invoice, err := s.repo.GetInvoiceByDoc(ctx, path.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("error getting invoice: %w", err)
	}

	return &models.DocumentResponse{
		Status: "success",
		Entry: models.DocumentEntry{
			Name:       name,
			Kind:       storage.Classify(name),
			HasInvoice: invoice != nil,
		},
		Invoice: invoice,
	}, nil
}

// DocumentPath resolves the on-disk path of a document for serving,
// gated on read access.
func (s *DefaultService) DocumentPath(ctx context.Context, agent *models.Agent, dir, name string) (string, error) {
	ok, err := s.CanRead(ctx, agent, dir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrForbidden
	}

	if !s.store.Exists(dir, name) {
		return "", ErrNotFound
	}

	return s.store.FilePath(dir, name), nil
}

// UploadPath resolves the destination path for an upload, gated on write
// access. The directory is created on first write.
func (s *DefaultService) UploadPath(ctx context.Context, agent *models.Agent, dir, name string) (string, error) {
	ok, err := s.CanWrite(ctx, agent, dir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrForbidden
	}

	if storage.IsReserved(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, "/\\") {
		return "", &ValidationError{Fields: map[string]string{"file": "invalid file name"}}
	}

	if err := s.store.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("error creating %s: %w", dir, err)
	}

	return s.store.FilePath(dir, name), nil
}

// validateInvoice normalizes and validates a publish request, returning a
// field-to-message map on failure.
func validateInvoice(req *models.PublishInvoiceRequest) (time.Time, *ValidationError) {
	fields := map[string]string{}

	if !models.ValidCategory(req.Category) {
		fields["category"] = "unknown expense category"
	}

	if req.Currency == "" {
		req.Currency = models.BaseCurrency
	}
	req.Currency = strings.ToUpper(req.Currency)
	if !models.ValidCurrency(req.Currency) {
		fields["currency"] = "unrecognized currency code"
	}

	// Invoices in the base currency always carry a rate of exactly 1
	if req.Currency == models.BaseCurrency {
		req.ExchangeRate = 1.0
	} else if req.ExchangeRate <= 0 {
		fields["exchangeRate"] = "exchange rate must be positive"
	}

	purchaseDate, err := time.Parse("2006-01-02", req.PurchaseDate)
	if err != nil {
		fields["purchaseDate"] = "purchase date must be formatted YYYY-MM-DD"
	}

	if len(fields) > 0 {
		return time.Time{}, &ValidationError{Fields: fields}
	}
	return purchaseDate, nil
}

// PublishInvoice creates or overwrites the invoice for one document,
// keyed by its doc path.
func (s *DefaultService) PublishInvoice(ctx context.Context, agent *models.Agent, dir, name string, req models.PublishInvoiceRequest) (*models.Invoice, error) {
	ok, err := s.CanWrite(ctx, agent, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	// An invoice must never reference a nonexistent file
	if !s.store.Exists(dir, name) {
		return nil, ErrNotFound
	}

	purchaseDate, verr := validateInvoice(&req)
	if verr != nil {
		return nil, verr
	}

	invoice := &models.Invoice{
		Doc:          path.Join(dir, name),
		Category:     req.Category,
		PurchaseDate: purchaseDate,
		Reason:       req.Reason,
		Total:        req.Total,
		Currency:     req.Currency,
		ExchangeRate: req.ExchangeRate,
		AgentID:      agent.ID,
	}

	saved, err := s.repo.UpsertInvoiceByDoc(ctx, invoice)
	if err != nil {
		return nil, fmt.Errorf("error saving invoice: %w", err)
	}

	return saved, nil
}

// DeleteDocument removes a document's invoice and then unlinks the file.
// The invoice goes first: if the unlink then fails, the file is merely
// unannotated and a retried delete finishes the job. The reverse order
// could strand an invoice row no retry can reach once the file is gone.
func (s *DefaultService) DeleteDocument(ctx context.Context, agent *models.Agent, dir, name string) error {
	ok, err := s.CanWrite(ctx, agent, dir)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	if !s.store.Exists(dir, name) {
		return ErrNotFound
	}

	if err := s.repo.DeleteInvoiceByDoc(ctx, path.Join(dir, name)); err != nil {
		return fmt.Errorf("error deleting invoice: %w", err)
	}

	if err := s.store.Remove(dir, name); err != nil {
		return fmt.Errorf("error removing %s: %w", path.Join(dir, name), err)
	}

	return nil
}
