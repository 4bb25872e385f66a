package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/receiptvault/server/internal/models"
	"go.uber.org/zap"
)

// csvHeader is contractual: the converter's column mapping refers to these
// positions.
var csvHeader = []string{
	"Category",
	"Purchase Date",
	"Item",
	"Business Purpose of Expense",
	"Receipt ref #",
	"Local Amount",
	"Currency Used",
	"Exchange Rate",
}

const purchaseDateLayout = "02 Jan '06"

// BuildExport streams a zip bundle for dir into w: every invoiced document
// under a sequential name, a CSV summary, and a spreadsheet derived from
// the CSV by the external converter. Returns the download filename.
func (s *DefaultService) BuildExport(ctx context.Context, agent *models.Agent, dir string, w io.Writer) (string, error) {
	ok, err := s.CanRead(ctx, agent, dir)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrForbidden
	}

	owner, err := s.directoryOwner(ctx, dir)
	if err != nil {
		return "", err
	}

	entries, err := s.store.ListAll(dir)
	if err != nil {
		return "", fmt.Errorf("error listing %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return "", ErrNoFiles
	}

	// Only invoices backed by a file currently in the directory take part.
	// The repository already sorts by purchase date, newest update first
	// on ties.
	fileByDoc := make(map[string]string, len(entries))
	for _, e := range entries {
		fileByDoc[strings.ToLower(path.Join(dir, e.Name))] = e.Name
	}

	all, err := s.repo.InvoicesByDirPrefix(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("error loading invoices for %s: %w", dir, err)
	}

	invoices := make([]models.Invoice, 0, len(all))
	names := make([]string, 0, len(all))
	for _, inv := range all {
		if name, ok := fileByDoc[strings.ToLower(inv.Doc)]; ok {
			invoices = append(invoices, inv)
			names = append(names, name)
		}
	}
	if len(invoices) == 0 {
		return "", ErrNoInvoices
	}

	csvBytes, err := buildCSV(invoices)
	if err != nil {
		return "", fmt.Errorf("error building csv: %w", err)
	}

	// The spreadsheet is produced before anything is written to w, so a
	// converter failure aborts the export instead of delivering a partial
	// zip.
	var ods bytes.Buffer
	if err := s.converter.Convert(ctx, s.templateFor(dir), bytes.NewReader(csvBytes), &ods); err != nil {
		return "", err
	}

	zw := zip.NewWriter(w)

	for i, inv := range invoices {
		name := names[i]
		ext := strings.ToLower(path.Ext(name))
		entryName := fmt.Sprintf("%s #%d%s", owner.Name, i+1, ext)

		f, err := os.Open(s.store.FilePath(dir, name))
		if err != nil {
			// A file that vanished mid-stream costs only its own entry
			s.logger.Warn("export: skipping missing file",
				zap.String("doc", inv.Doc), zap.Error(err))
			continue
		}

		entry, err := zw.Create(entryName)
		if err != nil {
			f.Close()
			return "", fmt.Errorf("error adding %s to zip: %w", entryName, err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			return "", fmt.Errorf("error writing %s to zip: %w", entryName, err)
		}
		f.Close()
	}

	surname := owner.Surname()

	csvEntry, err := zw.Create(surname + " MER.csv")
	if err != nil {
		return "", fmt.Errorf("error adding csv to zip: %w", err)
	}
	if _, err := csvEntry.Write(csvBytes); err != nil {
		return "", fmt.Errorf("error writing csv to zip: %w", err)
	}

	odsEntry, err := zw.Create(surname + " MER.ods")
	if err != nil {
		return "", fmt.Errorf("error adding spreadsheet to zip: %w", err)
	}
	if _, err := odsEntry.Write(ods.Bytes()); err != nil {
		return "", fmt.Errorf("error writing spreadsheet to zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("error finalizing zip: %w", err)
	}

	return surname + " MER.zip", nil
}

// directoryOwner resolves the agent whose canonical directory is dir
func (s *DefaultService) directoryOwner(ctx context.Context, dir string) (*models.Agent, error) {
	domain, local, found := strings.Cut(dir, "/")
	if !found {
		return nil, ErrNotFound
	}

	owner, err := s.repo.GetAgentByEmail(ctx, local+"@"+domain)
	if err != nil {
		return nil, fmt.Errorf("error getting directory owner: %w", err)
	}
	if owner == nil {
		return nil, ErrNotFound
	}

	return owner, nil
}

// templateFor returns the agent-specific spreadsheet template when one has
// been uploaded to the directory's templates subdirectory, else the shared
// default.
func (s *DefaultService) templateFor(dir string) string {
	base := filepath.Base(s.defaultTemplate)
	custom := s.store.FilePath(dir, filepath.Join("templates", base))
	if info, err := os.Stat(custom); err == nil && !info.IsDir() {
		return custom
	}
	return s.defaultTemplate
}

// buildCSV renders the invoice rows, one per receipt, with the contractual
// header and 1-indexed reference numbers.
func buildCSV(invoices []models.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for i, inv := range invoices {
		item, purpose := splitReason(inv.Reason, models.CategoryLabel(inv.Category))
		row := []string{
			strconv.Itoa(inv.Category),
			inv.PurchaseDate.Format(purchaseDateLayout),
			item,
			purpose,
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.2f", float64(inv.Total)/100),
			inv.Currency,
			strconv.FormatFloat(inv.ExchangeRate, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// splitReason derives an item and business purpose from free-text reason.
// The text splits on the literal " for " or " to "; when both occur, the
// later occurrence wins. Without either separator the whole reason is the
// item and the category label stands in as the purpose.
func splitReason(reason, categoryLabel string) (item, purpose string) {
	idx, sep := -1, ""
	if i := strings.LastIndex(reason, " for "); i > idx {
		idx, sep = i, " for "
	}
	if i := strings.LastIndex(reason, " to "); i > idx {
		idx, sep = i, " to "
	}

	if idx < 0 {
		return reason, categoryLabel
	}

	return reason[:idx], capitalize(reason[idx+len(sep):])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
