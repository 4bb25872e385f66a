package service

import (
	"context"
	"fmt"
	"path"

	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/storage"
	"go.uber.org/zap"
)

// Archive closes a claim period: every visible file in dir moves into the
// reserved archive subdirectory and its invoice's doc key is rewritten to
// match. Returns the number of files moved.
//
// Per file the doc rewrite happens before the move. If the move then fails,
// the invoice points at a not-yet-moved file; the loop aborts and a retried
// archive reconciles, since already-moved files are no longer listed.
func (s *DefaultService) Archive(ctx context.Context, agent *models.Agent, dir string) (int, error) {
	ok, err := s.CanWrite(ctx, agent, dir)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrForbidden
	}

	entries, err := s.store.ListAll(dir)
	if err != nil {
		return 0, fmt.Errorf("error listing %s: %w", dir, err)
	}

	if len(entries) == 0 {
		// Re-archiving an already-archived directory is a no-op, not an
		// error; only a directory that never held files reports ErrNoFiles.
		if s.store.HasArchive(dir) {
			return 0, nil
		}
		return 0, ErrNoFiles
	}

	moved := 0
	for _, e := range entries {
		oldDoc := path.Join(dir, e.Name)
		newDoc := path.Join(dir, storage.ArchiveDirName, e.Name)

		if err := s.repo.RewriteInvoiceDoc(ctx, oldDoc, newDoc); err != nil {
			s.logger.Error("archive: invoice rewrite failed, aborting",
				zap.String("doc", oldDoc), zap.Error(err))
			return moved, fmt.Errorf("error rewriting invoice for %s: %w", oldDoc, err)
		}

		if _, err := s.store.MoveToArchive(dir, e.Name); err != nil {
			// The invoice key already points into archive/ while the file
			// has not moved. A retried archive reconciles this.
			s.logger.Error("archive: file move failed after invoice rewrite, aborting",
				zap.String("doc", oldDoc), zap.Error(err))
			return moved, fmt.Errorf("error moving %s: %w", oldDoc, err)
		}

		moved++
	}

	return moved, nil
}
