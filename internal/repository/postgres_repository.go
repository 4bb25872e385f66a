package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/receiptvault/server/internal/models"
)

// ErrDuplicateKey is returned when an insert violates a unique constraint.
// Create/update fails with this error when the unique field already exists,
// independent of how the storage layer enforces it.
var ErrDuplicateKey = errors.New("duplicate key")

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Agent operations
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgentByEmail(ctx context.Context, email string) (*models.Agent, error)
	GetAgentByID(ctx context.Context, id string) (*models.Agent, error)

	// Access grant operations
	UpsertAccessGrant(ctx context.Context, grant *models.AccessGrant) error
	RevokeAccessGrant(ctx context.Context, agentID, peerID, permission string) error
	GrantedPeers(ctx context.Context, agentID, permission string) ([]models.Agent, error)

	// Invoice operations
	UpsertInvoiceByDoc(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error)
	GetInvoiceByDoc(ctx context.Context, doc string) (*models.Invoice, error)
	DeleteInvoiceByDoc(ctx context.Context, doc string) error
	InvoicesByDirPrefix(ctx context.Context, dir string) ([]models.Invoice, error)
	RewriteInvoiceDoc(ctx context.Context, oldDoc, newDoc string) error

	// Album operations
	CreateAlbum(ctx context.Context, album *models.Album, creatorID string) error
	GetAlbum(ctx context.Context, albumID string) (*models.Album, error)
	GetAgentAlbums(ctx context.Context, agentID string) ([]models.Album, error)
	AddAlbumMember(ctx context.Context, member *models.AlbumMember) error
	GetAlbumMemberRole(ctx context.Context, albumID, agentID string) (string, error)

	// Image operations
	CreateImage(ctx context.Context, image *models.Image) error
	AddImageFile(ctx context.Context, file *models.ImageFile) error
	GetImage(ctx context.Context, imageID string) (*models.Image, error)
	GetImageFiles(ctx context.Context, imageID string) ([]models.ImageFile, error)
	DeleteImage(ctx context.Context, imageID string) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// isUniqueViolation reports whether err is a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Agent repository methods
func (r *PostgresRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	query := `
		INSERT INTO agents (id, email, name, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// Generate a new UUID if not provided
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		agent.ID, agent.Email, agent.Name, agent.Password, agent.CreatedAt, agent.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}

	return err
}

func (r *PostgresRepository) GetAgentByEmail(ctx context.Context, email string) (*models.Agent, error) {
	query := `SELECT * FROM agents WHERE email = $1`

	var agent models.Agent
	err := r.db.GetContext(ctx, &agent, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Agent not found
		}
		return nil, err
	}

	return &agent, nil
}

func (r *PostgresRepository) GetAgentByID(ctx context.Context, id string) (*models.Agent, error) {
	query := `SELECT * FROM agents WHERE id = $1`

	var agent models.Agent
	err := r.db.GetContext(ctx, &agent, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Agent not found
		}
		return nil, err
	}

	return &agent, nil
}

// Access grant repository methods
func (r *PostgresRepository) UpsertAccessGrant(ctx context.Context, grant *models.AccessGrant) error {
	query := `
		INSERT INTO agent_access (agent_id, peer_id, permission, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, peer_id, permission) DO NOTHING
	`

	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		grant.AgentID, grant.PeerID, grant.Permission, grant.CreatedAt)

	return err
}

func (r *PostgresRepository) RevokeAccessGrant(ctx context.Context, agentID, peerID, permission string) error {
	query := `DELETE FROM agent_access WHERE agent_id = $1 AND peer_id = $2 AND permission = $3`

	_, err := r.db.ExecContext(ctx, query, agentID, peerID, permission)
	return err
}

// GrantedPeers returns the agents whose directories agentID may access with
// the given permission, oldest grant first.
func (r *PostgresRepository) GrantedPeers(ctx context.Context, agentID, permission string) ([]models.Agent, error) {
	query := `
		SELECT a.* FROM agents a
		JOIN agent_access g ON a.id = g.peer_id
		WHERE g.agent_id = $1 AND g.permission = $2
		ORDER BY g.created_at
	`

	var peers []models.Agent
	err := r.db.SelectContext(ctx, &peers, query, agentID, permission)
	if err != nil {
		return nil, err
	}

	return peers, nil
}

// Invoice repository methods

// UpsertInvoiceByDoc creates or overwrites the invoice whose doc key matches.
// The upsert is atomic per document; concurrent publishes are last-write-wins.
func (r *PostgresRepository) UpsertInvoiceByDoc(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	query := `
		INSERT INTO invoices (id, doc, category, purchase_date, reason, total,
			currency, exchange_rate, agent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (doc) DO UPDATE SET
			category = EXCLUDED.category,
			purchase_date = EXCLUDED.purchase_date,
			reason = EXCLUDED.reason,
			total = EXCLUDED.total,
			currency = EXCLUDED.currency,
			exchange_rate = EXCLUDED.exchange_rate,
			agent_id = EXCLUDED.agent_id,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	`

	var saved models.Invoice
	err := r.db.GetContext(ctx, &saved, query,
		invoice.ID, invoice.Doc, invoice.Category, invoice.PurchaseDate,
		invoice.Reason, invoice.Total, invoice.Currency, invoice.ExchangeRate,
		invoice.AgentID, invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}

	return &saved, nil
}

func (r *PostgresRepository) GetInvoiceByDoc(ctx context.Context, doc string) (*models.Invoice, error) {
	query := `SELECT * FROM invoices WHERE doc = $1`

	var invoice models.Invoice
	err := r.db.GetContext(ctx, &invoice, query, doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Invoice not found
		}
		return nil, err
	}

	return &invoice, nil
}

// DeleteInvoiceByDoc removes the invoice if present; deleting an
// already-deleted invoice is not an error.
func (r *PostgresRepository) DeleteInvoiceByDoc(ctx context.Context, doc string) error {
	query := `DELETE FROM invoices WHERE doc = $1`

	_, err := r.db.ExecContext(ctx, query, doc)
	return err
}

// escapeLike escapes the LIKE wildcards so a directory name containing
// "_" or "%" matches literally instead of as a pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// InvoicesByDirPrefix returns every invoice whose doc key lives directly
// under dir, matched case-insensitively, sorted by purchase date ascending
// with newer updates first on ties.
func (r *PostgresRepository) InvoicesByDirPrefix(ctx context.Context, dir string) ([]models.Invoice, error) {
	query := `
		SELECT * FROM invoices
		WHERE lower(doc) LIKE lower($1) || '%'
		ORDER BY purchase_date ASC, updated_at DESC
	`

	var invoices []models.Invoice
	err := r.db.SelectContext(ctx, &invoices, query, escapeLike(dir)+"/")
	if err != nil {
		return nil, err
	}

	return invoices, nil
}

// RewriteInvoiceDoc updates one invoice's doc key in place. Rewriting a key
// that has no invoice is a no-op, matching files that were never published.
// An invoice already sitting at the new key is replaced: the caller is about
// to overwrite that file, so its stale annotation goes with it.
func (r *PostgresRepository) RewriteInvoiceDoc(ctx context.Context, oldDoc, newDoc string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM invoices WHERE doc = $1`, newDoc)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE invoices SET doc = $2, updated_at = $3 WHERE doc = $1`,
		oldDoc, newDoc, time.Now().UTC())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Album repository methods
func (r *PostgresRepository) CreateAlbum(ctx context.Context, album *models.Album, creatorID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if album.ID == "" {
		album.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	album.CreatedAt = now
	album.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO albums (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		album.ID, album.Name, album.CreatedAt, album.UpdatedAt)
	if err != nil {
		return err
	}

	// The creator is a reviewer of their own album
	_, err = tx.ExecContext(ctx,
		`INSERT INTO album_members (album_id, agent_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		album.ID, creatorID, "reviewer", now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetAlbum(ctx context.Context, albumID string) (*models.Album, error) {
	query := `SELECT * FROM albums WHERE id = $1`

	var album models.Album
	err := r.db.GetContext(ctx, &album, query, albumID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Album not found
		}
		return nil, err
	}

	return &album, nil
}

func (r *PostgresRepository) GetAgentAlbums(ctx context.Context, agentID string) ([]models.Album, error) {
	query := `
		SELECT al.* FROM albums al
		JOIN album_members am ON al.id = am.album_id
		WHERE am.agent_id = $1
		ORDER BY al.created_at
	`

	var albums []models.Album
	err := r.db.SelectContext(ctx, &albums, query, agentID)
	if err != nil {
		return nil, err
	}

	return albums, nil
}

func (r *PostgresRepository) AddAlbumMember(ctx context.Context, member *models.AlbumMember) error {
	query := `
		INSERT INTO album_members (album_id, agent_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (album_id, agent_id) DO UPDATE SET role = EXCLUDED.role
	`

	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		member.AlbumID, member.AgentID, member.Role, member.CreatedAt)

	return err
}

func (r *PostgresRepository) GetAlbumMemberRole(ctx context.Context, albumID, agentID string) (string, error) {
	query := `SELECT role FROM album_members WHERE album_id = $1 AND agent_id = $2`

	var role string
	err := r.db.GetContext(ctx, &role, query, albumID, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // Not a member
		}
		return "", err
	}

	return role, nil
}

// Image repository methods
func (r *PostgresRepository) CreateImage(ctx context.Context, image *models.Image) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	image.CreatedAt = time.Now().UTC()

	query := `INSERT INTO images (id, album_id, agent_id, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		image.ID, image.AlbumID, image.AgentID, image.CreatedAt)

	return err
}

func (r *PostgresRepository) AddImageFile(ctx context.Context, file *models.ImageFile) error {
	if file.ID == "" {
		file.ID = uuid.New().String()
	}
	file.CreatedAt = time.Now().UTC()

	query := `INSERT INTO image_files (id, image_id, path, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.ImageID, file.Path, file.CreatedAt)

	return err
}

func (r *PostgresRepository) GetImage(ctx context.Context, imageID string) (*models.Image, error) {
	query := `SELECT * FROM images WHERE id = $1`

	var image models.Image
	err := r.db.GetContext(ctx, &image, query, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Image not found
		}
		return nil, err
	}

	return &image, nil
}

func (r *PostgresRepository) GetImageFiles(ctx context.Context, imageID string) ([]models.ImageFile, error) {
	query := `SELECT * FROM image_files WHERE image_id = $1 ORDER BY created_at`

	var files []models.ImageFile
	err := r.db.SelectContext(ctx, &files, query, imageID)
	if err != nil {
		return nil, err
	}

	return files, nil
}

// DeleteImage removes an image and its file rows. Unlinking the physical
// files is the caller's job; it happens before the rows go away.
func (r *PostgresRepository) DeleteImage(ctx context.Context, imageID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Delete file rows first (due to foreign key constraint)
	_, err = tx.ExecContext(ctx, `DELETE FROM image_files WHERE image_id = $1`, imageID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, imageID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
