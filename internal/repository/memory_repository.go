package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/receiptvault/server/internal/models"
)

// MemoryRepository implements the Repository interface with in-memory maps.
// It backs tests that need no running database.
type MemoryRepository struct {
	mu       sync.RWMutex
	agents   map[string]*models.Agent // by ID
	grants   map[string]*models.AccessGrant
	invoices map[string]*models.Invoice // by doc
	albums   map[string]*models.Album
	members  map[string]*models.AlbumMember
	images   map[string]*models.Image
	files    map[string]*models.ImageFile
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		agents:   make(map[string]*models.Agent),
		grants:   make(map[string]*models.AccessGrant),
		invoices: make(map[string]*models.Invoice),
		albums:   make(map[string]*models.Album),
		members:  make(map[string]*models.AlbumMember),
		images:   make(map[string]*models.Image),
		files:    make(map[string]*models.ImageFile),
	}
}

func grantKey(agentID, peerID, permission string) string {
	return agentID + "|" + peerID + "|" + permission
}

func memberKey(albumID, agentID string) string {
	return albumID + "|" + agentID
}

// Agent operations
func (r *MemoryRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.agents {
		if a.Email == agent.Email {
			return ErrDuplicateKey
		}
	}

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	copied := *agent
	r.agents[agent.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetAgentByEmail(ctx context.Context, email string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.agents {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetAgentByID(ctx context.Context, id string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.agents[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

// Access grant operations
func (r *MemoryRepository) UpsertAccessGrant(ctx context.Context, grant *models.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := grantKey(grant.AgentID, grant.PeerID, grant.Permission)
	if _, ok := r.grants[key]; ok {
		return nil
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	copied := *grant
	r.grants[key] = &copied
	return nil
}

func (r *MemoryRepository) RevokeAccessGrant(ctx context.Context, agentID, peerID, permission string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.grants, grantKey(agentID, peerID, permission))
	return nil
}

func (r *MemoryRepository) GrantedPeers(ctx context.Context, agentID, permission string) ([]models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var grants []*models.AccessGrant
	for _, g := range r.grants {
		if g.AgentID == agentID && g.Permission == permission {
			grants = append(grants, g)
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].CreatedAt.Before(grants[j].CreatedAt)
	})

	peers := make([]models.Agent, 0, len(grants))
	for _, g := range grants {
		if a, ok := r.agents[g.PeerID]; ok {
			peers = append(peers, *a)
		}
	}
	return peers, nil
}

// Invoice operations
func (r *MemoryRepository) UpsertInvoiceByDoc(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.invoices[invoice.Doc]; ok {
		invoice.ID = existing.ID
		invoice.CreatedAt = existing.CreatedAt
	} else {
		if invoice.ID == "" {
			invoice.ID = uuid.New().String()
		}
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now

	copied := *invoice
	r.invoices[invoice.Doc] = &copied
	return invoice, nil
}

func (r *MemoryRepository) GetInvoiceByDoc(ctx context.Context, doc string) (*models.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if inv, ok := r.invoices[doc]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, nil
}

func (r *MemoryRepository) DeleteInvoiceByDoc(ctx context.Context, doc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.invoices, doc)
	return nil
}

func (r *MemoryRepository) InvoicesByDirPrefix(ctx context.Context, dir string) ([]models.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := strings.ToLower(dir) + "/"
	var invoices []models.Invoice
	for _, inv := range r.invoices {
		if strings.HasPrefix(strings.ToLower(inv.Doc), prefix) {
			invoices = append(invoices, *inv)
		}
	}

	sort.Slice(invoices, func(i, j int) bool {
		if !invoices[i].PurchaseDate.Equal(invoices[j].PurchaseDate) {
			return invoices[i].PurchaseDate.Before(invoices[j].PurchaseDate)
		}
		return invoices[i].UpdatedAt.After(invoices[j].UpdatedAt)
	})

	return invoices, nil
}

func (r *MemoryRepository) RewriteInvoiceDoc(ctx context.Context, oldDoc, newDoc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The caller is overwriting the file at newDoc; its stale annotation
	// goes regardless of whether oldDoc was ever published.
	delete(r.invoices, newDoc)

	inv, ok := r.invoices[oldDoc]
	if !ok {
		return nil // No invoice for this file
	}

	delete(r.invoices, oldDoc)
	inv.Doc = newDoc
	inv.UpdatedAt = time.Now().UTC()
	r.invoices[newDoc] = inv
	return nil
}

// Album operations
func (r *MemoryRepository) CreateAlbum(ctx context.Context, album *models.Album, creatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if album.ID == "" {
		album.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	album.CreatedAt = now
	album.UpdatedAt = now

	copied := *album
	r.albums[album.ID] = &copied
	r.members[memberKey(album.ID, creatorID)] = &models.AlbumMember{
		AlbumID:   album.ID,
		AgentID:   creatorID,
		Role:      "reviewer",
		CreatedAt: now,
	}
	return nil
}

func (r *MemoryRepository) GetAlbum(ctx context.Context, albumID string) (*models.Album, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if al, ok := r.albums[albumID]; ok {
		copied := *al
		return &copied, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetAgentAlbums(ctx context.Context, agentID string) ([]models.Album, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var albums []models.Album
	for _, m := range r.members {
		if m.AgentID == agentID {
			if al, ok := r.albums[m.AlbumID]; ok {
				albums = append(albums, *al)
			}
		}
	}
	sort.Slice(albums, func(i, j int) bool {
		return albums[i].CreatedAt.Before(albums[j].CreatedAt)
	})
	return albums, nil
}

func (r *MemoryRepository) AddAlbumMember(ctx context.Context, member *models.AlbumMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}
	copied := *member
	r.members[memberKey(member.AlbumID, member.AgentID)] = &copied
	return nil
}

func (r *MemoryRepository) GetAlbumMemberRole(ctx context.Context, albumID, agentID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.members[memberKey(albumID, agentID)]; ok {
		return m.Role, nil
	}
	return "", nil
}

// Image operations
func (r *MemoryRepository) CreateImage(ctx context.Context, image *models.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	image.CreatedAt = time.Now().UTC()

	copied := *image
	r.images[image.ID] = &copied
	return nil
}

func (r *MemoryRepository) AddImageFile(ctx context.Context, file *models.ImageFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if file.ID == "" {
		file.ID = uuid.New().String()
	}
	file.CreatedAt = time.Now().UTC()

	copied := *file
	r.files[file.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetImage(ctx context.Context, imageID string) (*models.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if img, ok := r.images[imageID]; ok {
		copied := *img
		return &copied, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetImageFiles(ctx context.Context, imageID string) ([]models.ImageFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var files []models.ImageFile
	for _, f := range r.files {
		if f.ImageID == imageID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

func (r *MemoryRepository) DeleteImage(ctx context.Context, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, f := range r.files {
		if f.ImageID == imageID {
			delete(r.files, id)
		}
	}
	delete(r.images, imageID)
	return nil
}
