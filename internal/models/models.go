package models

import (
	"strings"
	"time"
)

// Agent represents an authenticated user owning one upload directory
type Agent struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Surname returns the last whitespace-separated token of the agent's name,
// used for the export spreadsheet filenames.
func (a *Agent) Surname() string {
	fields := strings.Fields(a.Name)
	if len(fields) == 0 {
		return a.Name
	}
	return fields[len(fields)-1]
}

// AccessGrant records that Agent may read or write Peer's directory
type AccessGrant struct {
	AgentID    string    `db:"agent_id" json:"agentId"`
	PeerID     string    `db:"peer_id" json:"peerId"`
	Permission string    `db:"permission" json:"permission"` // "read" or "write"
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Invoice is the annotation record attached to one uploaded document.
// Doc is the relative path "domain/local/filename", unique across the
// collection and doubling as the foreign key to the physical file.
type Invoice struct {
	ID           string    `db:"id" json:"id"`
	Doc          string    `db:"doc" json:"doc"`
	Category     int       `db:"category" json:"category"`
	PurchaseDate time.Time `db:"purchase_date" json:"purchaseDate"`
	Reason       string    `db:"reason" json:"reason"`
	Total        int64     `db:"total" json:"total"` // minor currency units (cents)
	Currency     string    `db:"currency" json:"currency"`
	ExchangeRate float64   `db:"exchange_rate" json:"exchangeRate"`
	AgentID      string    `db:"agent_id" json:"agentId"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Album groups images submitted by agents (legacy submission flow)
type Album struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AlbumMember attaches an agent to an album with a role
type AlbumMember struct {
	AlbumID   string    `db:"album_id" json:"albumId"`
	AgentID   string    `db:"agent_id" json:"agentId"`
	Role      string    `db:"role" json:"role"` // "reviewer", "submitter" or "viewer"
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Image belongs to one album and one agent and owns its ImageFile records
type Image struct {
	ID        string    `db:"id" json:"id"`
	AlbumID   string    `db:"album_id" json:"albumId"`
	AgentID   string    `db:"agent_id" json:"agentId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ImageFile wraps one physical file owned by an Image. Removing the
// parent Image removes its ImageFiles, each unlinking its file on disk.
type ImageFile struct {
	ID        string    `db:"id" json:"id"`
	ImageID   string    `db:"image_id" json:"imageId"`
	Path      string    `db:"path" json:"path"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
