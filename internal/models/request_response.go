package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type PublishInvoiceRequest struct {
	Category     int     `json:"category" binding:"required"`
	PurchaseDate string  `json:"purchaseDate" binding:"required,datetime=2006-01-02"`
	Reason       string  `json:"reason" binding:"required"`
	Total        int64   `json:"total" binding:"required"`
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchangeRate"`
}

type GrantAccessRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Permission string `json:"permission" binding:"required,oneof=read write"`
}

type CreateAlbumRequest struct {
	Name string `json:"name" binding:"required"`
}

type AddAlbumMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=reviewer submitter viewer"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	AgentID   string `json:"agentId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// DirectorySummary pairs a readable directory with its visible-file count
type DirectorySummary struct {
	Path      string `json:"path"`
	FileCount int    `json:"fileCount"`
}

type DirectoryListResponse struct {
	Status      string             `json:"status"`
	Directories []DirectorySummary `json:"directories"`
}

// DocumentEntry is one visible file in a directory listing
type DocumentEntry struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"` // "image" or "link"
	HasInvoice bool   `json:"hasInvoice"`
}

type DocumentListResponse struct {
	Status    string          `json:"status"`
	Directory string          `json:"directory"`
	Entries   []DocumentEntry `json:"entries"`
	Page      int             `json:"page"`
	NextPage  int             `json:"nextPage,omitempty"`
	PrevPage  int             `json:"prevPage,omitempty"`
}

type DocumentResponse struct {
	Status  string        `json:"status"`
	Entry   DocumentEntry `json:"entry"`
	Invoice *Invoice      `json:"invoice,omitempty"`
}

type InvoiceResponse struct {
	Status  string   `json:"status"`
	Invoice *Invoice `json:"invoice,omitempty"`
}

type UploadResponse struct {
	Status   string   `json:"status"`
	Uploaded []string `json:"uploaded"`
}

type ArchiveResponse struct {
	Status   string `json:"status"`
	Archived int    `json:"archived"`
}

type GrantAccessResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	AgentID    string `json:"agentId,omitempty"`
	Email      string `json:"email,omitempty"`
	Permission string `json:"permission,omitempty"`
}

type AlbumResponse struct {
	Status  string `json:"status"`
	AlbumID string `json:"albumId,omitempty"`
	Name    string `json:"name,omitempty"`
}

type AlbumListResponse struct {
	Status string  `json:"status"`
	Albums []Album `json:"albums"`
}

type ImageResponse struct {
	Status  string   `json:"status"`
	ImageID string   `json:"imageId,omitempty"`
	Files   []string `json:"files,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrorResponse carries one message per offending invoice field
type ValidationErrorResponse struct {
	Status string            `json:"status"`
	Code   string            `json:"code"`
	Errors map[string]string `json:"errors"`
}
