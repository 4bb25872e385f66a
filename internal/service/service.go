package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/receiptvault/server/internal/export"
	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/repository"
	"github.com/receiptvault/server/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetAgent(ctx context.Context, agentID string) (*models.Agent, error)

	// Directory permissions
	ReadableDirectories(ctx context.Context, agent *models.Agent) ([]string, error)
	WritableDirectories(ctx context.Context, agent *models.Agent) ([]string, error)
	ReadablesWithCounts(ctx context.Context, agent *models.Agent) ([]models.DirectorySummary, error)
	CanRead(ctx context.Context, agent *models.Agent, dir string) (bool, error)
	CanWrite(ctx context.Context, agent *models.Agent, dir string) (bool, error)
	GrantAccess(ctx context.Context, owner *models.Agent, req models.GrantAccessRequest) (*models.GrantAccessResponse, error)
	RevokeAccess(ctx context.Context, owner *models.Agent, req models.GrantAccessRequest) error

	// Documents and invoices
	ListDocuments(ctx context.Context, agent *models.Agent, dir string, page int) (*models.DocumentListResponse, error)
	GetDocument(ctx context.Context, agent *models.Agent, dir, name string) (*models.DocumentResponse, error)
	DocumentPath(ctx context.Context, agent *models.Agent, dir, name string) (string, error)
	UploadPath(ctx context.Context, agent *models.Agent, dir, name string) (string, error)
	PublishInvoice(ctx context.Context, agent *models.Agent, dir, name string, req models.PublishInvoiceRequest) (*models.Invoice, error)
	DeleteDocument(ctx context.Context, agent *models.Agent, dir, name string) error

	// Claim periods
	Archive(ctx context.Context, agent *models.Agent, dir string) (int, error)
	BuildExport(ctx context.Context, agent *models.Agent, dir string, w io.Writer) (string, error)

	// Albums (legacy submission flow)
	CreateAlbum(ctx context.Context, agent *models.Agent, req models.CreateAlbumRequest) (*models.AlbumResponse, error)
	ListAlbums(ctx context.Context, agent *models.Agent) ([]models.Album, error)
	AddAlbumMember(ctx context.Context, agent *models.Agent, albumID string, req models.AddAlbumMemberRequest) error
	SubmitImage(ctx context.Context, agent *models.Agent, albumID string, files []StagedFile) (*models.ImageResponse, error)
	DeleteImage(ctx context.Context, agent *models.Agent, imageID string) error
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo            repository.Repository
	store           *storage.Store
	converter       export.Converter
	defaultTemplate string
	logger          *zap.Logger
	jwtSecret       []byte
	tokenDuration   time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(
	repo repository.Repository,
	store *storage.Store,
	converter export.Converter,
	defaultTemplate string,
	logger *zap.Logger,
	jwtSecret string,
) Service {
	return &DefaultService{
		repo:            repo,
		store:           store,
		converter:       converter,
		defaultTemplate: defaultTemplate,
		logger:          logger,
		jwtSecret:       []byte(jwtSecret),
		tokenDuration:   24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if agent already exists
	existing, err := s.repo.GetAgentByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking agent existence: %w", err)
	}

	if existing != nil {
		return nil, ErrEmailTaken
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	agent := &models.Agent{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		// Concurrent signup with the same email loses the race here
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating agent: %w", err)
	}

	return &models.AuthResponse{
		Status:  "success",
		AgentID: agent.ID,
		Email:   agent.Email,
		Name:    agent.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	agent, err := s.repo.GetAgentByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting agent: %w", err)
	}

	if agent == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(agent.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(agent)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		AgentID:   agent.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// GetAgent resolves the request-scoped identity from a token subject
func (s *DefaultService) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	agent, err := s.repo.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("error getting agent: %w", err)
	}
	if agent == nil {
		return nil, ErrNotFound
	}
	return agent, nil
}

// Helper methods
func (s *DefaultService) generateJWT(agent *models.Agent) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": agent.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
