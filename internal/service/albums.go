package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/receiptvault/server/internal/models"
	"go.uber.org/zap"
)

// Album member roles
const (
	RoleReviewer  = "reviewer"
	RoleSubmitter = "submitter"
	RoleViewer    = "viewer"
)

// StagedFile is an upload the API layer has saved to a temporary location,
// waiting to be moved into an album directory.
type StagedFile struct {
	Name     string
	TempPath string
}

// CreateAlbum creates an album with the caller as its first reviewer
func (s *DefaultService) CreateAlbum(ctx context.Context, agent *models.Agent, req models.CreateAlbumRequest) (*models.AlbumResponse, error) {
	album := &models.Album{
		ID:   uuid.New().String(),
		Name: req.Name,
	}

	if err := s.repo.CreateAlbum(ctx, album, agent.ID); err != nil {
		return nil, fmt.Errorf("error creating album: %w", err)
	}

	return &models.AlbumResponse{
		Status:  "success",
		AlbumID: album.ID,
		Name:    album.Name,
	}, nil
}

// ListAlbums returns the albums the agent is a member of
func (s *DefaultService) ListAlbums(ctx context.Context, agent *models.Agent) ([]models.Album, error) {
	albums, err := s.repo.GetAgentAlbums(ctx, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing albums: %w", err)
	}
	return albums, nil
}

// AddAlbumMember attaches another agent to an album. Only reviewers may
// manage membership.
func (s *DefaultService) AddAlbumMember(ctx context.Context, agent *models.Agent, albumID string, req models.AddAlbumMemberRequest) error {
	role, err := s.repo.GetAlbumMemberRole(ctx, albumID, agent.ID)
	if err != nil {
		return fmt.Errorf("error checking album role: %w", err)
	}
	if role != RoleReviewer {
		return ErrForbidden
	}

	member, err := s.repo.GetAgentByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("error getting agent: %w", err)
	}
	if member == nil {
		return ErrNotFound
	}

	return s.repo.AddAlbumMember(ctx, &models.AlbumMember{
		AlbumID: albumID,
		AgentID: member.ID,
		Role:    req.Role,
	})
}

// SubmitImage creates an image in an album from staged uploads. Each file
// moves into a date-and-album-named directory as it is attached.
func (s *DefaultService) SubmitImage(ctx context.Context, agent *models.Agent, albumID string, files []StagedFile) (*models.ImageResponse, error) {
	album, err := s.repo.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("error getting album: %w", err)
	}
	if album == nil {
		return nil, ErrNotFound
	}

	role, err := s.repo.GetAlbumMemberRole(ctx, albumID, agent.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking album role: %w", err)
	}
	if role != RoleSubmitter && role != RoleReviewer {
		return nil, ErrForbidden
	}

	image := &models.Image{
		ID:      uuid.New().String(),
		AlbumID: albumID,
		AgentID: agent.ID,
	}
	if err := s.repo.CreateImage(ctx, image); err != nil {
		return nil, fmt.Errorf("error creating image: %w", err)
	}

	dir := path.Join("albums", time.Now().UTC().Format("2006-01-02")+"-"+slugify(album.Name))

	paths := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := s.store.MoveInto(dir, f.Name, f.TempPath)
		if err != nil {
			return nil, fmt.Errorf("error storing %s: %w", f.Name, err)
		}

		if err := s.repo.AddImageFile(ctx, &models.ImageFile{
			ImageID: image.ID,
			Path:    rel,
		}); err != nil {
			return nil, fmt.Errorf("error attaching %s: %w", f.Name, err)
		}

		paths = append(paths, rel)
	}

	return &models.ImageResponse{
		Status:  "success",
		ImageID: image.ID,
		Files:   paths,
	}, nil
}

// DeleteImage removes an image, cascading to its files: each physical file
// is unlinked before the rows go away.
func (s *DefaultService) DeleteImage(ctx context.Context, agent *models.Agent, imageID string) error {
	image, err := s.repo.GetImage(ctx, imageID)
	if err != nil {
		return fmt.Errorf("error getting image: %w", err)
	}
	if image == nil {
		return ErrNotFound
	}

	if image.AgentID != agent.ID {
		role, err := s.repo.GetAlbumMemberRole(ctx, image.AlbumID, agent.ID)
		if err != nil {
			return fmt.Errorf("error checking album role: %w", err)
		}
		if role != RoleReviewer {
			return ErrForbidden
		}
	}

	files, err := s.repo.GetImageFiles(ctx, imageID)
	if err != nil {
		return fmt.Errorf("error getting image files: %w", err)
	}

	for _, f := range files {
		if err := s.store.RemovePath(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			// Best effort: a stuck file should not keep the rows around
			s.logger.Warn("delete image: could not unlink file",
				zap.String("path", f.Path), zap.Error(err))
		}
	}

	return s.repo.DeleteImage(ctx, imageID)
}

// slugify lowercases a name and collapses anything that is not a letter or
// digit into single dashes, for use in directory names.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
