package service

import (
	"context"
	"fmt"

	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/storage"
)

// Grant permissions as stored in agent_access
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
)

// grantedDirectories expands one grant list into directory paths. The
// agent's own directory is always present, listed last for display, and
// exactly once even if an agent somehow holds a grant on itself.
func (s *DefaultService) grantedDirectories(ctx context.Context, agent *models.Agent, permission string) ([]string, error) {
	peers, err := s.repo.GrantedPeers(ctx, agent.ID, permission)
	if err != nil {
		return nil, fmt.Errorf("error expanding %s grants: %w", permission, err)
	}

	own := storage.AgentDir(agent.Email)
	dirs := make([]string, 0, len(peers)+1)
	for _, peer := range peers {
		dir := storage.AgentDir(peer.Email)
		if dir == own {
			continue
		}
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, own)

	return dirs, nil
}

// ReadableDirectories returns every directory the agent may list, own
// directory last.
func (s *DefaultService) ReadableDirectories(ctx context.Context, agent *models.Agent) ([]string, error) {
	return s.grantedDirectories(ctx, agent, PermissionRead)
}

// WritableDirectories returns every directory the agent may upload to and
// mutate, own directory last.
func (s *DefaultService) WritableDirectories(ctx context.Context, agent *models.Agent) ([]string, error) {
	return s.grantedDirectories(ctx, agent, PermissionWrite)
}

// ReadablesWithCounts pairs each readable directory with its visible-file
// count. Directories that have never been written to count as zero.
func (s *DefaultService) ReadablesWithCounts(ctx context.Context, agent *models.Agent) ([]models.DirectorySummary, error) {
	dirs, err := s.ReadableDirectories(ctx, agent)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.DirectorySummary, 0, len(dirs))
	for _, dir := range dirs {
		count, err := s.store.CountDocuments(dir)
		if err != nil {
			return nil, fmt.Errorf("error counting documents in %s: %w", dir, err)
		}
		summaries = append(summaries, models.DirectorySummary{Path: dir, FileCount: count})
	}

	return summaries, nil
}

// CanRead reports whether the agent may list dir. A write grant implies
// read visibility; writing still requires an explicit write grant.
func (s *DefaultService) CanRead(ctx context.Context, agent *models.Agent, dir string) (bool, error) {
	readable, err := s.ReadableDirectories(ctx, agent)
	if err != nil {
		return false, err
	}
	for _, d := range readable {
		if d == dir {
			return true, nil
		}
	}
	return s.CanWrite(ctx, agent, dir)
}

// CanWrite reports whether the agent may upload to and mutate dir
func (s *DefaultService) CanWrite(ctx context.Context, agent *models.Agent, dir string) (bool, error) {
	writable, err := s.WritableDirectories(ctx, agent)
	if err != nil {
		return false, err
	}
	for _, d := range writable {
		if d == dir {
			return true, nil
		}
	}
	return false, nil
}

// GrantAccess gives a peer read or write access to the owner's directory
func (s *DefaultService) GrantAccess(ctx context.Context, owner *models.Agent, req models.GrantAccessRequest) (*models.GrantAccessResponse, error) {
	peer, err := s.repo.GetAgentByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting agent: %w", err)
	}
	if peer == nil {
		return nil, ErrNotFound
	}

	grant := &models.AccessGrant{
		AgentID:    peer.ID,
		PeerID:     owner.ID,
		Permission: req.Permission,
	}
	if err := s.repo.UpsertAccessGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("error saving grant: %w", err)
	}

	return &models.GrantAccessResponse{
		Status:     "success",
		Message:    "Access granted",
		AgentID:    peer.ID,
		Email:      peer.Email,
		Permission: req.Permission,
	}, nil
}

// RevokeAccess removes a peer's access to the owner's directory
func (s *DefaultService) RevokeAccess(ctx context.Context, owner *models.Agent, req models.GrantAccessRequest) error {
	peer, err := s.repo.GetAgentByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("error getting agent: %w", err)
	}
	if peer == nil {
		return ErrNotFound
	}

	return s.repo.RevokeAccessGrant(ctx, peer.ID, owner.ID, req.Permission)
}
