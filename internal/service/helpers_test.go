package service

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/repository"
	"github.com/receiptvault/server/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubConverter stands in for the external spreadsheet tool
type stubConverter struct {
	fail         bool
	lastTemplate string
	output       []byte
}

func (c *stubConverter) Convert(ctx context.Context, templatePath string, csv io.Reader, out io.Writer) error {
	c.lastTemplate = templatePath
	if _, err := io.Copy(io.Discard, csv); err != nil {
		return err
	}
	if c.fail {
		return errors.New("could not create spreadsheet: exit status 1")
	}
	if c.output == nil {
		c.output = []byte("ods-bytes")
	}
	_, err := out.Write(c.output)
	return err
}

func newTestService(t *testing.T, repo repository.Repository, conv *stubConverter) (*DefaultService, *storage.Store) {
	t.Helper()
	store := storage.NewStore(t.TempDir())
	svc := &DefaultService{
		repo:            repo,
		store:           store,
		converter:       conv,
		defaultTemplate: "templates/mer.ods",
		logger:          zap.NewNop(),
		jwtSecret:       []byte("test-secret"),
		tokenDuration:   time.Hour,
	}
	return svc, store
}

func createAgent(t *testing.T, repo repository.Repository, email, name string) *models.Agent {
	t.Helper()
	agent := &models.Agent{Email: email, Name: name, Password: "x"}
	require.NoError(t, repo.CreateAgent(context.Background(), agent))
	return agent
}

func grant(t *testing.T, repo repository.Repository, agent, peer *models.Agent, permission string) {
	t.Helper()
	require.NoError(t, repo.UpsertAccessGrant(context.Background(), &models.AccessGrant{
		AgentID:    agent.ID,
		PeerID:     peer.ID,
		Permission: permission,
	}))
}

func writeDoc(t *testing.T, store *storage.Store, dir, name string) {
	t.Helper()
	require.NoError(t, store.EnsureDir(dir))
	require.NoError(t, os.WriteFile(store.FilePath(dir, name), []byte("file-"+name), 0o644))
}
