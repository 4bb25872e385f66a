package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/receiptvault/server/internal/api"
	"github.com/receiptvault/server/internal/models"
	"github.com/receiptvault/server/internal/repository"
	"github.com/receiptvault/server/internal/service"
	"github.com/receiptvault/server/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-key"

// FakeConverter stands in for the external spreadsheet tool so API tests
// run without it installed
type FakeConverter struct {
	Fail bool
}

func (c *FakeConverter) Convert(ctx context.Context, templatePath string, csv io.Reader, out io.Writer) error {
	if _, err := io.Copy(io.Discard, csv); err != nil {
		return err
	}
	if c.Fail {
		return fmt.Errorf("could not create spreadsheet: exit status 1")
	}
	_, err := out.Write([]byte("ods-bytes"))
	return err
}

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	Store      *storage.Store
	Converter  *FakeConverter
}

// SetupTestContext creates a new test context with an in-memory repository
// and a throwaway uploads tree
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	repo := repository.NewMemoryRepository()
	store := storage.NewStore(t.TempDir())
	conv := &FakeConverter{}

	logger := zap.NewNop()
	svc := service.NewDefaultService(repo, store, conv, "templates/mer.ods", logger, testJWTSecret)
	handler := api.NewHandler(svc, logger, t.TempDir())

	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	return &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Store:      store,
		Converter:  conv,
	}
}

// CreateAgent registers an agent directly in the repository and returns it
// with a signed token. The password is always "testpassword".
func CreateAgent(t *testing.T, testCtx *TestContext, email, name string) (*models.Agent, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)
	require.NoError(t, err)

	agent := &models.Agent{
		Email:    email,
		Name:     name,
		Password: string(hashedPassword),
	}
	require.NoError(t, testCtx.Repository.CreateAgent(context.Background(), agent))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": agent.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	return agent, tokenString
}

// WriteDoc places a file into an agent directory, bypassing the upload route
func WriteDoc(t *testing.T, testCtx *TestContext, dir, name, content string) {
	t.Helper()
	require.NoError(t, testCtx.Store.EnsureDir(dir))
	require.NoError(t, os.WriteFile(testCtx.Store.FilePath(dir, name), []byte(content), 0o644))
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// PerformUpload executes a multipart upload with one "files" part per entry
func PerformUpload(t *testing.T, r http.Handler, path string, files map[string]string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeJSON unmarshals a recorded response body into v
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
