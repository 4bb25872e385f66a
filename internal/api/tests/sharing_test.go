package api_test

import (
	"net/http"
	"testing"

	"github.com/receiptvault/server/internal/api/testutils"
	"github.com/receiptvault/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantAndRevokeAccess(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, danToken := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")
	_, lannyToken := testutils.CreateAgent(t, testCtx, "lanny@example.com", "Lanny Olsen")

	testutils.WriteDoc(t, testCtx, "example.com/daniel", "receipt1.jpg", "jpeg-bytes")

	// lanny cannot see daniel's directory yet
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs", nil, testutils.AuthHeaders(lannyToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// daniel grants lanny read access to his own directory
	grantReq := models.GrantAccessRequest{
		Email:      "lanny@example.com",
		Permission: "read",
	}
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/access/grants", grantReq, testutils.AuthHeaders(danToken))
	require.Equal(t, http.StatusCreated, w.Code)

	var granted models.GrantAccessResponse
	testutils.DecodeJSON(t, w, &granted)
	assert.Equal(t, "lanny@example.com", granted.Email)
	assert.Equal(t, "read", granted.Permission)

	// lanny can now list the directory and it appears in their overview
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs", nil, testutils.AuthHeaders(lannyToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs", nil, testutils.AuthHeaders(lannyToken))
	require.Equal(t, http.StatusOK, w.Code)

	var dirs models.DirectoryListResponse
	testutils.DecodeJSON(t, w, &dirs)
	require.Len(t, dirs.Directories, 2)
	assert.Equal(t, "example.com/daniel", dirs.Directories[0].Path)
	assert.Equal(t, "example.com/lanny", dirs.Directories[1].Path)

	// read access does not allow uploads
	w = testutils.PerformUpload(t, testCtx.Router,
		"/api/dirs/example.com/daniel/docs",
		map[string]string{"sneaky.jpg": "x"},
		testutils.AuthHeaders(lannyToken),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// revoking closes the directory again
	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete,
		"/api/access/grants", grantReq, testutils.AuthHeaders(danToken))
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs", nil, testutils.AuthHeaders(lannyToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWriteGrantAllowsUploads(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, danToken := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")
	_, troyToken := testutils.CreateAgent(t, testCtx, "troy@example.com", "Troy Baxter")

	grantReq := models.GrantAccessRequest{
		Email:      "troy@example.com",
		Permission: "write",
	}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/access/grants", grantReq, testutils.AuthHeaders(danToken))
	require.Equal(t, http.StatusCreated, w.Code)

	w = testutils.PerformUpload(t, testCtx.Router,
		"/api/dirs/example.com/daniel/docs",
		map[string]string{"receipt1.jpg": "jpeg-bytes"},
		testutils.AuthHeaders(troyToken),
	)
	assert.Equal(t, http.StatusCreated, w.Code)

	// write implies read
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet,
		"/api/dirs/example.com/daniel/docs", nil, testutils.AuthHeaders(troyToken))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGrantToUnknownAgent(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	_, danToken := testutils.CreateAgent(t, testCtx, "daniel@example.com", "Daniel Marchand")

	grantReq := models.GrantAccessRequest{
		Email:      "nobody@example.com",
		Permission: "read",
	}
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/access/grants", grantReq, testutils.AuthHeaders(danToken))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
