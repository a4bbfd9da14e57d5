package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/app"
	iauth "github.com/taskwell/taskwell/internal/auth"
	"github.com/taskwell/taskwell/internal/database/testutil"
	"github.com/taskwell/taskwell/pkg/mail"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *mail.Outbox) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "test",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	signer, err := iauth.NewTransferSigner(iauth.TransferSignerConfig{Secret: "router-test-secret"})
	require.NoError(t, err)

	outbox := mail.NewOutbox()

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(db, jwtSvc, signer, outbox, cfg)
	require.NoError(t, err)

	return router, db, outbox
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(encoded)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": "router-test-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"identifier": username,
		"password":   "router-test-pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var parsed struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	require.NotEmpty(t, parsed.Data.AccessToken)
	return parsed.Data.AccessToken
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/projects", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterProjectLifecycle(t *testing.T) {
	router, _, _ := newTestRouter(t)

	token := registerAndLogin(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/projects", token, gin.H{
		"name":       "Router Project",
		"is_private": false,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "router-project", created.Data.Slug)

	// Public project is readable without a token, by id or by slug.
	w = doJSON(t, router, http.MethodGet, "/api/projects/"+created.Data.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/projects/by-slug/"+created.Data.Slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/projects/by-slug/no-such-project", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	// Flip to private and anonymous access is gone.
	w = doJSON(t, router, http.MethodPatch, "/api/projects/"+created.Data.ID, token, gin.H{
		"is_private": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/projects/"+created.Data.ID, "", nil)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// The owner still sees it.
	w = doJSON(t, router, http.MethodGet, "/api/projects/"+created.Data.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouterTransferFlow(t *testing.T) {
	router, db, outbox := newTestRouter(t)

	ownerToken := registerAndLogin(t, router, "owner")
	candidateToken := registerAndLogin(t, router, "candidate")

	w := doJSON(t, router, http.MethodPost, "/api/projects", ownerToken, gin.H{
		"name": "Handover",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data struct {
			ID      string `json:"id"`
			OwnerID string `json:"owner_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Find the candidate's user id and the project role to add them.
	var candidateID, roleID string
	require.NoError(t, db.Raw("SELECT id FROM users WHERE username = ?", "candidate").Scan(&candidateID).Error)
	require.NoError(t, db.Raw("SELECT id FROM roles WHERE project_id = ?", created.Data.ID).Scan(&roleID).Error)

	w = doJSON(t, router, http.MethodPost, "/api/memberships", ownerToken, gin.H{
		"project_id": created.Data.ID,
		"user_id":    candidateID,
		"role_id":    roleID,
		"is_admin":   true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/projects/"+created.Data.ID+"/transfer/start", ownerToken, gin.H{
		"user_id": candidateID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	messages := outbox.Messages()
	require.NotEmpty(t, messages)
	offer := messages[len(messages)-1]
	require.Equal(t, []string{"candidate@example.com"}, offer.To)

	var storedToken string
	require.NoError(t, db.Raw("SELECT transfer_token FROM projects WHERE id = ?", created.Data.ID).Scan(&storedToken).Error)
	require.NotEmpty(t, storedToken)

	w = doJSON(t, router, http.MethodPost, "/api/projects/"+created.Data.ID+"/transfer/accept", candidateToken, gin.H{
		"token": storedToken,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var newOwner string
	require.NoError(t, db.Raw("SELECT owner_id FROM projects WHERE id = ?", created.Data.ID).Scan(&newOwner).Error)
	require.Equal(t, candidateID, newOwner)
}
