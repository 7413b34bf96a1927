package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/modvault/session-security/internal/domain"
	"github.com/modvault/session-security/internal/geo"
	"github.com/modvault/session-security/internal/http/handler"
	"github.com/modvault/session-security/internal/http/router"
	"github.com/modvault/session-security/internal/repository"
	"github.com/modvault/session-security/internal/security"
	"github.com/modvault/session-security/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type sessionTestServer struct {
	URL       string
	DB        *gorm.DB
	Lifecycle *service.SessionLifecycle
	Sweeper   *service.Sweeper
}

func newSessionTestServer(t *testing.T) (*sessionTestServer, *http.Client, func()) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	history := repository.NewLoginHistoryRepository(db)

	jwtMgr := security.NewJWTManager("sessiond-test", "sessiond-test", "integration-test-secret")
	throttle := service.NewLoginThrottle(users, 5, 30*time.Second)
	risk := service.NewRiskAnalyzer(history, nil)
	lifecycle := service.NewSessionLifecycle(users, sessions, history, throttle, risk,
		geo.NewResolver(nil, nil), jwtMgr, 30*24*time.Hour, nil)
	accounts := service.NewAccountService(users)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:    handler.NewAuthHandler(accounts, lifecycle),
		SessionHandler: handler.NewSessionHandler(lifecycle),
		AdminHandler:   handler.NewAdminHandler(lifecycle, history),
		JWTManager:     jwtMgr,
		Lifecycle:      lifecycle,
		LoginLimiter:   service.NewNoopLoginLimiter(),
	})
	server := httptest.NewServer(h)
	client := &http.Client{Timeout: 10 * time.Second}

	ts := &sessionTestServer{
		URL:       server.URL,
		DB:        db,
		Lifecycle: lifecycle,
		Sweeper:   service.NewSweeper(sessions, time.Hour, nil),
	}
	return ts, client, server.Close
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope for %s %s: %v", method, url, err)
	}
	return resp, env
}

func registerAndLogin(t *testing.T, client *http.Client, baseURL, email, password string) (string, string) {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register",
		map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d", resp.StatusCode)
	}
	return login(t, client, baseURL, email, password)
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) (string, string) {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d", resp.StatusCode)
	}
	var body struct {
		Token        string `json:"token"`
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if body.Token == "" || body.SessionToken == "" {
		t.Fatalf("login response incomplete: %+v", body)
	}
	return body.Token, body.SessionToken
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func promoteToAdmin(t *testing.T, db *gorm.DB, email string) {
	t.Helper()
	if err := db.Model(&domain.User{}).Where("email = ?", email).Update("is_admin", true).Error; err != nil {
		t.Fatalf("promote admin: %v", err)
	}
}
