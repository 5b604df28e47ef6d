package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docshare/internal/server/config"
	"docshare/internal/server/database"
	"docshare/internal/server/notify"
	"docshare/internal/server/service"
	"docshare/internal/server/storage"

	"github.com/labstack/echo/v4"
)

// --- In-memory fakes backing the HTTP-level tests ---

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*database.User
}

func (m *memUserStore) Create(_ context.Context, u *database.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return database.ErrUserExists
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *memUserStore) GetByUsername(_ context.Context, username string) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*database.Session
}

func (m *memSessionStore) Create(_ context.Context, s *database.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memSessionStore) GetByToken(_ context.Context, token string) (*database.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, database.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type memDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*database.Document
}

func (m *memDocumentStore) Create(_ context.Context, d *database.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *memDocumentStore) GetByID(_ context.Context, id string) (*database.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, database.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocumentStore) Rename(_ context.Context, id, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return database.ErrDocumentNotFound
	}
	d.DisplayName = newName
	return nil
}

func (m *memDocumentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return database.ErrDocumentNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocumentStore) List(_ context.Context) ([]*database.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Document
	for _, d := range m.docs {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

type memIndexStore struct {
	mu    sync.Mutex
	index *database.SharedIndex
}

func (m *memIndexStore) Store(_ context.Context, index *database.SharedIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]database.SharedIndexEntry, len(index.Files))
	copy(files, index.Files)
	m.index = &database.SharedIndex{Files: files}
	return nil
}

func (m *memIndexStore) Get(_ context.Context) (*database.SharedIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return &database.SharedIndex{Files: []database.SharedIndexEntry{}}, nil
	}
	files := make([]database.SharedIndexEntry, len(m.index.Files))
	copy(files, m.index.Files)
	return &database.SharedIndex{Files: files}, nil
}

// --- Test server plumbing ---

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := &config.Config{
		BaseURL:        "http://localhost:8080",
		MaxFileSize:    1 << 20,
		SessionTTL:     time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}

	blobs := storage.NewFileSystemStore(t.TempDir())
	if err := blobs.EnsureDir(); err != nil {
		t.Fatalf("failed to init blob storage: %v", err)
	}

	docStore := &memDocumentStore{docs: make(map[string]*database.Document)}
	indexStore := &memIndexStore{}

	auth := service.NewAuthService(
		&memUserStore{users: make(map[string]*database.User)},
		&memSessionStore{sessions: make(map[string]*database.Session)},
		cfg.SessionTTL,
	)
	index := service.NewIndexBuilder(docStore, indexStore, cfg.BaseURL)
	docs := service.NewDocumentService(docStore, index, blobs, cfg)
	mailer := notify.NewMailer(&config.Config{}) // unconfigured on purpose

	handler := NewHandler(auth, docs, index, mailer, nil)
	return SetupRouter(handler, auth, cfg)
}

func doJSON(t *testing.T, e *echo.Echo, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	resp := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func doUpload(t *testing.T, e *echo.Echo, token, filename, password, content string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.WriteField("password", password); err != nil {
		t.Fatalf("failed to write password field: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	resp := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func login(t *testing.T, e *echo.Echo, username, password string) string {
	t.Helper()
	rec, resp := doJSON(t, e, http.MethodPost, "/login", "", map[string]string{
		"username": username, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", rec.Code, rec.Body.String())
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("login response carried no token")
	}
	return token
}

func signup(t *testing.T, e *echo.Echo, name, username, email, password string) {
	t.Helper()
	rec, _ := doJSON(t, e, http.MethodPost, "/signup", "", map[string]string{
		"name": name, "username": username, "email": email, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("signup failed with %d: %s", rec.Code, rec.Body.String())
	}
}

// --- Tests ---

func TestSignupEndpoint(t *testing.T) {
	t.Run("duplicate username yields 409", func(t *testing.T) {
		e := newTestServer(t)
		signup(t, e, "Alice", "alice", "alice@example.com", "pw1")

		rec, _ := doJSON(t, e, http.MethodPost, "/signup", "", map[string]string{
			"name": "Alice 2", "username": "alice", "email": "a2@example.com", "password": "pw2",
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("missing field yields 400", func(t *testing.T) {
		e := newTestServer(t)
		rec, _ := doJSON(t, e, http.MethodPost, "/signup", "", map[string]string{
			"name": "Alice", "username": "alice",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("bad password yields 401", func(t *testing.T) {
		e := newTestServer(t)
		signup(t, e, "Alice", "alice", "alice@example.com", "pw1")

		rec, _ := doJSON(t, e, http.MethodPost, "/login", "", map[string]string{
			"username": "alice", "password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestUploadEndpoint(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		e := newTestServer(t)
		rec, _ := doUpload(t, e, "", "report.pdf", "secret", "bytes")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("returns qr data uri and download page url", func(t *testing.T) {
		e := newTestServer(t)
		signup(t, e, "Alice", "alice", "alice@example.com", "pw1")
		token := login(t, e, "alice", "pw1")

		rec, resp := doUpload(t, e, token, "report.pdf", "secret", "pdf bytes")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		qrURI, _ := resp["qrImageDataUri"].(string)
		if !strings.HasPrefix(qrURI, "data:image/png;base64,") {
			t.Errorf("unexpected qr uri prefix: %.40s", qrURI)
		}
		pageURL, _ := resp["downloadPageUrl"].(string)
		if !strings.Contains(pageURL, "uid=alice") {
			t.Errorf("share page url not bound to owner: %q", pageURL)
		}
		if docID, _ := resp["docId"].(string); docID == "" {
			t.Error("response carried no docId")
		}
	})
}

// TestDocumentLifecycle drives the full flow: signup, login, upload,
// verify, rename, delete, and the listings in between.
func TestDocumentLifecycle(t *testing.T) {
	e := newTestServer(t)

	signup(t, e, "Alice", "alice", "alice@example.com", "pw1")
	token := login(t, e, "alice", "pw1")

	rec, resp := doUpload(t, e, token, "report.pdf", "secret", "pdf bytes")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload failed with %d: %s", rec.Code, rec.Body.String())
	}
	docID := resp["docId"].(string)

	// Access gate: grant, deny, unknown.
	rec, _ = doJSON(t, e, http.MethodPost, "/verify-password", "", map[string]string{"docId": docID, "password": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected grant, got %d", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodPost, "/verify-password", "", map[string]string{"docId": docID, "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodPost, "/verify-password", "", map[string]string{"docId": "unknown", "password": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown doc, got %d", rec.Code)
	}

	// Gated download.
	req := httptest.NewRequest(http.MethodGet, "/d/"+docID+"?password=secret", nil)
	dl := httptest.NewRecorder()
	e.ServeHTTP(dl, req)
	if dl.Code != http.StatusOK {
		t.Fatalf("download failed with %d", dl.Code)
	}
	if dl.Body.String() != "pdf bytes" {
		t.Errorf("unexpected download body %q", dl.Body.String())
	}

	// Rename, then the listing shows the new name only.
	rec, _ = doJSON(t, e, http.MethodPost, "/files/"+docID+"/rename", token, map[string]string{"newName": "Q3-report.pdf"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename failed with %d: %s", rec.Code, rec.Body.String())
	}

	rec, resp = doJSON(t, e, http.MethodGet, "/files", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed with %d", rec.Code)
	}
	files := resp["files"].([]any)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if name := files[0].(map[string]any)["name"]; name != "Q3-report.pdf" {
		t.Errorf("expected renamed file, got %v", name)
	}

	// The shared index followed the rename.
	rec, resp = doJSON(t, e, http.MethodGet, "/shared", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("shared failed with %d", rec.Code)
	}
	shared := resp["files"].([]any)
	if len(shared) != 1 || shared[0].(map[string]any)["name"] != "Q3-report.pdf" {
		t.Errorf("shared index out of sync: %v", shared)
	}

	// Rename without a session is rejected.
	rec, _ = doJSON(t, e, http.MethodPost, "/files/"+docID+"/rename", "", map[string]string{"newName": "x"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}

	// A different user cannot delete alice's document.
	signup(t, e, "Mallory", "mallory", "mallory@example.com", "pw2")
	malloryToken := login(t, e, "mallory", "pw2")
	rec, _ = doJSON(t, e, http.MethodDelete, "/files/"+docID, malloryToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", rec.Code)
	}

	// Owner delete clears the listing, the index, and the gate.
	rec, _ = doJSON(t, e, http.MethodDelete, "/files/"+docID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed with %d: %s", rec.Code, rec.Body.String())
	}

	rec, resp = doJSON(t, e, http.MethodGet, "/files", "", nil)
	if files := resp["files"].([]any); len(files) != 0 {
		t.Errorf("listing still contains %d files", len(files))
	}
	rec, resp = doJSON(t, e, http.MethodGet, "/shared", "", nil)
	if shared := resp["files"].([]any); len(shared) != 0 {
		t.Errorf("shared index still contains %d entries", len(shared))
	}
	rec, _ = doJSON(t, e, http.MethodPost, "/verify-password", "", map[string]string{"docId": docID, "password": "secret"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodDelete, "/files/"+docID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", rec.Code)
	}
}

func TestContactEndpoint(t *testing.T) {
	t.Run("missing fields yield 400", func(t *testing.T) {
		e := newTestServer(t)
		rec, _ := doJSON(t, e, http.MethodPost, "/contact", "", map[string]string{"email": "a@example.com"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unconfigured mailer yields 500", func(t *testing.T) {
		e := newTestServer(t)
		rec, _ := doJSON(t, e, http.MethodPost, "/contact", "", map[string]string{
			"email": "a@example.com", "message": "hello",
		})
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})
}
