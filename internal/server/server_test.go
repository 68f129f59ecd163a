package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laskarbuah/freelance-portal/internal/config"
	"github.com/laskarbuah/freelance-portal/internal/objectstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testHeaderKey = "X-Api-Secret"
	testAPIKey    = "s3cr3t-value"
)

// memoryStore is an in-memory bucket
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]objectstore.Object
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, meta: map[string]objectstore.Object{}}
}

func (m *memoryStore) Put(ctx context.Context, obj objectstore.Object) (*objectstore.Uploaded, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = data
	m.meta[obj.Key] = obj

	return &objectstore.Uploaded{
		Bucket:      "portal-bucket",
		Key:         obj.Key,
		ContentType: obj.ContentType,
		PublicURL:   "https://portal-bucket.s3.ap-southeast-1.amazonaws.com/" + obj.Key,
	}, nil
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", AllowOrigins: []string{"http://localhost:3000"}},
		Upstream: config.UpstreamConfig{
			BaseURL:   upstreamURL,
			HeaderKey: testHeaderKey,
			APIKey:    testAPIKey,
			UserAgent: "PostmanRuntime/7.50.0",
			Timeout:   5 * time.Second,
		},
		Storage: config.StorageConfig{
			Region:         "ap-southeast-1",
			Bucket:         "portal-bucket",
			MaxUploadBytes: 1 << 20,
		},
		Logging: config.LoggingConfig{Level: "debug", Format: "json"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, store *memoryStore, logs io.Writer) *Server {
	t.Helper()
	if logs == nil {
		logs = io.Discard
	}
	srv, err := New(context.Background(), cfg, zerolog.New(logs), "test", WithObjectStore(store))
	require.NoError(t, err)
	return srv
}

type formPart struct {
	field       string
	filename    string
	contentType string
	data        string
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.field, p.data))
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postForm(t *testing.T, h http.Handler, path string, parts ...formPart) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, testConfig("http://upstream.invalid"), newMemoryStore(), nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "test", body["version"])

	_, err := ulid.ParseStrict(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestRequestID_ReusesInbound(t *testing.T) {
	srv := newTestServer(t, testConfig("http://upstream.invalid"), newMemoryStore(), nil)
	id := ulid.Make().String()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", id)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "not-a-ulid")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-ulid", w.Header().Get("X-Request-ID"))
}

func TestProxyRoute(t *testing.T) {
	var got *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
	}))
	defer upstream.Close()

	var logs bytes.Buffer
	srv := newTestServer(t, testConfig(upstream.URL+"/api"), newMemoryStore(), &logs)

	req := httptest.NewRequest(http.MethodPost, "/api/freelance/FreelanceLogin?x=1", strings.NewReader(`{"kode_user":"E001","password":"wrong"}`))
	req.Header.Set("Cookie", "auth_token=abc")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.NotNil(t, got)
	assert.Equal(t, "/api/FreelanceLogin", got.URL.Path)
	assert.Equal(t, "x=1", got.URL.RawQuery)
	assert.Equal(t, testAPIKey, got.Header.Get(testHeaderKey))
	assert.Empty(t, got.Header.Get("Cookie"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Unauthorized"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), testAPIKey)
	for _, values := range w.Header() {
		for _, v := range values {
			assert.NotContains(t, v, testAPIKey)
		}
	}
	assert.NotContains(t, logs.String(), testAPIKey)
	assert.NotContains(t, logs.String(), "wrong")
}

func TestUploadAttendancePhoto(t *testing.T) {
	store := newMemoryStore()
	srv := newTestServer(t, testConfig("http://upstream.invalid"), store, nil)

	w1 := postForm(t, srv.Handler(), "/api/upload-s3", formPart{field: "file", filename: "selfie.png", contentType: "image/png", data: "photo"})
	w2 := postForm(t, srv.Handler(), "/api/upload-s3", formPart{field: "file", filename: "selfie.png", contentType: "image/png", data: "photo"})

	require.Equal(t, http.StatusOK, w1.Code, w1.Body.String())
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())

	url1 := decodeJSON(t, w1)["url"].(string)
	url2 := decodeJSON(t, w2)["url"].(string)
	assert.NotEqual(t, url1, url2)
	assert.True(t, strings.HasPrefix(url1, "https://portal-bucket.s3.ap-southeast-1.amazonaws.com/attendance/"))
	assert.True(t, strings.HasSuffix(url1, ".png"))

	key := strings.TrimPrefix(url1, "https://portal-bucket.s3.ap-southeast-1.amazonaws.com/")
	assert.True(t, store.meta[key].PublicRead)
	assert.Equal(t, "image/png", store.meta[key].ContentType)
}

func TestUploadAttendancePhoto_FirstFilePart(t *testing.T) {
	store := newMemoryStore()
	srv := newTestServer(t, testConfig("http://upstream.invalid"), store, nil)

	w := postForm(t, srv.Handler(), "/api/upload-s3", formPart{field: "photo", filename: "x", data: "photo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasSuffix(decodeJSON(t, w)["url"].(string), ".jpg"))
}

func TestUploadAttendancePhoto_FirstFieldByName(t *testing.T) {
	for i := 0; i < 20; i++ {
		store := newMemoryStore()
		srv := newTestServer(t, testConfig("http://upstream.invalid"), store, nil)

		w := postForm(t, srv.Handler(), "/api/upload-s3",
			formPart{field: "zeta", filename: "z.png", data: "zeta"},
			formPart{field: "alpha", filename: "a.gif", data: "alpha"},
			formPart{field: "mid", filename: "m.bmp", data: "mid"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		url := decodeJSON(t, w)["url"].(string)
		require.True(t, strings.HasSuffix(url, ".gif"), "picked %s", url)
		key := strings.TrimPrefix(url, "https://portal-bucket.s3.ap-southeast-1.amazonaws.com/")
		assert.Equal(t, "alpha", string(store.objects[key]))
	}
}

func TestUploadProfilePhoto_Overwrites(t *testing.T) {
	store := newMemoryStore()
	srv := newTestServer(t, testConfig("http://upstream.invalid"), store, nil)

	w1 := postForm(t, srv.Handler(), "/api/upload-profile-s3",
		formPart{field: "kode_user", data: "U1"},
		formPart{field: "file", filename: "a.jpg", contentType: "image/jpeg", data: "photoA"})
	w2 := postForm(t, srv.Handler(), "/api/upload-profile-s3",
		formPart{field: "kode_user", data: "U1"},
		formPart{field: "file", filename: "b.jpg", contentType: "image/jpeg", data: "photoB"})

	require.Equal(t, http.StatusOK, w1.Code, w1.Body.String())
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())

	b1, b2 := decodeJSON(t, w1), decodeJSON(t, w2)
	assert.Equal(t, b1["url"], b2["url"])
	assert.Equal(t, true, b2["success"])
	assert.Equal(t, "https://portal-bucket.s3.ap-southeast-1.amazonaws.com/freelance_profile/U1.jpg", b2["url"])
	assert.Equal(t, "photoB", string(store.objects["freelance_profile/U1.jpg"]))
	assert.Equal(t, "max-age=0", store.meta["freelance_profile/U1.jpg"].CacheControl)
	assert.False(t, store.meta["freelance_profile/U1.jpg"].PublicRead)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		parts []formPart
		want  string
	}{
		{
			name: "generic without parts",
			path: "/api/upload-s3",
			want: "No file uploaded",
		},
		{
			name:  "generic with only fields",
			path:  "/api/upload-s3",
			parts: []formPart{{field: "note", data: "hi"}},
			want:  "No file uploaded",
		},
		{
			name: "profile without parts",
			path: "/api/upload-profile-s3",
			want: "No file uploaded",
		},
		{
			name:  "profile without file",
			path:  "/api/upload-profile-s3",
			parts: []formPart{{field: "kode_user", data: "U1"}},
			want:  "File is missing",
		},
		{
			name:  "profile without kode_user",
			path:  "/api/upload-profile-s3",
			parts: []formPart{{field: "file", filename: "a.jpg", data: "x"}},
			want:  "kode_user is missing",
		},
		{
			name: "profile with traversal",
			path: "/api/upload-profile-s3",
			parts: []formPart{
				{field: "kode_user", data: "../etc"},
				{field: "file", filename: "a.jpg", data: "x"},
			},
			want: "kode_user is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			srv := newTestServer(t, testConfig("http://upstream.invalid"), store, nil)

			w := postForm(t, srv.Handler(), tt.path, tt.parts...)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decodeJSON(t, w)["error"])
			assert.Empty(t, store.objects)
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	srv := newTestServer(t, testConfig("http://upstream.invalid"), newMemoryStore(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload-s3", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file uploaded", decodeJSON(t, w)["error"])
}

func TestUpload_StorageError(t *testing.T) {
	store := newMemoryStore()
	store.err = &objectstore.Error{Op: "put object", Name: "AccessDenied", Message: "Access Denied"}
	srv := newTestServer(t, testConfig("http://upstream.invalid"), store, nil)

	w := postForm(t, srv.Handler(), "/api/upload-profile-s3",
		formPart{field: "kode_user", data: "U1"},
		formPart{field: "file", filename: "a.jpg", data: "x"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to upload to S3: Access Denied (AccessDenied)", decodeJSON(t, w)["error"])
}

func TestWebShellGuard(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>shell</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sw.js"), []byte("self.addEventListener()"), 0o644))

	cfg := testConfig("http://upstream.invalid")
	cfg.Web.Root = root
	srv := newTestServer(t, cfg, newMemoryStore(), nil)

	tests := []struct {
		name     string
		path     string
		token    string
		status   int
		location string
	}{
		{"anonymous dashboard", "/dashboard", "", http.StatusFound, "/login"},
		{"anonymous login", "/login", "", http.StatusOK, ""},
		{"signed in login", "/login", "tok", http.StatusFound, "/"},
		{"signed in dashboard", "/dashboard", "tok", http.StatusOK, ""},
		{"anonymous service worker", "/sw.js", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.token})
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
		})
	}
}

func TestWebShellDisabled(t *testing.T) {
	srv := newTestServer(t, testConfig("http://upstream.invalid"), newMemoryStore(), nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
