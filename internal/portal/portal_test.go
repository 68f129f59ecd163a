package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/laskarbuah/freelance-portal/internal/cli/client"
	"github.com/laskarbuah/freelance-portal/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticIP string

func (s staticIP) Resolve(context.Context) string { return string(s) }

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingNavigator) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recordingNavigator) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}

// fakePortal imitates the portal server in front of the HR API
type fakePortal struct {
	t          *testing.T
	mu         sync.Mutex
	loginIP    string
	loginAppID int
	logouts    int
	uploads    []string
	submitted  []client.SubmitAttendanceRequest
	loginReply func(w http.ResponseWriter, req client.LoginRequest)
}

func (f *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/freelance/FreelanceLogin":
		var req client.LoginRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.loginIP = req.IP
		f.loginAppID = req.AplikasiID
		if f.loginReply != nil {
			f.loginReply(w, req)
			return
		}
		if req.KodeUser == "E001" && req.Password == "correct" {
			w.Write([]byte(`{"success":true,"data":{"id":42,"nama":"Siti","token":"tok-42"}}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
	case "/api/freelance/FreelanceLogout":
		f.logouts++
		w.Write([]byte(`{"success":true}`))
	case "/api/freelance/FreelanceAbsensi/GetList":
		assert.Equal(f.t, "42", r.URL.Query().Get("id_freelance"))
		w.Write([]byte(`[{"id_absen":7,"tanggal":"2026-10-14"}]`))
	case "/api/freelance/FreelanceAbsensi/SetAbsen":
		var req client.SubmitAttendanceRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.submitted = append(f.submitted, req)
		w.Write([]byte(`{"success":true,"message":"OK"}`))
	case "/api/freelance/FreelanceProfile/GetDetail":
		w.Write([]byte(`{"success":false,"message":"Profil tidak ditemukan"}`))
	case "/api/upload-s3":
		f.uploads = append(f.uploads, "attendance")
		w.Write([]byte(`{"url":"https://b.s3.r.amazonaws.com/attendance/u1.jpg"}`))
	case "/api/upload-profile-s3":
		require.NoError(f.t, r.ParseMultipartForm(1<<20))
		f.uploads = append(f.uploads, "profile:"+r.FormValue("kode_user"))
		w.Write([]byte(`{"url":"https://b.s3.r.amazonaws.com/freelance_profile/42.jpg","success":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newController(t *testing.T, baseURL string) (*Controller, *session.Context, *recordingNavigator) {
	t.Helper()

	sessions := session.NewContext(session.NewMemoryStore())
	require.NoError(t, sessions.Hydrate())

	nav := &recordingNavigator{}
	c := New(client.New(baseURL), staticIP("198.51.100.4"), sessions, nav, 3, zerolog.Nop())
	return c, sessions, nav
}

func TestLogin_ValidCredentials(t *testing.T) {
	fp := &fakePortal{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c, sessions, nav := newController(t, srv.URL)

	s, err := c.Login(context.Background(), "E001", "correct")
	require.NoError(t, err)

	assert.Equal(t, "tok-42", s.Token)
	assert.Equal(t, session.User{ID: 42, Name: "Siti"}, *s.User)
	assert.Equal(t, "tok-42", sessions.Token())
	assert.Equal(t, "/", nav.last())
	assert.Equal(t, Authenticated, c.State())

	assert.Equal(t, "198.51.100.4", fp.loginIP)
	assert.Equal(t, 3, fp.loginAppID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{t: t})
	defer srv.Close()

	c, sessions, nav := newController(t, srv.URL)

	s, err := c.Login(context.Background(), "E001", "wrong")
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Kode User atau Password salah.", err.Error())

	assert.Nil(t, sessions.Current())
	assert.Empty(t, sessions.Token())
	assert.Nil(t, sessions.User())
	assert.Empty(t, nav.paths)
	assert.Equal(t, Anonymous, c.State())
}

func TestLogin_FailureClearsPreviousSession(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{t: t})
	defer srv.Close()

	c, sessions, _ := newController(t, srv.URL)
	_, err := sessions.Establish("old-token", session.User{ID: 1, Name: "Old"})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "E001", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, sessions.Current())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply func(w http.ResponseWriter, req client.LoginRequest)
		want  string
	}{
		{
			name: "success false keeps upstream message",
			reply: func(w http.ResponseWriter, req client.LoginRequest) {
				w.Write([]byte(`{"success":false,"message":"Akun dinonaktifkan"}`))
			},
			want: "Akun dinonaktifkan",
		},
		{
			name: "success without token",
			reply: func(w http.ResponseWriter, req client.LoginRequest) {
				w.Write([]byte(`{"success":true,"data":{"id":42,"nama":"Siti"}}`))
			},
			want: "Login failed",
		},
		{
			name: "server error",
			reply: func(w http.ResponseWriter, req client.LoginRequest) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"message":"database down"}`))
			},
			want: "database down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(&fakePortal{t: t, loginReply: tt.reply})
			defer srv.Close()

			c, sessions, _ := newController(t, srv.URL)

			_, err := c.Login(context.Background(), "E001", "correct")
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Nil(t, sessions.Current())
		})
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	fp := &fakePortal{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c, _, _ := newController(t, srv.URL)

	_, err := c.Login(context.Background(), "E001", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Empty(t, fp.loginIP, "no exchange should be attempted")
}

func TestLogin_TransportErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, sessions, _ := newController(t, url)

	_, err := c.Login(context.Background(), "E001", "correct")
	require.Error(t, err)

	var te *client.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Nil(t, sessions.Current())
}

func TestLogout(t *testing.T) {
	fp := &fakePortal{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c, sessions, nav := newController(t, srv.URL)
	_, err := c.Login(context.Background(), "E001", "correct")
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))

	assert.Equal(t, 1, fp.logouts)
	assert.Nil(t, sessions.Current())
	assert.Equal(t, "/login", nav.last())
	assert.Equal(t, Anonymous, c.State())
}

func TestLogout_UpstreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, sessions, nav := newController(t, url)
	_, err := sessions.Establish("tok-42", session.User{ID: 42, Name: "Siti"})
	require.NoError(t, err)

	require.NoError(t, c.Logout(context.Background()))

	assert.Nil(t, sessions.Current())
	assert.Empty(t, sessions.Token())
	assert.Equal(t, "/login", nav.last())
}

func TestLogout_Anonymous(t *testing.T) {
	fp := &fakePortal{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c, _, nav := newController(t, srv.URL)

	require.NoError(t, c.Logout(context.Background()))
	assert.Zero(t, fp.logouts)
	assert.Equal(t, "/login", nav.last())
}

func TestGuard(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{t: t})
	defer srv.Close()

	c, _, _ := newController(t, srv.URL)
	assert.Equal(t, "/login", c.Guard("/dashboard").Redirect)
	assert.True(t, c.Guard("/login").Allowed())

	_, err := c.Login(context.Background(), "E001", "correct")
	require.NoError(t, err)
	assert.Equal(t, "/", c.Guard("/login").Redirect)
	assert.True(t, c.Guard("/dashboard").Allowed())
}

func TestEmployeeCalls_Anonymous(t *testing.T) {
	srv := httptest.NewServer(&fakePortal{t: t})
	defer srv.Close()

	c, _, _ := newController(t, srv.URL)
	ctx := context.Background()

	rows, err := c.AttendanceList(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows)

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Nil(t, profile)

	_, err = c.SubmitAttendance(ctx, 7, Photo{Filename: "a.jpg", Body: strings.NewReader("x")}, "-6.2,106.8")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.UpdateProfilePhoto(ctx, Photo{Filename: "a.jpg", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestEmployeeCalls(t *testing.T) {
	fp := &fakePortal{t: t}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c, _, _ := newController(t, srv.URL)
	ctx := context.Background()
	_, err := c.Login(ctx, "E001", "correct")
	require.NoError(t, err)

	rows, err := c.AttendanceList(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-10-14", rows[0]["tanggal"])

	url, err := c.SubmitAttendance(ctx, 7, Photo{Filename: "selfie.jpg", Body: strings.NewReader("pixels")}, "-6.2,106.8")
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.r.amazonaws.com/attendance/u1.jpg", url)
	require.Len(t, fp.submitted, 1)
	assert.Equal(t, client.SubmitAttendanceRequest{IDAbsen: 7, Foto: url, Map: "-6.2,106.8", IDFreelance: 42}, fp.submitted[0])

	url, err = c.UpdateProfilePhoto(ctx, Photo{Filename: "me.jpg", Body: io.NopCloser(strings.NewReader("pixels"))})
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.r.amazonaws.com/freelance_profile/42.jpg", url)
	assert.Equal(t, []string{"attendance", "profile:42"}, fp.uploads)

	_, err = c.Profile(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Profil tidak ditemukan")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "anonymous", Anonymous.String())
	assert.Equal(t, "authenticating", Authenticating.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "logging_out", LoggingOut.String())
}
