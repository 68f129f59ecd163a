// Package portal drives the employee session: login, logout, and the
// attendance and profile calls made on behalf of the signed-in user.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/laskarbuah/freelance-portal/internal/cli/client"
	"github.com/laskarbuah/freelance-portal/internal/guard"
	"github.com/laskarbuah/freelance-portal/internal/session"
	"github.com/laskarbuah/freelance-portal/internal/upstream"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidCredentials is returned when the upstream rejects the login with 401
	ErrInvalidCredentials = errors.New("Kode User atau Password salah.")

	// ErrMissingCredentials is returned before any call when kode_user or password is empty
	ErrMissingCredentials = errors.New("kode_user and password are required")

	// ErrNotAuthenticated is returned by calls that need a signed-in user
	ErrNotAuthenticated = errors.New("not authenticated, run 'portal login' first")
)

const defaultLoginFailure = "Login failed"

// State is the lifecycle phase of the session
type State int32

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case LoggingOut:
		return "logging_out"
	default:
		return "anonymous"
	}
}

// API is the subset of the portal client the controller calls
type API interface {
	Login(ctx context.Context, req client.LoginRequest) (upstream.Result[client.LoginData], error)
	Logout(ctx context.Context, token string, idFreelance int) (upstream.Result[json.RawMessage], error)
	GetAttendanceList(ctx context.Context, token string, idFreelance int) (upstream.Result[[]client.Record], error)
	SubmitAttendance(ctx context.Context, token string, req client.SubmitAttendanceRequest) (upstream.Result[json.RawMessage], error)
	GetProfile(ctx context.Context, token string, idFreelance int) (upstream.Result[client.Record], error)
	UploadPhoto(ctx context.Context, filename string, photo io.Reader) (upstream.Result[client.UploadResponse], error)
	UploadProfilePhoto(ctx context.Context, kodeUser, filename string, photo io.Reader) (upstream.Result[client.UploadResponse], error)
}

// IPResolver returns the caller's public address, never failing
type IPResolver interface {
	Resolve(ctx context.Context) string
}

// Navigator receives redirects
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Photo is an image file to upload
type Photo struct {
	Filename string
	Body     io.Reader
}

type credentials struct {
	KodeUser string `validate:"required"`
	Password string `validate:"required"`
}

// Controller owns the session lifecycle. It is meant for a single writer;
// concurrent Login and Logout calls are not coordinated and the last write wins.
type Controller struct {
	api      API
	ip       IPResolver
	sessions *session.Context
	nav      Navigator
	appID    int
	validate *validator.Validate
	logger   zerolog.Logger

	// transient phase while Login or Logout is running
	phase atomic.Int32
}

// New creates a controller. sessions must already be hydrated.
func New(api API, ip IPResolver, sessions *session.Context, nav Navigator, appID int, log zerolog.Logger) *Controller {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Controller{
		api:      api,
		ip:       ip,
		sessions: sessions,
		nav:      nav,
		appID:    appID,
		validate: validator.New(),
		logger:   log,
	}
}

// State reports the current lifecycle phase
func (c *Controller) State() State {
	if s := State(c.phase.Load()); s != Anonymous {
		return s
	}
	if c.sessions.Current() != nil {
		return Authenticated
	}
	return Anonymous
}

// Session returns the current session, or nil when anonymous
func (c *Controller) Session() *session.Session {
	return c.sessions.Current()
}

// Guard returns the navigation decision for path given the current session
func (c *Controller) Guard(path string) guard.Decision {
	return guard.Decide(c.sessions.Token() != "", path)
}

// Login exchanges credentials for a session and navigates home. Any failure
// leaves the session empty.
func (c *Controller) Login(ctx context.Context, kodeUser, password string) (*session.Session, error) {
	c.phase.Store(int32(Authenticating))
	defer c.phase.Store(int32(Anonymous))

	s, err := c.login(ctx, kodeUser, password)
	if err != nil {
		if clearErr := c.sessions.Clear(); clearErr != nil {
			c.logger.Warn().Err(clearErr).Msg("Failed to clear session after login failure")
		}
		return nil, err
	}

	c.logger.Info().Int("user_id", s.User.ID).Msg("Login successful")
	c.nav.Navigate(guard.HomePath)
	return s, nil
}

func (c *Controller) login(ctx context.Context, kodeUser, password string) (*session.Session, error) {
	if err := c.validate.Struct(credentials{KodeUser: kodeUser, Password: password}); err != nil {
		return nil, ErrMissingCredentials
	}

	req := client.LoginRequest{
		KodeUser:   kodeUser,
		Password:   password,
		IP:         c.ip.Resolve(ctx),
		AplikasiID: c.appID,
	}

	res, err := c.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	if f, failed := res.Failure(); failed {
		if f.StatusCode == http.StatusUnauthorized {
			return nil, ErrInvalidCredentials
		}
		msg := f.Message
		if msg == "" {
			msg = defaultLoginFailure
		}
		return nil, errors.New(msg)
	}

	data, _ := res.Data()
	if data.Token == "" {
		return nil, errors.New(defaultLoginFailure)
	}

	return c.sessions.Establish(data.Token, session.User{ID: data.ID, Name: data.Nama})
}

// Logout notifies the upstream when possible, then clears the session and
// navigates to the login page regardless of the outcome.
func (c *Controller) Logout(ctx context.Context) error {
	c.phase.Store(int32(LoggingOut))
	defer c.phase.Store(int32(Anonymous))

	if s := c.sessions.Current(); s != nil && s.User.ID != 0 {
		c.notifyLogout(ctx, s)
	}

	err := c.sessions.Clear()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear persisted session")
	}

	c.nav.Navigate(guard.LoginPath)
	return err
}

func (c *Controller) notifyLogout(ctx context.Context, s *session.Session) {
	res, err := c.api.Logout(ctx, s.Token, s.User.ID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Logout API error")
		return
	}
	if f, failed := res.Failure(); failed {
		c.logger.Warn().Int("status", f.StatusCode).Str("message", f.Message).Msg("Logout API error")
	}
}

// AttendanceList returns the attendance schedule. It is empty when nobody is signed in.
func (c *Controller) AttendanceList(ctx context.Context) ([]client.Record, error) {
	s := c.sessions.Current()
	if s == nil {
		return []client.Record{}, nil
	}

	res, err := c.api.GetAttendanceList(ctx, s.Token, s.User.ID)
	if err != nil {
		return nil, err
	}
	rows, err := res.Unwrap()
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []client.Record{}
	}
	return rows, nil
}

// SubmitAttendance uploads the photo under a unique key and records the
// attendance entry with its URL.
func (c *Controller) SubmitAttendance(ctx context.Context, idAbsen int, photo Photo, mapLocation string) (string, error) {
	s := c.sessions.Current()
	if s == nil {
		return "", ErrNotAuthenticated
	}

	up, err := c.api.UploadPhoto(ctx, photo.Filename, photo.Body)
	if err != nil {
		return "", err
	}
	uploaded, err := up.Unwrap()
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	res, err := c.api.SubmitAttendance(ctx, s.Token, client.SubmitAttendanceRequest{
		IDAbsen:     idAbsen,
		Foto:        uploaded.URL,
		Map:         mapLocation,
		IDFreelance: s.User.ID,
	})
	if err != nil {
		return "", err
	}
	if _, err := res.Unwrap(); err != nil {
		return "", fmt.Errorf("failed to submit attendance: %w", err)
	}

	c.logger.Info().Int("id_absen", idAbsen).Msg("Attendance submitted")
	return uploaded.URL, nil
}

// Profile returns the profile detail, or nil when nobody is signed in
func (c *Controller) Profile(ctx context.Context) (client.Record, error) {
	s := c.sessions.Current()
	if s == nil {
		return nil, nil
	}

	res, err := c.api.GetProfile(ctx, s.Token, s.User.ID)
	if err != nil {
		return nil, err
	}
	return res.Unwrap()
}

// UpdateProfilePhoto replaces the signed-in user's profile photo. The URL is
// the same on every call.
func (c *Controller) UpdateProfilePhoto(ctx context.Context, photo Photo) (string, error) {
	s := c.sessions.Current()
	if s == nil {
		return "", ErrNotAuthenticated
	}

	res, err := c.api.UploadProfilePhoto(ctx, strconv.Itoa(s.User.ID), photo.Filename, photo.Body)
	if err != nil {
		return "", err
	}
	up, err := res.Unwrap()
	if err != nil {
		return "", fmt.Errorf("failed to upload profile photo: %w", err)
	}
	return up.URL, nil
}
