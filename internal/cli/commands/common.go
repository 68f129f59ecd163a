package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/laskarbuah/freelance-portal/internal/cli/client"
	"github.com/laskarbuah/freelance-portal/internal/cli/config"
	"github.com/laskarbuah/freelance-portal/internal/ipinfo"
	"github.com/laskarbuah/freelance-portal/internal/logger"
	"github.com/laskarbuah/freelance-portal/internal/portal"
	"github.com/laskarbuah/freelance-portal/internal/session"
)

// Deps is what commands need from the outside world. Tests replace fields.
type Deps struct {
	Out        io.Writer
	Err        io.Writer
	LoadConfig func() (*config.Config, error)
	OpenStore  func(*config.Config) (session.Store, error)
	HTTPClient *http.Client
	Prompter   Prompter
}

// DefaultDeps wires commands to the process environment
func DefaultDeps() *Deps {
	return &Deps{
		Out:        os.Stdout,
		Err:        os.Stderr,
		LoadConfig: config.Load,
		OpenStore: func(cfg *config.Config) (session.Store, error) {
			return cfg.OpenStore()
		},
		Prompter: terminalPrompter{},
	}
}

// app is one command invocation's hydrated state
type app struct {
	cfg      *config.Config
	sessions *session.Context
	api      *client.Client
	ctrl     *portal.Controller
	logger   zerolog.Logger
}

// newApp loads config, hydrates the session once, and builds the controller
func newApp(d *Deps) (*app, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(d.Err, cfg.LogLevel, "console")

	store, err := d.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	sessions := session.NewContext(store)
	if err := sessions.Hydrate(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	api := client.New(cfg.PortalURL)
	resolver := ipinfo.New(cfg.IPLookupURL, log)
	if d.HTTPClient != nil {
		api.SetHTTPClient(d.HTTPClient)
		resolver.SetHTTPClient(d.HTTPClient)
	}

	nav := portal.NavigatorFunc(func(path string) {
		fmt.Fprintf(d.Out, "→ %s\n", path)
	})

	return &app{
		cfg:      cfg,
		sessions: sessions,
		api:      api,
		ctrl:     portal.New(api, resolver, sessions, nav, cfg.AppID, log),
		logger:   log,
	}, nil
}

// requireSession returns the current session or a hint to log in
func (a *app) requireSession() (*session.Session, error) {
	s := a.ctrl.Session()
	if s == nil {
		return nil, portal.ErrNotAuthenticated
	}
	return s, nil
}
