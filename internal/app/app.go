// Package app implements the relay web server sitting between the operator and the robot.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"RoboCtl/internal/device"
	"RoboCtl/internal/parser"
)

// Options configures an App.
type Options struct {
	HistoryDB  string // empty disables telemetry history
	FeedFormat string // json/frame, default json
	Logger     *zap.SugaredLogger
}

// App is the relay: it probes and forwards frames to the robot over Device,
// records decoded telemetry and pushes it to websocket subscribers.
type App struct {
	Device device.Device
	Store  *Store
	Feed   parser.Parser
	Mux    *http.ServeMux
	Server *http.Server

	hub  *hub
	mock bool
	log  *zap.SugaredLogger

	srvMu   sync.Mutex
	stopped bool
}

// NewApp initializes the relay with its link, history store and routes.
func NewApp(dev device.Device, opts Options) (*App, error) {
	if dev == nil {
		return nil, errors.New("[app] nil robot link")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	format := opts.FeedFormat
	if format == "" {
		format = "json"
	}
	feed, ok := parser.ByName(format)
	if !ok {
		return nil, fmt.Errorf("[app] unknown feed format %q", format)
	}

	var store *Store
	if opts.HistoryDB != "" {
		s, err := OpenStore(opts.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("[app] failed to open history: %w", err)
		}
		store = s
	}

	_, mock := dev.(*device.MockDevice)
	a := &App{
		Device: dev,
		Store:  store,
		Feed:   feed,
		Mux:    http.NewServeMux(),
		hub:    newHub(logger),
		mock:   mock,
		log:    logger,
	}
	a.registerRoutes()
	return a, nil
}

// Handler returns the mux wrapped with the CORS policy browsers need to reach the relay.
func (a *App) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type"},
		OptionsSuccessStatus: http.StatusOK,
	})
	return c.Handler(a.Mux)
}

// Start launches the web server and blocks until stopped.
func (a *App) Start(addr string) error {
	if addr == "" {
		a.log.Info("relay server not started (empty address)")
		return nil
	}

	addr = strings.TrimPrefix(addr, "http://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	a.srvMu.Lock()
	if a.stopped {
		a.srvMu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.Server = srv
	a.srvMu.Unlock()

	a.log.Infow("relay listening", "addr", addr, "mock", a.mock)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("[app] HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the web server, drops websocket clients and closes the store and link.
func (a *App) Stop() error {
	a.srvMu.Lock()
	a.stopped = true
	srv := a.Server
	a.srvMu.Unlock()

	var err error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = multierr.Append(err, srv.Shutdown(ctx))
	}
	a.hub.closeAll()
	if a.Store != nil {
		err = multierr.Append(err, a.Store.Close())
	}
	err = multierr.Append(err, a.Device.Close())
	if err != nil {
		a.log.Warnw("relay stopped with errors", "error", err)
		return err
	}
	a.log.Info("relay stopped cleanly")
	return nil
}
