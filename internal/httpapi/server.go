// Package httpapi serves the configuration web API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"hornsignal/internal/config"
	"hornsignal/internal/controller"
	"hornsignal/internal/device"
	"hornsignal/internal/honk"
	"hornsignal/internal/lifecycle"
	"hornsignal/internal/store"
	"hornsignal/internal/synth"
	"hornsignal/internal/ws"
)

const maxBody = "64K"

// Options wires the server to the rest of the system. Store, Hub and Sim
// are optional.
type Options struct {
	Manager    *lifecycle.Manager
	Controller *controller.Controller
	Store      *store.Store
	Hub        *ws.Hub
	// Sim enables POST /api/inputs when the inputs are simulated.
	Sim *[controller.NumInputs]device.SimPin
	Dit time.Duration
}

// Server is the Echo application.
type Server struct {
	echo *echo.Echo
	opts Options

	mu     sync.Mutex
	tracks synth.TrackSet
	morse  string
}

// New constructs an Echo app with the configuration routes.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBody))

	if opts.Dit <= 0 {
		opts.Dit = honk.DefaultDit
	}
	s := &Server{echo: e, opts: opts, tracks: opts.Manager.DefaultSet()}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.GET("/api/events", s.handleEvents)
	if s.opts.Sim != nil {
		s.echo.POST("/api/inputs", s.handleInputs)
	}

	s.echo.GET("/speakerData", s.handleGetTracks)
	s.echo.POST("/saveSpeakerData", s.handleSaveTracks)
	s.echo.GET("/pattern", s.handleGetPattern)
	s.echo.POST("/pattern", s.handleSavePattern)
	s.echo.GET("/morseMessage", s.handleGetMorse)
	s.echo.POST("/morseMessage", s.handleSaveMorse)

	if s.opts.Hub != nil {
		s.opts.Hub.Register(s.echo)
	}
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

// LoadPersisted applies the stored track, pattern and Morse documents. A
// document that no longer parses is skipped.
func (s *Server) LoadPersisted(ctx context.Context) error {
	st := s.opts.Store
	if st == nil {
		return nil
	}

	if doc, err := st.Document(ctx, store.DocTracks); err == nil {
		ts := config.ParseTracks(doc.Body)
		s.mu.Lock()
		s.tracks = ts
		s.mu.Unlock()
		s.opts.Manager.HotSwap(ts)
		slog.Info("loaded tracks", "revision", doc.Revision)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if doc, err := st.Document(ctx, store.DocPattern); err == nil {
		p, err := config.DecodePattern(doc.Body)
		if err != nil {
			slog.Warn("stored pattern ignored", "revision", doc.Revision, "err", err)
		} else if err := s.opts.Manager.SetPattern(p); err != nil {
			return err
		} else {
			slog.Info("loaded pattern", "revision", doc.Revision, "holds", len(p.Holds))
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if doc, err := st.Document(ctx, store.DocMorse); err == nil {
		s.mu.Lock()
		s.morse = string(doc.Body)
		s.mu.Unlock()
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// State is the payload of GET /api/state and of websocket snapshots.
type State struct {
	Mode    controller.Mode   `json:"mode"`
	Levels  controller.Levels `json:"levels"`
	Status  lifecycle.Status  `json:"status"`
	Pattern patternView       `json:"pattern"`
}

type patternView struct {
	FirstHigh bool    `json:"first_high"`
	HoldsMs   []int64 `json:"holds_ms"`
}

// Snapshot returns the current state.
func (s *Server) Snapshot() State {
	p := s.opts.Manager.Pattern()
	view := patternView{FirstHigh: p.FirstHigh, HoldsMs: make([]int64, len(p.Holds))}
	for i, d := range p.Holds {
		view.HoldsMs[i] = d.Milliseconds()
	}
	st := State{Status: s.opts.Manager.Status(), Pattern: view}
	if s.opts.Controller != nil {
		st.Mode = s.opts.Controller.Mode()
		st.Levels = s.opts.Controller.Levels()
	}
	return st
}

type healthResponse struct {
	Status string          `json:"status"`
	Mode   controller.Mode `json:"mode"`
}

func (s *Server) handleHealth(c echo.Context) error {
	var mode controller.Mode
	if s.opts.Controller != nil {
		mode = s.opts.Controller.Mode()
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Mode: mode})
}

func (s *Server) handleState(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Snapshot())
}

func (s *Server) handleEvents(c echo.Context) error {
	if s.opts.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event log is not configured")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, 1000)
	}
	events, err := s.opts.Store.RecentEvents(c.Request().Context(), limit)
	if err != nil {
		slog.Error("load events", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load events")
	}
	if events == nil {
		events = []store.Event{}
	}
	return c.JSON(http.StatusOK, events)
}

type inputsRequest struct {
	Enable    *bool `json:"enable"`
	Emergency *bool `json:"emergency"`
	SynthHorn *bool `json:"synth_horn"`
	ForceHorn *bool `json:"force_horn"`
}

func (s *Server) handleInputs(c echo.Context) error {
	var req inputsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid inputs payload")
	}
	for i, v := range [controller.NumInputs]*bool{req.Enable, req.Emergency, req.SynthHorn, req.ForceHorn} {
		if v != nil {
			s.opts.Sim[i].Set(*v)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetTracks(c echo.Context) error {
	s.mu.Lock()
	ts := s.tracks.Clone()
	s.mu.Unlock()
	data, err := config.MarshalTracks(ts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode tracks")
	}
	return c.JSONBlob(http.StatusOK, data)
}

type saveResponse struct {
	Revision  string `json:"revision,omitempty"`
	Restarted bool   `json:"restarted"`
}

func (s *Server) handleSaveTracks(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	ts, err := config.DecodeTracks(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rev, err := s.persist(c.Request().Context(), store.DocTracks, body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tracks = ts
	s.mu.Unlock()
	restarted := s.opts.Manager.HotSwap(ts)
	slog.Info("tracks saved", "revision", rev, "restarted", restarted)
	s.publish(ws.TypeConfig, map[string]string{"document": store.DocTracks, "revision": rev})
	return c.JSON(http.StatusOK, saveResponse{Revision: rev, Restarted: restarted})
}

func (s *Server) handleGetPattern(c echo.Context) error {
	data, err := config.MarshalPattern(s.opts.Manager.Pattern())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode pattern")
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (s *Server) handleSavePattern(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	p, err := config.DecodePattern(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return s.applyPattern(c, p, body)
}

func (s *Server) applyPattern(c echo.Context, p honk.Pattern, body []byte) error {
	if err := s.opts.Manager.SetPattern(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rev, err := s.persist(c.Request().Context(), store.DocPattern, body)
	if err != nil {
		return err
	}
	slog.Info("pattern saved", "revision", rev, "holds", len(p.Holds), "period", p.Period())
	s.publish(ws.TypeConfig, map[string]string{"document": store.DocPattern, "revision": rev})
	return c.JSON(http.StatusOK, saveResponse{Revision: rev})
}

func (s *Server) handleGetMorse(c echo.Context) error {
	s.mu.Lock()
	text := s.morse
	s.mu.Unlock()
	return c.String(http.StatusOK, text)
}

func (s *Server) handleSaveMorse(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	text := strings.TrimSpace(string(body))
	p := honk.FromMorse(text, s.opts.Dit)
	if text != "" && p.Empty() {
		return echo.NewHTTPError(http.StatusBadRequest, "message has no Morse-encodable characters")
	}
	if _, err := s.persist(c.Request().Context(), store.DocMorse, []byte(text)); err != nil {
		return err
	}
	s.mu.Lock()
	s.morse = text
	s.mu.Unlock()

	encoded, err := config.MarshalPattern(p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode pattern")
	}
	return s.applyPattern(c, p, encoded)
}

// persist stores body under name and returns the new revision. Without a
// store nothing is persisted and the revision is empty.
func (s *Server) persist(ctx context.Context, name string, body []byte) (string, error) {
	if s.opts.Store == nil {
		return "", nil
	}
	doc, err := s.opts.Store.SaveDocument(ctx, name, body)
	if err != nil {
		slog.Error("persist document", "name", name, "err", err)
		return "", echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to save %s", name))
	}
	return doc.Revision, nil
}

func (s *Server) publish(typ string, data any) {
	if s.opts.Hub != nil {
		s.opts.Hub.Publish(typ, data)
	}
}
