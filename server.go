// server.go - HTTP render host: bank listings and score-to-WAV rendering

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	SERVER_MAX_SCORE_BYTES    = 1 << 20
	SERVER_MAX_RENDER_SECONDS = 300
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr        string
	BankDir     string
	DefaultBank string // file name under BankDir
	Render      OfflineConfig
}

// SynthServer renders scores against banks from one directory. Banks are
// decoded once, and concurrent first requests share a single decode.
type SynthServer struct {
	config ServerConfig
	router *chi.Mux
	logger *slog.Logger

	loads singleflight.Group
	mu    sync.Mutex
	banks map[string]*SF2Bank
}

// NewSynthServer creates a server and its routes
func NewSynthServer(cfg ServerConfig, logger *slog.Logger) *SynthServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SynthServer{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		banks:  make(map[string]*SF2Bank),
	}
	s.setupRoutes()
	return s
}

func (s *SynthServer) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/banks", s.handleBanks)
	r.Get("/presets", s.handlePresets)
	r.Get("/banks/{bank}/presets", s.handlePresets)
	r.Post("/render", s.handleRender)
	r.Post("/banks/{bank}/render", s.handleRender)
}

// Handler exposes the router
func (s *SynthServer) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *SynthServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.String("addr", s.config.Addr), slog.String("banks", s.config.BankDir))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

// Bank returns a decoded, warmed bank by file name
func (s *SynthServer) Bank(name string) (*SF2Bank, error) {
	if name == "" {
		name = s.config.DefaultBank
	}
	s.mu.Lock()
	if b, ok := s.banks[name]; ok {
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()

	v, err, _ := s.loads.Do(name, func() (interface{}, error) {
		path, ok := sanitizeBankPath(s.config.BankDir, name)
		if !ok {
			return nil, errors.Errorf("invalid bank name %q", name)
		}
		h, err := LoadSF2File(path)
		if err != nil {
			return nil, err
		}
		b := NewSF2Bank(name, h, 0)
		b.Warm()
		s.mu.Lock()
		s.banks[name] = b
		s.mu.Unlock()
		s.logger.Info("bank cached", slog.String("bank", name), slog.Int("presets", h.PresetCount()))
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SF2Bank), nil
}

func (s *SynthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *SynthServer) handleBanks(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.config.BankDir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && isBankFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	s.writeJSON(w, http.StatusOK, map[string]any{"banks": names, "default": s.config.DefaultBank})
}

func (s *SynthServer) handlePresets(w http.ResponseWriter, r *http.Request) {
	bank, err := s.Bank(chi.URLParam(r, "bank"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	program, err := queryInt(r, "program", 0, 0, 127)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BuildLookupTable(bank, program))
}

func (s *SynthServer) handleRender(w http.ResponseWriter, r *http.Request) {
	bank, err := s.Bank(chi.URLParam(r, "bank"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	cfg := s.config.Render
	if cfg.Program, err = queryInt(r, "program", cfg.Program, 0, 127); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, SERVER_MAX_SCORE_BYTES))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	score, err := ParseScoreJSON(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if tl := score.Timeline(cfg.SampleRate); len(tl) > 0 &&
		tl[len(tl)-1].Frame > int64(SERVER_MAX_RENDER_SECONDS*cfg.SampleRate) {
		s.writeError(w, http.StatusBadRequest, errors.Errorf("score longer than %d seconds", SERVER_MAX_RENDER_SECONDS))
		return
	}

	res, err := RenderScore(r.Context(), bank, score, cfg)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	// The WAV encoder needs a seekable writer
	f, err := os.CreateTemp("", "sf2render-*.wav")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(f.Name())
	defer f.Close()
	if err := WriteWAV(f, res); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("rendered score",
		slog.String("bank", bank.Name),
		slog.Int("events", len(score.Events)),
		slog.Int("frames", res.Frames),
		slog.Float64("peak", float64(res.Peak)))
	w.Header().Set("Content-Type", "audio/wav")
	name := fmt.Sprintf("%s-%d.wav", trimExt(bank.Name), cfg.Program)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Time{}, f)
}

func (s *SynthServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", slog.Any("error", err))
	}
}

func (s *SynthServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, errors.Errorf("%s must be an integer in %d-%d", key, lo, hi)
	}
	return n, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
