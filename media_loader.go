// media_loader.go - Asynchronous sample bank loading with request supersession

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Loader status values
const (
	MEDIA_STATUS_IDLE = iota
	MEDIA_STATUS_LOADING
	MEDIA_STATUS_READY
	MEDIA_STATUS_ERROR
)

// SF2LoadStatus is reported once per load that was not superseded
type SF2LoadStatus struct {
	OK       bool
	Name     string
	Reason   string
	Presets  int
	Programs int // programs that resolved during warm-up
}

// MediaLoader decodes sample banks off the render thread and hands them to
// the engine. Each request bumps reqGen; a load that finishes after a newer
// request was made is discarded without touching the engine.
type MediaLoader struct {
	engine   BankInstaller
	bank     int
	baseDir  string
	onStatus func(SF2LoadStatus)
	logger   *slog.Logger

	status  int
	lastErr error
	reqGen  uint64

	wg sync.WaitGroup
	mu sync.Mutex
}

// NewMediaLoader creates a loader feeding engine. Relative bank names are
// resolved under baseDir; onStatus may be nil.
func NewMediaLoader(engine BankInstaller, bank int, baseDir string, onStatus func(SF2LoadStatus), logger *slog.Logger) *MediaLoader {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		absBase = baseDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaLoader{
		engine:   engine,
		bank:     bank,
		baseDir:  absBase,
		onStatus: onStatus,
		logger:   logger,
		status:   MEDIA_STATUS_IDLE,
	}
}

// Status returns the state of the most recent request
func (m *MediaLoader) Status() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.lastErr
}

// Generation returns the id of the most recent request
func (m *MediaLoader) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reqGen
}

// LoadFile starts loading a bank from disk and returns the request id
func (m *MediaLoader) LoadFile(ctx context.Context, path string) uint64 {
	name := filepath.Base(path)
	return m.start(ctx, name, func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading sample bank %s", path)
		}
		return data, nil
	})
}

// LoadBytes starts decoding an in-memory bank and returns the request id
func (m *MediaLoader) LoadBytes(ctx context.Context, name string, data []byte) uint64 {
	return m.start(ctx, name, func() ([]byte, error) { return data, nil })
}

// Wait blocks until every started load has finished or been discarded
func (m *MediaLoader) Wait() {
	m.wg.Wait()
}

// Cancel supersedes any in-flight load
func (m *MediaLoader) Cancel() {
	m.mu.Lock()
	m.reqGen++
	m.status = MEDIA_STATUS_IDLE
	m.lastErr = nil
	m.mu.Unlock()
}

func (m *MediaLoader) start(ctx context.Context, name string, read func() ([]byte, error)) uint64 {
	m.mu.Lock()
	m.reqGen++
	reqGen := m.reqGen
	m.status = MEDIA_STATUS_LOADING
	m.lastErr = nil
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loadAndInstall(ctx, reqGen, name, read)
	}()
	return reqGen
}

func (m *MediaLoader) loadAndInstall(ctx context.Context, reqGen uint64, name string, read func() ([]byte, error)) {
	data, err := read()
	if err != nil {
		m.fail(reqGen, name, err)
		return
	}
	hydra, err := ParseSF2(data)
	if err != nil {
		m.fail(reqGen, name, err)
		return
	}

	bank := NewSF2Bank(name, hydra, m.bank)
	programs := bank.Warm()

	if err := ctx.Err(); err != nil {
		m.fail(reqGen, name, errors.Wrap(err, "load abandoned"))
		return
	}

	m.mu.Lock()
	if reqGen != m.reqGen {
		m.mu.Unlock()
		m.logger.Debug("discarding superseded bank", slog.String("bank", name), slog.Uint64("gen", reqGen))
		return
	}
	m.engine.Install(bank)
	m.status = MEDIA_STATUS_READY
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info("sample bank loaded",
		slog.String("bank", name),
		slog.Int("presets", hydra.PresetCount()),
		slog.Int("samples", len(hydra.SampleHeaders)),
		slog.Int("programs", programs))
	m.report(SF2LoadStatus{OK: true, Name: name, Presets: hydra.PresetCount(), Programs: programs})
}

func (m *MediaLoader) fail(reqGen uint64, name string, err error) {
	m.mu.Lock()
	if reqGen != m.reqGen {
		m.mu.Unlock()
		return
	}
	m.status = MEDIA_STATUS_ERROR
	m.lastErr = err
	m.mu.Unlock()

	m.logger.Error("sample bank load failed", slog.String("bank", name), slog.Any("err", err))
	m.report(SF2LoadStatus{OK: false, Name: name, Reason: err.Error()})
}

func (m *MediaLoader) report(st SF2LoadStatus) {
	if m.onStatus != nil {
		m.onStatus(st)
	}
}

// ResolvePath maps a bank name to a path under the loader's base directory,
// rejecting absolute paths and parent traversal
func (m *MediaLoader) ResolvePath(name string) (string, bool) {
	return sanitizeBankPath(m.baseDir, name)
}

func isBankFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".sf2"
}

func sanitizeBankPath(baseDir, path string) (string, bool) {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "..") {
		return "", false
	}
	if !isBankFile(path) {
		return "", false
	}
	fullPath := filepath.Join(baseDir, path)
	rel, err := filepath.Rel(baseDir, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return fullPath, true
}
