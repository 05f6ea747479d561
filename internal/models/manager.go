package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/engine"
	"github.com/timmy/vidnotes/internal/logger"
)

var (
	// ErrNoModelConfigured means the reference family was requested before a model was loaded.
	ErrNoModelConfigured = errors.New("no model configured: load a transcription model first")
	// ErrNoSummarizer means no summarization model is resident.
	ErrNoSummarizer = errors.New("no summarizer loaded")
	// ErrUnknownFamily is returned for model types outside the catalog.
	ErrUnknownFamily = errors.New("invalid model type")
	// ErrUnknownSize is returned for sizes outside the catalog.
	ErrUnknownSize = errors.New("invalid model size")
	// ErrUnknownSummarizer is returned when a caller names a summarizer outside the catalog.
	ErrUnknownSummarizer = errors.New("unknown summarizer model")
)

// Kind selects one of the two model slots.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindSummarization Kind = "summarization"
)

// State is the lifecycle state of a model slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

// TranscriberLoader creates transcription engines.
type TranscriberLoader interface {
	LoadTranscriber(ctx context.Context, spec engine.TranscriberSpec) (engine.Transcriber, error)
	Check(ctx context.Context, family domain.ModelFamily) error
}

// SummarizerLoader creates summarization engines.
type SummarizerLoader interface {
	LoadSummarizer(ctx context.Context, spec engine.SummarizerSpec) (engine.Summarizer, error)
}

// DeviceDetector picks the processing device at load time.
type DeviceDetector interface {
	Detect(ctx context.Context) domain.Device
}

// Manager holds at most one resident transcription model and one resident
// summarization model. Loads are serialized; a model handed out through a
// lease stays open until the lease is released, even if it is replaced.
type Manager struct {
	transcribers TranscriberLoader
	summarizers  SummarizerLoader
	devices      DeviceDetector

	// loadMu serializes every load and unload.
	loadMu sync.Mutex

	mu            sync.Mutex
	transcription slot
	summarization slot
}

type slot struct {
	state  State
	name   string
	size   string
	family domain.ModelFamily
	device domain.Device
	err    error
	handle *resident
}

// resident is a reference-counted model handle.
type resident struct {
	closer  io.Closer
	refs    int
	retired bool
}

// NewManager creates a manager with both slots unloaded.
func NewManager(transcribers TranscriberLoader, summarizers SummarizerLoader, devices DeviceDetector) *Manager {
	return &Manager{
		transcribers:  transcribers,
		summarizers:   summarizers,
		devices:       devices,
		transcription: slot{state: StateUnloaded},
		summarization: slot{state: StateUnloaded},
	}
}

// LoadTranscription replaces the resident transcription model.
// The previous model is released before the new one is created.
func (m *Manager) LoadTranscription(ctx context.Context, family domain.ModelFamily, size string) error {
	if !family.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	if !domain.ValidSize(size) {
		return fmt.Errorf("%w: %s", ErrUnknownSize, size)
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.Lock()
	stale := m.retire(&m.transcription)
	m.transcription = slot{state: StateLoading, family: family, size: size}
	m.mu.Unlock()
	closeHandle(stale)

	device := m.devices.Detect(ctx)
	ctx = logger.SetModel(ctx, string(family))
	logger.CtxInfo(ctx, "Loading %s model (%s) on %s", family, size, device)

	t, err := m.transcribers.LoadTranscriber(ctx, engine.TranscriberSpec{Family: family, Size: size, Device: device})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.transcription = slot{state: StateFailed, family: family, size: size, err: err}
		logger.CtxError(ctx, "Failed to load %s model: %v", family, err)
		return fmt.Errorf("load %s %s: %w", family, size, err)
	}
	m.transcription = slot{
		state:  StateReady,
		name:   string(family),
		family: family,
		size:   size,
		device: device,
		handle: &resident{closer: t},
	}
	logger.CtxInfo(ctx, "%s model loaded", family)
	return nil
}

// VerifyTranscription checks that a self-loading family is installed
// without making a model resident.
func (m *Manager) VerifyTranscription(ctx context.Context, family domain.ModelFamily) error {
	if !family.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	return m.transcribers.Check(ctx, family)
}

// UnloadTranscription drops the resident transcription model.
func (m *Manager) UnloadTranscription() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.Lock()
	stale := m.retire(&m.transcription)
	m.transcription = slot{state: StateUnloaded}
	m.mu.Unlock()
	closeHandle(stale)
}

// LoadSummarization loads name, falling back through the catalog's lighter
// models on CPU. It reports false and leaves the slot without a handle when
// every candidate fails. Unknown names start from bart-base-cnn.
func (m *Manager) LoadSummarization(ctx context.Context, name string) bool {
	if _, ok := domain.SummarizerCatalog[name]; !ok {
		logger.CtxWarn(ctx, "Unknown summarizer %q, using bart-base-cnn", name)
		name = "bart-base-cnn"
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	return m.loadSummarizationLocked(ctx, name)
}

// EnsureSummarization loads name only when no summarizer is resident.
// Callers that lose the race to a concurrent load reuse its result instead
// of replacing it.
func (m *Manager) EnsureSummarization(ctx context.Context, name string) bool {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if m.IsReady(KindSummarization) {
		return true
	}
	if _, ok := domain.SummarizerCatalog[name]; !ok {
		logger.CtxWarn(ctx, "Unknown summarizer %q, using bart-base-cnn", name)
		name = "bart-base-cnn"
	}
	return m.loadSummarizationLocked(ctx, name)
}

// loadSummarizationLocked must be called with loadMu held.
func (m *Manager) loadSummarizationLocked(ctx context.Context, name string) bool {
	m.mu.Lock()
	stale := m.retire(&m.summarization)
	m.summarization = slot{state: StateLoading, name: name}
	m.mu.Unlock()
	closeHandle(stale)

	device := m.devices.Detect(ctx)
	candidates := []engine.SummarizerSpec{{
		Name:   name,
		Model:  domain.SummarizerCatalog[name],
		Device: device,
		FP16:   device == domain.DeviceCUDA,
	}}
	for _, fallback := range domain.SummarizerFallbacks {
		if fallback == name {
			continue
		}
		candidates = append(candidates, engine.SummarizerSpec{
			Name:   fallback,
			Model:  domain.SummarizerCatalog[fallback],
			Device: domain.DeviceCPU,
		})
	}

	var lastErr error
	for i, spec := range candidates {
		if i > 0 {
			logger.CtxWarn(ctx, "Trying fallback summarizer %s on %s", spec.Name, spec.Device)
		}
		s, err := m.summarizers.LoadSummarizer(logger.SetModel(ctx, spec.Name), spec)
		if err != nil {
			lastErr = err
			logger.CtxWarn(ctx, "Failed to load summarizer %s: %v", spec.Name, err)
			continue
		}

		m.mu.Lock()
		m.summarization = slot{
			state:  StateReady,
			name:   spec.Name,
			device: spec.Device,
			handle: &resident{closer: s},
		}
		m.mu.Unlock()
		logger.CtxInfo(ctx, "Summarizer %s loaded on %s", spec.Name, spec.Device)
		return true
	}

	m.mu.Lock()
	m.summarization = slot{state: StateFailed, name: name, err: lastErr}
	m.mu.Unlock()
	logger.CtxError(ctx, "All summarizer models failed to load")
	return false
}

// IsReady reports whether kind has a resident model.
func (m *Manager) IsReady(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotFor(kind).state == StateReady
}

// TranscriberLease is a borrowed transcription engine. Release must be called.
type TranscriberLease struct {
	engine.Transcriber
	Family  domain.ModelFamily
	Size    string
	Device  domain.Device
	release func()
	once    sync.Once
}

// Release returns the engine. Safe to call more than once.
func (l *TranscriberLease) Release() {
	l.once.Do(l.release)
}

// AcquireTranscriber returns an engine for family. The reference family
// requires a resident model and fails fast with ErrNoModelConfigured. The
// optimized family reuses a resident model of the same family and size or
// loads a private one that is closed on release.
func (m *Manager) AcquireTranscriber(ctx context.Context, family domain.ModelFamily, size string) (*TranscriberLease, error) {
	if !family.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}

	m.mu.Lock()
	s := m.transcription
	if s.state == StateReady && s.family == family && (!family.SelfLoading() || s.size == size) {
		t := s.handle.closer.(engine.Transcriber)
		release := m.acquire(s.handle)
		m.mu.Unlock()
		return &TranscriberLease{Transcriber: t, Family: s.family, Size: s.size, Device: s.device, release: release}, nil
	}
	m.mu.Unlock()

	if !family.SelfLoading() {
		return nil, ErrNoModelConfigured
	}
	if !domain.ValidSize(size) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSize, size)
	}

	device := m.devices.Detect(ctx)
	t, err := m.transcribers.LoadTranscriber(ctx, engine.TranscriberSpec{Family: family, Size: size, Device: device})
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", family, size, err)
	}
	return &TranscriberLease{
		Transcriber: t,
		Family:      family,
		Size:        size,
		Device:      device,
		release: func() {
			if err := t.Close(); err != nil {
				logger.CtxWarn(ctx, "Failed to close %s model: %v", family, err)
			}
		},
	}, nil
}

// SummarizerLease is a borrowed summarization engine. Release must be called.
type SummarizerLease struct {
	engine.Summarizer
	release func()
	once    sync.Once
}

// Release returns the engine. Safe to call more than once.
func (l *SummarizerLease) Release() {
	l.once.Do(l.release)
}

// AcquireSummarizer borrows the resident summarizer or fails with ErrNoSummarizer.
func (m *Manager) AcquireSummarizer() (*SummarizerLease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.summarization
	if s.state != StateReady {
		return nil, ErrNoSummarizer
	}
	return &SummarizerLease{
		Summarizer: s.handle.closer.(engine.Summarizer),
		release:    m.acquire(s.handle),
	}, nil
}

// Status is a point-in-time view of both slots.
type Status struct {
	Transcription SlotStatus `json:"transcription"`
	Summarization SlotStatus `json:"summarization"`
}

// SlotStatus describes one slot.
type SlotStatus struct {
	State  State              `json:"state"`
	Name   string             `json:"name,omitempty"`
	Family domain.ModelFamily `json:"family,omitempty"`
	Size   string             `json:"size,omitempty"`
	Device domain.Device      `json:"device,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Status reports both slots.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Transcription: m.transcription.status(),
		Summarization: m.summarization.status(),
	}
}

// Close retires both models. Leased handles close when released.
func (m *Manager) Close() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.Lock()
	staleT := m.retire(&m.transcription)
	staleS := m.retire(&m.summarization)
	m.transcription = slot{state: StateUnloaded}
	m.summarization = slot{state: StateUnloaded}
	m.mu.Unlock()

	closeHandle(staleT)
	closeHandle(staleS)
}

func (s slot) status() SlotStatus {
	st := SlotStatus{State: s.state, Name: s.name, Family: s.family, Size: s.size, Device: s.device}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

func (m *Manager) slotFor(kind Kind) *slot {
	if kind == KindSummarization {
		return &m.summarization
	}
	return &m.transcription
}

// retire detaches the slot's handle. It returns the handle when it has no
// outstanding leases and must be closed by the caller after unlocking.
// Caller holds m.mu.
func (m *Manager) retire(s *slot) *resident {
	h := s.handle
	if h == nil {
		return nil
	}
	s.handle = nil
	h.retired = true
	if h.refs == 0 {
		return h
	}
	return nil
}

// acquire takes a reference on h and returns its release func.
// Caller holds m.mu.
func (m *Manager) acquire(h *resident) func() {
	h.refs++
	return func() {
		m.mu.Lock()
		h.refs--
		last := h.refs == 0 && h.retired
		m.mu.Unlock()
		if last {
			closeHandle(h)
		}
	}
}

func closeHandle(h *resident) {
	if h == nil {
		return
	}
	if err := h.closer.Close(); err != nil {
		logger.Warn("Failed to close model: %v", err)
	}
}
