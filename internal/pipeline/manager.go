package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/videomind-backend/internal/logger"
)

// Manager launches pipeline runs in the background and lets handlers cancel
// them. One goroutine per job; the registry only holds jobs still running.
type Manager struct {
	log      *logger.Logger
	pipeline *Pipeline

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

func NewManager(p *Pipeline, log *logger.Logger) *Manager {
	return &Manager{
		log:      log.With("component", "PipelineManager"),
		pipeline: p,
		running:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches the job in a background goroutine. The run detaches from
// the caller's request context; only Cancel or process exit stops it.
func (m *Manager) Start(jobID uuid.UUID, playlistContext string) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if _, exists := m.running[jobID]; exists {
		m.mu.Unlock()
		cancel()
		m.log.Warn("Job already running", "job_id", jobID.String())
		return
	}
	m.running[jobID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.running, jobID)
			m.mu.Unlock()
			cancel()
		}()
		if err := m.pipeline.Run(ctx, jobID, playlistContext); err != nil {
			m.log.Warn("Pipeline run ended with error", "job_id", jobID.String(), "error", err)
		}
	}()
}

// RunSync processes the job on the calling goroutine. Playlist processing
// uses this to keep videos strictly sequential.
func (m *Manager) RunSync(ctx context.Context, jobID uuid.UUID, playlistContext string) error {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.running[jobID] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.running, jobID)
		m.mu.Unlock()
		cancel()
	}()
	return m.pipeline.Run(ctx, jobID, playlistContext)
}

// Cancel stops a running job. Returns false when the job is not running.
func (m *Manager) Cancel(jobID uuid.UUID) bool {
	m.mu.Lock()
	cancel, ok := m.running[jobID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// IsRunning reports whether the job currently has an active run.
func (m *Manager) IsRunning(jobID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[jobID]
	return ok
}
