package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop owned by the Manager
type Worker interface {
	Start(ctx context.Context) error
	Stop()
	Name() string
}

// Manager starts registered workers together and stops them last-in first-out
type Manager struct {
	logger *zap.Logger

	mu         sync.Mutex
	registered []Worker
	running    []Worker
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	m.registered = append(m.registered, w)
	m.mu.Unlock()
}

// StartAll is all or nothing: a failing worker stops the ones started before it
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.registered {
		if slices.Contains(m.running, w) {
			continue
		}
		if err := w.Start(ctx); err != nil {
			m.stopRunning()
			return fmt.Errorf("start %s: %w", w.Name(), err)
		}
		m.running = append(m.running, w)
		m.logger.Info("Worker started", zap.String("worker", w.Name()))
	}
	return nil
}

// StopAll blocks until every running worker has returned
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopRunning()
}

func (m *Manager) stopRunning() {
	for i := len(m.running) - 1; i >= 0; i-- {
		m.running[i].Stop()
		m.logger.Info("Worker stopped", zap.String("worker", m.running[i].Name()))
	}
	m.running = nil
}

// Count is the number of registered workers, running or not
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registered)
}
