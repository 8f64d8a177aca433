package dives

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ManagerConfig describes the shared dependencies for per-supervisor session
// controllers.
type ManagerConfig struct {
	Gateway    Gateway
	Profiles   ProfileProvisioner
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Notify     func(diveID string)
}

// Manager hands out one session controller per supervisor, rehydrating each
// from its persisted in-progress dive on first use.
type Manager struct {
	cfg ManagerConfig

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager validates the shared dependencies and constructs a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Gateway == nil {
		return nil, errMissingGateway
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = noOpLogger
	}
	return &Manager{
		cfg:         cfg,
		controllers: make(map[string]*Controller),
	}, nil
}

// Controller returns the supervisor's session controller, creating and
// rehydrating it on first use.
func (m *Manager) Controller(ctx context.Context, supervisorID, supervisorEmail string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if controller, ok := m.controllers[supervisorID]; ok {
		return controller, nil
	}

	controller, err := NewController(ControllerConfig{
		Gateway:         m.cfg.Gateway,
		Profiles:        m.cfg.Profiles,
		Clock:           m.cfg.Clock,
		IDProvider:      m.cfg.IDProvider,
		Logger:          m.cfg.Logger,
		SupervisorID:    supervisorID,
		SupervisorEmail: supervisorEmail,
		Notify:          m.cfg.Notify,
	})
	if err != nil {
		return nil, err
	}
	if err := controller.Rehydrate(ctx); err != nil {
		return nil, err
	}

	m.controllers[supervisorID] = controller
	return controller, nil
}

// Close cancels every controller's elapsed ticker.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, controller := range m.controllers {
		controller.Close()
	}
}
