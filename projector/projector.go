package projector

import (
	"fmt"
	"sync"
	"time"

	"github.com/kanromiku/Industrial-Internet/config"
	"github.com/kanromiku/Industrial-Internet/logger"
	"github.com/kanromiku/Industrial-Internet/parser"
)

// Record represents one storage-ready row derived from an envelope
type Record struct {
	DeviceID   string
	Timestamp  time.Time
	ReceivedAt time.Time
	Payload    []byte // canonical JSON of the full decoded object
	Plant      *PlantMetrics
}

// PlantMetrics holds the scalar columns projected for the methanol plant
// shape plus the unstructured workshop remainder.
type PlantMetrics struct {
	RealtimePowerKW float64 `json:"realtime_power_kw"`
	TodayEnergyMWH  float64 `json:"today_energy_mwh"`
	UnitEnergy      float64 `json:"unit_energy_consumption"`
	OperatingRate   float64 `json:"operating_rate"`
	OEE             float64 `json:"oee"`
	WorkshopData    []byte  `json:"-"`
}

// Projector turns an envelope into a storage record. Implementations must
// be safe for concurrent use: one projector instance serves all
// connections.
type Projector interface {
	Name() string
	Project(env *parser.Envelope) (*Record, error)
}

// Manager selects a projector per device id, with a configurable default
// for devices that have no dedicated entry.
type Manager struct {
	projectors map[string]Projector
	fallback   Projector
	mutex      sync.RWMutex
}

// NewManager creates a projector manager from configuration
func NewManager(cfg config.ProjectorsConfig) (*Manager, error) {
	fallback, err := newProjector(config.Projector{Type: cfg.Default})
	if err != nil {
		return nil, fmt.Errorf("failed to create default projector: %v", err)
	}

	manager := &Manager{
		projectors: make(map[string]Projector),
		fallback:   fallback,
	}

	for deviceID, pcfg := range cfg.Devices {
		p, err := newProjector(pcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create projector for device %s: %v", deviceID, err)
		}
		manager.projectors[deviceID] = p
		logger.Info("loaded %s projector for device %s", p.Name(), deviceID)
	}

	return manager, nil
}

// newProjector creates a single projector from its definition
func newProjector(cfg config.Projector) (Projector, error) {
	switch cfg.Type {
	case "", "generic":
		return &GenericProjector{}, nil
	case "plant":
		return NewPlantProjector(), nil
	case "script":
		return NewScriptProjector(cfg)
	default:
		return nil, fmt.Errorf("unsupported projector type: %s", cfg.Type)
	}
}

// Project applies the projector registered for the envelope's device id,
// falling back to the default projector, and stamps the server-side
// receipt time on the resulting record.
func (m *Manager) Project(env *parser.Envelope, receivedAt time.Time) (*Record, error) {
	m.mutex.RLock()
	p, ok := m.projectors[env.DeviceID]
	if !ok {
		p = m.fallback
	}
	m.mutex.RUnlock()

	record, err := p.Project(env)
	if err != nil {
		return nil, fmt.Errorf("%s projector: %v", p.Name(), err)
	}

	record.ReceivedAt = receivedAt
	return record, nil
}

// Reload replaces the projector set from an updated configuration.
// Devices removed from the configuration revert to the default projector.
func (m *Manager) Reload(cfg config.ProjectorsConfig) error {
	fallback, err := newProjector(config.Projector{Type: cfg.Default})
	if err != nil {
		return fmt.Errorf("failed to create default projector: %v", err)
	}

	projectors := make(map[string]Projector, len(cfg.Devices))
	for deviceID, pcfg := range cfg.Devices {
		p, err := newProjector(pcfg)
		if err != nil {
			return fmt.Errorf("failed to reload projector for device %s: %v", deviceID, err)
		}
		projectors[deviceID] = p
	}

	m.mutex.Lock()
	m.projectors = projectors
	m.fallback = fallback
	m.mutex.Unlock()

	logger.Info("reloaded %d device projectors", len(projectors))
	return nil
}
