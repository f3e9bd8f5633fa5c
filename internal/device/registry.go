package device

import (
	"fmt"
	"sync"
)

// Registry is the exclusive owner of all live Device instances,
// mapping id to device. Create-once semantics: adding a duplicate id
// fails.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	logger  Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add inserts a device. Returns ErrDeviceExists when the id is taken.
func (r *Registry) Add(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID())
	}
	r.devices[d.ID()] = d
	r.logger.Debug("device registered", "id", d.ID(), "model", d.ModelName())
	return nil
}

// Get retrieves a device by id. Returns ErrDeviceNotFound when absent.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// Exists reports whether a device id is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[id]
	return ok
}

// GetByConn finds the device bound to a transport. A linear scan is
// fine: connection counts are small.
func (r *Registry) GetByConn(conn Conn) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.Conn() == conn {
			return d, true
		}
	}
	return nil, false
}

// All returns every registered device.
func (r *Registry) All() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	return devices
}

// Checkers returns all registered door sensors.
func (r *Registry) Checkers() []*Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*Checker
	for _, d := range r.devices {
		if c, ok := d.(*Checker); ok {
			list = append(list, c)
		}
	}
	return list
}

// SwitchBots returns all registered relays.
func (r *Registry) SwitchBots() []*SwitchBot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*SwitchBot
	for _, d := range r.devices {
		if s, ok := d.(*SwitchBot); ok {
			list = append(list, s)
		}
	}
	return list
}

// RemoteBots returns all registered sensor hubs.
func (r *Registry) RemoteBots() []*RemoteBot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*RemoteBot
	for _, d := range r.devices {
		if rb, ok := d.(*RemoteBot); ok {
			list = append(list, rb)
		}
	}
	return list
}

// HumidityAverage averages the humidity across sensor hubs that have a
// reading. Returns 0 when none do.
func (r *Registry) HumidityAverage() float64 {
	var sum float64
	var count int
	for _, rb := range r.RemoteBots() {
		if h := rb.Humidity(); h != nil {
			sum += *h
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// TemperatureAverage averages the temperature across sensor hubs that
// have a reading. Returns 0 when none do.
func (r *Registry) TemperatureAverage() float64 {
	var sum float64
	var count int
	for _, rb := range r.RemoteBots() {
		if t := rb.Temperature(); t != nil {
			sum += *t
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
