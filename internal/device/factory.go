package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/botlink-core/internal/protocol"
)

// constructor builds a concrete device variant.
type constructor func(id, name string, battery *int, extra map[string]any, env *Env) Device

// constructors is the closed model-id dispatch table. Adding a model
// means adding a row here, which keeps handshake decoding exhaustive.
var constructors = map[byte]constructor{
	ModelChecker: func(id, name string, battery *int, extra map[string]any, env *Env) Device {
		return NewChecker(id, name, battery, extra, env)
	},
	ModelSwitchBot: func(id, name string, battery *int, extra map[string]any, env *Env) Device {
		return NewSwitchBot(id, name, battery, extra, env)
	},
	ModelRemoteBot: func(id, name string, battery *int, extra map[string]any, env *Env) Device {
		return NewRemoteBot(id, name, battery, extra, env)
	},
}

// Factory turns handshakes and persisted records into registered
// devices.
type Factory struct {
	registry *Registry
	env      Env

	// mu serializes CreateOrGet so duplicate concurrent handshakes for
	// the same id cannot both construct.
	mu sync.Mutex
}

// NewFactory creates a device factory bound to a registry. Nil Env
// collaborators are replaced with noops.
func NewFactory(registry *Registry, env Env) *Factory {
	env.fill()
	return &Factory{
		registry: registry,
		env:      env,
	}
}

// Env exposes the filled collaborator set, shared with devices the
// factory constructs.
func (f *Factory) Env() *Env {
	return &f.env
}

// CreateOrGet resolves a decoded handshake to a device. If the id is
// already registered the existing device is returned untouched: the
// device object is authoritative, the handshake's initial state is
// applied later by Bind. Otherwise the matching variant is
// constructed, a creation record persisted and the device registered.
//
// The returned bool reports whether a new device was created.
func (f *Factory) CreateOrGet(hs protocol.Handshake) (Device, bool, error) {
	ctor, ok := constructors[hs.ModelID]
	if !ok {
		return nil, false, fmt.Errorf("%w: 0x%02x", ErrInvalidModel, hs.ModelID)
	}
	if err := ValidateDeviceID(hs.DeviceID); err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, err := f.registry.Get(hs.DeviceID); err == nil {
		return existing, false, nil
	}

	d := ctor(hs.DeviceID, "", hs.Battery, handshakeExtra(hs), &f.env)
	if err := f.registry.Add(d); err != nil {
		return nil, false, err
	}

	f.persistCreation(d)
	f.env.Logger.Info("device created", "id", d.ID(), "model", d.ModelName())
	return d, true, nil
}

// LoadAll hydrates the registry from persisted device records. A bad
// record is logged and skipped; startup continues.
func (f *Factory) LoadAll(ctx context.Context) error {
	if f.env.Store == nil {
		return nil
	}

	records, err := f.env.Store.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	for _, rec := range records {
		ctor, ok := constructors[rec.Model]
		if !ok {
			f.env.Logger.Error("skipping device with unknown model", "id", rec.ID, "model", rec.Model)
			continue
		}
		if !IsValidDeviceID(rec.ID) {
			f.env.Logger.Error("skipping device with invalid id", "id", rec.ID)
			continue
		}

		d := ctor(rec.ID, rec.Name, rec.Battery, rec.Extra, &f.env)
		if err := f.registry.Add(d); err != nil {
			f.env.Logger.Error("skipping duplicate device record", "id", rec.ID, "error", err)
		}
	}

	f.env.Logger.Info("device registry hydrated", "count", len(f.registry.All()))
	return nil
}

// handshakeExtra converts a handshake's initial state into the opaque
// extra payload the constructors expect.
func handshakeExtra(hs protocol.Handshake) map[string]any {
	switch hs.ModelID {
	case ModelChecker:
		return map[string]any{"open": hs.Open}
	case ModelSwitchBot:
		return map[string]any{"switch": []any{hs.Switch[0], hs.Switch[1]}}
	default:
		return map[string]any{}
	}
}

// persistCreation writes the initial device row, fire-and-forget.
func (f *Factory) persistCreation(d Device) {
	if f.env.Store == nil {
		return
	}

	rec := Record{
		ID:      d.ID(),
		Name:    d.Name(),
		Model:   d.ModelID(),
		Battery: d.Battery(),
		Extra:   d.extraState(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := f.env.Store.UpsertDevice(ctx, rec); err != nil {
			f.env.Logger.Error("device creation write failed", "id", rec.ID, "error", err)
		}
	}()
}
