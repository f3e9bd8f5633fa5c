package device

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/botlink-core/internal/protocol"
)

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistryCreateOnce(t *testing.T) {
	env, _, _, _ := testEnv()
	reg := NewRegistry()

	c := NewChecker("DoorA_0001", "", intPtr(70), nil, env)
	if err := reg.Add(c); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	dup := NewChecker("DoorA_0001", "", intPtr(70), nil, env)
	if err := reg.Add(dup); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Add() duplicate error = %v, want ErrDeviceExists", err)
	}

	got, err := reg.Get("DoorA_0001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != Device(c) {
		t.Error("Get() returned a different device instance")
	}

	if _, err := reg.Get("DoorB_0002"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() missing error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistryGetByConn(t *testing.T) {
	env, _, _, _ := testEnv()
	reg := NewRegistry()

	c := NewChecker("DoorA_0001", "", intPtr(70), nil, env)
	s := NewSwitchBot("ABCDE_0001", "", intPtr(50), nil, env)
	reg.Add(c)
	reg.Add(s)

	conn := newFakeConn()
	s.Bind(conn, protocol.Handshake{ModelID: ModelSwitchBot, Battery: intPtr(50)})

	got, ok := reg.GetByConn(conn)
	if !ok || got.ID() != "ABCDE_0001" {
		t.Errorf("GetByConn() = %v, %v; want the switchbot", got, ok)
	}

	if _, ok := reg.GetByConn(newFakeConn()); ok {
		t.Error("GetByConn() found a device for an unbound connection")
	}
}

func TestRegistryTypedFilters(t *testing.T) {
	env, _, _, _ := testEnv()
	reg := NewRegistry()

	reg.Add(NewChecker("DoorA_0001", "", intPtr(70), nil, env))
	reg.Add(NewSwitchBot("ABCDE_0001", "", intPtr(50), nil, env))
	reg.Add(NewRemoteBot("SensA_0001", "", nil, nil, env))
	reg.Add(NewRemoteBot("SensB_0002", "", nil, nil, env))

	if got := len(reg.Checkers()); got != 1 {
		t.Errorf("Checkers() count = %d, want 1", got)
	}
	if got := len(reg.SwitchBots()); got != 1 {
		t.Errorf("SwitchBots() count = %d, want 1", got)
	}
	if got := len(reg.RemoteBots()); got != 2 {
		t.Errorf("RemoteBots() count = %d, want 2", got)
	}
	if got := len(reg.All()); got != 4 {
		t.Errorf("All() count = %d, want 4", got)
	}
}

func TestRegistryAverages(t *testing.T) {
	env, _, _, _ := testEnv()
	reg := NewRegistry()

	a := NewRemoteBot("SensA_0001", "", nil, nil, env)
	b := NewRemoteBot("SensB_0002", "", nil, nil, env)
	reg.Add(a)
	reg.Add(b)

	// No readings yet.
	if avg := reg.HumidityAverage(); avg != 0 {
		t.Errorf("HumidityAverage() = %v, want 0", avg)
	}

	a.Bind(newFakeConn(), protocol.Handshake{ModelID: ModelRemoteBot})
	b.Bind(newFakeConn(), protocol.Handshake{ModelID: ModelRemoteBot})
	a.HandleFrame([]byte{0x04, 40, 0, 20, 0x00})
	b.HandleFrame([]byte{0x04, 60, 0, 22, 0x00})

	if avg := reg.HumidityAverage(); avg != 50 {
		t.Errorf("HumidityAverage() = %v, want 50", avg)
	}
	if avg := reg.TemperatureAverage(); avg != 21 {
		t.Errorf("TemperatureAverage() = %v, want 21", avg)
	}
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestFactoryCreatesSwitchBotFromHandshake(t *testing.T) {
	broadcast := &mockBroadcaster{}
	reg := NewRegistry()
	factory := NewFactory(reg, Env{Broadcast: broadcast})

	// SwitchBot handshake: battery 60%, both channel fields 0b01.
	frame := []byte{0x01, 0x02, 0x56, 'A', 'B', 'C', 'D', 'E', '_', '1', '2', '3', '4'}
	hs, err := protocol.DecodeHandshake(frame)
	if err != nil {
		t.Fatalf("DecodeHandshake() error = %v", err)
	}

	d, created, err := factory.CreateOrGet(hs)
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}

	s, ok := d.(*SwitchBot)
	if !ok {
		t.Fatalf("CreateOrGet() returned %T, want *SwitchBot", d)
	}
	if s.ID() != "ABCDE_1234" {
		t.Errorf("ID() = %q, want %q", s.ID(), "ABCDE_1234")
	}
	if b := s.Battery(); b == nil || *b != 60 {
		t.Errorf("Battery() = %v, want 60", b)
	}
	if !s.IsOn(0) || !s.IsOn(1) {
		t.Errorf("channels = [%v %v], want both on", s.IsOn(0), s.IsOn(1))
	}

	// Binding broadcasts the initial state.
	s.Bind(newFakeConn(), hs)
	if broadcast.count() != 1 {
		t.Errorf("broadcast count = %d, want 1", broadcast.count())
	}
	if !reg.Exists("ABCDE_1234") {
		t.Error("device missing from registry")
	}
}

func TestFactoryReturnsExistingDevice(t *testing.T) {
	reg := NewRegistry()
	factory := NewFactory(reg, Env{})

	hs := protocol.Handshake{ModelID: ModelChecker, DeviceID: "DoorA_0001", Battery: intPtr(70), Open: true}
	first, created, err := factory.CreateOrGet(hs)
	if err != nil || !created {
		t.Fatalf("CreateOrGet() = %v, %v, %v", first, created, err)
	}

	// Second handshake with different initial state: the existing
	// device wins, the handshake state is ignored here.
	hs2 := protocol.Handshake{ModelID: ModelChecker, DeviceID: "DoorA_0001", Battery: intPtr(20), Open: false}
	second, created, err := factory.CreateOrGet(hs2)
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if created {
		t.Error("created = true for an existing id, want false")
	}
	if first != second {
		t.Error("CreateOrGet() should return the same instance")
	}
	if b := second.Battery(); b == nil || *b != 70 {
		t.Errorf("Battery() = %v, want 70 (handshake state ignored)", b)
	}
}

func TestFactoryRejectsBadHandshakes(t *testing.T) {
	factory := NewFactory(NewRegistry(), Env{})

	_, _, err := factory.CreateOrGet(protocol.Handshake{ModelID: 0x7f, DeviceID: "DoorA_0001"})
	if !errors.Is(err, ErrInvalidModel) {
		t.Errorf("unknown model error = %v, want ErrInvalidModel", err)
	}

	_, _, err = factory.CreateOrGet(protocol.Handshake{ModelID: ModelChecker, DeviceID: "bad-id"})
	if !errors.Is(err, ErrInvalidDeviceID) {
		t.Errorf("bad id error = %v, want ErrInvalidDeviceID", err)
	}
}

func TestFactoryLoadAll(t *testing.T) {
	store := &mockStore{
		listResult: []Record{
			{ID: "DoorA_0001", Name: "Front Door", Model: ModelChecker, Battery: intPtr(70),
				Extra: map[string]any{"open": true}},
			{ID: "ABCDE_0001", Name: "Lights", Model: ModelSwitchBot, Battery: intPtr(50),
				Extra: map[string]any{"switch": []any{true, false}}},
			{ID: "SensA_0001", Name: "", Model: ModelRemoteBot},
			{ID: "not-valid", Name: "", Model: ModelChecker},
			{ID: "DoorB_0002", Name: "", Model: 0x7f},
		},
	}
	reg := NewRegistry()
	factory := NewFactory(reg, Env{Store: store})

	if err := factory.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	// Bad rows are skipped, valid ones hydrated.
	if got := len(reg.All()); got != 3 {
		t.Errorf("registry count = %d, want 3", got)
	}

	d, err := reg.Get("ABCDE_0001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	s := d.(*SwitchBot)
	if !s.IsOn(0) || s.IsOn(1) {
		t.Errorf("hydrated channels = [%v %v], want [true false]", s.IsOn(0), s.IsOn(1))
	}
	if s.Name() != "Lights" {
		t.Errorf("hydrated name = %q, want %q", s.Name(), "Lights")
	}
}
