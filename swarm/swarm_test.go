package swarm

import (
	"testing"
)

func TestNewAgentID_Deterministic(t *testing.T) {
	a, err := NewAgentID("sat-001")
	if err != nil {
		t.Fatalf("NewAgentID error: %v", err)
	}
	b, err := NewAgentID("sat-001")
	if err != nil {
		t.Fatalf("NewAgentID error: %v", err)
	}
	if a.UUID != b.UUID {
		t.Errorf("UUID not deterministic: %s vs %s", a.UUID, b.UUID)
	}
	if a != b {
		t.Error("AgentID values for same serial should be equal")
	}

	c, _ := NewAgentID("sat-002")
	if c.UUID == a.UUID {
		t.Error("different serials produced the same UUID")
	}
}

func TestNewAgentID_Validation(t *testing.T) {
	tests := []struct {
		name          string
		constellation string
		serial        string
		wantErr       bool
	}{
		{"valid", Constellation, "sat-001", false},
		{"empty serial", Constellation, "", true},
		{"wrong constellation", "other-v1", "sat-001", true},
		{"empty constellation", "", "sat-001", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAgentIDIn(tt.constellation, tt.serial)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAgentIDIn() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAgentID_MapKey(t *testing.T) {
	a, _ := NewAgentID("sat-001")
	b, _ := NewAgentID("sat-001")

	m := map[AgentID]int{a: 1}
	if m[b] != 1 {
		t.Error("equal AgentIDs should index the same map entry")
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RolePrimary, RoleBackup, RoleStandby, RoleSafeMode} {
		got, err := ParseRole(string(r))
		if err != nil {
			t.Errorf("ParseRole(%q) error: %v", r, err)
		}
		if got != r {
			t.Errorf("ParseRole(%q) = %q", r, got)
		}
	}
	if _, err := ParseRole("ORBITING"); err == nil {
		t.Error("ParseRole should reject unknown roles")
	}
}

func TestConfig_Validate(t *testing.T) {
	id, _ := NewAgentID("sat-001")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing agent id", func(c *Config) { c.AgentID = AgentID{} }, true},
		{"bad role", func(c *Config) { c.Role = "ORBITING" }, true},
		{"constellation mismatch", func(c *Config) { c.ConstellationID = "other-v1" }, true},
		{"zero bandwidth", func(c *Config) { c.BandwidthLimitKbps = 0 }, true},
		{"negative bandwidth", func(c *Config) { c.BandwidthLimitKbps = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(id)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHello_Roundtrip(t *testing.T) {
	id, _ := NewAgentID("sat-007")
	hello := NewHello(id)

	data, err := hello.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	decoded, err := UnmarshalHello(data)
	if err != nil {
		t.Fatalf("UnmarshalHello error: %v", err)
	}

	sender, err := decoded.SenderID()
	if err != nil {
		t.Fatalf("SenderID error: %v", err)
	}
	if sender != id {
		t.Errorf("sender = %v, want %v", sender, id)
	}
}

func TestHello_SpoofedUUID(t *testing.T) {
	id, _ := NewAgentID("sat-007")
	other, _ := NewAgentID("sat-008")

	hello := NewHello(id)
	hello.UUID = other.UUID.String()

	if _, err := hello.SenderID(); err == nil {
		t.Error("SenderID should reject a uuid that does not match the serial")
	}
}

func TestEnvelope_SenderID(t *testing.T) {
	id, _ := NewAgentID("sat-042")
	env := &Envelope{
		SenderUUID:    id.UUID.String(),
		Constellation: id.Constellation,
		Serial:        id.SatelliteSerial,
		PayloadHex:    "0101",
	}

	data, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	decoded, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope error: %v", err)
	}
	sender, err := decoded.SenderID()
	if err != nil {
		t.Fatalf("SenderID error: %v", err)
	}
	if sender != id {
		t.Errorf("sender = %v, want %v", sender, id)
	}
}
