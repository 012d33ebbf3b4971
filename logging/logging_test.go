package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.Debug("hidden")
	l.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at default level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info message should be written at default level")
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug message should be written at DEBUG level")
	}
}

func TestLogger_Scope(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.WithAgent("sat-001").WithComponent("registry").Info("peer_discovered")

	if !strings.Contains(buf.String(), "[sat-001/registry]") {
		t.Errorf("expected [sat-001/registry] scope, got %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.Info("event", map[string]interface{}{"peer": "sat-002"})

	if !strings.Contains(buf.String(), "peer=sat-002") {
		t.Errorf("expected key=value field, got %q", buf.String())
	}
}

func TestLogger_EventHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelDebug)

	l.PeerDiscovered("sat-002", "hello")
	l.HeartbeatFailure(2, 120*time.Second, errTest{})
	l.CongestionChange("MODERATE", 0.82)

	out := buf.String()
	for _, want := range []string{"peer_discovered", "heartbeat_failed", "next_interval=2m0s", "congestion_level", "level=MODERATE"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

type errTest struct{}

func (errTest) Error() string { return "publish failed" }
