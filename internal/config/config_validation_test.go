package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{
		Publishers: []PublisherConfig{{Name: "uplink", Address: "10.0.0.1", Port: 5683}},
		LTBs:       []LTBConfig{{Name: "pool", PoolDir: "/var/lib/condalf/pool", Sender: "uplink"}},
		Loggers:    []LoggerConfig{{Name: "sensors", RecordQueueSize: 64, Driver: "pool"}},
		RDLog:      "sensors",
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidConfigPasses(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Loggers[0].Driver = "nonexistent"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestValidateRejectsUnknownSender(t *testing.T) {
	cfg := validConfig()
	cfg.LTBs[0].Sender = "nonexistent"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown sender") {
		t.Fatalf("expected unknown sender error, got %v", err)
	}
}

func TestValidateRejectsNonPowerOfTwoQueueSize(t *testing.T) {
	cfg := validConfig()
	cfg.Loggers[0].RecordQueueSize = 65

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "power of two") {
		t.Fatalf("expected power-of-two error, got %v", err)
	}
}

func TestValidateRejectsDuplicateSinkNames(t *testing.T) {
	cfg := validConfig()
	cfg.HexSinks = []HexSinkConfig{{Name: "uplink"}}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate sink name") {
		t.Fatalf("expected duplicate sink name error, got %v", err)
	}
}

func TestValidateRejectsUnknownRDLogLogger(t *testing.T) {
	cfg := validConfig()
	cfg.RDLog = "nonexistent"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "rdlog references unknown logger") {
		t.Fatalf("expected rdlog error, got %v", err)
	}
}
