package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"clustercore"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Port = %d, want default %d", cfg.Port, defaultPort)
	}
	if cfg.ListenAddr != "" {
		t.Errorf("ListenAddr = %q, want empty", cfg.ListenAddr)
	}
	if cfg.DevMode {
		t.Error("DevMode = true, want false by default")
	}
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"clustercore", "-listen-addr", "127.0.0.1", "-port", "9000", "-dev"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1", cfg.ListenAddr)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if !cfg.DevMode {
		t.Error("DevMode = false, want true")
	}
}

func TestParseEnvPortOverridesDefault(t *testing.T) {
	t.Setenv(envPort, "8123")
	cfg, err := Parse([]string{"clustercore"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Port != 8123 {
		t.Errorf("Port = %d, want 8123 from env", cfg.Port)
	}
}

func TestParseFlagOverridesEnvPort(t *testing.T) {
	t.Setenv(envPort, "8123")
	cfg, err := Parse([]string{"clustercore", "-port", "9999"})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999 (flag should win over env)", cfg.Port)
	}
}

func TestParseInvalidFlagReturnsError(t *testing.T) {
	if _, err := Parse([]string{"clustercore", "-not-a-real-flag"}); err == nil {
		t.Fatal("Parse with an unknown flag should return an error")
	}
}
