package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 5050 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if string(cfg.Password) != "PAZ9" || string(cfg.Message) != "Hils" {
		t.Fatalf("unexpected challenge defaults: %+v", cfg)
	}
}

func TestParseRejectsShortPassword(t *testing.T) {
	if _, err := Parse([]string{"--password", "abc"}); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestParseRejectsNonASCIIMessage(t *testing.T) {
	if _, err := Parse([]string{"--message", "héy"}); err == nil {
		t.Fatal("expected error for non-ASCII message")
	}
}

func TestParseRejectsUnknownRotate(t *testing.T) {
	if _, err := Parse([]string{"--rotate", "sideways"}); err == nil {
		t.Fatal("expected error for unknown rotation policy")
	}
}

func TestParseRejectsUnknownDisclosure(t *testing.T) {
	if _, err := Parse([]string{"--disclosure", "partial"}); err == nil {
		t.Fatal("expected error for unknown disclosure level")
	}
}

func TestParseAcceptsBlockRotateAndDashboard(t *testing.T) {
	cfg, err := Parse([]string{"--rotate", "block", "--dashboard", ":8090", "--disclosure", "redacted"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DashboardAddr != ":8090" {
		t.Fatalf("expected dashboard addr to be set, got %q", cfg.DashboardAddr)
	}
}
