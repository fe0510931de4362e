// Package config resolves server startup configuration from CLI flags,
// validating the challenge text the way GameState requires it.
package config

import (
	"flag"
	"fmt"

	"github.com/sebastiandperez/hascill-crypto-race/internal/match"
)

// Config is the fully resolved, validated startup configuration.
type Config struct {
	Host     string
	Port     int
	Password []byte
	Message  []byte
	Rotate   match.RotationPolicy

	DashboardAddr string
	DatabaseURL   string
	Disclosure    match.DisclosureLevel
}

func validateChallenge(name, s string) ([]byte, error) {
	b := []byte(s)
	if len(b) != 4 {
		return nil, fmt.Errorf("--%s must be exactly 4 ASCII characters, got %q", name, s)
	}
	for _, c := range b {
		if c > 127 {
			return nil, fmt.Errorf("--%s must be ASCII, got %q", name, s)
		}
	}
	return b, nil
}

// Parse parses args (normally os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("hascill-server", flag.ContinueOnError)

	host := fs.String("host", "0.0.0.0", "TCP bind host")
	port := fs.Int("port", 5050, "TCP bind port")
	password := fs.String("password", "PAZ9", "challenge password, 4 ASCII characters")
	message := fs.String("message", "Hils", "challenge plaintext, 4 ASCII characters")
	rotate := fs.String("rotate", "phase", "turn rotation policy: phase|block")
	dashboard := fs.String("dashboard", ":8090", "dashboard HTTP bind address (empty disables it)")
	databaseURL := fs.String("database-url", "", "Postgres connection string for the audit log (empty disables it)")
	disclosure := fs.String("disclosure", "full", "step_answer rejection disclosure level: full|redacted")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	pw, err := validateChallenge("password", *password)
	if err != nil {
		return nil, err
	}
	msg, err := validateChallenge("message", *message)
	if err != nil {
		return nil, err
	}

	var rotatePolicy match.RotationPolicy
	switch *rotate {
	case "phase":
		rotatePolicy = match.RotatePhase
	case "block":
		rotatePolicy = match.RotateBlock
	default:
		return nil, fmt.Errorf("--rotate must be phase or block, got %q", *rotate)
	}

	var disclosureLevel match.DisclosureLevel
	switch *disclosure {
	case "full":
		disclosureLevel = match.DisclosureFull
	case "redacted":
		disclosureLevel = match.DisclosureRedacted
	default:
		return nil, fmt.Errorf("--disclosure must be full or redacted, got %q", *disclosure)
	}

	return &Config{
		Host: *host, Port: *port, Password: pw, Message: msg, Rotate: rotatePolicy,
		DashboardAddr: *dashboard, DatabaseURL: *databaseURL, Disclosure: disclosureLevel,
	}, nil
}
