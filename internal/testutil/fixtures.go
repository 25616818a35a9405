package testutil

import (
	"time"

	"github.com/thruflo/camloop/internal/config"
)

// Epoch is the default instant used by test clocks.
var Epoch = time.UnixMilli(1_700_000_000_000)

// SampleJPEG is the start of a JPEG stream, enough for content checks.
var SampleJPEG = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

// SampleCredential is the bearer credential used by SampleConfig.
const SampleCredential = "test-long-lived-token"

// SampleTargets returns three cameras. Returns a new slice each time.
func SampleTargets() []config.Target {
	return []config.Target{
		{Label: "Entrée", Address: "https://ha.example.com/api/camera_proxy/camera.entree"},
		{Label: "Jardin", Address: "https://ha.example.com/api/camera_proxy/camera.jardin"},
		{Label: "Garage", Address: "https://ha.example.com/api/camera_proxy/camera.garage"},
	}
}

// SampleConfig returns a valid config with default timing and the sample
// targets.
func SampleConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Targets = SampleTargets()
	cfg.Credential = SampleCredential
	return &cfg
}
