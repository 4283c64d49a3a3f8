package realtime

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Voice identities offered by the interview client.
const (
	VoiceAsh  = "ash"
	VoiceSage = "sage"
)

// Preferences are the user-facing toggles injected at startup. Their
// persistence lives outside the core; only the initial values matter
// here.
type Preferences struct {
	AudioPlaybackEnabled bool
	LogsExpanded         bool
}

// Config holds the session client configuration.
type Config struct {
	// SessionURL is the credential collaborator endpoint that mints a
	// short-lived client secret.
	SessionURL string

	// RealtimeURL is the ws(s) endpoint of the remote model service.
	RealtimeURL string

	Model string
	Voice string

	ConnectTimeout time.Duration

	// Playback sample rate for assistant speech, PCM16 mono.
	AudioSampleRateHz int

	Prefs Preferences
}

// LoadFromEnv builds a Config from MENSETSU_* environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		SessionURL:        envOr("MENSETSU_SESSION_URL", "http://localhost:3000/api/session"),
		RealtimeURL:       envOr("MENSETSU_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		Model:             envOr("MENSETSU_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		Voice:             envOr("MENSETSU_VOICE", VoiceAsh),
		ConnectTimeout:    envDurOr("MENSETSU_CONNECT_TIMEOUT", 15*time.Second),
		AudioSampleRateHz: envIntOr("MENSETSU_AUDIO_SAMPLE_RATE_HZ", 24000),
		Prefs: Preferences{
			AudioPlaybackEnabled: envBoolOr("MENSETSU_AUDIO_PLAYBACK_ENABLED", true),
			LogsExpanded:         envBoolOr("MENSETSU_LOGS_EXPANDED", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SessionURL) == "" {
		return fmt.Errorf("session URL is required")
	}
	if strings.TrimSpace(c.RealtimeURL) == "" {
		return fmt.Errorf("realtime URL is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	switch c.Voice {
	case VoiceAsh, VoiceSage:
	default:
		return fmt.Errorf("voice must be %q or %q, got %q", VoiceAsh, VoiceSage, c.Voice)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be > 0")
	}
	if c.AudioSampleRateHz <= 0 {
		return fmt.Errorf("audio sample rate must be > 0")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
