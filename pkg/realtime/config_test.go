package realtime

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Voice != VoiceAsh {
		t.Fatalf("voice = %q, want ash", cfg.Voice)
	}
	if cfg.AudioSampleRateHz != 24000 {
		t.Fatalf("sample rate = %d, want 24000", cfg.AudioSampleRateHz)
	}
	if !cfg.Prefs.AudioPlaybackEnabled {
		t.Fatal("playback must default on")
	}
	if cfg.Prefs.LogsExpanded {
		t.Fatal("expanded logs must default off")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("MENSETSU_VOICE", VoiceSage)
	t.Setenv("MENSETSU_CONNECT_TIMEOUT", "3s")
	t.Setenv("MENSETSU_AUDIO_PLAYBACK_ENABLED", "false")
	t.Setenv("MENSETSU_LOGS_EXPANDED", "1")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Voice != VoiceSage {
		t.Fatalf("voice = %q, want sage", cfg.Voice)
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", cfg.ConnectTimeout)
	}
	if cfg.Prefs.AudioPlaybackEnabled {
		t.Fatal("playback override ignored")
	}
	if !cfg.Prefs.LogsExpanded {
		t.Fatal("logs override ignored")
	}
}

func TestValidateRejectsUnknownVoice(t *testing.T) {
	t.Setenv("MENSETSU_VOICE", "alloy")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("unknown voice must be rejected")
	}
}

func TestValidateRejectsMalformedOverrides(t *testing.T) {
	// Unparseable values fall back to defaults rather than failing.
	t.Setenv("MENSETSU_CONNECT_TIMEOUT", "soon")
	t.Setenv("MENSETSU_AUDIO_SAMPLE_RATE_HZ", "fast")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.ConnectTimeout != 15*time.Second || cfg.AudioSampleRateHz != 24000 {
		t.Fatalf("fallbacks not applied: %+v", cfg)
	}
}
