package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":                    zerolog.InfoLevel,
		"debug":               zerolog.DebugLevel,
		"WARN":                zerolog.WarnLevel,
		"nonsense":            zerolog.InfoLevel,
		"medulla=trace,debug": zerolog.TraceLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestLoggerWritesStructuredOutput(t *testing.T) {
	t.Setenv(envLogLevel, "debug")

	var buf bytes.Buffer
	log := NewWithOutput(&buf)
	log.Debug().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"hello"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Setenv(envLogLevel, "warn")

	var buf bytes.Buffer
	log := NewWithOutput(&buf)
	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filter wrong: %s", out)
	}
}
