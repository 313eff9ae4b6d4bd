package sysutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"trace":     zerolog.TraceLevel,
		"":          zerolog.InfoLevel,
		"warning":   zerolog.WarnLevel,
		"ERROR":     zerolog.ErrorLevel,
		"verbose":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := SetLogLevel(in); got != want || zerolog.GlobalLevel() != want {
			t.Fatalf("SetLogLevel(%q) = %v, global %v; want %v", in, got, zerolog.GlobalLevel(), want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(&buf, false)
	lg.Info().Str("k", "v").Msg("hello")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("json logger produced %q: %v", buf.String(), err)
	}
	if m["message"] != "hello" || m["k"] != "v" || m["time"] == nil {
		t.Fatalf("fields = %v", m)
	}

	buf.Reset()
	lg = NewLogger(&buf, true)
	lg.Info().Msg("pretty")
	if out := buf.String(); strings.HasPrefix(out, "{") || !strings.Contains(out, "pretty") {
		t.Fatalf("console output = %q", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", " a ", "b"); got != " a " {
		t.Fatalf("got %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("got %q", got)
	}
}
