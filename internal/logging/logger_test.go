package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.WithComponent("ledger").Info().Str("transaction_id", "t-1").Msg("ledger entry appended")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["component"] != "ledger" {
		t.Errorf("component = %v, want ledger", line["component"])
	}
	if line["transaction_id"] != "t-1" {
		t.Errorf("transaction_id = %v, want t-1", line["transaction_id"])
	}
	if line["message"] != "ledger entry appended" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTraceContext(t *testing.T) {
	ctx, log := WithTraceContext(context.Background())

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		t.Fatal("no trace id attached")
	}
	if log == nil {
		t.Fatal("no logger returned")
	}

	t.Run("ids are unique", func(t *testing.T) {
		other, _ := WithTraceContext(context.Background())
		if TraceIDFromContext(other) == traceID {
			t.Error("two contexts share a trace id")
		}
	})

	t.Run("missing trace id is empty", func(t *testing.T) {
		if got := TraceIDFromContext(context.Background()); got != "" {
			t.Errorf("trace id = %q, want empty", got)
		}
	})
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)
	ctx := NewContext(context.Background(), log)

	if got := FromContext(ctx); got != log {
		t.Error("FromContext did not return the attached logger")
	}

	t.Run("falls back to the default", func(t *testing.T) {
		if got := FromContext(context.Background()); got == nil {
			t.Error("FromContext returned nil without an attached logger")
		}
	})
}
