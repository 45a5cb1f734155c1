package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/user/loadsim/pkg/ports"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     ports.LogLevel
		wantOut   []string
		wantNoOut []string
	}{
		{
			name:      "debug level passes everything",
			level:     ports.LevelDebug,
			wantOut:   []string{"debug line", "info line", "warn line", "error line"},
			wantNoOut: nil,
		},
		{
			name:      "info level drops debug",
			level:     ports.LevelInfo,
			wantOut:   []string{"info line", "warn line", "error line"},
			wantNoOut: []string{"debug line"},
		},
		{
			name:      "error level drops all but errors",
			level:     ports.LevelError,
			wantOut:   []string{"error line"},
			wantNoOut: []string{"debug line", "info line", "warn line"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			l := NewConsoleWriter(tt.level, &out, &errOut)

			l.Debug("debug line")
			l.Info("info line")
			l.Warn("warn line")
			l.Error("error line")

			combined := out.String() + errOut.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(combined, want) {
					t.Errorf("expected output to contain %q, got %q", want, combined)
				}
			}
			for _, unwanted := range tt.wantNoOut {
				if strings.Contains(combined, unwanted) {
					t.Errorf("expected output not to contain %q, got %q", unwanted, combined)
				}
			}
		})
	}
}

func TestConsoleLogger_StreamSeparation(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewConsoleWriter(ports.LevelDebug, &out, &errOut)

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	if got := out.String(); !strings.Contains(got, "debug line") || !strings.Contains(got, "info line") {
		t.Errorf("expected debug and info on out stream, got %q", got)
	}
	if got := out.String(); strings.Contains(got, "warn line") || strings.Contains(got, "error line") {
		t.Errorf("expected no warnings or errors on out stream, got %q", got)
	}
	if got := errOut.String(); !strings.Contains(got, "warn line") || !strings.Contains(got, "error line") {
		t.Errorf("expected warn and error on err stream, got %q", got)
	}
}

func TestConsoleLogger_WithComponent(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewConsoleWriter(ports.LevelInfo, &out, &errOut)

	child := l.WithComponent("simulator")
	child.Info("queue drained")

	if got := out.String(); !strings.Contains(got, "[simulator] queue drained") {
		t.Errorf("expected component-prefixed line, got %q", got)
	}

	// The parent stays unprefixed.
	out.Reset()
	l.Info("queue drained")
	if got := out.String(); strings.Contains(got, "[simulator]") {
		t.Errorf("expected parent logger without component prefix, got %q", got)
	}
}

func TestConsoleLogger_FormatArgs(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewConsoleWriter(ports.LevelInfo, &out, &errOut)

	l.Info("completed %d of %d nodes", 3, 7)

	if got := out.String(); !strings.Contains(got, "completed 3 of 7 nodes") {
		t.Errorf("expected formatted message, got %q", got)
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoop()

	// No panics, no output paths to check; WithComponent keeps the
	// same discard behavior.
	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")

	child := l.WithComponent("simulator")
	if child != ports.Logger(l) {
		t.Error("expected WithComponent to return the same no-op logger")
	}
	child.Info("still discarded")
}
