package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLogOutputStdout(t *testing.T) {
	w, c := resolveLogOutput("stdout")
	if w != os.Stdout {
		t.Fatalf("expected stdout writer")
	}
	if c != nil {
		t.Fatalf("expected nil closer for stdout")
	}
}

func TestResolveLogOutputStderr(t *testing.T) {
	w, c := resolveLogOutput("stderr")
	if w != os.Stderr {
		t.Fatalf("expected stderr writer")
	}
	if c != nil {
		t.Fatalf("expected nil closer for stderr")
	}
}

func TestResolveLogOutputFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "saluran.log")

	w, c := resolveLogOutput(logPath)
	if w == nil {
		t.Fatalf("expected writer for file output")
	}
	if c == nil {
		t.Fatalf("expected closer for file output")
	}
	if _, err := io.WriteString(w, "line\n"); err != nil {
		t.Fatalf("writing log file: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing log file: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != "line\n" {
		t.Fatalf("log contents: %q", data)
	}
}

func TestResolveLogOutputBadPathFallsBack(t *testing.T) {
	w, c := resolveLogOutput(filepath.Join(t.TempDir(), "no", "such", "dir", "x.log"))
	if w != os.Stdout {
		t.Fatalf("expected stdout fallback for unopenable path")
	}
	if c != nil {
		t.Fatalf("expected nil closer on fallback")
	}
}

func TestSetupLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger, closer := setupLogger("debug", format, "stderr")
		if logger == nil {
			t.Fatalf("nil logger for format %q", format)
		}
		if closer != nil {
			t.Fatalf("unexpected closer for stderr output")
		}
	}
}
