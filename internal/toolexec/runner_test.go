package toolexec_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/services"
	"reelsmith/internal/toolexec"
)

func TestRunCapturesOutput(t *testing.T) {
	runner := toolexec.NewRunner()
	result, err := runner.Run(context.Background(), toolexec.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo hello"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(result.Output), "hello") {
		t.Fatalf("unexpected output: %q", result.Output)
	}
	if result.Duration <= 0 {
		t.Fatal("expected positive duration")
	}
}

func TestRunWrapsExitFailure(t *testing.T) {
	runner := toolexec.NewRunner()
	_, err := runner.Run(context.Background(), toolexec.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo broken >&2; exit 3"},
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	runner := toolexec.NewRunner()
	_, err := runner.Run(context.Background(), toolexec.Command{
		Binary:  "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestRunRequiresBinary(t *testing.T) {
	runner := toolexec.NewRunner()
	_, err := runner.Run(context.Background(), toolexec.Command{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTailCollapsesWhitespace(t *testing.T) {
	got := toolexec.Tail([]byte("line one\nline two\n\n"), 400)
	if got != "line one line two" {
		t.Fatalf("unexpected tail: %q", got)
	}
}
