package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEmitCommandError_StructuredForScopedCommands(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "patchbay serve",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got := payload["app"]; got != "patchbay" {
		t.Fatalf("app = %v, want %q", got, "patchbay")
	}
	if got := payload["command"]; got != "patchbay serve" {
		t.Fatalf("command = %v, want %q", got, "patchbay serve")
	}
	if got := payload["exit_code"]; got != float64(1) {
		t.Fatalf("exit_code = %v, want %v", got, 1)
	}
	if got := payload["error"]; got != "boom" {
		t.Fatalf("error = %v, want %q", got, "boom")
	}
}

func TestEmitCommandError_FallsBackToJSONWhenLoggingEnvInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "invalid")
	t.Setenv("LOG_LEVEL", "info")
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "patchbay serve",
		UsesStructuredLog: true,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("boom"), "command failed", 1, &out)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected structured log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("expected JSON fallback log, got parse error: %v", err)
	}
}

func TestEmitCommandError_PlainOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "patchbay keygen",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(errors.New("plain boom"), "command failed", 1, &out)
	if got := out.String(); got != "plain boom\n" {
		t.Fatalf("output = %q, want %q", got, "plain boom\n")
	}
}

func TestEmitCommandError_CanceledOutputForNonScopedCommands(t *testing.T) {
	setCommandExecutionContext(commandExecutionContext{
		CommandPath:       "patchbay keygen",
		UsesStructuredLog: false,
	})
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	emitCommandError(context.Canceled, "command canceled", 130, &out)
	if got := out.String(); got != "canceled\n" {
		t.Fatalf("output = %q, want %q", got, "canceled\n")
	}
}

func TestRunMain(t *testing.T) {
	t.Cleanup(resetCommandExecutionContext)

	var out bytes.Buffer
	if code := runMain(func() error { return nil }, &out); code != 0 {
		t.Fatalf("runMain(nil error) = %d, want 0", code)
	}

	if code := runMain(func() error { return errors.New("boom") }, &out); code != 1 {
		t.Fatalf("runMain(error) = %d, want 1", code)
	}

	if code := runMain(func() error { return context.Canceled }, &out); code != 130 {
		t.Fatalf("runMain(canceled) = %d, want 130", code)
	}

	if code := runMain(func() error { return &exitError{code: 3, silent: true} }, &out); code != 3 {
		t.Fatalf("runMain(exitError) = %d, want 3", code)
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	ee := &exitError{code: 2, err: inner}
	if !errors.Is(ee, inner) {
		t.Fatal("exitError did not unwrap to the inner error")
	}
	if ee.Error() != "inner" {
		t.Fatalf("Error() = %q", ee.Error())
	}
	if (&exitError{code: 4}).Error() != "exit 4" {
		t.Fatalf("Error() = %q", (&exitError{code: 4}).Error())
	}
}
