package executor

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestNew_DefaultsEmptyBinaryToClaude(t *testing.T) {
	e := New("")
	if e.Binary != "claude" {
		t.Errorf("Binary = %q, want claude", e.Binary)
	}
}

func TestDeduplicateEnv_LastOccurrenceWins(t *testing.T) {
	env := []string{"FOO=old", "BAR=1", "FOO=new"}
	got := deduplicateEnv(env)

	var foo string
	for _, e := range got {
		if e == "FOO=new" {
			foo = e
		}
		if e == "FOO=old" {
			t.Error("deduplicateEnv kept the shadowed FOO=old entry")
		}
	}
	if foo == "" {
		t.Error("deduplicateEnv dropped the winning FOO=new entry")
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestRemoveKeys_DropsOnlyNamedKeys(t *testing.T) {
	env := []string{"KEEP=1", "DROP_ME=2", "ALSO_KEEP=3"}
	got := removeKeys(env, []string{"DROP_ME"})

	for _, e := range got {
		if e == "DROP_ME=2" {
			t.Error("removeKeys left DROP_ME in the result")
		}
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestChildEnv_UnsetsNestedSessionMarkers(t *testing.T) {
	env := childEnv()
	for _, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		for _, disabled := range disabledEnvVars {
			if key == disabled {
				t.Errorf("childEnv() still contains disabled var %q", disabled)
			}
		}
	}
}

func TestBuildResult_Killed(t *testing.T) {
	r := buildResult("out", "err", nil, true)
	if !r.Killed {
		t.Error("Killed should be true")
	}
	if r.Stdout != "out" || r.Stderr != "err" {
		t.Errorf("Stdout/Stderr = %q/%q", r.Stdout, r.Stderr)
	}
}

func TestBuildResult_NonZeroExit(t *testing.T) {
	cmd := exec.Command("false")
	err := cmd.Run()

	r := buildResult("", "", err, false)
	if r.ExitCode == 0 {
		t.Error("ExitCode should be nonzero for a failing command")
	}
}

func TestProcessExecutor_Run_CapturesStdout(t *testing.T) {
	e := New("echo")
	result, err := e.Run(context.Background(), []string{"hello"}, 5000)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello\n")
	}
	if result.Killed {
		t.Error("Killed should be false for a fast command")
	}
}

func TestProcessExecutor_Run_EnforcesTimeout(t *testing.T) {
	e := New("sleep")
	start := time.Now()
	result, err := e.Run(context.Background(), []string{"5"}, 100)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Killed {
		t.Error("Killed should be true after the deadline elapses")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Run() took %v, want well under the 5s sleep duration", elapsed)
	}
}

func TestProcessExecutor_Run_SpawnFailureSurfacesError(t *testing.T) {
	e := New("this-binary-does-not-exist-anywhere")
	_, err := e.Run(context.Background(), nil, 1000)
	if err == nil {
		t.Error("Run() with a missing binary should return an error")
	}
}
