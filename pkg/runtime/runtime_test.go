package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// stubDocker writes an executable that prints the given stdout and exits 0,
// standing in for the docker binary.
func stubDocker(t *testing.T, stdout string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker")
	script := "#!/bin/sh\nprintf '%s' '" + stdout + "'\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDockerCompose_StatusParsing(t *testing.T) {
	d := &DockerCompose{Binary: stubDocker(t, `sonic-1	running
sonic-2	exited
`)}

	states, err := d.Status(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if states["sonic-1"] != "running" || states["sonic-2"] != "exited" {
		t.Errorf("states = %v", states)
	}
}

func TestDockerCompose_StatusMissingBinary(t *testing.T) {
	d := &DockerCompose{Binary: filepath.Join(t.TempDir(), "nope")}
	if _, err := d.Status(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestFake_ScriptedExec(t *testing.T) {
	f := NewFake()
	f.ScriptExec("sonic-1", []string{"show", "version"}, "SONiC 202405", nil)
	f.ScriptExec("sonic-2", []string{"show", "version"}, "", errors.New("container not running"))

	out, err := f.Exec(context.Background(), "sonic-1", []string{"show", "version"})
	if err != nil || out != "SONiC 202405" {
		t.Errorf("scripted exec: out=%q err=%v", out, err)
	}
	if _, err := f.Exec(context.Background(), "sonic-2", []string{"show", "version"}); err == nil {
		t.Error("scripted error not returned")
	}
	if _, err := f.Exec(context.Background(), "sonic-3", []string{"uptime"}); err == nil {
		t.Error("unscripted exec should fail without DefaultOK")
	}

	f.DefaultOK = true
	if _, err := f.Exec(context.Background(), "sonic-3", []string{"uptime"}); err != nil {
		t.Errorf("DefaultOK exec failed: %v", err)
	}

	if len(f.ExecLog) != 4 {
		t.Errorf("exec log = %v", f.ExecLog)
	}
}

func TestFake_CancelledContext(t *testing.T) {
	f := NewFake()
	f.DefaultOK = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Exec(ctx, "sonic-1", []string{"true"}); err == nil {
		t.Fatal("cancelled context should fail exec")
	}
}
