// Package runtime abstracts the external container runtime. The orchestrator
// only issues lifecycle commands and in-container execs; it never manages
// containers itself.
package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/soniclab-network/soniclab/pkg/util"
)

// Runtime is the container-runtime boundary. Implementations must be safe
// for concurrent use; Exec in particular is called from probe workers.
type Runtime interface {
	// Up starts the lab described by the compose file in dir.
	Up(ctx context.Context, dir string) error
	// Down stops and removes the lab.
	Down(ctx context.Context, dir string) error
	// Status returns the runtime's view of container states, keyed by
	// container (node) name.
	Status(ctx context.Context, dir string) (map[string]string, error)
	// Exec runs a command inside the named container and returns combined
	// output.
	Exec(ctx context.Context, container string, argv []string) (string, error)
}

// DockerCompose shells out to `docker compose`. The compose file is an
// artifact of the provisioner; everything below the CLI is opaque.
type DockerCompose struct {
	// Binary overrides the docker executable, mainly for tests.
	Binary string
}

func (d *DockerCompose) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "docker"
}

// Up runs `docker compose up -d` in dir.
func (d *DockerCompose) Up(ctx context.Context, dir string) error {
	return d.run(ctx, dir, "compose", "up", "-d", "--wait")
}

// Down runs `docker compose down` in dir.
func (d *DockerCompose) Down(ctx context.Context, dir string) error {
	return d.run(ctx, dir, "compose", "down")
}

// Status parses `docker compose ps` output into name → state.
func (d *DockerCompose) Status(ctx context.Context, dir string) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, d.binary(), "compose", "ps", "--format", "{{.Name}}\t{{.State}}")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("runtime: compose ps: %w\n%s", err, stderr.String())
	}

	status := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) == 2 {
			status[fields[0]] = fields[1]
		}
	}
	return status, nil
}

// Exec runs `docker exec <container> argv...` and returns combined output.
func (d *DockerCompose) Exec(ctx context.Context, container string, argv []string) (string, error) {
	args := append([]string{"exec", container}, argv...)
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("runtime: exec in %s: %w", container, err)
	}
	return string(out), nil
}

func (d *DockerCompose) run(ctx context.Context, dir string, args ...string) error {
	util.WithOperation("compose").Debugf("%s %s (dir %s)", d.binary(), strings.Join(args, " "), dir)
	cmd := exec.CommandContext(ctx, d.binary(), args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("runtime: %s %s: %w\n%s", d.binary(), strings.Join(args, " "), err, out)
	}
	return nil
}
