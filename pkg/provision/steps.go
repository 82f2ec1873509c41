package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"github.com/soniclab-network/soniclab/pkg/runtime"
	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
)

// A Step is one idempotent provisioning action run inside a node container.
// Steps replace the lab's old startup shell scripting: each is retried with
// bounded backoff and reported individually instead of failing silently.
type Step struct {
	Name string
	// Commands returns the argv lists to exec, derived from the topology.
	Commands func(topo *topology.Topology, node *topology.Node) [][]string
}

// StepResult records one step's outcome on one node.
type StepResult struct {
	Node     string
	Step     string
	Attempts int
	Err      error
}

// StepOptions bounds step retries.
type StepOptions struct {
	Attempts   int
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// DefaultStepOptions match the pacing the containers tolerate during boot.
var DefaultStepOptions = StepOptions{
	Attempts:   3,
	BackoffMin: 500 * time.Millisecond,
	BackoffMax: 5 * time.Second,
}

// adminUser is created on every node for out-of-band access.
const adminUser = "labadmin"

// Steps returns the ordered provisioning sequence for a node. Order
// matters: configuration must land before interfaces are touched, and
// services start last.
func Steps(mode string) []Step {
	steps := []Step{
		{
			Name: "apply-config",
			Commands: func(_ *topology.Topology, _ *topology.Node) [][]string {
				return [][]string{{"config", "reload", "-y"}}
			},
		},
		{
			Name: "flush-interfaces",
			Commands: func(topo *topology.Topology, node *topology.Node) [][]string {
				var cmds [][]string
				for _, ni := range NodeInterfaces(topo, node.ID) {
					cmds = append(cmds, []string{"ip", "addr", "flush", "dev", ni.Name})
				}
				return cmds
			},
		},
	}

	if mode == topology.DataIPStatic {
		steps = append(steps, Step{
			Name: "assign-link-ips",
			Commands: func(topo *topology.Topology, node *topology.Node) [][]string {
				var cmds [][]string
				for _, ni := range NodeInterfaces(topo, node.ID) {
					cmds = append(cmds, []string{"config", "interface", "ip", "add", ni.Name, ni.Addr.String()})
				}
				return cmds
			},
		})
	}

	steps = append(steps,
		Step{
			Name: "create-admin-user",
			Commands: func(_ *topology.Topology, _ *topology.Node) [][]string {
				// -m is a no-op when the home dir exists; the id guard in
				// front keeps the step idempotent.
				return [][]string{{"sh", "-c", fmt.Sprintf("id %s >/dev/null 2>&1 || useradd -m -s /bin/bash %s", adminUser, adminUser)}}
			},
		},
		Step{
			Name: "start-sshd",
			Commands: func(_ *topology.Topology, _ *topology.Node) [][]string {
				return [][]string{{"service", "ssh", "start"}}
			},
		},
		Step{
			Name: "start-telemetry",
			Commands: func(_ *topology.Topology, _ *topology.Node) [][]string {
				return [][]string{{"service", "telemetry", "start"}}
			},
		},
	)
	return steps
}

// RunSteps executes the provisioning sequence on one node, retrying each
// step with bounded exponential backoff. Every step is reported; a failed
// step does not stop later steps, matching the best-effort semantics of
// artifact writes.
func RunSteps(ctx context.Context, rt runtime.Runtime, topo *topology.Topology, node *topology.Node, opts StepOptions) []StepResult {
	if opts.Attempts <= 0 {
		opts = DefaultStepOptions
	}

	var results []StepResult
	for _, step := range Steps(topo.DataIPMode) {
		res := StepResult{Node: node.ID, Step: step.Name}
		res.Attempts, res.Err = runStep(ctx, rt, topo, node, step, opts)
		if res.Err != nil {
			res.Err = &util.ProvisionError{Node: node.ID, Step: step.Name, Err: res.Err}
			util.WithNode(node.ID).Warnf("step %s failed after %d attempts: %v", step.Name, res.Attempts, res.Err)
		} else {
			util.WithNode(node.ID).Debugf("step %s ok (%d attempts)", step.Name, res.Attempts)
		}
		results = append(results, res)
	}
	return results
}

func runStep(ctx context.Context, rt runtime.Runtime, topo *topology.Topology, node *topology.Node, step Step, opts StepOptions) (int, error) {
	b := &backoff.Backoff{
		Min:    opts.BackoffMin,
		Max:    opts.BackoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		lastErr = execAll(ctx, rt, node.ID, step.Commands(topo, node))
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, fmt.Errorf("cancelled: %w", ctx.Err())
		}
		if attempt < opts.Attempts {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				return attempt, fmt.Errorf("cancelled: %w", ctx.Err())
			}
		}
	}
	return opts.Attempts, lastErr
}

func execAll(ctx context.Context, rt runtime.Runtime, container string, cmds [][]string) error {
	for _, argv := range cmds {
		if out, err := rt.Exec(ctx, container, argv); err != nil {
			return fmt.Errorf("%v: %w (%s)", argv, err, out)
		}
	}
	return nil
}
