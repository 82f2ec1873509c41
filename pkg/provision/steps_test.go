package provision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soniclab-network/soniclab/internal/testutil"
	"github.com/soniclab-network/soniclab/pkg/runtime"
	"github.com/soniclab-network/soniclab/pkg/util"
)

var fastStepOpts = StepOptions{
	Attempts:   3,
	BackoffMin: time.Millisecond,
	BackoffMax: 2 * time.Millisecond,
}

func TestSteps_Order(t *testing.T) {
	var names []string
	for _, s := range Steps("static") {
		names = append(names, s.Name)
	}
	want := []string{"apply-config", "flush-interfaces", "assign-link-ips", "create-admin-user", "start-sshd", "start-telemetry"}
	if len(names) != len(want) {
		t.Fatalf("steps = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("step[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestSteps_ManagedModeSkipsAssign(t *testing.T) {
	for _, s := range Steps("managed") {
		if s.Name == "assign-link-ips" {
			t.Error("managed mode should not assign static link addresses")
		}
	}
}

func TestRunSteps_AllOK(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	fake := runtime.NewFake()
	fake.DefaultOK = true

	results := RunSteps(context.Background(), fake, topo, topo.Nodes["sonic-1"], fastStepOpts)
	if len(results) != 6 {
		t.Fatalf("results = %d, want 6", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("step %s: %v", r.Step, r.Err)
		}
		if r.Attempts != 1 {
			t.Errorf("step %s attempts = %d, want 1", r.Step, r.Attempts)
		}
	}

	for _, want := range []string{
		"sonic-1 config reload -y",
		"sonic-1 ip addr flush dev Ethernet0",
		"sonic-1 config interface ip add Ethernet0 192.1.2.11/24",
		"sonic-1 config interface ip add Ethernet4 192.1.5.11/24",
		"sonic-1 service ssh start",
		"sonic-1 service telemetry start",
	} {
		found := false
		for _, got := range fake.ExecLog {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("exec log missing %q", want)
		}
	}
}

func TestRunSteps_FailedStepReportedAndRunContinues(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	fake := runtime.NewFake()
	fake.DefaultOK = true
	fake.ScriptExec("sonic-1", []string{"config", "reload", "-y"}, "boom", errors.New("exit status 1"))

	results := RunSteps(context.Background(), fake, topo, topo.Nodes["sonic-1"], fastStepOpts)

	var failed *StepResult
	for i := range results {
		if results[i].Step == "apply-config" {
			failed = &results[i]
		} else if results[i].Err != nil {
			t.Errorf("step %s should have run despite earlier failure: %v", results[i].Step, results[i].Err)
		}
	}
	if failed == nil || failed.Err == nil {
		t.Fatal("apply-config failure not reported")
	}
	if failed.Attempts != fastStepOpts.Attempts {
		t.Errorf("attempts = %d, want %d", failed.Attempts, fastStepOpts.Attempts)
	}
	if !errors.Is(failed.Err, util.ErrProvisionFailed) {
		t.Errorf("error %v does not match ErrProvisionFailed", failed.Err)
	}
	var perr *util.ProvisionError
	if !errors.As(failed.Err, &perr) || perr.Node != "sonic-1" || perr.Step != "apply-config" {
		t.Errorf("unexpected provision error: %v", failed.Err)
	}
}

// flakyRuntime fails a command a fixed number of times before delegating.
type flakyRuntime struct {
	*runtime.Fake
	mu       sync.Mutex
	failures map[string]int
}

func (f *flakyRuntime) Exec(ctx context.Context, container string, argv []string) (string, error) {
	key := container + " " + strings.Join(argv, " ")
	f.mu.Lock()
	n := f.failures[key]
	if n > 0 {
		f.failures[key] = n - 1
	}
	f.mu.Unlock()
	if n > 0 {
		return "", errors.New("not ready")
	}
	return f.Fake.Exec(ctx, container, argv)
}

func TestRunSteps_RetriesTransientFailure(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	inner := runtime.NewFake()
	inner.DefaultOK = true
	flaky := &flakyRuntime{
		Fake:     inner,
		failures: map[string]int{"sonic-1 service ssh start": 2},
	}

	results := RunSteps(context.Background(), flaky, topo, topo.Nodes["sonic-1"], fastStepOpts)
	for _, r := range results {
		if r.Step != "start-sshd" {
			continue
		}
		if r.Err != nil {
			t.Fatalf("start-sshd should recover: %v", r.Err)
		}
		if r.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", r.Attempts)
		}
	}
}

func TestRunSteps_Cancelled(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	fake := runtime.NewFake()
	fake.DefaultOK = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunSteps(ctx, fake, topo, topo.Nodes["sonic-1"], fastStepOpts)
	for _, r := range results {
		if r.Err == nil {
			t.Errorf("step %s should fail under a cancelled context", r.Step)
		}
		if r.Attempts != 1 {
			t.Errorf("step %s attempts = %d, want 1 (no retry after cancel)", r.Step, r.Attempts)
		}
	}
}
