// Full-pipeline test: spec to artifacts to (fake) runtime to verification
// report to history. Runs hermetically against the in-memory runtime.
package e2e_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soniclab-network/soniclab/internal/testutil"
	"github.com/soniclab-network/soniclab/pkg/provision"
	"github.com/soniclab-network/soniclab/pkg/report"
	"github.com/soniclab-network/soniclab/pkg/runtime"
	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/verify"
)

var quickOpts = verify.Options{
	Parallel:   4,
	Attempts:   2,
	BackoffMin: time.Millisecond,
	BackoffMax: 2 * time.Millisecond,
	Timeout:    time.Second,
}

func TestOrchestration_HealthyLab(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	ctx := context.Background()
	dir := t.TempDir()

	// Provision.
	artifacts, err := provision.Render(topo)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	res, err := provision.WriteAll(dir, artifacts)
	if err != nil || len(res.Failed) > 0 {
		t.Fatalf("write: %v (failed %v)", err, res.Failed)
	}
	if err := provision.WriteCompose(dir, topo, ""); err != nil {
		t.Fatalf("compose: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "docker-compose.yaml")); err != nil {
		t.Fatalf("compose file missing: %v", err)
	}

	// Deploy and set up against the fake runtime.
	rt := runtime.NewFake()
	rt.DefaultOK = true
	if err := rt.Up(ctx, dir); err != nil {
		t.Fatalf("up: %v", err)
	}
	for _, id := range topo.NodeIDs() {
		for _, sr := range provision.RunSteps(ctx, rt, topo, topo.Nodes[id], provision.StepOptions{
			Attempts: 2, BackoffMin: time.Millisecond, BackoffMax: time.Millisecond,
		}) {
			if sr.Err != nil {
				t.Fatalf("setup %s/%s: %v", sr.Node, sr.Step, sr.Err)
			}
		}
	}

	// Verify and report.
	results := verify.New(rt, nil, quickOpts).Run(ctx, topo)
	rep, err := report.Summarize(topo, results)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !rep.OK {
		t.Fatalf("healthy lab reported degraded: %+v", rep)
	}

	// History round trip.
	h, err := report.OpenHistory(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer h.Close()
	if _, err := h.Save(ctx, rep); err != nil {
		t.Fatalf("save: %v", err)
	}
	last, err := h.Last(ctx)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if !last.OK || last.Topology != "sonic-diamond" {
		t.Errorf("history round trip: %+v", last)
	}
}

func TestOrchestration_DegradedDiamondKeepsRedundantPair(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	ctx := context.Background()

	rt := runtime.NewFake()
	rt.DefaultOK = true
	rt.ScriptExec("sonic-2",
		[]string{"ping", "-c", "1", "-W", "2", "192.2.3.13"},
		"100% packet loss", errors.New("exit status 1"))

	results := verify.New(rt, nil, quickOpts).Run(ctx, topo)
	rep, err := report.Summarize(topo, results)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if rep.OK {
		t.Error("degraded lab must not report OK")
	}
	if rep.LinksReachable != 5 {
		t.Errorf("links reachable = %d, want 5", rep.LinksReachable)
	}
	if len(rep.Pairs) != 1 || !rep.Pairs[0].PathsIntact {
		t.Errorf("redundant pair should survive one cut link: %+v", rep.Pairs)
	}
}

func TestOrchestration_ValidationStopsBeforeSideEffects(t *testing.T) {
	bad := []byte(`
name: dup-ip
nodes:
  - id: a
    mgmt_ip: 172.20.0.11
    ports: {ssh: 2211, rest: 8811, gnmi: 50511, telnet: 9011}
  - id: b
    mgmt_ip: 172.20.0.11
    ports: {ssh: 2212, rest: 8812, gnmi: 50512, telnet: 9012}
links:
  - {a: a, z: b}
`)
	if _, err := topology.Parse(bad); err == nil {
		t.Fatal("duplicate mgmt IP must fail validation")
	}

	// Nothing was written anywhere: the only side-effect surface is the
	// artifact dir, which load never touches.
	dir := t.TempDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("unexpected files: %v", entries)
	}
}
