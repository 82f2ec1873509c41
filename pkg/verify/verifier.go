package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/soniclab-network/soniclab/pkg/runtime"
	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
)

// Options bounds a verification run.
type Options struct {
	Parallel   int           // max in-flight probes
	Attempts   int           // per-target probe attempts
	BackoffMin time.Duration
	BackoffMax time.Duration
	Timeout    time.Duration // overall per-target budget
}

// DefaultOptions pace probes against freshly booted containers without
// overwhelming the runtime.
var DefaultOptions = Options{
	Parallel:   4,
	Attempts:   10,
	BackoffMin: 2 * time.Second,
	BackoffMax: 15 * time.Second,
	Timeout:    3 * time.Minute,
}

// Verifier drives one verification run: every node resolves through the
// probe state machine, then link checks fan out across the data plane.
type Verifier struct {
	rt      runtime.Runtime
	probers []Prober
	opts    Options
}

// New builds a verifier. Zero-valued option fields fall back to defaults.
func New(rt runtime.Runtime, probers []Prober, opts Options) *Verifier {
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultOptions.Parallel
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultOptions.Attempts
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = DefaultOptions.BackoffMin
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultOptions.BackoffMax
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	return &Verifier{rt: rt, probers: probers, opts: opts}
}

// Run verifies the whole topology. Node probes run first on a bounded pool;
// once every node has resolved, link checks fan out on the same pool. Each
// result occupies a pre-allocated slot written exactly once, so no locking
// is needed around the collection. Probe failures are recorded, never
// returned: the caller always gets the full result set.
func (v *Verifier) Run(ctx context.Context, topo *topology.Topology) []Result {
	ids := topo.NodeIDs()
	links := make([]*topology.Link, len(topo.Links))
	copy(links, topo.Links)
	sort.Slice(links, func(i, j int) bool { return links[i].Key() < links[j].Key() })

	results := make([]Result, len(ids)+len(links))
	sem := make(chan struct{}, v.opts.Parallel)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(slot int, node *topology.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[slot] = v.resolve(ctx, KindNode, node.ID, func(ctx context.Context) error {
				return probeAll(ctx, v.probers, node)
			})
		}(i, topo.Nodes[id])
	}
	wg.Wait()

	for i, l := range links {
		wg.Add(1)
		go func(slot int, l *topology.Link) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[slot] = v.resolve(ctx, KindLink, l.Key(), func(ctx context.Context) error {
				return v.pingPeer(ctx, l)
			})
		}(len(ids)+i, l)
	}
	wg.Wait()

	return results
}

// pingPeer checks a data link by pinging the far endpoint's link address
// from inside the near endpoint's container.
func (v *Verifier) pingPeer(ctx context.Context, l *topology.Link) error {
	argv := []string{"ping", "-c", "1", "-W", "2", l.Z.Addr.IP.String()}
	if out, err := v.rt.Exec(ctx, l.A.Node, argv); err != nil {
		return fmt.Errorf("ping %s from %s: %w (%s)", l.Z.Addr.IP, l.A.Node, err, strings.TrimSpace(out))
	}
	return nil
}

// resolve walks one target through the probe state machine: Probing until
// the probe succeeds (Reachable) or attempts, the per-target budget, or the
// run context give out (Unreachable with a cause). Cancellation is observed
// at retry boundaries only; an in-flight attempt is bounded by its prober's
// own timeout.
func (v *Verifier) resolve(ctx context.Context, kind Kind, target string, probe func(context.Context) error) Result {
	res := Result{Kind: kind, Target: target, State: StateProbing}
	deadline := time.Now().Add(v.opts.Timeout)
	b := &backoff.Backoff{
		Min:    v.opts.BackoffMin,
		Max:    v.opts.BackoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= v.opts.Attempts; attempt++ {
		res.Attempts = attempt

		if err := ctx.Err(); err != nil {
			res.Cause = "cancelled"
			lastErr = err
			break
		}

		start := time.Now()
		err := probe(ctx)
		if err == nil {
			res.State = StateReachable
			res.Latency = time.Since(start)
			break
		}
		lastErr = err

		if ctx.Err() != nil {
			res.Cause = "cancelled"
			break
		}
		if attempt == v.opts.Attempts {
			res.Cause = "unreachable"
			break
		}
		wait := b.Duration()
		if time.Now().Add(wait).After(deadline) {
			res.Cause = "timeout"
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			res.Cause = "cancelled"
		}
		if res.Cause != "" {
			break
		}
	}

	if res.State != StateReachable {
		res.State = StateUnreachable
		if res.Cause == "" {
			res.Cause = "unreachable"
		}
		perr := &util.ProbeError{Target: target, Cause: res.Cause, Err: lastErr}
		util.WithOperation("verify").Warnf("%s %s unreachable after %d attempts: %v", kind, target, res.Attempts, perr)
	} else {
		util.WithOperation("verify").Debugf("%s %s reachable in %s (%d attempts)", kind, target, res.Latency, res.Attempts)
	}
	res.Timestamp = time.Now()
	return res
}
