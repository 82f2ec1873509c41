package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is an in-memory Runtime for tests. Exec responses are scripted per
// container; unscripted execs fail. All methods are safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	// ExecResults maps "container command..." to scripted output.
	ExecResults map[string]string
	// ExecErrs maps the same keys to scripted errors.
	ExecErrs map[string]error
	// States is returned by Status.
	States map[string]string
	// DefaultOK makes unscripted execs succeed with empty output.
	DefaultOK bool

	UpCalls   int
	DownCalls int
	ExecLog   []string
}

// NewFake returns an empty scripted runtime.
func NewFake() *Fake {
	return &Fake{
		ExecResults: make(map[string]string),
		ExecErrs:    make(map[string]error),
		States:      make(map[string]string),
	}
}

// ScriptExec registers output for an exec in container with the given argv.
func (f *Fake) ScriptExec(container string, argv []string, output string, err error) {
	key := execKey(container, argv)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExecResults[key] = output
	if err != nil {
		f.ExecErrs[key] = err
	}
}

func (f *Fake) Up(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpCalls++
	return nil
}

func (f *Fake) Down(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DownCalls++
	return nil
}

func (f *Fake) Status(ctx context.Context, dir string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.States))
	for k, v := range f.States {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Exec(ctx context.Context, container string, argv []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := execKey(container, argv)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExecLog = append(f.ExecLog, key)
	if err, ok := f.ExecErrs[key]; ok {
		return f.ExecResults[key], err
	}
	if out, ok := f.ExecResults[key]; ok {
		return out, nil
	}
	if f.DefaultOK {
		return "", nil
	}
	return "", fmt.Errorf("fake runtime: no script for %q", key)
}

func execKey(container string, argv []string) string {
	return container + " " + strings.Join(argv, " ")
}
