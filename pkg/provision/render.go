package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
)

// Render produces the per-node configuration artifacts for a topology.
// It is a pure function: the same topology always yields byte-identical
// artifacts, and it performs no I/O.
func Render(topo *topology.Topology) (map[string]*Artifact, error) {
	artifacts := make(map[string]*Artifact, len(topo.Nodes))
	for _, id := range topo.NodeIDs() {
		art, err := renderConfigDB(topo, topo.Nodes[id])
		if err != nil {
			return nil, err
		}
		artifacts[id] = art
	}
	return artifacts, nil
}

// WriteResult reports the outcome of a WriteAll call.
type WriteResult struct {
	Written []string              // node IDs whose artifacts were written
	Failed  []*util.ProvisionError // per-node write failures
}

// WriteAll writes artifacts under dir, one subdirectory per node, writing
// nodes concurrently. Failures are collected per node without aborting the
// rest; the call itself fails only if nothing at all could be written.
func WriteAll(dir string, artifacts map[string]*Artifact) (*WriteResult, error) {
	ids := make([]string, 0, len(artifacts))
	for id := range artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := &WriteResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		art := artifacts[id]
		wg.Add(1)
		go func(id string, art *Artifact) {
			defer wg.Done()
			err := writeArtifact(dir, art)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				util.WithNode(id).Warnf("artifact write failed: %v", err)
				res.Failed = append(res.Failed, &util.ProvisionError{Node: id, Err: err})
				return
			}
			res.Written = append(res.Written, id)
		}(id, art)
	}
	wg.Wait()

	sort.Strings(res.Written)
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].Node < res.Failed[j].Node })

	if len(res.Written) == 0 && len(artifacts) > 0 {
		return res, fmt.Errorf("provision: no artifacts written (%d failures)", len(res.Failed))
	}
	return res, nil
}

func writeArtifact(dir string, art *Artifact) error {
	path := filepath.Join(dir, filepath.FromSlash(art.Filename))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, art.Data, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// WriteCompose renders and writes the compose artifact alongside the
// per-node directories.
func WriteCompose(dir string, topo *topology.Topology, image string) error {
	art, err := RenderCompose(topo, image)
	if err != nil {
		return err
	}
	return writeArtifact(dir, art)
}
