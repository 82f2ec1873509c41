package provision

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/soniclab-network/soniclab/internal/testutil"
)

func TestRender_Deterministic(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	first, err := Render(topo)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := Render(topo)
	if err != nil {
		t.Fatalf("Render (second): %v", err)
	}

	if len(first) != 6 {
		t.Fatalf("expected 6 artifacts, got %d", len(first))
	}
	for id, art := range first {
		if !bytes.Equal(art.Data, second[id].Data) {
			t.Errorf("artifact for %s differs between renders", id)
		}
		if want := id + "/config_db.json"; art.Filename != want {
			t.Errorf("filename = %q, want %q", art.Filename, want)
		}
	}
}

func TestRenderConfigDB_Content(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	artifacts, err := Render(topo)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var db map[string]json.RawMessage
	if err := json.Unmarshal(artifacts["sonic-1"].Data, &db); err != nil {
		t.Fatalf("unmarshal config_db: %v", err)
	}

	var meta map[string]map[string]string
	if err := json.Unmarshal(db["DEVICE_METADATA"], &meta); err != nil {
		t.Fatalf("unmarshal DEVICE_METADATA: %v", err)
	}
	if got := meta["localhost"]["hostname"]; got != "sonic-1" {
		t.Errorf("hostname = %q, want sonic-1", got)
	}

	var mgmt map[string]map[string]string
	if err := json.Unmarshal(db["MGMT_INTERFACE"], &mgmt); err != nil {
		t.Fatalf("unmarshal MGMT_INTERFACE: %v", err)
	}
	entry, ok := mgmt["eth0|172.20.0.11/24"]
	if !ok {
		t.Fatalf("missing mgmt interface key, got %v", mgmt)
	}
	if entry["gwaddr"] != "172.20.0.1" {
		t.Errorf("gwaddr = %q, want 172.20.0.1", entry["gwaddr"])
	}

	var ports map[string]json.RawMessage
	if err := json.Unmarshal(db["PORT"], &ports); err != nil {
		t.Fatalf("unmarshal PORT: %v", err)
	}
	for _, name := range []string{"Ethernet0", "Ethernet4"} {
		if _, ok := ports[name]; !ok {
			t.Errorf("PORT table missing %s", name)
		}
	}

	var ifaces map[string]json.RawMessage
	if err := json.Unmarshal(db["INTERFACE"], &ifaces); err != nil {
		t.Fatalf("unmarshal INTERFACE: %v", err)
	}
	// sonic-1's links sort as 192.1.2.0/24 then 192.1.5.0/24.
	for _, key := range []string{"Ethernet0|192.1.2.11/24", "Ethernet4|192.1.5.11/24"} {
		if _, ok := ifaces[key]; !ok {
			t.Errorf("INTERFACE table missing %q, got %v", key, ifaces)
		}
	}
}

func TestRenderConfigDB_ManagedModeOmitsInterfaces(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	topo.DataIPMode = "managed"

	artifacts, err := Render(topo)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var db map[string]json.RawMessage
	if err := json.Unmarshal(artifacts["sonic-1"].Data, &db); err != nil {
		t.Fatalf("unmarshal config_db: %v", err)
	}
	if _, ok := db["INTERFACE"]; ok {
		t.Error("INTERFACE table present in managed mode")
	}
}

func TestRenderCompose(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	art, err := RenderCompose(topo, "")
	if err != nil {
		t.Fatalf("RenderCompose: %v", err)
	}
	if art.Filename != "docker-compose.yaml" {
		t.Errorf("filename = %q", art.Filename)
	}

	var cf composeFile
	if err := yaml.Unmarshal(art.Data, &cf); err != nil {
		t.Fatalf("unmarshal compose: %v", err)
	}

	if cf.Name != "sonic-diamond" {
		t.Errorf("name = %q", cf.Name)
	}
	if len(cf.Services) != 6 {
		t.Errorf("services = %d, want 6", len(cf.Services))
	}
	// mgmt plus one bridge per link.
	if len(cf.Networks) != 7 {
		t.Errorf("networks = %d, want 7", len(cf.Networks))
	}

	svc := cf.Services["sonic-1"]
	if svc == nil {
		t.Fatal("missing sonic-1 service")
	}
	if svc.Image != DefaultImage {
		t.Errorf("image = %q, want %q", svc.Image, DefaultImage)
	}
	wantPorts := map[string]bool{"2211:22": true, "8811:8080": true, "50511:50051": true, "9011:23": true}
	for _, p := range svc.Ports {
		if !wantPorts[p] {
			t.Errorf("unexpected port mapping %q", p)
		}
		delete(wantPorts, p)
	}
	if len(wantPorts) != 0 {
		t.Errorf("missing port mappings: %v", wantPorts)
	}
	if got := svc.Networks["mgmt"].IPv4Address; got != "172.20.0.11" {
		t.Errorf("mgmt address = %q", got)
	}
	if got := svc.Networks["link_1_2"].IPv4Address; got != "192.1.2.11" {
		t.Errorf("link_1_2 address = %q", got)
	}
}

func TestRenderCompose_Deterministic(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	first, err := RenderCompose(topo, "custom:tag")
	if err != nil {
		t.Fatalf("RenderCompose: %v", err)
	}
	second, err := RenderCompose(topo, "custom:tag")
	if err != nil {
		t.Fatalf("RenderCompose (second): %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("compose artifact differs between renders")
	}
}

func TestWriteAll(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	artifacts, err := Render(topo)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	dir := t.TempDir()
	res, err := WriteAll(dir, artifacts)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(res.Written) != 6 || len(res.Failed) != 0 {
		t.Fatalf("written=%v failed=%v", res.Written, res.Failed)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sonic-3", "config_db.json"))
	if err != nil {
		t.Fatalf("reading written artifact: %v", err)
	}
	if !bytes.Equal(data, artifacts["sonic-3"].Data) {
		t.Error("written artifact differs from rendered data")
	}
}

func TestWriteAll_PartialFailure(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	artifacts, err := Render(topo)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	dir := t.TempDir()
	// A plain file where sonic-2's directory should go makes that one node
	// fail while the rest write cleanly.
	if err := os.WriteFile(filepath.Join(dir, "sonic-2"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	res, err := WriteAll(dir, artifacts)
	if err != nil {
		t.Fatalf("WriteAll should tolerate partial failure, got %v", err)
	}
	if len(res.Written) != 5 {
		t.Errorf("written = %v, want 5 nodes", res.Written)
	}
	if len(res.Failed) != 1 || res.Failed[0].Node != "sonic-2" {
		t.Errorf("failed = %v, want single sonic-2 failure", res.Failed)
	}
}

func TestWriteAll_TotalFailure(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	artifacts, err := Render(topo)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	// Target a path under a plain file: every node write fails.
	parent := t.TempDir()
	blocked := filepath.Join(parent, "blocked")
	if err := os.WriteFile(blocked, nil, 0644); err != nil {
		t.Fatal(err)
	}

	res, err := WriteAll(filepath.Join(blocked, "out"), artifacts)
	if err == nil {
		t.Fatal("expected error when nothing could be written")
	}
	if len(res.Written) != 0 || len(res.Failed) != 6 {
		t.Errorf("written=%v failed=%d", res.Written, len(res.Failed))
	}
}

func TestNodeInterfaces_Order(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	ifaces := NodeInterfaces(topo, "sonic-4")
	if len(ifaces) != 2 {
		t.Fatalf("interfaces = %d, want 2", len(ifaces))
	}
	// sonic-4's links sort as 192.3.4.0/24 then 192.4.6.0/24.
	if ifaces[0].Name != "Ethernet0" || ifaces[0].Addr.String() != "192.3.4.14/24" {
		t.Errorf("iface[0] = %s %s", ifaces[0].Name, ifaces[0].Addr)
	}
	if ifaces[1].Name != "Ethernet4" || ifaces[1].Addr.String() != "192.4.6.14/24" {
		t.Errorf("iface[1] = %s %s", ifaces[1].Name, ifaces[1].Addr)
	}
}
