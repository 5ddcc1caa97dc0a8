package blobconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"

	_ "onigiri.dev/shake/storage/localfs"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{}, false},
		{"missing name", Config{Backends: []BackendConfig{{}}}, false},
		{"duplicate alias", Config{Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs"}}}, false},
		{"distinct alias", Config{Backends: []BackendConfig{{Name: "localfs"}, {Name: "localfs", ID: "mirror"}}}, true},
		{"bad policy", Config{WritePolicy: "some", Backends: []BackendConfig{{Name: "localfs"}}}, false},
		{"all policy", Config{WritePolicy: "all", Backends: []BackendConfig{{Name: "localfs"}}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFileAndOpenReplicating(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	cfgPath := filepath.Join(dir, "blobs.json")
	body := `{"write_policy":"all","backends":[` +
		`{"name":"localfs","id":"primary","config":{"localfs-dir":"` + a + `"}},` +
		`{"name":"localfs","id":"mirror","config":{"localfs-dir":"` + b + `"}}]}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	s, closeFn, err := cfg.Open(blobregistry.UsageCLI, "mirror")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	rs, ok := s.(storage.ReplicatingStore)
	if !ok {
		t.Fatalf("expected ReplicatingStore, got %T", s)
	}
	if rs.Backends[0].Name != "mirror" {
		t.Fatalf("preferred backend not first: %q", rs.Backends[0].Name)
	}

	_, ids, err := rs.PutAll(context.Background(), []byte("replicated"))
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if len(ids) != 2 || ids["primary"] != ids["mirror"] {
		t.Fatalf("unexpected per-backend ids: %v", ids)
	}
}

func TestOpenUnknownPreferred(t *testing.T) {
	cfg := Config{Backends: []BackendConfig{{Name: "localfs", Config: map[string]string{"localfs-dir": t.TempDir()}}}}
	if _, _, err := cfg.Open(blobregistry.UsageCLI, "nope"); err == nil {
		t.Fatalf("expected error")
	}
}
