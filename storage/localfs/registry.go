package localfs

import (
	"flag"
	"fmt"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"
)

var flagDir string

func init() {
	blobregistry.MustRegister(blobregistry.Backend{
		Name:        "localfs",
		Description: "Local filesystem blob store (directory)",
		Usage:       blobregistry.UsageCLI | blobregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagDir, "localfs-dir", "", "blob directory (for --backend=localfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagDir)
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			return open(cfg["localfs-dir"])
		},
	})
}

func open(dir string) (storage.Store, func() error, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("missing --localfs-dir")
	}
	s, err := New(dir)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}
