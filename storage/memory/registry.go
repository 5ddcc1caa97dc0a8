package memory

import (
	"flag"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"
)

func init() {
	blobregistry.MustRegister(blobregistry.Backend{
		Name:          "memory",
		Description:   "In-process blob store; contents vanish on exit",
		Usage:         blobregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {},
		Open: func() (storage.Store, func() error, error) {
			return New(), nil, nil
		},
		OpenConfig: func(map[string]string) (storage.Store, func() error, error) {
			return New(), nil, nil
		},
	})
}
