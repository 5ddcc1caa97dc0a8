package ipfs

import (
	"flag"
	"os"
	"strconv"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"
)

var (
	flagBin  string
	flagPath string
	flagPin  bool
)

func init() {
	blobregistry.MustRegister(blobregistry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repo through the ipfs CLI",
		Usage:       blobregistry.UsageCLI | blobregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "ipfs", "ipfs binary (for --backend=ipfs)")
			fs.StringVar(&flagPath, "ipfs-path", "", "IPFS_PATH repo directory (for --backend=ipfs)")
			fs.BoolVar(&flagPin, "pin", false, "pin written blocks (for --backend=ipfs)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagBin, flagPath, flagPin), nil, nil
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			pin, _ := strconv.ParseBool(cfg["pin"])
			return open(cfg["ipfs-bin"], cfg["ipfs-path"], pin), nil, nil
		},
	})
}

func open(bin, repo string, pin bool) *Store {
	opts := Options{Bin: bin, Pin: pin}
	if repo != "" {
		opts.Env = append(os.Environ(), "IPFS_PATH="+repo)
	}
	return New(opts)
}
