package aggregator

import (
	"flag"
	"fmt"
	"strconv"

	"onigiri.dev/shake/storage"
	"onigiri.dev/shake/storage/blobregistry"
)

var (
	flagPublisher  string
	flagAggregator string
	flagEpochs     int
)

func init() {
	blobregistry.MustRegister(blobregistry.Backend{
		Name:        "aggregator",
		Description: "HTTP publisher (PUT /v1/blobs) and aggregator (GET /v1/blobs/{id})",
		Usage:       blobregistry.UsageCLI,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagPublisher, "publisher-url", "", "publisher base URL (for --backend=aggregator)")
			fs.StringVar(&flagAggregator, "aggregator-url", "", "aggregator base URL (for --backend=aggregator)")
			fs.IntVar(&flagEpochs, "epochs", 1, "storage epochs requested on upload (for --backend=aggregator)")
		},
		Open: func() (storage.Store, func() error, error) {
			return open(flagPublisher, flagAggregator, flagEpochs)
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, func() error, error) {
			epochs := 1
			if v := cfg["epochs"]; v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, nil, fmt.Errorf("epochs: %w", err)
				}
				epochs = n
			}
			return open(cfg["publisher-url"], cfg["aggregator-url"], epochs)
		},
	})
}

func open(publisher, aggregatorURL string, epochs int) (storage.Store, func() error, error) {
	if aggregatorURL == "" {
		return nil, nil, fmt.Errorf("missing --aggregator-url")
	}
	c := New(publisher, aggregatorURL)
	c.Epochs = epochs
	return c, nil, nil
}
