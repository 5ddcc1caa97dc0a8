// Package config holds the settings shared by the shake commands: where the
// ledger and blob services live and which contract and policy objects to use.
//
// Values come from, in increasing precedence: Default, a JSON file, .env
// files, and SHAKE_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"onigiri.dev/shake/ledger"
)

const (
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"
	NetworkLocal   = "local"
)

// Config example:
//
//	{
//	  "network": "testnet",
//	  "ledger_url": "https://fullnode.testnet.sui.io:443",
//	  "package_id": "0x…",
//	  "policy_id": "0x…",
//	  "publisher_url": "https://publisher.walrus-testnet.walrus.space",
//	  "aggregator_url": "https://aggregator.walrus-testnet.walrus.space",
//	  "epochs": 5,
//	  "threshold": 2,
//	  "key_servers": ["0x…", "0x…", "0x…"]
//	}
type Config struct {
	Network   string `json:"network"`
	LedgerURL string `json:"ledger_url"`
	// PackageID is the published blog contract.
	PackageID string `json:"package_id"`
	// PolicyID is the object paid-content identifiers are derived under.
	PolicyID      string   `json:"policy_id,omitempty"`
	PublisherURL  string   `json:"publisher_url"`
	AggregatorURL string   `json:"aggregator_url"`
	Epochs        int      `json:"epochs,omitempty"`
	Threshold     int      `json:"threshold,omitempty"`
	KeyServers    []string `json:"key_servers,omitempty"`
	// BlobConfig optionally points at a blobconfig file that replaces the
	// publisher/aggregator pair.
	BlobConfig string `json:"blob_config,omitempty"`
}

// Default returns the public testnet endpoints. PackageID has no default.
func Default() Config {
	return Config{
		Network:       NetworkTestnet,
		LedgerURL:     "https://fullnode.testnet.sui.io:443",
		PublisherURL:  "https://publisher.walrus-testnet.walrus.space",
		AggregatorURL: "https://aggregator.walrus-testnet.walrus.space",
		Epochs:        5,
		Threshold:     2,
	}
}

// Local returns endpoints matching shake-devnet and shake-blobd defaults.
func Local() Config {
	return Config{
		Network:       NetworkLocal,
		LedgerURL:     "http://127.0.0.1:9000",
		PackageID:     "0x00000000000000000000000000000000000000000000000000000000000000b1",
		PolicyID:      "0x00000000000000000000000000000000000000000000000000000000000000a1",
		PublisherURL:  "http://127.0.0.1:31417",
		AggregatorURL: "http://127.0.0.1:31417",
		Threshold:     2,
	}
}

// LoadFile decodes path over base. Fields absent from the file keep base's
// values.
func LoadFile(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := json.Unmarshal(b, &cfg); err != nil {
		return base, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration. path may be empty. dotenv files
// that do not exist are skipped; the process environment wins over them.
func Load(path string, dotenv ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path, cfg); err != nil {
			return cfg, err
		}
	}
	fileEnv := map[string]string{}
	for _, f := range dotenv {
		m, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("config: %s: %w", f, err)
		}
		for k, v := range m {
			fileEnv[k] = v
		}
	}
	lookup := func(k string) (string, bool) {
		if v, ok := os.LookupEnv(k); ok {
			return v, true
		}
		v, ok := fileEnv[k]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

// normalize rewrites object ids in the 0x + 64 hex form the ledger reports,
// so type tags built from PackageID match object changes. Validate has
// already checked they parse.
func (c *Config) normalize() {
	if id, err := ledger.NormalizeID(c.PackageID); err == nil {
		c.PackageID = id
	}
	if c.PolicyID != "" {
		if id, err := ledger.NormalizeID(c.PolicyID); err == nil {
			c.PolicyID = id
		}
	}
}

// ApplyEnv overrides fields from SHAKE_* variables found by lookup.
// SHAKE_KEY_SERVERS is comma separated.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SHAKE_NETWORK":        &c.Network,
		"SHAKE_LEDGER_URL":     &c.LedgerURL,
		"SHAKE_PACKAGE_ID":     &c.PackageID,
		"SHAKE_POLICY_ID":      &c.PolicyID,
		"SHAKE_PUBLISHER_URL":  &c.PublisherURL,
		"SHAKE_AGGREGATOR_URL": &c.AggregatorURL,
		"SHAKE_BLOB_CONFIG":    &c.BlobConfig,
	}
	for k, dst := range strs {
		if v, ok := lookup(k); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	ints := map[string]*int{
		"SHAKE_EPOCHS":    &c.Epochs,
		"SHAKE_THRESHOLD": &c.Threshold,
	}
	for k, dst := range ints {
		v, ok := lookup(k)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", k, err)
		}
		*dst = n
	}
	if v, ok := lookup("SHAKE_KEY_SERVERS"); ok {
		c.KeyServers = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.KeyServers = append(c.KeyServers, s)
			}
		}
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Network {
	case NetworkTestnet, NetworkDevnet, NetworkLocal:
	default:
		return fmt.Errorf("config: unknown network %q", c.Network)
	}
	if c.LedgerURL == "" {
		return errors.New("config: ledger_url is required")
	}
	if c.PackageID == "" {
		return errors.New("config: package_id is required")
	}
	if _, err := ledger.ParseAddress(c.PackageID); err != nil {
		return fmt.Errorf("config: package_id: %w", err)
	}
	if c.PolicyID != "" {
		if _, err := ledger.ParseAddress(c.PolicyID); err != nil {
			return fmt.Errorf("config: policy_id: %w", err)
		}
	}
	if c.BlobConfig == "" && (c.PublisherURL == "" || c.AggregatorURL == "") {
		return errors.New("config: publisher_url and aggregator_url are required without blob_config")
	}
	if c.Epochs < 0 {
		return fmt.Errorf("config: epochs must not be negative, got %d", c.Epochs)
	}
	if c.Threshold < 1 {
		return fmt.Errorf("config: threshold must be at least 1, got %d", c.Threshold)
	}
	if len(c.KeyServers) > 0 && c.Threshold > len(c.KeyServers) {
		return fmt.Errorf("config: threshold %d exceeds %d key servers", c.Threshold, len(c.KeyServers))
	}
	return nil
}
