// Package config holds the plugin's configuration surface (spec §6).
// Parsing option strings into flags, wiring them to a CLI, and the
// process-lifecycle hooks that call Validate are external collaborators
// per spec §1 — this package owns only the resulting struct, its
// defaults, and the validation the original plugin performs in
// set_program_options.
package config

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultQueueSize         = 1024
	DefaultABICacheSize      = 2048
	DefaultThreadPoolSize    = 4
	DefaultBulkerPoolSize    = 2
	DefaultBulkSizeMegabytes = 5
	DefaultBlockStart        = 0
)

// FilterEntry is one receiver:action:actor triple, "0" (empty string)
// acting as a wildcard in any position — spec §4.5.
type FilterEntry struct {
	Receiver string
	Action   string
	Actor    string
}

// ParseFilterEntry parses a "receiver:action:actor" string. A bare "*"
// is returned as the zero FilterEntry with star true, signalling
// filter_on_star mode for filter_on lists.
func ParseFilterEntry(s string) (entry FilterEntry, star bool, err error) {
	if s == "*" {
		return FilterEntry{}, true, nil
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return FilterEntry{}, false, errors.Errorf("invalid filter entry %q: want receiver:action:actor", s)
	}
	return FilterEntry{Receiver: parts[0], Action: parts[1], Actor: parts[2]}, false, nil
}

// Config is the plugin's full configuration surface.
type Config struct {
	// URL is a single Elasticsearch-compatible endpoint. A trailing
	// slash is appended if missing.
	URL      string
	User     string
	Password string

	QueueSize         int
	ABICacheSize      int
	ThreadPoolSize    int
	BulkerPoolSize    int
	BulkSizeMegabytes int

	// IndexWipe permits a startup delete_index of all six indices;
	// required alongside node replay flags (spec §6).
	IndexWipe bool
	// ReplayRequested signals that the node is about to replay or
	// wipe blocks, the condition under which IndexWipe is mandatory.
	ReplayRequested bool

	BlockStart uint32

	StoreBlocks            bool
	StoreBlockStates       bool
	StoreTransactions      bool
	StoreTransactionTraces bool
	StoreActionTraces      bool

	FilterOn     []FilterEntry
	FilterOnStar bool
	FilterOut    []FilterEntry

	// ABISerializerMaxTimeMS bounds each to_variant_with_abi decode;
	// required, as no default is appropriate for full block parsing.
	ABISerializerMaxTimeMS int64

	// SystemAccount is the account whose ABI specializes setabi.abi
	// as a nested abi_def rather than raw bytes (spec §4.4).
	SystemAccount string
}

// Default returns a Config populated with spec §6's defaults. Callers
// must still set URL and ABISerializerMaxTimeMS.
func Default() Config {
	return Config{
		QueueSize:              DefaultQueueSize,
		ABICacheSize:           DefaultABICacheSize,
		ThreadPoolSize:         DefaultThreadPoolSize,
		BulkerPoolSize:         DefaultBulkerPoolSize,
		BulkSizeMegabytes:      DefaultBulkSizeMegabytes,
		BlockStart:             DefaultBlockStart,
		StoreBlocks:            true,
		StoreBlockStates:       true,
		StoreTransactions:      true,
		StoreTransactionTraces: true,
		StoreActionTraces:      true,
		SystemAccount:          "eosio",
	}
}

// NormalizedURL appends a trailing slash if missing, per spec §6.
func (c Config) NormalizedURL() string {
	if c.URL == "" {
		return c.URL
	}
	if strings.HasSuffix(c.URL, "/") {
		return c.URL
	}
	return c.URL + "/"
}

// BulkSizeBytes is the per-accumulator flush threshold in bytes.
func (c Config) BulkSizeBytes() int {
	return c.BulkSizeMegabytes * 1024 * 1024
}

// Validate mirrors elasticsearch_plugin_impl::set_program_options'
// assertions: a plugin config error fails startup rather than being
// discovered mid-run.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("plugin config error: url is required")
	}
	if c.ABICacheSize <= 0 {
		return errors.New("plugin config error: abi-cache-size > 0 required")
	}
	if c.ABISerializerMaxTimeMS <= 0 {
		return errors.New("plugin config error: abi-serializer-max-time-ms required, no default value is appropriate for parsing full blocks")
	}
	if c.ThreadPoolSize <= 0 {
		return errors.New("plugin config error: thread-pool-size must be > 0")
	}
	if c.BulkerPoolSize <= 0 {
		return errors.New("plugin config error: bulker-pool-size must be > 0")
	}
	if c.ReplayRequested && !c.IndexWipe {
		return errors.New("plugin config error: index-wipe required with replay-blockchain, hard-replay-blockchain, or delete-all-blocks; " +
			"index-wipe will remove the existing index from elasticsearch")
	}
	return nil
}
