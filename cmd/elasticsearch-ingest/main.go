// Command elasticsearch-ingest runs the ingestion pipeline as a
// standalone process for local development and integration testing.
// Embedding it inside an actual node process is the real deployment
// target, wired by the node's own plugin loader rather than this
// binary; in that embedding, abicache.Compiler and
// processor.SigningKeysResolver are supplied by the node SDK.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/EOSLaoMao/elasticsearch-ingest/internal/abicache"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/config"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/esclient"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/filter"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/logs"
	"github.com/EOSLaoMao/elasticsearch-ingest/internal/pipeline"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "elasticsearch-ingest: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "elasticsearch-ingest",
	Short: "Streaming ingestion pipeline from chain events to a document search engine",
	RunE:  run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("url", "", "search engine base URL (required)")
	flags.String("user", "", "search engine basic-auth user")
	flags.String("password", "", "search engine basic-auth password")
	flags.Int("queue-size", config.DefaultQueueSize, "max_queue_size / max_task_queue_size")
	flags.Int("abi-cache-size", config.DefaultABICacheSize, "ABI cache capacity")
	flags.Int("thread-pool-size", config.DefaultThreadPoolSize, "worker pool size")
	flags.Int("bulker-pool-size", config.DefaultBulkerPoolSize, "bulker pool size")
	flags.Int("bulk-size", config.DefaultBulkSizeMegabytes, "per-accumulator flush threshold, in megabytes")
	flags.Int64("abi-serializer-max-time-ms", 0, "hard per-decode wall-clock bound, in milliseconds (required)")
	flags.Bool("index-wipe", false, "permit startup delete_index of all six indices")
	flags.Bool("replay-requested", false, "node is about to replay or wipe blocks")
	flags.Uint32("block-start", config.DefaultBlockStart, "start_block_num")
	flags.StringSlice("filter-on", nil, "repeated receiver:action:actor filters, or a bare * for filter_on_star")
	flags.StringSlice("filter-out", nil, "repeated receiver:action:actor exclusion filters")
	rootCmd.MarkFlagRequired("url")
	rootCmd.MarkFlagRequired("abi-serializer-max-time-ms")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	cfg.URL, _ = cmd.Flags().GetString("url")
	cfg.User, _ = cmd.Flags().GetString("user")
	cfg.Password, _ = cmd.Flags().GetString("password")
	cfg.QueueSize, _ = cmd.Flags().GetInt("queue-size")
	cfg.ABICacheSize, _ = cmd.Flags().GetInt("abi-cache-size")
	cfg.ThreadPoolSize, _ = cmd.Flags().GetInt("thread-pool-size")
	cfg.BulkerPoolSize, _ = cmd.Flags().GetInt("bulker-pool-size")
	cfg.BulkSizeMegabytes, _ = cmd.Flags().GetInt("bulk-size")
	cfg.ABISerializerMaxTimeMS, _ = cmd.Flags().GetInt64("abi-serializer-max-time-ms")
	cfg.IndexWipe, _ = cmd.Flags().GetBool("index-wipe")
	cfg.ReplayRequested, _ = cmd.Flags().GetBool("replay-requested")
	cfg.BlockStart, _ = cmd.Flags().GetUint32("block-start")

	filterOn, _ := cmd.Flags().GetStringSlice("filter-on")
	for _, f := range filterOn {
		entry, star, err := config.ParseFilterEntry(f)
		if err != nil {
			return cfg, err
		}
		if star {
			cfg.FilterOnStar = true
			continue
		}
		cfg.FilterOn = append(cfg.FilterOn, entry)
	}
	filterOut, _ := cmd.Flags().GetStringSlice("filter-out")
	for _, f := range filterOut {
		entry, _, err := config.ParseFilterEntry(f)
		if err != nil {
			return cfg, err
		}
		cfg.FilterOut = append(cfg.FilterOut, entry)
	}

	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logs.New(logs.Pipeline)
	client := esclient.New(cfg.NormalizedURL(), cfg.User, cfg.Password)
	f := filter.New(cfg.FilterOnStar, cfg.FilterOn, cfg.FilterOut)

	maxDecodeTime := time.Duration(cfg.ABISerializerMaxTimeMS) * time.Millisecond
	cache := abicache.New(cfg.ABICacheSize, cfg.SystemAccount, nil, client)
	renderer := abicache.NewRenderer(cache, maxDecodeTime)

	p := pipeline.New(cfg, client, cache, renderer, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Bootstrap(ctx, nil); err != nil {
		return err
	}

	p.Start(ctx)
	logger.Info("ingestion pipeline started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return p.Stop(stopCtx)
}
