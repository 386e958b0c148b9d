package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/trogers1052/holdings-service/internal/config"
	"github.com/trogers1052/holdings-service/internal/kafka"
	"github.com/trogers1052/holdings-service/internal/logging"
	"github.com/trogers1052/holdings-service/internal/remote"
)

type publishCmd struct {
	topic  string
	source string
}

func (*publishCmd) Name() string     { return "publish" }
func (*publishCmd) Synopsis() string { return "fetch remote holdings and publish them as a Kafka snapshot" }
func (*publishCmd) Usage() string {
	return `holdings publish [-topic <topic>] [-source <name>]

  Fetches the holdings from the remote endpoint and publishes them as a
  HOLDINGS_SNAPSHOT event, which every running service applies to its store.
`
}

func (c *publishCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.topic, "topic", "", "Kafka topic, defaults to the configured holdings topic")
	f.StringVar(&c.source, "source", "remote", "source recorded on the event")
}

func (c *publishCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}

	topic := c.topic
	if topic == "" {
		topic = cfg.Kafka.HoldingsTopic
	}
	if topic == "" {
		fmt.Fprintln(os.Stderr, "No topic: set -topic or KAFKA_HOLDINGS_TOPIC")
		return subcommands.ExitUsageError
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	client := remote.NewClient(cfg.Holdings.Endpoint,
		remote.WithJSONPath(cfg.Holdings.JSONPath),
		remote.WithTimeout(cfg.Holdings.Timeout),
		remote.WithLogger(logger),
	)

	holdings, err := client.FetchHoldings(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching holdings: %v\n", err)
		return subcommands.ExitFailure
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, topic)
	defer producer.Close()

	if err := producer.PublishSnapshot(ctx, c.source, holdings); err != nil {
		fmt.Fprintf(os.Stderr, "Error publishing snapshot: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Published %d holdings to %s\n", len(holdings), topic)
	return subcommands.ExitSuccess
}
