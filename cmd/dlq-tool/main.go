package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"academy-platform/internal/config"
	"academy-platform/internal/observability"
)

func main() {
	cfg, err := config.Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	logger := observability.SetupLogger(cfg.App.Env)

	var kafkaBrokers string
	var dlqTopic string

	rootCmd := &cobra.Command{Use: "dlq-tool", Short: "Inspect and replay dead-lettered academy events"}
	rootCmd.PersistentFlags().StringVar(&kafkaBrokers, "brokers", cfg.Kafka.BootstrapServers, "Kafka broker addresses")
	rootCmd.PersistentFlags().StringVar(&dlqTopic, "dlq-topic", cfg.Kafka.DLQTopic, "Dead-letter topic")

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Show the oldest records of the dead-letter topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			logger.Info("reading dead-lettered records", "topic", dlqTopic, "limit", limit)

			client, err := kgo.NewClient(
				kgo.SeedBrokers(splitBrokers(kafkaBrokers)...),
				kgo.ConsumeTopics(dlqTopic),
				kgo.FetchMaxWait(5*time.Second),
				kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
			)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}
			defer client.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PARTITION:OFFSET\tORIGINAL_TOPIC\tKEY\tERROR_TYPE\tERROR_STRING")

			count := 0
			for count < limit {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				fetches := client.PollFetches(ctx)
				cancel()
				if fetches.IsClientClosed() || len(fetches.Records()) == 0 {
					break
				}
				fetches.EachRecord(func(record *kgo.Record) {
					if count >= limit {
						return
					}
					info := describe(record)
					fmt.Fprintf(w, "%d:%d\t%s\t%s\t%s\t%s\n",
						record.Partition, record.Offset, info.OriginalTopic, string(record.Key), info.ErrorType, info.ErrorString)
					count++
				})
			}
			return w.Flush()
		},
	}
	viewCmd.Flags().Int("limit", 10, "Number of records to show")

	retryCmd := &cobra.Command{
		Use:   "retry [partition:offset]",
		Short: "Publish a dead-lettered record again, to its original topic by default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, offset, err := parsePartitionOffset(args[0])
			if err != nil {
				return err
			}
			targetTopic, _ := cmd.Flags().GetString("target-topic")
			brokers := splitBrokers(kafkaBrokers)

			consumer, err := kgo.NewClient(
				kgo.SeedBrokers(brokers...),
				kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
					dlqTopic: {partition: kgo.NewOffset().At(offset)},
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}
			defer consumer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			fetches := consumer.PollFetches(ctx)
			if err := fetches.Err(); err != nil {
				return fmt.Errorf("failed to read record: %w", err)
			}
			records := fetches.Records()
			if len(records) == 0 || records[0].Offset != offset {
				return fmt.Errorf("no record at %s in %s", args[0], dlqTopic)
			}

			retry, err := retryRecord(records[0], targetTopic)
			if err != nil {
				return err
			}
			logger.Info("replaying record", "from_topic", dlqTopic, "partition", partition, "offset", offset, "to_topic", retry.Topic)

			producer, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
			if err != nil {
				return fmt.Errorf("failed to create producer: %w", err)
			}
			defer producer.Close()

			if err := producer.ProduceSync(ctx, retry).FirstErr(); err != nil {
				return fmt.Errorf("failed to replay record: %w", err)
			}
			logger.Info("record replayed")
			return nil
		},
	}
	retryCmd.Flags().String("target-topic", "", "Topic to publish to; defaults to the record's original topic")

	rootCmd.AddCommand(viewCmd, retryCmd)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func splitBrokers(s string) []string {
	return config.KafkaConfig{BootstrapServers: s}.Brokers()
}
