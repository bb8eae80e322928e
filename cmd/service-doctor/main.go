package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"academy-platform/internal/adapters/analytics/clickhouse"
	"academy-platform/internal/adapters/storage/redis"
	"academy-platform/internal/config"
	"academy-platform/internal/observability"
)

// Check describes one diagnostic check.
type Check struct {
	Name     string
	Func     func(ctx context.Context) error
	Error    error
	Duration time.Duration
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

func main() {
	logger := observability.SetupLogger("development")
	cfg, err := config.Bootstrap()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	checks := []Check{
		{Name: "Academy API", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, "localhost"+cfg.Server.Port+"/health", logger)
		}},
		{Name: "PostgreSQL", Func: func(ctx context.Context) error {
			return checkPostgres(ctx, cfg.Postgres.DSN, logger)
		}},
		{Name: "Redis", Func: func(ctx context.Context) error {
			rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
			if err != nil {
				return err
			}
			return rdb.Close()
		}},
		{Name: "Kafka Cluster", Func: func(ctx context.Context) error {
			return checkKafka(ctx, cfg.Kafka.Brokers())
		}},
		{Name: "ClickHouse", Func: func(ctx context.Context) error {
			conn, err := clickhouse.Open(ctx, cfg.ClickHouse)
			if err != nil {
				return err
			}
			return conn.Close()
		}},
	}
	if cfg.OIDC.URL != "" {
		checks = append(checks, Check{Name: "Identity Provider", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, strings.TrimSuffix(cfg.OIDC.URL, "/")+"/.well-known/openid-configuration", logger)
		}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("Running academy platform diagnostics...")

	// Checks report through their own Error field, so the group never fails.
	var g errgroup.Group
	for i := range checks {
		c := &checks[i]
		g.Go(func() error {
			start := time.Now()
			c.Error = c.Func(ctx)
			c.Duration = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	if !report(checks) {
		fmt.Println()
		failColor.Println("Diagnostics found problems.")
		os.Exit(1)
	}
	fmt.Println()
	okColor.Println("All systems operational.")
}

// report prints one line per check and returns true when all passed.
func report(checks []Check) bool {
	fmt.Println()
	healthy := true
	for _, c := range checks {
		took := dimColor.Sprintf("(%v)", c.Duration.Round(time.Millisecond))
		if c.Error == nil {
			fmt.Printf("[%s] %-20s %s\n", okColor.Sprint("  OK  "), c.Name, took)
			continue
		}
		healthy = false
		fmt.Printf("[%s] %-20s %s %v\n", failColor.Sprint("FAILED"), c.Name, took, c.Error)
	}
	return healthy
}

func checkHTTPHealth(ctx context.Context, url string, logger *slog.Logger) error {
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

func checkPostgres(ctx context.Context, dsn string, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Error("failed to close Postgres connection", "error", err)
		}
	}()
	return conn.Ping(ctx)
}

func checkKafka(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no Kafka brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}
