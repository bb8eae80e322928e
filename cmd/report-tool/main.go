package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"academy-platform/internal/adapters/analytics/clickhouse"
	"academy-platform/internal/config"
)

func main() {
	cfg, err := config.Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{Use: "report-tool", Short: "Academy reports from ClickHouse", SilenceUsage: true}
	rootCmd.PersistentFlags().StringVar(&cfg.ClickHouse.Addr, "addr", cfg.ClickHouse.Addr, "ClickHouse address")

	var limit int

	revenueCmd := &cobra.Command{
		Use:   "revenue",
		Short: "Approved payments and revenue per course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withReports(cmd.Context(), cfg.ClickHouse, func(ctx context.Context, r *clickhouse.Reports) error {
				rows, err := r.RevenueByCourse(ctx, limit)
				if err != nil {
					return err
				}
				return printRevenue(os.Stdout, rows)
			})
		},
	}
	revenueCmd.Flags().IntVar(&limit, "limit", 20, "Number of courses")

	certificationsCmd := &cobra.Command{
		Use:   "certifications",
		Short: "Most recent course completions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withReports(cmd.Context(), cfg.ClickHouse, func(ctx context.Context, r *clickhouse.Reports) error {
				rows, err := r.RecentCertifications(ctx, limit)
				if err != nil {
					return err
				}
				return printCertifications(os.Stdout, rows)
			})
		},
	}
	certificationsCmd.Flags().IntVar(&limit, "limit", 20, "Number of certifications")

	var since time.Duration
	activityCmd := &cobra.Command{
		Use:   "activity",
		Short: "Lesson starts and finishes per course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withReports(cmd.Context(), cfg.ClickHouse, func(ctx context.Context, r *clickhouse.Reports) error {
				rows, err := r.LessonActivitySince(ctx, time.Now().Add(-since))
				if err != nil {
					return err
				}
				return printActivity(os.Stdout, rows)
			})
		},
	}
	activityCmd.Flags().DurationVar(&since, "since", 7*24*time.Hour, "Look-back window")

	rootCmd.AddCommand(revenueCmd, certificationsCmd, activityCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withReports(ctx context.Context, cfg config.ClickHouseConfig, fn func(context.Context, *clickhouse.Reports) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, clickhouse.NewReports(conn))
}

func printRevenue(out io.Writer, rows []clickhouse.CourseRevenue) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "COURSE ID\tPAYMENTS\tREVENUE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%.2f\n", r.CourseID, r.Payments, r.Revenue)
	}
	return w.Flush()
}

func printCertifications(out io.Writer, rows []clickhouse.IssuedCertification) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "COURSE ID\tSTUDENT ID\tCODE\tISSUED AT")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.CourseID, r.StudentID, r.CertificationCode, r.OccurredAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func printActivity(out io.Writer, rows []clickhouse.LessonActivity) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "COURSE ID\tSTARTED\tFINISHED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\n", r.CourseID, r.Started, r.Finished)
	}
	return w.Flush()
}
