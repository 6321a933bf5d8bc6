// Command cli provides offline access to the metrics layer: inspecting the
// catalog, resolving natural-language questions, and previewing generated SQL
// without touching a database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mikallon/datacore/internal/config"
	"github.com/mikallon/datacore/internal/domain"
	"github.com/mikallon/datacore/internal/nlquery"
	"github.com/mikallon/datacore/internal/semantics"
)

var (
	modelPath   string
	metricsPath string
	useLLM      bool
)

func main() {
	root := &cobra.Command{
		Use:           "datacore",
		Short:         "Metrics layer tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&modelPath, "model", "models/dws/schema.yml", "semantic model file")
	flags.StringVar(&metricsPath, "metrics", "models/metrics.yml", "metric definitions file")
	normalizeFlags(flags)

	root.AddCommand(metricsCmd(), parseCmd(), explainCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func normalizeFlags(flags *pflag.FlagSet) {
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ToLower(name))
	})
}

func loadCatalog() (*semantics.Catalog, error) {
	return semantics.LoadCatalog(modelPath, metricsPath)
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List the available metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, m := range catalog.Metrics() {
				fmt.Fprintf(w, "%-32s %-10s %s\n", m.Name, m.Type, m.Label)
			}
			return nil
		},
	}
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <question>",
		Short: "Resolve a natural-language question into a structured query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			resolution := resolve(cmd.Context(), catalog, args[0])
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resolution)
		},
	}
	cmd.Flags().BoolVar(&useLLM, "llm", false, "use the LLM resolver when configured")
	return cmd
}

func explainCmd() *cobra.Command {
	var (
		metricName string
		dimensions []string
		startDate  string
		endDate    string
		filters    []string
	)
	cmd := &cobra.Command{
		Use:   "explain [question]",
		Short: "Show the SQL a query would generate, without executing it",
		Long: "Compiles a metric query to SQL and prints it. Give a natural-language\n" +
			"question, or build the query explicitly with --metric and friends.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}

			var q domain.MetricQuery
			switch {
			case metricName != "":
				q = domain.MetricQuery{
					MetricName: metricName,
					Dimensions: dimensions,
					Filters:    parseFilterFlags(filters),
					StartDate:  startDate,
					EndDate:    endDate,
				}
			case len(args) == 1:
				q = resolve(cmd.Context(), catalog, args[0]).Query.MetricQuery
			default:
				return fmt.Errorf("give a question or --metric")
			}

			metric, ok := catalog.Metric(q.MetricName)
			if !ok {
				return fmt.Errorf("unknown metric %q", q.MetricName)
			}
			sqlText, err := semantics.CompileMetricSQL(metric, catalog.Model(), q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sqlText)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useLLM, "llm", false, "use the LLM resolver when configured")
	cmd.Flags().StringVar(&metricName, "metric", "", "metric name (skips natural-language resolution)")
	cmd.Flags().StringSliceVar(&dimensions, "dimensions", nil, "group-by dimensions")
	cmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "dimension filter as key=value, repeatable")
	return cmd
}

func parseFilterFlags(pairs []string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	filters := make(map[string]any, len(pairs))
	for _, p := range pairs {
		if k, v, ok := strings.Cut(p, "="); ok && k != "" {
			filters[k] = v
		}
	}
	return filters
}

func resolve(ctx context.Context, catalog *semantics.Catalog, text string) nlquery.Resolution {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _ := config.LoadFromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	llm := nlquery.NewClient(cfg.LLM)
	resolver := nlquery.NewResolver(llm, logger)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return resolver.Resolve(ctx, catalog, text, useLLM)
}
