package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/evaluation"
	"github.com/service-agreement/backend/internal/kb"
	"github.com/service-agreement/backend/internal/retrieval"
	"github.com/service-agreement/backend/pkg/config"
	appLogger "github.com/service-agreement/backend/pkg/logger"
)

var (
	rootCmd = &cobra.Command{
		Use:   "kb-rank",
		Short: "Rank knowledge-base items for a service brief",
	}
	kbDir    string
	limit    int
	topics   string
	asJSON   bool
	logLevel string
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&kbDir, "kb", "", "KB directory (defaults to kb.dir from config)")
	rootCmd.PersistentFlags().IntVarP(&limit, "limit", "n", 0, "Maximum items to select (defaults to kb.limit)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	rankCmd.Flags().StringVarP(&topics, "topics", "t", "", "Comma-separated extra topics")

	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(evalCmd)
}

// newRanker builds a ranker over the configured KB directory.
func newRanker(ctx context.Context) (*retrieval.Ranker, int, error) {
	if err := appLogger.Init(logLevel, "console", "stderr"); err != nil {
		return nil, 0, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load config: %w", err)
	}
	dir := cfg.KB.Dir
	if kbDir != "" {
		dir = kbDir
	}
	n := cfg.KB.Limit
	if limit > 0 {
		n = limit
	}

	store := kb.NewStore(kb.NewDirSource(dir), nil)
	appLogger.Debug("KB loaded", zap.String("dir", dir), zap.Int("items", len(store.Load(ctx))))
	return retrieval.NewRanker(store), n, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rankCmd = &cobra.Command{
	Use:   "rank <brief.json>",
	Short: "Print the KB items selected for a brief, best first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read brief: %w", err)
		}
		var brief contract.Brief
		if err := json.Unmarshal(data, &brief); err != nil {
			return fmt.Errorf("failed to parse brief: %w", err)
		}
		brief.Normalize(contract.DefaultCurrency)

		ranker, n, err := newRanker(ctx)
		if err != nil {
			return err
		}

		var extra []string
		if topics != "" {
			extra = strings.Split(topics, ",")
		}
		scored := ranker.Rank(ctx, brief, n, extra)

		if asJSON {
			return printJSON(scored)
		}
		if len(scored) == 0 {
			fmt.Println("No KB items matched.")
			return nil
		}
		for i, s := range scored {
			fmt.Printf("%d. %-40s %.4f  [%s/%s]\n", i+1, s.Item.ID, s.Score, s.Item.ServiceType, s.Item.Topic)
		}
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <dataset.json>",
	Short: "Evaluate ranking hit rate and recall against a labelled dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read dataset: %w", err)
		}
		dataset, err := evaluation.LoadDatasetFromJSON(data)
		if err != nil {
			return err
		}

		ranker, n, err := newRanker(ctx)
		if err != nil {
			return err
		}

		report, err := evaluation.NewEvaluator(ranker, n).RunDatasetEvaluation(ctx, dataset)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(report)
		}
		fmt.Print(evaluation.GenerateReport(report))
		return nil
	},
}
