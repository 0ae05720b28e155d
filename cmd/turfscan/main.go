package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/turfscan/turfscan/internal/analyzer"
	"github.com/turfscan/turfscan/internal/model"
)

const (
	appName = "turfscan"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Multi-source racing odds aggregation and analysis",
		Version: version,
		Long: `turfscan fetches race cards from every configured source, merges them
into one deduplicated view, qualifies betting candidates and audits the
resulting tips against official results.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one fetch/dedupe/analyze cycle and print JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			source, _ := cmd.Flags().GetString("source")
			name, _ := cmd.Flags().GetString("analyzer")
			save, _ := cmd.Flags().GetBool("save")
			return runScan(configPath, date, source, name, save)
		},
	}
	scanCmd.Flags().String("date", "", "Race date YYYY-MM-DD (default today, Eastern)")
	scanCmd.Flags().String("source", "", "Restrict the fetch to one source")
	scanCmd.Flags().String("analyzer", "", "Run an analyzer over the merged card")
	scanCmd.Flags().Bool("save", false, "Persist qualified races as predictions")

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit pending predictions against official results",
		RunE: func(cmd *cobra.Command, args []string) error {
			lookback, _ := cmd.Flags().GetDuration("lookback")
			return runAudit(configPath, lookback)
		},
	}
	auditCmd.Flags().Duration("lookback", 0, "How far back to audit (default from config)")

	adaptersCmd := &cobra.Command{
		Use:   "adapters",
		Short: "List registered adapters and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdapters(configPath)
		},
	}

	rootCmd.AddCommand(serveCmd, scanCmd, auditCmd, adaptersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.Server.Shutdown(shutdownCtx)
}

func runScan(configPath, date, source, analyzerName string, save bool) error {
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if date == "" {
		date = time.Now().In(model.Eastern()).Format("2006-01-02")
	}

	ctx := context.Background()
	resp, err := app.Engine.FetchAllOdds(ctx, date, source)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if analyzerName == "" {
		return enc.Encode(resp)
	}

	an, err := app.Analyzers.Get(analyzerName, analyzer.Params{})
	if err != nil {
		return err
	}
	result := an.QualifyRaces(resp.Races)
	log.Info().Str("analyzer", analyzerName).Str("date", date).
		Int("qualified", len(result.Races)).Msg("Scan complete")

	if save {
		preds := analyzer.Predictions(analyzerName, result, time.Now())
		if err := app.Store.SavePredictions(ctx, preds); err != nil {
			return fmt.Errorf("save predictions: %w", err)
		}
		log.Info().Int("predictions", len(preds)).Msg("Predictions saved")
	}
	return enc.Encode(result)
}

func runAudit(configPath string, lookback time.Duration) error {
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	if lookback > 0 {
		app.Auditor.SetLookback(lookback)
	}
	summary, err := app.Auditor.Run(context.Background())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func runAdapters(configPath string) error {
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Printf("%-20s %-10s %-10s\n", "ADAPTER", "TYPE", "HEALTH")
	for _, h := range app.Registry.Discovery() {
		st := app.Health.Status(h.SourceName())
		fmt.Printf("%-20s %-10s %-10s\n", h.SourceName(), "discovery", st.Health)
	}
	for _, h := range app.Registry.Results() {
		st := app.Health.Status(h.SourceName())
		fmt.Printf("%-20s %-10s %-10s\n", h.SourceName(), "results", st.Health)
	}
	return nil
}
