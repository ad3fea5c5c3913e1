package main

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tetraminz/churn_audit/internal/config"
	"github.com/tetraminz/churn_audit/internal/dataset"
	"github.com/tetraminz/churn_audit/internal/recommend"
	"github.com/tetraminz/churn_audit/internal/rules"
	"github.com/tetraminz/churn_audit/internal/store"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "churn_audit",
		Short: "Audit retention-call classifications",
		Long: `churn_audit re-checks how the retention robot labeled each call.

It flags dialogs whose recorded status contradicts the transcript, groups
them into error categories, proposes corrected labels and writes tables,
charts and recommendations for the quality team.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config (default config.yaml or $CHURN_AUDIT_CONFIG)")

	rootCmd.AddCommand(
		newRunCmd(),
		newReportCmd(),
		newSetupCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit a dialog export and write findings, corrections and reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("input") {
				cfg.InputPath, _ = cmd.Flags().GetString("input")
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputDir, _ = cmd.Flags().GetString("out")
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath, _ = cmd.Flags().GetString("db")
			}
			if cmd.Flags().Changed("recommendations") {
				cfg.Recommendations.Mode, _ = cmd.Flags().GetString("recommendations")
			}

			mode, err := recommend.ParseMode(cfg.Recommendations.Mode)
			if err != nil {
				return err
			}
			lib, err := cfg.Library()
			if err != nil {
				return err
			}

			runCfg := RunConfig{
				InputPath: cfg.InputPath,
				OutputDir: cfg.OutputDir,
				DBPath:    cfg.DBPath,
				Mode:      mode,
				Evaluator: rules.NewEvaluator(lib),
			}
			if mode == recommend.ModeAI {
				if !cfg.Recommendations.HasCredentials() {
					logger.Warn("no AI credentials configured, recommendations fall back to statistics", "provider", cfg.Recommendations.Provider)
				}
				runCfg.Generator = newGenerator(cfg.Recommendations)
			}

			out, res, err := runAudit(cmd.Context(), runCfg, logger)
			if err != nil {
				var schemaErr *dataset.SchemaError
				if errors.As(err, &schemaErr) {
					return fmt.Errorf("input %s: %w", cfg.InputPath, err)
				}
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatRunSummary(res, out))
			return nil
		},
	}
	cmd.Flags().String("input", config.DefaultInputPath, "Dialog export (.xlsx or .csv)")
	cmd.Flags().String("out", config.DefaultOutputDir, "Output directory")
	cmd.Flags().String("db", store.DefaultPath, "Run history SQLite DB (empty disables history)")
	cmd.Flags().String("recommendations", string(recommend.ModeAI), "Recommendations mode: ai or none")
	return cmd
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the stored summary of an audit run",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			markdown, _ := cmd.Flags().GetBool("markdown")

			if markdown {
				md, err := BuildAnalyticsMarkdown(dbPath, runID)
				if err != nil {
					return reportError(dbPath, err)
				}
				fmt.Fprint(cmd.OutOrStdout(), md)
				return nil
			}

			report, err := BuildReport(dbPath, runID)
			if err != nil {
				return reportError(dbPath, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatReport(report))
			return nil
		},
	}
	cmd.Flags().String("db", store.DefaultPath, "Run history SQLite DB")
	cmd.Flags().String("run", "", "Run id (default: latest run)")
	cmd.Flags().Bool("markdown", false, "Print a markdown report")
	return cmd
}

func reportError(dbPath string, err error) error {
	if isNoRuns(err) {
		return fmt.Errorf("%w in %s; run `churn_audit run` first", err, dbPath)
	}
	return err
}

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Drop and recreate the run history schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			if err := store.Setup(dbPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sqlite schema ready: %s\n", dbPath)
			return nil
		},
	}
	cmd.Flags().String("db", store.DefaultPath, "Run history SQLite DB")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "churn_audit version %s\n", version)
		},
	}
}

func newGenerator(rec config.Recommendations) recommend.Generator {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if rec.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	httpClient := &http.Client{Timeout: rec.Timeout(), Transport: transport}

	chatCfg := recommend.ChatConfig{
		BaseURL:     rec.BaseURL,
		Model:       rec.Model,
		Temperature: rec.Temperature,
		MaxTokens:   rec.MaxTokens,
		Timeout:     rec.Timeout(),
	}

	switch rec.Provider {
	case config.ProviderOpenAI:
		if strings.TrimSpace(chatCfg.BaseURL) == "" {
			chatCfg.BaseURL = defaultOpenAIBaseURL
		}
		if strings.TrimSpace(chatCfg.Model) == "" {
			chatCfg.Model = recommend.DefaultOpenAIModel
		}
		return recommend.NewChatGenerator(chatCfg, recommend.StaticToken(rec.APIKey), httpClient)
	case config.ProviderAnthropic:
		return recommend.NewAnthropicGenerator(chatCfg, rec.AnthropicAPIKey, httpClient)
	default:
		auth := recommend.NewGigaChatAuth(rec.AuthURL, rec.Credentials, rec.Scope, httpClient)
		return recommend.NewChatGenerator(chatCfg, auth, httpClient)
	}
}
