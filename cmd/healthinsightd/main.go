package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"healthinsight/internal/app"
	"healthinsight/internal/config"
	"healthinsight/internal/insight"
	"healthinsight/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "healthinsightd",
	Short:         "Health insight generation service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		logger, err = logging.New(cfg.Log.Level)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer a.Close()
		return a.Serve(cmd.Context())
	},
}

var (
	runDomain     string
	runPrompt     string
	runPromptFile string
	runFacts      []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one prompt through the pipeline and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := runPrompt
		if runPromptFile != "" {
			var data []byte
			var err error
			if runPromptFile == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(runPromptFile)
			}
			if err != nil {
				return err
			}
			prompt = string(data)
		}
		if strings.TrimSpace(prompt) == "" {
			return fmt.Errorf("a prompt is required (--prompt or --prompt-file)")
		}
		facts, err := parseFacts(runFacts)
		if err != nil {
			return err
		}

		cfg.Probe.Enabled = false
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer a.Close()

		result := a.Pipeline.RunPipeline(cmd.Context(), insight.ParseDomain(runDomain), prompt, facts)
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check every configured provider once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer a.Close()
		return printJSON(cmd.OutOrStdout(), a.Gateway.ProbeAll(cmd.Context(), cfg.Probe.Timeout))
	},
}

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := statusURL
		if url == "" {
			url = "http://" + localAddr(cfg.HTTP.Addr)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/")+"/v1/status", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("status request failed: %s", resp.Status)
		}
		_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HI_CONFIG"), "Path to YAML config (or set HI_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	runCmd.Flags().StringVarP(&runDomain, "domain", "d", string(insight.DomainGeneric), "Domain tag (cycle, symptom, medication, mood, sleep, pregnancy)")
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "Prompt text sent verbatim")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "Read the prompt from a file, or - for stdin")
	runCmd.Flags().StringArrayVar(&runFacts, "fact", nil, "Known fact as key=value, used by fallback content (repeatable)")

	statusCmd.Flags().StringVar(&statusURL, "url", "", "Server base URL (default derived from http.addr)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func parseFacts(pairs []string) (map[string]string, error) {
	facts := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid fact %q, want key=value", pair)
		}
		facts[key] = strings.TrimSpace(value)
	}
	return facts, nil
}

func localAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
