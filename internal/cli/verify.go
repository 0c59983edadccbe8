package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/report"
	"github.com/ppiankov/veracity/internal/worker"
)

// errRiskThreshold makes the process exit non-zero when --fail-on is hit
var errRiskThreshold = errors.New("risk threshold exceeded")

var (
	domain       string
	jurisdiction string
	urgency      string
	outJSON      string
	outMD        string
	timeout      time.Duration
	noCache      bool
	noFooter     bool
	providers    []string
	storePath    string
	failOn       string
	metricsFile  string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <document>",
	Short: "Verify a single document",
	Long: `Verify runs the fact checker, the compliance rules engine, and the logic
analyzer over one document and writes a verification report.

The document is either plain text (already extracted) or a JSON ParsedContent
file with id, extractedText and optional entities.

Example:
  veracity verify discharge-summary.txt --domain healthcare
  veracity verify filing.json --domain financial --json result.json --md result.md
  veracity verify memo.txt --domain legal --providers wikipedia --fail-on high`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addVerificationFlags(verifyCmd)

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().StringVar(&failOn, "fail-on", "", "exit non-zero when the risk level reaches this severity")
}

// addVerificationFlags registers the flags verify and batch share
func addVerificationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "document domain (legal, financial, healthcare, insurance)")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction for compliance rules (default from config)")
	cmd.Flags().StringVar(&urgency, "urgency", "medium", "urgency (low, medium, high, critical)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the provider result cache")
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	cmd.Flags().StringSliceVar(&providers, "providers", nil, "external source providers (wikipedia, llm, openai, ollama)")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database for rules and the knowledge base (default: in-memory)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	_ = cmd.MarkFlagRequired("domain")
}

// buildConfig applies command flags on top of the resolved configuration
func buildConfig(cmd *cobra.Command) (model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("providers") {
		cfg.Sources.Providers = providers
	}
	if storePath != "" {
		cfg.Storage = model.StorageConfig{Driver: "sqlite", DSN: storePath}
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
	if jurisdiction == "" {
		jurisdiction = cfg.Compliance.DefaultJurisdiction
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

// parseRequestFlags validates domain and urgency up front for clearer errors
func parseRequestFlags() (model.Domain, model.Urgency, error) {
	d, err := model.ParseDomain(domain)
	if err != nil {
		return "", "", err
	}
	u := model.Urgency(urgency)
	switch u {
	case model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh, model.UrgencyCritical:
	default:
		return "", "", fmt.Errorf("unknown urgency %q (expected low, medium, high, critical)", urgency)
	}
	return d, u, nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	path := args[0]
	d, u, err := parseRequestFlags()
	if err != nil {
		return err
	}
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying: %s\n", path)
		fmt.Fprintf(os.Stderr, "Domain: %s (%s)\n", d, jurisdiction)
		fmt.Fprintf(os.Stderr, "Providers: %v\n", cfg.Sources.Providers)
		fmt.Fprintln(os.Stderr)
	}

	reg := prometheus.NewRegistry()
	sys, err := pipeline.Build(ctx, cfg, newLogger(), metrics.New(reg))
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() { _ = sys.Close() }()

	content, err := worker.LoadDocument(path)
	if err != nil {
		return err
	}

	result, err := sys.Verifier.Verify(ctx, model.VerificationRequest{
		Content:      content,
		Domain:       d,
		Urgency:      u,
		Jurisdiction: jurisdiction,
	})
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ %d issues, %d claims checked\n", len(result.Issues), len(result.Claims))
		fmt.Fprintf(os.Stderr, "✓ Overall confidence: %.1f/100\n", result.OverallConfidence)
		fmt.Fprintln(os.Stderr)
	}

	renderer := report.NewRenderer(cfg.Output)
	if outJSON != "" {
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}
	renderer.RenderSummary(cmd.OutOrStdout(), result)

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	return checkRisk(result.RiskLevel)
}

// checkRisk returns errRiskThreshold when risk reaches --fail-on
func checkRisk(risk model.RiskLevel) error {
	if failOn == "" {
		return nil
	}
	threshold, err := model.ParseSeverity(failOn)
	if err != nil {
		return fmt.Errorf("--fail-on: %w", err)
	}
	if risk.Rank() >= threshold.Rank() {
		return fmt.Errorf("%w: risk %s >= %s", errRiskThreshold, risk, threshold)
	}
	return nil
}

// jurisdictionOrDefault is used by commands that do not call buildConfig
func jurisdictionOrDefault() string {
	if jurisdiction != "" {
		return jurisdiction
	}
	return viper.GetString("compliance.default_jurisdiction")
}
