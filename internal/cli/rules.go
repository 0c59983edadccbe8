package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/compliance"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/pipeline"
)

var (
	rulesDomain string
	showAll     bool
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage compliance rules",
	Long: `List, add, deactivate, and validate compliance rules.

Rules are stored in the database given by --store; without it, changes only
last for the current command. Built-in rule sets cover HIPAA, GDPR, SOX,
GLBA, PCI DSS, SEC, MiFID II, FRCP, ABA, NAIC, ACA and IDD.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules",
	Long:  `List rules, optionally only those applicable to a domain and jurisdiction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(cmd, func(ctx context.Context, sys *pipeline.System) error {
			var rules []model.ComplianceRule
			if rulesDomain != "" && !showAll {
				d, err := model.ParseDomain(rulesDomain)
				if err != nil {
					return err
				}
				rules = sys.Rules.GetApplicableRules(d, jurisdictionOrDefault())
			} else {
				rules = sys.Rules.GetAllRules()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDOMAIN\tJURISDICTION\tSEVERITY\tACTIVE\tVERSION\tREGULATION")
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%d\t%s\n",
					r.ID, r.Domain, r.Jurisdiction, r.Severity, r.IsActive, r.Version, r.Regulation)
			}
			return w.Flush()
		})
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a rule with its version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(cmd, func(ctx context.Context, sys *pipeline.System) error {
			rule, err := sys.Rules.GetRuleByID(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (v%d, %s)\n", rule.ID, rule.Version, activeLabel(rule.IsActive))
			fmt.Fprintf(out, "  %s\n", rule.RuleText)
			fmt.Fprintf(out, "  Regulation:   %s\n", rule.Regulation)
			fmt.Fprintf(out, "  Scope:        %s / %s\n", rule.Domain, rule.Jurisdiction)
			fmt.Fprintf(out, "  Severity:     %s\n", rule.Severity)
			if rule.Remediation != "" {
				fmt.Fprintf(out, "  Remediation:  %s\n", rule.Remediation)
			}

			hits, err := sys.RuleStore.RuleHits(ctx, rule.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  Hits:         %d\n", hits)

			history, err := sys.RuleStore.RuleHistory(ctx, rule.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n  History:\n")
			for _, h := range history {
				fmt.Fprintf(out, "    v%d  %s  %s\n", h.Version, h.UpdatedAt.Format("2006-01-02 15:04:05"), activeLabel(h.IsActive))
			}
			return nil
		})
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <rules.yaml>",
	Short: "Register rules from a YAML rule file",
	Long: `Register every rule in a YAML rule file. Invalid rules are rejected with
all of their defects listed; valid rules in the same file are still added.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := readRuleFile(args[0])
		if err != nil {
			return err
		}
		return withSystem(cmd, func(ctx context.Context, sys *pipeline.System) error {
			var failed int
			for _, r := range rules {
				if err := sys.Rules.AddRule(ctx, r); err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "✗ %v\n", err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s\n", r.ID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d rules rejected", failed, len(rules))
			}
			return nil
		})
	},
}

var rulesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate a rule",
	Long:  `Deactivate a rule. The rule and its history are kept; it no longer applies to new verifications.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(cmd, func(ctx context.Context, sys *pipeline.System) error {
			if err := sys.Rules.DeactivateRule(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deactivated %s\n", args[0])
			return nil
		})
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <rules.yaml>",
	Short: "Validate a rule file without registering it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := readRuleFile(args[0])
		if err != nil {
			return err
		}
		var invalid int
		for _, r := range rules {
			if err := compliance.ValidateRule(r); err != nil {
				invalid++
				var verr *compliance.RuleValidationError
				if errors.As(err, &verr) {
					fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", verr.RuleID)
					for _, p := range verr.Problems {
						fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", p)
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", r.ID, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", r.ID)
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d rules invalid", invalid, len(rules))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesShowCmd, rulesAddCmd, rulesDeactivateCmd, rulesValidateCmd)

	rulesCmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite database for rules (default: in-memory)")
	rulesListCmd.Flags().StringVarP(&rulesDomain, "domain", "d", "", "only rules applicable to this domain")
	rulesListCmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "jurisdiction used with --domain (default from config)")
	rulesListCmd.Flags().BoolVar(&showAll, "all", false, "list every rule, including inactive ones")
}

// withSystem builds the pipeline from configuration for an administrative
// command and closes it afterwards
func withSystem(cmd *cobra.Command, fn func(context.Context, *pipeline.System) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if storePath != "" {
		cfg.Storage = model.StorageConfig{Driver: "sqlite", DSN: storePath}
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sys, err := pipeline.Build(ctx, cfg, newLogger(), nil)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() { _ = sys.Close() }()
	return fn(ctx, sys)
}

func readRuleFile(path string) ([]model.ComplianceRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	rules, err := compliance.ParseRuleFile(data)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%s contains no rules", path)
	}
	return rules, nil
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
