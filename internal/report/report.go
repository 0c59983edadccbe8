// Package report renders verification results as JSON, Markdown and a short
// terminal summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/veracity/internal/model"
)

// Renderer writes VerificationResults in the supported formats
type Renderer struct {
	includeFooter bool
	includeClaims bool
}

// NewRenderer creates a Renderer from the output settings
func NewRenderer(cfg model.OutputConfig) *Renderer {
	return &Renderer{includeFooter: cfg.IncludeFooter, includeClaims: cfg.IncludeClaims}
}

// RenderJSON writes res as indented JSON to path
func (r *Renderer) RenderJSON(res *model.VerificationResult, path string) error {
	out := *res
	if !r.includeClaims {
		out.Claims = nil
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(res *model.VerificationResult, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(res)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown formats res as a Markdown document
func (r *Renderer) Markdown(res *model.VerificationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Verification Report: %s\n\n", res.DocumentID)
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Verification | `%s` |\n", res.VerificationID)
	fmt.Fprintf(&b, "| Domain | %s |\n", res.Domain)
	fmt.Fprintf(&b, "| Overall confidence | **%.1f / 100** |\n", res.OverallConfidence)
	fmt.Fprintf(&b, "| Risk level | **%s** |\n", strings.ToUpper(string(res.RiskLevel)))
	fmt.Fprintf(&b, "| Issues | %d |\n", len(res.Issues))
	fmt.Fprintf(&b, "| Processing time | %d ms |\n", res.ProcessingTime)
	fmt.Fprintf(&b, "| Timestamp | %s |\n\n", res.Timestamp.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Issues\n\n")
	if len(res.Issues) == 0 {
		b.WriteString("No issues found.\n\n")
	} else {
		b.WriteString("| # | Severity | Type | Location | Description | Confidence |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for i, is := range res.Issues {
			typ := string(is.Type)
			if is.Subtype != "" {
				typ += " / " + is.Subtype
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %.0f%% |\n",
				i+1, is.Severity, typ, location(is.Location), cell(is.Description), is.Confidence*100)
		}
		b.WriteString("\n")

		for i, is := range res.Issues {
			if len(is.Evidence) == 0 && is.SuggestedFix == "" {
				continue
			}
			fmt.Fprintf(&b, "### %d. %s\n\n", i+1, is.Description)
			if is.Reference != "" {
				fmt.Fprintf(&b, "Reference: %s\n\n", is.Reference)
			}
			for _, e := range is.Evidence {
				fmt.Fprintf(&b, "> %s\n", e)
			}
			if len(is.Evidence) > 0 {
				b.WriteString("\n")
			}
			if is.SuggestedFix != "" {
				fmt.Fprintf(&b, "Suggested fix: %s\n\n", is.SuggestedFix)
			}
		}
	}

	if r.includeClaims && len(res.Claims) > 0 {
		b.WriteString("## Claims\n\n")
		b.WriteString("| Claim | Status | Confidence | Sources |\n|---|---|---|---|\n")
		for _, c := range res.Claims {
			fmt.Fprintf(&b, "| %s | %s | %.0f | %d |\n", cell(c.Statement), c.Status, c.Confidence, len(c.Sources))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendations\n\n")
	for _, rec := range res.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	b.WriteString("\n")

	b.WriteString("## Scoring\n\n")
	fmt.Fprintf(&b, "`%s`\n\n", res.Scoring.Formula)
	fmt.Fprintf(&b, "- Base: %.0f\n- Issue penalty: %.2f\n- Failure penalty: %.2f\n",
		res.Scoring.Base, res.Scoring.IssuePenalty, res.Scoring.FailurePenalty)
	if len(res.Scoring.FailedBranches) > 0 {
		fmt.Fprintf(&b, "- Failed branches: %s\n", strings.Join(res.Scoring.FailedBranches, ", "))
	}
	b.WriteString("\n")

	b.WriteString("## Audit Trail\n\n")
	b.WriteString("| Time | Component | Step | Action |\n|---|---|---|---|\n")
	for _, e := range res.AuditTrail {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", e.Timestamp.Format("15:04:05.000"), e.Component, e.Step, e.Action)
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("*Generated by veracity. Findings are automated signals for human review, not legal or regulatory advice.*\n")
	}
	return b.String()
}

// RenderSummary prints a short colored summary to w
func (r *Renderer) RenderSummary(w io.Writer, res *model.VerificationResult) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s\n", res.DocumentID)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Confidence:  %.1f/100\n", res.OverallConfidence)
	fmt.Fprintf(w, "  Risk:        %s\n", riskColor(res.RiskLevel)(strings.ToUpper(string(res.RiskLevel))))
	fmt.Fprintf(w, "  Issues:      %d\n", len(res.Issues))
	for _, is := range res.Issues {
		fmt.Fprintf(w, "    - [%s] %s\n", riskColor(is.Severity)(string(is.Severity)), is.Description)
	}
	if len(res.Recommendations) > 0 {
		fmt.Fprintf(w, "\n  Recommendations:\n")
		for _, rec := range res.Recommendations {
			fmt.Fprintf(w, "    • %s\n", rec)
		}
	}
	fmt.Fprintf(w, "\n")
}

func riskColor(s model.Severity) func(a ...any) string {
	switch s {
	case model.SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case model.SeverityHigh:
		return color.New(color.FgRed).SprintFunc()
	case model.SeverityMedium:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

func location(l model.TextLocation) string {
	if l.Line > 0 {
		return fmt.Sprintf("line %d, col %d", l.Line, l.Column)
	}
	return fmt.Sprintf("bytes %d-%d", l.Start, l.End)
}

// cell escapes text for a Markdown table cell
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
