package logic

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(model.DefaultConfig().Logic)
	require.NoError(t, err)
	return a
}

func analyze(t *testing.T, text string) []model.Issue {
	t.Helper()
	report, err := newAnalyzer(t).Analyze(context.Background(), model.VerificationRequest{
		Content: model.ParsedContent{ID: "doc", ExtractedText: text},
		Domain:  model.DomainLegal,
	})
	require.NoError(t, err)
	return report.Issues
}

func subtypes(issues []model.Issue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, is.Subtype)
	}
	return out
}

func TestDefaultLexiconLoads(t *testing.T) {
	lex, err := LoadLexicon(DefaultLexicon)
	require.NoError(t, err)
	assert.True(t, lex.negations["no"])
	assert.True(t, lex.antonyms.has("false", "true"))
	assert.Equal(t, 100, lex.sequence["finally"])
}

func TestLoadLexiconRejectsEmpty(t *testing.T) {
	_, err := LoadLexicon([]byte("stopwords: [the]\n"))
	assert.Error(t, err)
}

func TestTokenize(t *testing.T) {
	lex, err := LoadLexicon(DefaultLexicon)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "system", "is", "not", "secure"}, lex.tokenize("The system isn't secure."))
	assert.Equal(t, []string{"company", "revenue"}, lex.tokenize("Company's revenue"))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "policy", stem("policies"))
	assert.Equal(t, "record", stem("records"))
	assert.Equal(t, "access", stem("access"))
	assert.Equal(t, "status", stem("status"))
}

func TestDirectNegation(t *testing.T) {
	a := newAnalyzer(t)
	got := a.Detector().Detect("X is secure. X is not secure.")
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, model.ContradictionDirect, c.Type)
	assert.Equal(t, model.SeverityHigh, c.Severity)
	assert.Equal(t, "X is secure.", c.Statement1)
	assert.Equal(t, "X is not secure.", c.Statement2)
	assert.Less(t, c.Location1.Start, c.Location2.Start)
	assert.Equal(t, 85.0, c.Confidence)
}

func TestDirectNegationIssue(t *testing.T) {
	issues := analyze(t, "X is secure. X is not secure.")
	require.Len(t, issues, 1)
	is := issues[0]
	assert.Equal(t, model.IssueLogicalInconsistency, is.Type)
	assert.Equal(t, "direct", is.Subtype)
	assert.Equal(t, model.ModuleLogic, is.ModuleSource)
	assert.Equal(t, 13, is.Location.Start)
	assert.Equal(t, []string{"X is secure.", "X is not secure."}, is.Evidence)
	assert.InDelta(t, 0.85, is.Confidence, 1e-9)
	assert.NotEmpty(t, is.ID)
}

func TestContractionNegation(t *testing.T) {
	got := newAnalyzer(t).Detector().Detect("The vault is secure. The vault isn't secure.")
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionDirect, got[0].Type)
}

func TestNonNegatingPhrases(t *testing.T) {
	a := newAnalyzer(t)
	assert.Empty(t, a.Detector().Detect("The system is not only fast but also secure. The system is fast."))
	assert.Empty(t, analyze(t, "The vendor is not just cheap but reliable. The vendor is cheap."))

	got := a.Detector().Detect("The system is not only fast. The system is not fast.")
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionDirect, got[0].Type)
}

func TestDifferentSubjectsDoNotContradict(t *testing.T) {
	assert.Empty(t, analyze(t, "The new system is fast. The old system is slow."))
}

func TestAntonymContradiction(t *testing.T) {
	got := newAnalyzer(t).Detector().Detect("Revenue is increasing this quarter. Revenue is decreasing this quarter.")
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionDirect, got[0].Type)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
	assert.Equal(t, "revenue", got[0].Subject)
}

func TestExclusiveQualifiers(t *testing.T) {
	got := newAnalyzer(t).Detector().Detect(
		"All patients are eligible for the program. No patients are eligible for the program.")
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionDirect, got[0].Type)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
	assert.Contains(t, got[0].Explanation, `"all"`)
}

func TestImplicitSentiment(t *testing.T) {
	got := newAnalyzer(t).Detector().Detect("The project was excellent. The project was terrible.")
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionImplicit, got[0].Type)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
}

func TestTemporalReversal(t *testing.T) {
	got := newAnalyzer(t).Detector().Detect(
		"The audit was completed before the merger. The audit was completed after the merger.")
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionTemporal, got[0].Type)
}

func TestWindowLimitsComparison(t *testing.T) {
	cfg := model.DefaultConfig().Logic
	cfg.Window = 2
	a, err := New(cfg)
	require.NoError(t, err)

	far := "X is secure. Filler one here. Filler two here. Filler three here. X is not secure."
	assert.Empty(t, a.Detector().Detect(far))

	near := "X is secure. Filler one here. X is not secure."
	assert.Len(t, a.Detector().Detect(near), 1)
}

func TestContradictionsOrderedByLaterStatement(t *testing.T) {
	text := "Y is valid. X is secure. Y is invalid. X is not secure."
	got := newAnalyzer(t).Detector().Detect(text)
	require.Len(t, got, 2)
	assert.Less(t, got[0].Location2.Start, got[1].Location2.Start)
	for _, c := range got {
		assert.Less(t, c.Location1.Start, c.Location2.Start)
	}
}

func TestCausalReversal(t *testing.T) {
	issues := analyze(t, "The outage was caused by the update. The outage caused the update.")
	require.Len(t, issues, 1)
	assert.Equal(t, SubtypeCausal, issues[0].Subtype)
	assert.Len(t, issues[0].Evidence, 2)
}

func TestSequenceOrder(t *testing.T) {
	issues := analyze(t, "Finally, the team deployed the release. First, the team wrote the tests.")
	assert.Contains(t, subtypes(issues), SubtypeTemporalSequence)
}

func TestSequenceResetsPerParagraph(t *testing.T) {
	issues := analyze(t, "Finally, the team deployed the release.\n\nFirst, the team wrote the tests.")
	assert.NotContains(t, subtypes(issues), SubtypeTemporalSequence)
}

func TestTopicShift(t *testing.T) {
	issues := analyze(t, "The quarterly revenue grew substantially. Penguins migrate across frozen Antarctic coastlines.")
	require.Len(t, issues, 1)
	assert.Equal(t, SubtypeTopicShift, issues[0].Subtype)
	assert.Equal(t, model.SeverityLow, issues[0].Severity)
}

func TestTopicShiftBridgedByConnective(t *testing.T) {
	issues := analyze(t, "The quarterly revenue grew substantially. Meanwhile, penguins migrate across frozen Antarctic coastlines.")
	assert.NotContains(t, subtypes(issues), SubtypeTopicShift)
}

func TestSentimentConflict(t *testing.T) {
	issues := analyze(t, "The merger was a success for shareholders. Disaster followed the merger.")
	require.Len(t, issues, 1)
	assert.Equal(t, SubtypeSentiment, issues[0].Subtype)
	assert.Equal(t, model.SeverityMedium, issues[0].Severity)
	assert.Contains(t, issues[0].Description, "merger")
}

func TestSentimentAboutDifferentReferents(t *testing.T) {
	for _, text := range []string{
		"The new system is excellent. The old system is terrible.",
		"The new policy was highly successful. The old policy was a complete failure.",
	} {
		t.Run(text, func(t *testing.T) {
			assert.Empty(t, analyze(t, text))
		})
	}

	issues := analyze(t, "The merger was a success for shareholders. Analysts called the merger a disaster.")
	assert.NotContains(t, subtypes(issues), SubtypeSentiment)
}

func TestDanglingReference(t *testing.T) {
	issues := analyze(t, "It was approved without review. The board met on Monday to discuss the approval.")
	assert.Contains(t, subtypes(issues), SubtypeReference)
	for _, is := range issues {
		if is.Subtype == SubtypeReference {
			assert.Equal(t, 0, is.Location.Start)
		}
	}
}

func TestResolvedReference(t *testing.T) {
	issues := analyze(t, "The board approved the budget. It was signed on Monday.")
	assert.NotContains(t, subtypes(issues), SubtypeReference)
}

func TestEmptyAndSingleSentence(t *testing.T) {
	assert.Empty(t, analyze(t, ""))
	assert.Empty(t, analyze(t, "   \n  "))
	assert.Empty(t, analyze(t, "X is secure."))
}

func TestCleanTextHasNoIssues(t *testing.T) {
	text := "The company reported revenue of $5 million in 2023. The company plans to expand its operations in Europe."
	assert.Empty(t, analyze(t, text))
}

func TestIssueConfidenceInRange(t *testing.T) {
	text := strings.Join([]string{
		"X is secure.", "X is not secure.",
		"The project was excellent.", "The project was terrible.",
		"The outage was caused by the update.", "The outage caused the update.",
	}, " ")
	for _, is := range analyze(t, text) {
		assert.GreaterOrEqual(t, is.Confidence, 0.0)
		assert.LessOrEqual(t, is.Confidence, 1.0)
		assert.True(t, is.Location.Valid())
	}
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newAnalyzer(t).Analyze(ctx, model.VerificationRequest{
		Content: model.ParsedContent{ID: "doc", ExtractedText: "X is secure. X is not secure."},
		Domain:  model.DomainLegal,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
