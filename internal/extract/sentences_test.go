package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	text := "X is secure. X is not secure."
	got := SplitSentences(text)
	require.Len(t, got, 2)
	assert.Equal(t, "X is secure.", got[0].Text)
	assert.Equal(t, "X is not secure.", got[1].Text)
	assert.Equal(t, 0, got[0].Location.Start)
	assert.Equal(t, 13, got[1].Location.Start)
	assert.Equal(t, len(text), got[1].Location.End)
	assert.Equal(t, 1, got[1].Index)
}

func TestSplitSentences_Abbreviations(t *testing.T) {
	got := SplitSentences("Dr. Smith met Mr. J. Doe at 3.5 p.m. yesterday. They agreed.")
	require.Len(t, got, 2)
	assert.Equal(t, "They agreed.", got[1].Text)
}

func TestSplitSentences_BlankLinesAndNoTerminator(t *testing.T) {
	got := SplitSentences("Heading\n\nBody text without a stop")
	require.Len(t, got, 2)
	assert.Equal(t, "Heading", got[0].Text)
	assert.Equal(t, "Body text without a stop", got[1].Text)
	assert.Equal(t, 3, got[1].Location.Line)
}

func TestSplitSentences_Empty(t *testing.T) {
	assert.Empty(t, SplitSentences(""))
	assert.Empty(t, SplitSentences("   \n\t "))
}
