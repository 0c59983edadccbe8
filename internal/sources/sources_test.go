package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func testFetcher() *Fetcher {
	return NewFetcher(
		model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "Veracity-Test", MaxRetries: 2},
		model.RateLimitConfig{},
	)
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleepFunc
	sleepFunc = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleepFunc = orig })
}

func wikiServer(t *testing.T, title, snippet string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		if r.URL.Query().Get("list") != "search" {
			_, _ = w.Write([]byte(`{"query":{"general":{}}}`))
			return
		}
		resp := map[string]any{"query": map[string]any{"search": []map[string]any{
			{"title": title, "pageid": 1, "snippet": snippet},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestWikipediaProvider_Supports(t *testing.T) {
	server := wikiServer(t, "Eiffel Tower",
		`The <span class="searchmatch">Eiffel</span> <span class="searchmatch">Tower</span> is a lattice tower located in <span class="searchmatch">Paris</span>, France.`)
	defer server.Close()

	p := NewWikipediaProvider(server.URL, testFetcher(), NewClassifier(model.DefaultConfig().Sources))
	assert.Equal(t, "wikipedia", p.Name())
	assert.True(t, p.IsAvailable(context.Background()))

	res, err := p.Query(context.Background(), "The Eiffel Tower is located in Paris.", model.DomainLegal)
	require.NoError(t, err)
	assert.True(t, res.IsSupported)
	assert.InDelta(t, 90.0, res.Confidence, 0.001)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, server.URL+"/wiki/Eiffel_Tower", res.Sources[0].URL)
	require.Len(t, res.Evidence, 1)
	assert.NotContains(t, res.Evidence[0], "<span")
}

func TestWikipediaProvider_Disputes(t *testing.T) {
	server := wikiServer(t, "Great Wall of China",
		"A common misconception is that the Great Wall of China is visible from space with the naked eye.")
	defer server.Close()

	p := NewWikipediaProvider(server.URL, testFetcher(), NewClassifier(model.DefaultConfig().Sources))
	res, err := p.Query(context.Background(), "The Great Wall of China is visible from space with the naked eye.", "")
	require.NoError(t, err)
	assert.False(t, res.IsSupported)
	assert.True(t, res.Contradicts())
	assert.Less(t, res.Confidence, 20.0)
}

func TestWikipediaProvider_NumberConflict(t *testing.T) {
	server := wikiServer(t, "Acme", "The company was founded in 2001 in Ohio.")
	defer server.Close()

	p := NewWikipediaProvider(server.URL, testFetcher(), NewClassifier(model.DefaultConfig().Sources))
	res, err := p.Query(context.Background(), "The company was founded in 1998.", "")
	require.NoError(t, err)
	assert.True(t, res.Contradicts())
	assert.Contains(t, res.Contradictions[0], "different figures")
}

func TestWikipediaProvider_Negation(t *testing.T) {
	tests := []struct {
		name      string
		snippet   string
		supported bool
	}{
		{"negation near claim terms", "The Eiffel Tower is not located in Paris but in Lyon.", false},
		{"negation elsewhere in snippet", "The Eiffel Tower is located in Paris, France, and draws visitors year round; admission is not free for adults.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := wikiServer(t, "Eiffel Tower", tt.snippet)
			defer server.Close()

			p := NewWikipediaProvider(server.URL, testFetcher(), NewClassifier(model.DefaultConfig().Sources))
			res, err := p.Query(context.Background(), "The Eiffel Tower is located in Paris.", "")
			require.NoError(t, err)
			assert.Equal(t, tt.supported, res.IsSupported)
			assert.Equal(t, !tt.supported, res.Contradicts())
		})
	}
}

func TestWikipediaProvider_IrrelevantHits(t *testing.T) {
	server := wikiServer(t, "Unrelated", "Something else entirely.")
	defer server.Close()

	p := NewWikipediaProvider(server.URL, testFetcher(), NewClassifier(model.DefaultConfig().Sources))
	res, err := p.Query(context.Background(), "The Eiffel Tower is located in Paris.", "")
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.Confidence)
	assert.False(t, res.IsSupported)
}

func TestFetcher_RetriesTransientFailures(t *testing.T) {
	noSleep(t)
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out struct{ OK bool }
	require.NoError(t, testFetcher().GetJSON(context.Background(), server.URL, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetcher_NoRetryOnClientError(t *testing.T) {
	noSleep(t)
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var out map[string]any
	err := testFetcher().GetJSON(context.Background(), server.URL, &out)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetcher_HonoursRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /w/\n"))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	f := NewFetcher(model.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "Veracity", RespectRobots: true}, model.RateLimitConfig{})
	var out map[string]any
	err := f.GetJSON(context.Background(), server.URL+"/w/api.php", &out)
	assert.ErrorIs(t, err, ErrDisallowed)
	assert.NoError(t, f.GetJSON(context.Background(), server.URL+"/ok", &out))
}

func llmServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_ = json.NewEncoder(w).Encode(openai.ModelsList{})
			return
		}
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: content},
			}},
		})
	}))
}

func newTestLLM(t *testing.T, url string) *LLMProvider {
	t.Helper()
	cfg := model.DefaultConfig().LLM
	cfg.APIKey = "test-key"
	cfg.BaseURL = url
	p, err := NewLLMProvider(cfg, NewClassifier(model.DefaultConfig().Sources))
	require.NoError(t, err)
	return p
}

func TestLLMProvider_Supported(t *testing.T) {
	server := llmServer(t, "```json\n"+`{"verdict":"supported","confidence":88,"evidence":["HHS guidance"],"sources":[{"name":"HHS","url":"https://www.hhs.gov/hipaa"}]}`+"\n```")
	defer server.Close()

	p := newTestLLM(t, server.URL)
	assert.Equal(t, "llm:openai", p.Name())
	assert.True(t, p.IsAvailable(context.Background()))

	res, err := p.Query(context.Background(), "HIPAA applies to covered entities.", model.DomainHealthcare)
	require.NoError(t, err)
	assert.True(t, res.IsSupported)
	assert.Equal(t, 88.0, res.Confidence)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, model.SourceModel, res.Sources[0].SourceType)
	assert.Equal(t, model.SourceGovernment, res.Sources[1].SourceType)
}

func TestLLMProvider_Contradicted(t *testing.T) {
	server := llmServer(t, `{"verdict":"contradicted","confidence":90}`)
	defer server.Close()

	res, err := newTestLLM(t, server.URL).Query(context.Background(), "The moon is made of cheese.", "")
	require.NoError(t, err)
	assert.False(t, res.IsSupported)
	assert.True(t, res.Contradicts())
	assert.InDelta(t, 10.0, res.Confidence, 0.001)
}

func TestLLMProvider_Unknown(t *testing.T) {
	server := llmServer(t, `{"verdict":"unknown","confidence":50,"evidence":["maybe"]}`)
	defer server.Close()

	res, err := newTestLLM(t, server.URL).Query(context.Background(), "Something obscure happened.", "")
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.Confidence)
}

func TestLLMProvider_BadResponse(t *testing.T) {
	server := llmServer(t, "not json at all")
	defer server.Close()

	_, err := newTestLLM(t, server.URL).Query(context.Background(), "A claim.", "")
	assert.Error(t, err)
}

func TestNewLLMProvider_Config(t *testing.T) {
	classifier := NewClassifier(model.DefaultConfig().Sources)

	_, err := NewLLMProvider(model.LLMConfig{Provider: "openai"}, classifier)
	assert.ErrorContains(t, err, "API key")

	p, err := NewLLMProvider(model.LLMConfig{Provider: "ollama", Model: "llama3"}, classifier)
	require.NoError(t, err)
	assert.Equal(t, "llm:ollama", p.Name())

	_, err = NewLLMProvider(model.LLMConfig{Provider: "anthropic"}, classifier)
	assert.ErrorContains(t, err, "unknown LLM provider")
}

func TestNewProviders(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Sources.Providers = []string{"wikipedia", "Wikipedia", "openai"}
	providers, err := NewProviders(cfg, nil)
	require.NoError(t, err)
	require.Len(t, providers, 1, "openai is skipped without an API key")
	assert.Equal(t, "wikipedia", providers[0].Name())

	cfg.Sources.Providers = []string{"bing"}
	_, err = NewProviders(cfg, nil)
	assert.Error(t, err)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, []string{"revenue", "increasing", "quarter"}, Terms("Revenue is increasing this quarter, revenue!"))
	assert.InDelta(t, 0.5, Overlap([]string{"a1", "b2"}, []string{"b2", "c3"}), 0.001)
	assert.True(t, HasNegation("The system is not secure"))
	assert.False(t, HasNegation("The system is secure"))
	assert.True(t, NegatesTerms("The vault is not secure", []string{"vault", "secure"}))
	assert.False(t, NegatesTerms("The vault is secure. Parking near the lobby is not available on weekends", []string{"vault", "secure"}))
	assert.True(t, Disputes("This is a popular MYTH."))
	assert.Equal(t, []string{"1200000", "3.5"}, Numbers("1,200,000 users and 3.5 stars"))
	assert.True(t, NumberConflict("founded in 1998", "founded in 2001"))
	assert.False(t, NumberConflict("founded in 1998", "founded in 1998 and renamed in 2001"))
	assert.False(t, NumberConflict("founded long ago", "founded in 2001"))
	assert.Equal(t, "Eiffel Tower in Paris", StripHTML(`<span class="x">Eiffel</span> Tower in <b>Paris</b>`))
	assert.True(t, strings.HasPrefix(StripHTML("a<br>b"), "a b"))
}
