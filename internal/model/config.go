package model

import "time"

// Config holds every tunable of the verification pipeline. Numeric constants
// used by the analyzers live here so they can be pinned by tests and
// calibrated without code changes.
type Config struct {
	FactCheck    FactCheckConfig   `yaml:"fact_check" mapstructure:"fact_check"`
	Compliance   ComplianceConfig  `yaml:"compliance" mapstructure:"compliance"`
	Logic        LogicConfig       `yaml:"logic" mapstructure:"logic"`
	Aggregation  AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	Sources      SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Storage      StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// FactCheckConfig tunes claim verification
type FactCheckConfig struct {
	DefaultThreshold             float64            `yaml:"default_threshold" mapstructure:"default_threshold"`
	DomainThresholds             map[Domain]float64 `yaml:"domain_thresholds" mapstructure:"domain_thresholds"`
	GovernmentBaseline           float64            `yaml:"government_baseline" mapstructure:"government_baseline"`
	EncyclopediaSupportThreshold float64            `yaml:"encyclopedia_support_threshold" mapstructure:"encyclopedia_support_threshold"`
	HighSeverityBelow            float64            `yaml:"high_severity_below" mapstructure:"high_severity_below"`
	CriticalCredibility          float64            `yaml:"critical_credibility" mapstructure:"critical_credibility"`
	MaxConcurrentClaims          int                `yaml:"max_concurrent_claims" mapstructure:"max_concurrent_claims"`
	MaxClaims                    int                `yaml:"max_claims" mapstructure:"max_claims"`
	ProviderTimeout              time.Duration      `yaml:"provider_timeout" mapstructure:"provider_timeout"`
}

// Threshold returns the confidence below which a contradicted claim is an issue
func (c FactCheckConfig) Threshold(d Domain) float64 {
	if t, ok := c.DomainThresholds[d]; ok {
		return t
	}
	return c.DefaultThreshold
}

// ComplianceConfig tunes rule matching
type ComplianceConfig struct {
	KeywordConfidence   float64 `yaml:"keyword_confidence" mapstructure:"keyword_confidence"`
	PatternConfidence   float64 `yaml:"pattern_confidence" mapstructure:"pattern_confidence"`
	DefaultJurisdiction string  `yaml:"default_jurisdiction" mapstructure:"default_jurisdiction"`
	LoadDefaultRules    bool    `yaml:"load_default_rules" mapstructure:"load_default_rules"`
}

// LogicConfig tunes contradiction and coherence detection
type LogicConfig struct {
	Window               int     `yaml:"window" mapstructure:"window"` // Prior sentences per subject compared against
	DirectConfidence     float64 `yaml:"direct_confidence" mapstructure:"direct_confidence"`
	QualifierConfidence  float64 `yaml:"qualifier_confidence" mapstructure:"qualifier_confidence"`
	ImplicitConfidence   float64 `yaml:"implicit_confidence" mapstructure:"implicit_confidence"`
	TemporalConfidence   float64 `yaml:"temporal_confidence" mapstructure:"temporal_confidence"`
	TopicShiftConfidence float64 `yaml:"topic_shift_confidence" mapstructure:"topic_shift_confidence"`
	SentimentConfidence  float64 `yaml:"sentiment_confidence" mapstructure:"sentiment_confidence"`
	CausalConfidence     float64 `yaml:"causal_confidence" mapstructure:"causal_confidence"`
	ReferenceConfidence  float64 `yaml:"reference_confidence" mapstructure:"reference_confidence"`
	ReferenceLookback    int     `yaml:"reference_lookback" mapstructure:"reference_lookback"`
	MinTopicTokens       int     `yaml:"min_topic_tokens" mapstructure:"min_topic_tokens"`
}

// AggregationConfig tunes the overall confidence formula:
// confidence = base - sum_i(decay^i * penalty_i) - failedBranchPenalty * failures
// where penalty = typeWeight * severityWeight * issueConfidence, sorted descending.
type AggregationConfig struct {
	Base                float64               `yaml:"base" mapstructure:"base"`
	TypeWeights         map[IssueType]float64 `yaml:"type_weights" mapstructure:"type_weights"`
	SeverityWeights     map[Severity]float64  `yaml:"severity_weights" mapstructure:"severity_weights"`
	Decay               float64               `yaml:"decay" mapstructure:"decay"`
	FailedBranchPenalty float64               `yaml:"failed_branch_penalty" mapstructure:"failed_branch_penalty"`
}

// SourcesConfig selects evidence providers and classifies their URLs
type SourcesConfig struct {
	Providers           []string               `yaml:"providers" mapstructure:"providers"` // wikipedia, llm
	KnowledgeBase       bool                   `yaml:"knowledge_base" mapstructure:"knowledge_base"`
	WikipediaBaseURL    string                 `yaml:"wikipedia_base_url" mapstructure:"wikipedia_base_url"`
	Credibility         map[SourceType]float64 `yaml:"credibility" mapstructure:"credibility"`
	GovernmentDomains   []string               `yaml:"government_domains" mapstructure:"government_domains"`
	AcademicDomains     []string               `yaml:"academic_domains" mapstructure:"academic_domains"`
	EncyclopediaDomains []string               `yaml:"encyclopedia_domains" mapstructure:"encyclopedia_domains"`
	NewsDomains         []string               `yaml:"news_domains" mapstructure:"news_domains"`
}

// HTTPConfig configures outbound requests made by HTTP-backed providers
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// LLMConfig configures the language-model source provider
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, ollama
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"-" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Credibility float64       `yaml:"credibility" mapstructure:"credibility"`
}

// CacheConfig configures the provider result cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Memory  bool          `yaml:"memory" mapstructure:"memory"`
}

// RateLimitConfig bounds outbound request rate per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// StorageConfig selects the rule and claim store backend
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory, sqlite
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// ConcurrencyConfig controls batch processing parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	IncludeClaims bool `yaml:"include_claims" mapstructure:"include_claims"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		FactCheck: FactCheckConfig{
			DefaultThreshold: 70,
			DomainThresholds: map[Domain]float64{
				DomainLegal:      70,
				DomainFinancial:  75,
				DomainHealthcare: 80,
				DomainInsurance:  70,
			},
			GovernmentBaseline:           80,
			EncyclopediaSupportThreshold: 60,
			HighSeverityBelow:            35,
			CriticalCredibility:          90,
			MaxConcurrentClaims:          5,
			MaxClaims:                    200,
			ProviderTimeout:              10 * time.Second,
		},
		Compliance: ComplianceConfig{
			KeywordConfidence:   0.6,
			PatternConfidence:   0.9,
			DefaultJurisdiction: "US",
			LoadDefaultRules:    true,
		},
		Logic: LogicConfig{
			Window:               8,
			DirectConfidence:     85,
			QualifierConfidence:  80,
			ImplicitConfidence:   65,
			TemporalConfidence:   70,
			TopicShiftConfidence: 40,
			SentimentConfidence:  60,
			CausalConfidence:     70,
			ReferenceConfidence:  50,
			ReferenceLookback:    2,
			MinTopicTokens:       3,
		},
		Aggregation: AggregationConfig{
			Base: 100,
			TypeWeights: map[IssueType]float64{
				IssueComplianceViolation:  1.0,
				IssueFactualError:         1.0,
				IssueLogicalInconsistency: 0.6,
			},
			SeverityWeights: map[Severity]float64{
				SeverityLow:      4,
				SeverityMedium:   10,
				SeverityHigh:     20,
				SeverityCritical: 35,
			},
			Decay:               0.7,
			FailedBranchPenalty: 10,
		},
		Sources: SourcesConfig{
			Providers:        []string{},
			KnowledgeBase:    true,
			WikipediaBaseURL: "https://en.wikipedia.org",
			Credibility: map[SourceType]float64{
				SourceGovernment:   95,
				SourceAcademic:     85,
				SourceEncyclopedia: 70,
				SourceNews:         60,
				SourceInternal:     90,
				SourceModel:        50,
				SourceOther:        40,
			},
			GovernmentDomains:   []string{".gov", ".gov.uk", ".gc.ca", ".gouv.fr", ".europa.eu", ".mil"},
			AcademicDomains:     []string{".edu", ".ac.uk", "doi.org", "pubmed.ncbi.nlm.nih.gov", "arxiv.org", "jstor.org"},
			EncyclopediaDomains: []string{"wikipedia.org", "britannica.com", "wikidata.org"},
			NewsDomains:         []string{"reuters.com", "apnews.com", "bbc.co.uk", "bbc.com", "nytimes.com", "ft.com", "bloomberg.com"},
		},
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "Veracity/0.1 (+https://github.com/ppiankov/veracity)",
			MaxBodyBytes:  2_000_000,
			MaxRetries:    2,
			RespectRobots: true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   400,
			Temperature: 0,
			Timeout:     20 * time.Second,
			Credibility: 50,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".veracity-cache",
			TTL:     24 * time.Hour,
			Memory:  true,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         4,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			IncludeFooter: true,
			IncludeClaims: true,
		},
	}
}
