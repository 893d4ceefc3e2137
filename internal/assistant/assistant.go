package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/threadpulse/internal/analytics"
	"github.com/ibeckermayer/threadpulse/internal/assistant/providers"
	"github.com/ibeckermayer/threadpulse/internal/config"
	"github.com/ibeckermayer/threadpulse/internal/logging"
	"github.com/ibeckermayer/threadpulse/internal/types"
)

// ErrNotConfigured is returned when no API key is available for the provider
var ErrNotConfigured = errors.New("text generation is not configured")

// Generation modes
const (
	ModeNormal   = "normal"
	ModeThread   = "thread"
	ModeAnalysis = "analysis-based"
)

const (
	defaultDraftCount = 3
	maxDraftCount     = 5
	analysisDays      = 30
	fallbackReason    = "model output was not valid JSON; returned as-is"
)

// Provider defines the interface for text generation backends
type Provider interface {
	Generate(ctx context.Context, prompt string, opts providers.Options) (string, error)
}

// NewProvider builds the provider named by cfg. apiKey overrides cfg.APIKey
// when non-empty.
func NewProvider(cfg config.LLMConfig, apiKey string) (Provider, error) {
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		return providers.NewGeminiProvider(apiKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderAnthropic:
		return providers.NewAnthropicProvider(apiKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

// Store is the persistence the assistant reads context from and logs to
type Store interface {
	analytics.PostReader
	TimeSlots(ctx context.Context, accountID string) ([]types.TimeSlotRow, error)
	AppendGenerations(ctx context.Context, entries []types.GenerationEntry) error
}

// Draft is one generated post suggestion
type Draft struct {
	Text        string   `json:"text"`
	Replies     []string `json:"replies,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	ExpectedER  string   `json:"expectedER,omitempty"`
	BestTime    string   `json:"bestTime,omitempty"`
	MediaAdvice string   `json:"mediaAdvice,omitempty"`
}

// GenerateRequest asks for count drafts about theme
type GenerateRequest struct {
	Theme string `json:"theme"`
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// AnalysisUsed describes the account data fed into an analysis-based request
type AnalysisUsed struct {
	PostCount    int     `json:"totalPosts"`
	AvgER        float64 `json:"avgER"`
	TopPostCount int     `json:"topPostCount"`
	HasTimeData  bool    `json:"hasTimeData"`
}

func (a AnalysisUsed) String() string {
	return fmt.Sprintf("%d posts analyzed / avg ER %.2f%% / top %d referenced", a.PostCount, a.AvgER, a.TopPostCount)
}

// Generation is the outcome of GeneratePosts
type Generation struct {
	Mode     string        `json:"mode"`
	Theme    string        `json:"theme"`
	Results  []Draft       `json:"results"`
	Analysis *AnalysisUsed `json:"analysisUsed,omitempty"`
}

// Assistant drafts and refines posts with a text-generation provider
type Assistant struct {
	provider    Provider
	store       Store
	log         logging.Logger
	temperature float64
	maxTokens   int
	now         func() time.Time
}

// New creates an assistant using the sampling defaults of cfg
func New(provider Provider, st Store, cfg config.LLMConfig, logger logging.Logger) *Assistant {
	return &Assistant{
		provider:    provider,
		store:       st,
		log:         logging.Component(logger, "assistant"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		now:         time.Now,
	}
}

// Complete runs a free-form prompt
func (a *Assistant) Complete(ctx context.Context, prompt string, opts providers.Options) (string, error) {
	if opts.Temperature == 0 {
		opts.Temperature = a.temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = a.maxTokens
	}
	return a.provider.Generate(ctx, prompt, opts)
}

// GeneratePosts drafts posts about a theme. The analysis-based mode grounds the
// prompt in the account's last 30 days, its top posts and its best time slots.
// Every draft is written to the generation log.
func (a *Assistant) GeneratePosts(ctx context.Context, acct types.Account, req GenerateRequest) (Generation, error) {
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		return Generation{}, fmt.Errorf("%w: theme is required", types.ErrInvalidInput)
	}
	mode := req.Mode
	switch mode {
	case "":
		mode = ModeNormal
	case "analysis":
		mode = ModeAnalysis
	case ModeNormal, ModeThread, ModeAnalysis:
	default:
		return Generation{}, fmt.Errorf("%w: unknown mode %q", types.ErrInvalidInput, req.Mode)
	}
	count := req.Count
	if count <= 0 {
		count = defaultDraftCount
	}
	count = min(count, maxDraftCount)

	gen := Generation{Mode: mode, Theme: theme}
	var prompt string
	switch mode {
	case ModeAnalysis:
		ctxData, err := a.analysisContext(ctx, acct)
		if err != nil {
			return Generation{}, err
		}
		used := ctxData.used()
		gen.Analysis = &used
		prompt = analysisPrompt(theme, count, ctxData)
	case ModeThread:
		prompt = threadPrompt(theme, count)
	default:
		prompt = normalPrompt(theme, count)
	}

	raw, err := a.Complete(ctx, prompt, providers.Options{Temperature: 0.8})
	if err != nil {
		return Generation{}, fmt.Errorf("failed to generate posts: %w", err)
	}
	gen.Results = parseDrafts(raw)

	// The log feeds the growth score; a write failure does not fail the request.
	if err := a.logGeneration(ctx, acct, gen); err != nil {
		a.log.WithError(err).Warn("failed to write generation log")
	}
	return gen, nil
}

func (a *Assistant) logGeneration(ctx context.Context, acct types.Account, gen Generation) error {
	now := a.now()
	summary := ""
	if gen.Analysis != nil {
		summary = gen.Analysis.String()
	}
	entries := make([]types.GenerationEntry, len(gen.Results))
	for i, d := range gen.Results {
		entries[i] = types.GenerationEntry{
			ID:              uuid.NewString(),
			GeneratedAt:     now,
			AccountID:       acct.AccountID,
			Theme:           gen.Theme,
			Mode:            gen.Mode,
			PostText:        d.fullText(),
			Reason:          d.Reason,
			ExpectedER:      d.ExpectedER,
			BestTime:        d.BestTime,
			MediaAdvice:     d.MediaAdvice,
			AnalysisSummary: summary,
		}
	}
	return a.store.AppendGenerations(ctx, entries)
}

func (d Draft) fullText() string {
	if len(d.Replies) == 0 {
		return d.Text
	}
	var sb strings.Builder
	sb.WriteString(d.Text)
	for i, r := range d.Replies {
		fmt.Fprintf(&sb, "\n[reply %d] %s", i+1, r)
	}
	return sb.String()
}

// parseDrafts reads a JSON array (or single object) of drafts from model
// output, falling back to the raw text as one draft.
func parseDrafts(raw string) []Draft {
	payload := providers.ExtractJSON(raw)

	var drafts []Draft
	if err := json.Unmarshal([]byte(payload), &drafts); err == nil && len(drafts) > 0 {
		return drafts
	}
	var one Draft
	if err := json.Unmarshal([]byte(payload), &one); err == nil && one.Text != "" {
		return []Draft{one}
	}
	return []Draft{{Text: strings.TrimSpace(raw), Reason: fallbackReason}}
}

// Refine styles
var refineStyles = map[string]string{
	"improve":      "improve overall quality: vocabulary, grammar, expressiveness and readability",
	"shorter":      "condense it while keeping the original content",
	"longer":       "expand it with concrete examples and supporting detail",
	"casual":       "rewrite in a friendly, casual voice",
	"professional": "rewrite in a polite, professional voice",
	"engaging":     "optimize it to maximize likes and replies",
	"hook":         "strengthen the opening line so it grabs the reader",
}

// RefineRequest asks for variations of an existing draft
type RefineRequest struct {
	Text        string `json:"text"`
	Style       string `json:"style"`
	Instruction string `json:"instruction"`
}

// Refine returns three edited variations of a draft
func (a *Assistant) Refine(ctx context.Context, req RefineRequest) ([]Draft, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text to refine is empty", types.ErrInvalidInput)
	}
	style := req.Style
	if _, ok := refineStyles[style]; !ok {
		style = "improve"
	}

	raw, err := a.Complete(ctx, refinePrompt(text, style, refineStyles[style], strings.TrimSpace(req.Instruction)), providers.Options{Temperature: 0.8})
	if err != nil {
		return nil, fmt.Errorf("failed to refine post: %w", err)
	}
	return parseDrafts(raw), nil
}

type analysisData struct {
	summary  analytics.Summary
	topPosts []types.Post
	slots    []analytics.Slot
}

func (d analysisData) used() AnalysisUsed {
	return AnalysisUsed{
		PostCount:    d.summary.PostCount,
		AvgER:        d.summary.EngagementRate,
		TopPostCount: len(d.topPosts),
		HasTimeData:  len(d.slots) > 0,
	}
}

func (a *Assistant) analysisContext(ctx context.Context, acct types.Account) (analysisData, error) {
	posts, err := a.store.Posts(ctx, acct.AccountID)
	if err != nil {
		return analysisData{}, fmt.Errorf("failed to read posts: %w", err)
	}
	recent := analytics.Since(posts, a.now().AddDate(0, 0, -analysisDays))

	var top []types.Post
	for _, p := range recent {
		if p.EngagementRate > 0 {
			top = append(top, p)
		}
	}
	analytics.SortByRate(top)
	if len(top) > 5 {
		top = top[:5]
	}

	data := analysisData{summary: analytics.Summarize(recent), topPosts: top}
	rows, err := a.store.TimeSlots(ctx, acct.AccountID)
	if err != nil {
		// Golden hours are optional context.
		a.log.WithError(err).Warn("failed to read time slots")
	} else {
		data.slots = analytics.TopSlots(rows, 5)
	}
	return data, nil
}
