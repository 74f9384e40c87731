package release

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/rancher/repo-sync/internal/git"
)

const (
	defaultSummaryModel   = "gpt-5"
	defaultSummaryBaseURL = "https://api.openai.com/v1"
	openRouterBaseURL     = "https://openrouter.ai/api/v1"
	groqBaseURL           = "https://api.groq.com/openai/v1"
	ollamaBaseURL         = "http://localhost:11434/v1"

	// DefaultSummaryMaxTokens bounds the completion length.
	DefaultSummaryMaxTokens = 400

	summaryTimeout    = 60 * time.Second
	maxSummaryBullets = 8
	maxPromptCommits  = 100
	maxPromptFiles    = 30
)

// Provider is a resolved OpenAI-compatible endpoint.
type Provider struct {
	Model   string
	BaseURL string
	APIKey  string
}

// ProviderOptions are explicitly configured provider values. Empty fields are
// resolved from the environment.
type ProviderOptions struct {
	Model   string
	BaseURL string
	APIKey  string
}

// ResolveProvider picks model, endpoint and key: explicit options first, then
// OPENAI_*, then OpenRouter, Groq and Azure keys, and finally a local Ollama.
// A provider-specific base URL never overrides an explicit one.
func ResolveProvider(opts ProviderOptions, getenv func(string) string) Provider {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	p := Provider{
		Model:   firstNonEmpty(opts.Model, env("OPENAI_SUMMARY_MODEL", defaultSummaryModel)),
		BaseURL: firstNonEmpty(opts.BaseURL, env("OPENAI_BASE_URL", defaultSummaryBaseURL)),
		APIKey:  firstNonEmpty(opts.APIKey, env("OPENAI_API_KEY", "")),
	}
	explicitBase := strings.TrimSpace(opts.BaseURL) != ""

	fallbacks := []struct {
		key  string
		base string
	}{
		{key: "OPENROUTER_API_KEY", base: openRouterBaseURL},
		{key: "GROQ_API_KEY", base: groqBaseURL},
		{key: "AZURE_OPENAI_API_KEY"},
	}
	for _, fb := range fallbacks {
		if p.APIKey != "" {
			break
		}
		if p.APIKey = env(fb.key, ""); p.APIKey != "" && fb.base != "" && !explicitBase {
			p.BaseURL = fb.base
		}
	}

	if p.APIKey == "" {
		p.APIKey = env("OLLAMA_API_KEY", "ollama")
		if !explicitBase {
			p.BaseURL = ollamaBaseURL
		}
	}
	return p
}

// PromptInput is what the model is told about the release.
type PromptInput struct {
	Repository string
	Branch     string
	Since      string
	Commits    []git.Commit
	Files      []string
	ShortStat  string
}

// BuildPrompt returns the system and user messages for a release summary.
func BuildPrompt(in PromptInput) (system, user string) {
	system = "You are a precise release-notes writer. Produce a terse, executive summary for developers and PMs. " +
		"Focus on capabilities, fixes, and potential user-visible changes. Avoid marketing fluff."

	commits := in.Commits
	if len(commits) > maxPromptCommits {
		commits = commits[:maxPromptCommits]
	}
	commitLines := make([]string, 0, len(commits))
	for _, c := range commits {
		commitLines = append(commitLines, noteLine(c))
	}

	files := in.Files
	if len(files) > maxPromptFiles {
		files = files[:maxPromptFiles]
	}
	fileLines := make([]string, 0, len(files))
	for _, f := range files {
		fileLines = append(fileLines, "- "+f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", in.Repository)
	fmt.Fprintf(&b, "Branch: %s\n", in.Branch)
	fmt.Fprintf(&b, "Range start: %s\n", firstNonEmpty(in.Since, "N/A (initial)"))
	fmt.Fprintf(&b, "Changes shortstat: %s\n\n", firstNonEmpty(in.ShortStat, "n/a"))
	fmt.Fprintf(&b, "Top changed files:\n%s\n\n", firstNonEmpty(strings.Join(fileLines, "\n"), "- n/a"))
	fmt.Fprintf(&b, "Commit subjects:\n%s\n\n", firstNonEmpty(strings.Join(commitLines, "\n"), "- Initial release"))
	b.WriteString("Write 3-6 bullet points. Each bullet should be one sentence and start with an action verb. " +
		"If there are breaking changes, include a final bullet starting with 'BREAKING:'. Do not invent details.")
	return system, b.String()
}

// Summarizer calls a chat completions endpoint.
type Summarizer struct {
	Provider   Provider
	MaxTokens  int
	HTTPClient *http.Client
}

// NewSummarizer returns a Summarizer with the default request timeout.
func NewSummarizer(p Provider, maxTokens int) *Summarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryMaxTokens
	}
	return &Summarizer{Provider: p, MaxTokens: maxTokens, HTTPClient: &http.Client{Timeout: summaryTimeout}}
}

func (s *Summarizer) client() *openai.Client {
	cfg := openai.DefaultConfig(s.Provider.APIKey)
	cfg.BaseURL = strings.TrimRight(s.Provider.BaseURL, "/")
	if s.HTTPClient != nil {
		cfg.HTTPClient = s.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

// completionRequest builds the chat request. Reasoning models only accept
// max_completion_tokens and the default temperature.
func (s *Summarizer) completionRequest(system, user string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: s.Provider.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   s.MaxTokens,
	}
	if err := openai.NewReasoningValidator().Validate(req); err != nil {
		req.MaxCompletionTokens, req.MaxTokens = req.MaxTokens, 0
		req.Temperature = 0
	}
	return req
}

// Summarize asks the model for a summary and returns it as markdown bullet
// lines.
func (s *Summarizer) Summarize(ctx context.Context, in PromptInput) ([]string, error) {
	if s.Provider.APIKey == "" && !strings.HasPrefix(s.Provider.BaseURL, "http://localhost") {
		return nil, fmt.Errorf("no API key found for remote provider")
	}

	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	system, user := BuildPrompt(in)
	resp, err := s.client().CreateChatCompletion(ctx, s.completionRequest(system, user))
	if err != nil {
		return nil, fmt.Errorf("chat completion via %s: %w", s.Provider.BaseURL, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	lines := ParseBullets(resp.Choices[0].Message.Content)
	if len(lines) == 0 {
		return nil, fmt.Errorf("chat completion returned an empty summary")
	}
	return lines, nil
}

// ParseBullets normalizes model output into at most eight "- " lines. Text
// without any non-empty line is returned as a single unmodified entry.
func ParseBullets(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var bullets []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.Trim(strings.TrimSpace(line), " •-")
		if trimmed == "" {
			continue
		}
		bullets = append(bullets, "- "+trimmed)
		if len(bullets) == maxSummaryBullets {
			break
		}
	}
	if len(bullets) == 0 {
		return []string{text}
	}
	return bullets
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
