package insight

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"github.com/danielpatrickdp/synapse/internal/difficulty"
	"github.com/danielpatrickdp/synapse/internal/engine"
)

// #endregion

// #region config

// Config tunes the analyzer.
type Config struct {
	Model        string
	MaxPatterns  int // difficult patterns included per request
	MaxSequences int // recent low-confidence windows included per request
	Timeout      time.Duration
}

// DefaultConfig returns the standard analyzer tuning.
func DefaultConfig() Config {
	return Config{
		Model:        "gpt-4o-mini",
		MaxPatterns:  5,
		MaxSequences: 5,
		Timeout:      60 * time.Second,
	}
}

// #endregion config

// #region completer

// Completer abstracts the chat completion call so tests can run without a
// live API.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type openaiCompleter struct {
	client openai.Client
	model  string
}

func (c *openaiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// #endregion completer

// #region analyzer

// Report is the analyzer's output, shaped for the engine's feedback
// incorporator: insights resolve difficult patterns, samples feed the
// synthetic training path.
type Report struct {
	Insights []engine.Insight         `json:"insights"`
	Samples  []engine.SyntheticSample `json:"samples"`
}

// Analyzer is the slower, heavier analysis path for low-confidence
// predictions. It sends repeatedly-difficult patterns to an LLM and parses
// the reply into insights and synthetic samples. The engine never depends on
// it; failures degrade to an empty report.
type Analyzer struct {
	completer Completer
	config    Config
}

// New creates an analyzer backed by the OpenAI API. baseURL may be empty.
func New(apiKey, baseURL string, config Config) *Analyzer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Analyzer{
		completer: &openaiCompleter{
			client: openai.NewClient(opts...),
			model:  config.Model,
		},
		config: config,
	}
}

// NewWithCompleter creates an analyzer with an injected completion
// implementation. Used for testing without a live API.
func NewWithCompleter(c Completer, config Config) *Analyzer {
	return &Analyzer{completer: c, config: config}
}

// #endregion analyzer

// #region analyze

// Analyze asks the model to explain the given difficult patterns and propose
// high-confidence synthetic sequences for them.
func (a *Analyzer) Analyze(
	ctx context.Context,
	patterns []difficulty.PatternCount,
	recent []difficulty.HistoryEntry,
) (Report, error) {
	if len(patterns) == 0 {
		return Report{}, nil
	}
	if len(patterns) > a.config.MaxPatterns {
		patterns = patterns[:a.config.MaxPatterns]
	}
	if len(recent) > a.config.MaxSequences {
		recent = recent[:a.config.MaxSequences]
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	raw, err := a.completer.Complete(ctx, systemPrompt, buildPrompt(patterns, recent))
	if err != nil {
		return Report{}, fmt.Errorf("analyze: %w", err)
	}

	report := parseReport(raw)
	log.Printf("[INSIGHT] analyzed %d patterns: %d insights, %d samples",
		len(patterns), len(report.Insights), len(report.Samples))
	return report, nil
}

const systemPrompt = `You analyze browser interaction patterns that a local predictor ` +
	`keeps getting wrong. For each pattern, infer the user's intent and, where you can, ` +
	`propose the selector sequence the user is most likely completing. ` +
	`Reply with JSON only: {"insights":[{"pattern":"...","intent":"...","confidence":0.0}],` +
	`"samples":[{"selectors":["..."],"intent":"...","confidence":0.0}]}`

func buildPrompt(patterns []difficulty.PatternCount, recent []difficulty.HistoryEntry) string {
	var b strings.Builder
	b.WriteString("Repeatedly difficult patterns (action-type signatures):\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- %q seen %d times\n", p.Pattern, p.Count)
	}
	if len(recent) > 0 {
		b.WriteString("\nRecent low-confidence windows (trailing targets):\n")
		for _, e := range recent {
			fmt.Fprintf(&b, "- confidence %.2f: %s\n", e.Confidence, strings.Join(e.Sequence, " , "))
		}
	}
	return b.String()
}

// #endregion analyze

// #region parse

// parseReport tolerates fenced or prefixed model output; anything
// unparseable yields an empty report rather than an error.
func parseReport(raw string) Report {
	payload := extractJSON(raw)
	if payload == "" || !gjson.Valid(payload) {
		log.Printf("[INSIGHT] unparseable analyzer reply (%d bytes)", len(raw))
		return Report{}
	}

	var report Report
	gjson.Get(payload, "insights").ForEach(func(_, v gjson.Result) bool {
		ins := engine.Insight{
			Pattern:    v.Get("pattern").String(),
			Intent:     v.Get("intent").String(),
			Confidence: v.Get("confidence").Float(),
		}
		if ins.Pattern != "" {
			report.Insights = append(report.Insights, ins)
		}
		return true
	})
	gjson.Get(payload, "samples").ForEach(func(_, v gjson.Result) bool {
		sample := engine.SyntheticSample{
			Intent:     v.Get("intent").String(),
			Confidence: v.Get("confidence").Float(),
		}
		for _, sel := range v.Get("selectors").Array() {
			sample.Selectors = append(sample.Selectors, sel.String())
		}
		if len(sample.Selectors) >= 2 {
			report.Samples = append(report.Samples, sample)
		}
		return true
	})
	return report
}

// extractJSON pulls the outermost JSON object out of a possibly fenced
// reply.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return ""
}

// #endregion parse
