package classifiersvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/kohlab/pyeongga/core"
)

// genaiClassifier asks a Gemini model whether a feedback text is a near-copy
// of, or suspiciously similar to, the author's own prior feedback texts.
type genaiClassifier struct {
	client  *genai.Client
	model   string
	timeout core.ClassifierConfig
}

var _ core.TextClassifier = (*genaiClassifier)(nil)

func NewGenAIClassifier(conf *core.Config) (core.TextClassifier, error) {
	if conf.Classifier.APIKey == "" {
		return nil, errors.New("classifier API key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: conf.Classifier.APIKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}
	return &genaiClassifier{
		client:  client,
		model:   conf.Classifier.Model,
		timeout: conf.Classifier,
	}, nil
}

const systemPrompt = `You review performance-evaluation feedback for reuse.
Given a CANDIDATE feedback text and the author's PRIOR feedback texts, decide
whether the candidate is a near-copy of, or suspiciously similar in substance
to, any prior text. Paraphrases of the same content count as duplicates;
genuinely new observations do not.

Respond with ONLY a JSON object:
{"is_duplicate": <bool>, "confidence": <number 0-1>, "summary": "<one short sentence>"}`

func (c *genaiClassifier) ClassifyDuplicate(ctx context.Context, candidate string, priorTexts []string) (core.DuplicateVerdict, error) {
	if c.timeout.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout.Timeout)
		defer cancel()
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(buildPrompt(candidate, priorTexts)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(0)),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return core.DuplicateVerdict{}, errors.Wrap(err, "genai completion")
	}
	return parseVerdict(resp.Text())
}

func buildPrompt(candidate string, priorTexts []string) string {
	var sb strings.Builder
	sb.WriteString("CANDIDATE:\n")
	sb.WriteString(candidate)
	sb.WriteString("\n\nPRIOR TEXTS:\n")
	for i, t := range priorTexts {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, t)
	}
	return sb.String()
}

func parseVerdict(raw string) (core.DuplicateVerdict, error) {
	// the model is asked for bare JSON but may still fence it
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	var payload struct {
		IsDuplicate bool    `json:"is_duplicate"`
		Confidence  float64 `json:"confidence"`
		Summary     string  `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return core.DuplicateVerdict{}, errors.Wrap(err, "parsing classifier verdict")
	}
	return core.DuplicateVerdict{
		IsDuplicate: payload.IsDuplicate,
		Confidence:  payload.Confidence,
		Summary:     payload.Summary,
	}, nil
}
