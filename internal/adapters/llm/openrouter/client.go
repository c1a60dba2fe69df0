// Package openrouter implements ports.Interpreter on the OpenRouter chat
// completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/randomtoy/tarot-backend/internal/domain"
	"github.com/randomtoy/tarot-backend/internal/ports"
)

const (
	defaultLang       = "vi"
	defaultStyle      = "reflective"
	defaultDisclaimer = "Chỉ mang tính tham khảo và giải trí; không phải lời khuyên y tế, pháp lý hay tài chính."
)

// Client asks the configured models in order until one returns a usable
// interpretation.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	models     []string
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, apiKey, baseURL, model string, fallbackModels []string, logger *slog.Logger) *Client {
	models := make([]string, 0, 1+len(fallbackModels))
	models = append(models, model)
	for _, m := range fallbackModels {
		if m = strings.TrimSpace(m); m != "" && m != model {
			models = append(models, m)
		}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		models:     models,
		logger:     logger,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *Client) Interpret(ctx context.Context, in ports.InterpretInput) (ports.InterpretOutput, error) {
	var errs []error
	for _, model := range c.models {
		out, err := c.interpret(ctx, model, in)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return ports.InterpretOutput{}, fmt.Errorf("%w: %w", domain.ErrUpstreamLLM, ctx.Err())
		}
		c.logger.WarnContext(ctx, "llm model failed", "model", model, "error", err)
		errs = append(errs, err)
	}
	return ports.InterpretOutput{}, errors.Join(errs...)
}

func (c *Client) interpret(ctx context.Context, model string, in ports.InterpretInput) (ports.InterpretOutput, error) {
	system := systemPrompt(in.Lang)
	content, err := c.complete(ctx, model, system, userPrompt(in))
	if err != nil {
		return ports.InterpretOutput{}, fmt.Errorf("%w: %w", domain.ErrUpstreamLLM, err)
	}

	out, err := parseOutput(content)
	if err != nil {
		c.logger.WarnContext(ctx, "llm answer is not JSON, asking again", "model", model, "error", err)
		content, err = c.complete(ctx, model, system, repairPrompt(content))
		if err != nil {
			return ports.InterpretOutput{}, fmt.Errorf("%w: %w", domain.ErrUpstreamLLM, err)
		}
		if out, err = parseOutput(content); err != nil {
			return ports.InterpretOutput{}, fmt.Errorf("%w: %w", domain.ErrInvalidLLMJSON, err)
		}
	}
	out.Model = model
	return out, nil
}

// parseOutput decodes the model answer, tolerating a surrounding code fence.
func parseOutput(content string) (ports.InterpretOutput, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out ports.InterpretOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return ports.InterpretOutput{}, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return ports.InterpretOutput{}, errors.New("empty interpretation text")
	}
	if out.Style == "" {
		out.Style = defaultStyle
	}
	if out.Disclaimer == "" {
		out.Disclaimer = defaultDisclaimer
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, model, system, user string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, raw)
	}

	var cr completionResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return cr.Choices[0].Message.Content, nil
}

var languages = map[string]string{
	"vi": "Vietnamese",
	"en": "English",
	"fr": "French",
	"ja": "Japanese",
	"ko": "Korean",
	"zh": "Chinese",
}

const outputSchema = `{
  "text": "<interpretation>",
  "style": "reflective",
  "disclaimer": "<one sentence disclaimer>"
}`

func systemPrompt(lang string) string {
	if lang == "" {
		lang = defaultLang
	}
	name, ok := languages[lang]
	if !ok {
		name = lang
	}
	return fmt.Sprintf(`You are an experienced tarot reader writing an interpretation for a client.

Rules:
- Read each card in the light of its position in the spread, then tie them together.
- Stay balanced and reflective. Offer possibilities, not certainties.
- Never give medical, legal or financial advice.
- Write the whole answer in %s.

Answer with ONLY a JSON object, no markdown, in this shape:
%s`, name, outputSchema)
}

func userPrompt(in ports.InterpretInput) string {
	var b strings.Builder
	if in.Deck != "" {
		fmt.Fprintf(&b, "Deck: %s\n", in.Deck)
	}
	fmt.Fprintf(&b, "Spread: %s\n", in.Spread)
	if in.Question != "" {
		fmt.Fprintf(&b, "Question: %q\n", in.Question)
	}

	b.WriteString("\nCards:\n")
	for _, card := range in.Cards {
		position := card.PositionFor
		if position == "" {
			position = domain.GenericPositionLabel(card.Position)
		}
		fmt.Fprintf(&b, "%d. %s: %s (%s)\n", card.Position, position, card.Name, card.Orientation)
		if len(card.Keywords) > 0 {
			fmt.Fprintf(&b, "   Keywords: %s\n", strings.Join(card.Keywords, ", "))
		}
		if card.Meaning != "" {
			fmt.Fprintf(&b, "   Meaning: %s\n", card.Meaning)
		}
	}
	return b.String()
}

func repairPrompt(previous string) string {
	return fmt.Sprintf("Your previous answer was not the JSON object requested:\n%s\n\nReturn ONLY the JSON object:\n%s", previous, outputSchema)
}
