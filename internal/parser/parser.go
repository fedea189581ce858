// Package parser turns extracted post content into a structured Recipe using
// a forced tool call against the Anthropic Messages API.
package parser

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/config"
	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/resilience"
	"github.com/SquizAI/recipies01/pkg/anthropic"
)

// ErrNoRecipe is returned when the response carries neither a tool call nor
// a JSON text fallback.
var ErrNoRecipe = eris.New("parser: no recipe in response")

// serverOwned lists fields the parser sets itself; model output for them is dropped.
var serverOwned = []string{"source_url", "video_transcription", "thumbnail_url", "created_at"}

// Parser extracts recipes with an LLM.
type Parser struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	tool      anthropic.Tool
	now       func() time.Time
}

// New returns a Parser using cfg's model and token limit.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Parser {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &Parser{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		tool:      recipeTool(),
		now:       time.Now,
	}
}

// Parse converts content into a validated Recipe. API errors with a
// retryable status are wrapped with resilience.Transient; Parse itself does
// not retry.
func (p *Parser) Parse(ctx context.Context, content model.AugmentedContent) (*model.Recipe, error) {
	req := anthropic.MessageRequest{
		Model:      p.model,
		MaxTokens:  p.maxTokens,
		System:     anthropic.BuildCachedSystemBlocks(systemPrompt, ""),
		Messages:   []anthropic.Message{{Role: "user", Content: buildUserContent(content)}},
		Tools:      []anthropic.Tool{p.tool},
		ToolChoice: toolName,
	}

	resp, err := p.client.CreateMessage(ctx, req)
	if err != nil {
		if status := anthropic.StatusCode(err); resilience.TransientStatus(status) {
			return nil, resilience.Transient(err, status)
		}
		return nil, eris.Wrap(err, "parser: create message")
	}
	resp.Usage.LogCost(p.model, "parse")

	raw, err := recipeJSON(resp)
	if err != nil {
		return nil, err
	}

	recipe, err := decodeRecipe(raw)
	if err != nil {
		return nil, err
	}

	recipe.NormalizeSteps()
	recipe.FillEmptySlices()
	if err := recipe.Validate(); err != nil {
		return nil, eris.Wrap(err, "parser: validate")
	}
	if len(recipe.ShoppingList) == 0 {
		recipe.ShoppingList = recipe.DeriveShoppingList()
		recipe.FillEmptySlices()
	}

	recipe.SourceURL = content.SourceURL
	if content.HasTranscription() {
		t := *content.Transcription
		recipe.VideoTranscription = &t
	}
	if content.ImageURL != nil && *content.ImageURL != "" {
		img := *content.ImageURL
		recipe.ThumbnailURL = &img
	}
	recipe.CreatedAt = p.now().UTC()

	zap.L().Debug("parser: recipe parsed",
		zap.String("url", content.SourceURL),
		zap.String("title", recipe.Title),
		zap.Int("ingredients", len(recipe.Ingredients)),
		zap.Int("steps", len(recipe.Steps)),
	)
	return recipe, nil
}

// recipeJSON pulls the tool input from resp, falling back to a JSON object
// in the text blocks.
func recipeJSON(resp *anthropic.MessageResponse) ([]byte, error) {
	if in, ok := resp.ToolInput(toolName); ok {
		return in, nil
	}
	text := cleanJSON(resp.Text())
	if strings.HasPrefix(text, "{") {
		return []byte(text), nil
	}
	return nil, eris.Wrapf(ErrNoRecipe, "stop_reason=%s", resp.StopReason)
}

func decodeRecipe(raw []byte) (*model.Recipe, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, eris.Wrap(err, "parser: decode recipe")
	}
	for _, k := range serverOwned {
		delete(fields, k)
	}
	clean, err := json.Marshal(fields)
	if err != nil {
		return nil, eris.Wrap(err, "parser: re-encode recipe")
	}

	var r model.Recipe
	if err := json.Unmarshal(clean, &r); err != nil {
		return nil, eris.Wrap(err, "parser: decode recipe")
	}
	return &r, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
