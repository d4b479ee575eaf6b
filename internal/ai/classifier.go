package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ContentGenerator produces model output for a prompt.
// *genai.GenerativeModel satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Options configures a ToxicityClassifier.
type Options struct {
	MaxConcurrent int64
	Retry         utils.RetryOptions
}

// OptionsFromConfig builds classifier options from the Gemini configuration.
func OptionsFromConfig(cfg *config.GeminiAI) Options {
	return Options{
		MaxConcurrent: max(cfg.MaxConcurrent, 1),
		Retry:         utils.GetAIRetryOptions(),
	}
}

// NewGeminiModel configures a generative model for toxicity scoring.
func NewGeminiModel(client *genai.Client, modelName string) *genai.GenerativeModel {
	model := client.GenerativeModel(modelName)
	model.SystemInstruction = genai.NewUserContent(genai.Text(ToxicitySystemPrompt))
	model.ResponseMIMEType = ApplicationJSON
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"toxicity": {
				Type:        genai.TypeNumber,
				Description: "Probability between 0.0 and 1.0 that the message is toxic",
			},
		},
		Required: []string{"toxicity"},
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	model.SetTemperature(0)
	model.SetTopP(0.1)
	model.SetTopK(1)
	model.SetMaxOutputTokens(64)

	return model
}

// ToxicityClassifier scores messages with a Gemini model.
type ToxicityClassifier struct {
	model   ContentGenerator
	breaker *gobreaker.CircuitBreaker
	sem     *semaphore.Weighted
	retry   utils.RetryOptions
	logger  *zap.Logger
}

// NewToxicityClassifier creates a classifier on top of the given model.
func NewToxicityClassifier(model ContentGenerator, opts Options, logger *zap.Logger) *ToxicityClassifier {
	logger = logger.Named("ai_toxicity")

	settings := gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		Interval:    0,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Answers the model gave on purpose say nothing about its health
			return err == nil ||
				errors.Is(err, utils.ErrContentBlocked) ||
				errors.Is(err, ErrScoreOutOfRange) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &ToxicityClassifier{
		model:   model,
		breaker: gobreaker.NewCircuitBreaker(settings),
		sem:     semaphore.NewWeighted(max(opts.MaxConcurrent, 1)),
		retry:   opts.Retry,
		logger:  logger,
	}
}

// Classify returns the probability in [0, 1] that text is toxic.
func (c *ToxicityClassifier) Classify(ctx context.Context, text string) (float64, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer c.sem.Release(1)

	request, err := sonic.Marshal(ToxicityRequest{Message: text})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	prompt := fmt.Sprintf(ToxicityAnalysisPrompt, request)

	var attempt int

	score, err := utils.WithRetry(ctx, func() (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, backoff.Permanent(err)
		}

		attempt++

		result, err := c.breaker.Execute(func() (any, error) {
			return c.generate(ctx, prompt)
		})
		if err != nil {
			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return 0, backoff.Permanent(fmt.Errorf("%w: %w", ErrClassifierUnavailable, err))
			case errors.Is(err, utils.ErrContentBlocked), errors.Is(err, ErrScoreOutOfRange):
				return 0, backoff.Permanent(err)
			default:
				c.logger.Warn("Failed to classify message",
					zap.Error(err),
					zap.Int("attempt", attempt))

				return 0, err
			}
		}

		return result.(float64), nil
	}, c.retry)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("Classified message",
		zap.Float64("score", score),
		zap.Int("attempts", attempt))

	return score, nil
}

// generate performs a single model call and parses its answer.
func (c *ToxicityClassifier) generate(ctx context.Context, prompt string) (float64, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return 0, fmt.Errorf("AI generation failed: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return 0, fmt.Errorf("%w: %s", utils.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return 0, fmt.Errorf("%w: no candidates", ErrModelResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return 0, fmt.Errorf("%w: response stopped by safety filter", utils.ErrContentBlocked)
	}

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return 0, fmt.Errorf("%w: empty content", ErrModelResponse)
	}

	responseText, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected response format", ErrModelResponse)
	}

	var result ToxicityResponse
	if err := sonic.Unmarshal([]byte(responseText), &result); err != nil {
		c.logger.Error("Failed to parse AI response",
			zap.String("response", string(responseText)),
			zap.Error(err))

		return 0, fmt.Errorf("failed to parse AI response: %w", err)
	}

	if math.IsNaN(result.Toxicity) || result.Toxicity < 0 || result.Toxicity > 1 {
		return 0, fmt.Errorf("%w: %v", ErrScoreOutOfRange, result.Toxicity)
	}

	return result.Toxicity, nil
}
