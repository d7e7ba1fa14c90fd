// Package llm provides the inference boundary for report generation.
// The production implementation talks to AWS Bedrock via the Converse API.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/config"
	"github.com/aristath/lookout/internal/domain"
)

// ChatModel produces a completion for a prompt. Implementations must
// classify throttling failures with domain.ErrRateLimited so the batch
// scheduler can back off.
type ChatModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// BedrockModel calls a Bedrock-hosted model through the Converse API.
type BedrockModel struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int32
	log       zerolog.Logger
}

// NewBedrockModel creates a Bedrock chat model using the default AWS
// credential chain.
func NewBedrockModel(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (*BedrockModel, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &BedrockModel{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		modelID:   cfg.ModelID,
		maxTokens: int32(cfg.MaxTokens),
		log:       log.With().Str("client", "bedrock").Str("model", cfg.ModelID).Logger(),
	}, nil
}

// Complete sends one user prompt with an optional system instruction and
// returns the model's text response.
func (m *BedrockModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(m.modelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(m.maxTokens),
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}

	m.log.Debug().Int("prompt_len", len(prompt)).Msg("invoking model")

	out, err := m.client.Converse(ctx, input)
	if err != nil {
		return "", classifyInvokeError(err)
	}

	message, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(message.Value.Content) == 0 {
		return "", fmt.Errorf("model returned no content: %w", domain.ErrDataUnavailable)
	}
	text, ok := message.Value.Content[0].(*types.ContentBlockMemberText)
	if !ok {
		return "", fmt.Errorf("model returned non-text content: %w", domain.ErrDataUnavailable)
	}

	return text.Value, nil
}

// classifyInvokeError maps Bedrock failures onto the domain taxonomy.
// Throttling must surface as a rate-limit error: it is the signal that
// shrinks the batch worker pool.
func classifyInvokeError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return fmt.Errorf("bedrock throttled: %w", domain.ErrRateLimited)
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("bedrock model not found: %w: %v", domain.ErrDataUnavailable, err)
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return fmt.Errorf("bedrock unavailable: %w: %v", domain.ErrTransientNetwork, err)
	}
	return fmt.Errorf("bedrock invoke failed: %w", err)
}
