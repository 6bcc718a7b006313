package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/opsgridstack/opsgrid-orchestrator/internal/models"
	"github.com/opsgridstack/opsgrid-orchestrator/internal/utils"
)

const systemPrompt = `You are a senior Site Reliability Engineer performing root cause analysis on infrastructure events.
Given an event, respond with ONLY a JSON object, no surrounding prose, with these fields:
  root_cause (string): the most likely root cause, specific to the affected resource
  confidence (number): 0.0 to 1.0, how confident you are in this diagnosis
  impact (string): current and projected business/technical impact
  recommended_action (string): one of "auto_fix", "escalate", "monitor"
  fix_description (string): the concrete remediation to perform
  reasoning_steps (array of strings): the evidence chain supporting the diagnosis
  related_services (array of strings): AWS services involved
Recommend "auto_fix" only for well-understood, reversible remediations.`

// converseAPI is the slice of the Bedrock runtime client used here.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockReasoner analyzes signals through a generative model via the
// Bedrock Converse API.
type BedrockReasoner struct {
	client  converseAPI
	modelID string
	logger  *slog.Logger
}

// NewBedrockReasoner constructs the live reasoner.
func NewBedrockReasoner(cfg aws.Config, modelID string, logger *slog.Logger) *BedrockReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockReasoner{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
		logger:  logger,
	}
}

// Analyze sends the signal to the model and parses the structured diagnosis
// out of the completion. Transport failures are returned as errors; malformed
// completions degrade to a zero-confidence escalation.
func (r *BedrockReasoner) Analyze(ctx context.Context, sig models.Signal) (models.Analysis, error) {
	start := time.Now()
	out, err := r.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(r.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: userPrompt(sig)},
			},
		}},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(1024),
			Temperature: aws.Float32(0.2),
		},
	})
	if err != nil {
		return models.Analysis{}, utils.NewAppError("reason.bedrock", "converse call failed", err)
	}

	text := extractText(out)
	r.logger.Debug("model completion received",
		slog.String("event_id", sig.ID),
		slog.String("model_id", r.modelID),
		slog.Duration("latency", time.Since(start)),
		slog.Int("completion_bytes", len(text)))

	return parseAnalysis(text, sig.ID), nil
}

func extractText(out *bedrockruntime.ConverseOutput) string {
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return b.String()
}

func userPrompt(sig models.Signal) string {
	payload, err := json.Marshal(sig)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", sig))
	}
	return fmt.Sprintf("Analyze this infrastructure event and diagnose the root cause:\n%s", payload)
}
