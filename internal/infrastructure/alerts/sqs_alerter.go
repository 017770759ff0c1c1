package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// SQSOptions configures the operator alert queue
type SQSOptions struct {
	QueueURL  string
	Region    string
	AccessKey string
	Secret    string
}

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSAlerter publishes reconciliation gaps to an operator queue
type SQSAlerter struct {
	client   sqsSender
	queueURL string
	logger   zerolog.Logger
}

var _ ports.GapAlerter = (*SQSAlerter)(nil)

// NewSQSAlerter loads AWS configuration and creates the alerter. Static
// credentials are used when given, the default chain otherwise.
func NewSQSAlerter(ctx context.Context, opts SQSOptions, logger zerolog.Logger) (*SQSAlerter, error) {
	loadOpts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.Secret != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.Secret, ""),
		))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &SQSAlerter{
		client:   sqs.NewFromConfig(cfg),
		queueURL: opts.QueueURL,
		logger:   logger,
	}, nil
}

type gapMessage struct {
	Event       string    `json:"event"`
	GapID       string    `json:"gap_id,omitempty"`
	ExternalID  string    `json:"external_id"`
	Reason      string    `json:"reason"`
	Detail      string    `json:"detail"`
	ShopDomain  string    `json:"shop_domain,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Occurrences int       `json:"occurrences"`
	DetectedAt  time.Time `json:"detected_at"`
}

func newGapMessage(gap *domain.ReconciliationGap) gapMessage {
	msg := gapMessage{
		Event:       "reconciliation_gap",
		GapID:       gap.ID,
		ExternalID:  gap.ExternalID,
		Reason:      string(gap.Reason),
		Detail:      gap.Detail,
		ShopDomain:  gap.ShopDomain,
		Kind:        string(gap.Kind),
		Occurrences: gap.Occurrences,
		DetectedAt:  gap.DetectedAt,
	}
	if !gap.Amount.IsZero() {
		msg.Amount = gap.Amount.String()
	}
	return msg
}

// Alert sends one message per gap occurrence
func (a *SQSAlerter) Alert(ctx context.Context, gap *domain.ReconciliationGap) error {
	body, err := json.Marshal(newGapMessage(gap))
	if err != nil {
		return fmt.Errorf("failed to encode gap alert: %w", err)
	}

	out, err := a.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(a.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(gap.Reason)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send gap alert: %w", err)
	}

	a.logger.Info().
		Str("externalId", gap.ExternalID).
		Str("reason", string(gap.Reason)).
		Str("messageId", aws.ToString(out.MessageId)).
		Msg("Reconciliation gap alert sent")
	return nil
}

// LogAlerter writes gap alerts to the log only. Used when no queue is configured.
type LogAlerter struct {
	logger zerolog.Logger
}

var _ ports.GapAlerter = (*LogAlerter)(nil)

func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(_ context.Context, gap *domain.ReconciliationGap) error {
	a.logger.Error().
		Str("event", "reconciliation_gap").
		Str("externalId", gap.ExternalID).
		Str("reason", string(gap.Reason)).
		Str("shop", gap.ShopDomain).
		Str("detail", gap.Detail).
		Msg("Reconciliation gap detected")
	return nil
}
