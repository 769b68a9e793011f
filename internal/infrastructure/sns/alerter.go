package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/edge-rewards/internal/domain"
)

// Publisher is the subset of the SNS client used by Alerter.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ParkedClaim describes a claim that stopped at verified and needs an operator.
type ParkedClaim struct {
	ClaimID      string `json:"claimId"`
	CampaignID   string `json:"campaignId"`
	Ticker       string `json:"ticker"`
	USDAmount    string `json:"usdAmount"`
	PayoutStatus string `json:"payoutStatus"`
	Reason       string `json:"reason"`
}

// Alerter publishes operator alerts to an SNS topic.
type Alerter struct {
	client   Publisher
	topicARN string
}

func NewClient(awsCfg aws.Config, endpointURL string) *sns.Client {
	clientOpts := []func(*sns.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...)
}

func NewAlerter(client Publisher, topicARN string) *Alerter {
	return &Alerter{client: client, topicARN: topicARN}
}

// ClaimParked publishes a ParkedClaim built from c.
func (a *Alerter) ClaimParked(ctx context.Context, c *domain.Claim, reason string) error {
	p := ParkedClaim{
		ClaimID:    c.ClaimID,
		CampaignID: c.CampaignID,
		Ticker:     c.Ticker,
		USDAmount:  c.USDAmount,
		Reason:     reason,
	}
	if c.PayoutStatus != nil {
		p.PayoutStatus = *c.PayoutStatus
	}
	msg, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String("Reward claim needs attention"),
		Message:  aws.String(string(msg)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
