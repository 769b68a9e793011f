package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/observability/metrics"
)

// CampaignRepo provides typed DynamoDB operations for the campaigns table.
type CampaignRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCampaignRepo(client *dynamodb.Client, tableName string) *CampaignRepo {
	return &CampaignRepo{client: client, tableName: tableName}
}

func (r *CampaignRepo) Get(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	defer metrics.ObserveStore("campaigns.get")()
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldCampaignID, campaignID),
	})
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("campaign not found: %w", domain.ErrNotFound)
	}
	var c domain.Campaign
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal campaign: %w", err)
	}
	return &c, nil
}

// FindActiveByTicker returns the first active campaign for a lowercase ticker.
func (r *CampaignRepo) FindActiveByTicker(ctx context.Context, ticker string) (*domain.Campaign, error) {
	defer metrics.ObserveStore("campaigns.find_active_by_ticker")()
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexCampaignTicker),
		KeyConditionExpression: aws.String("#t = :t"),
		FilterExpression:       aws.String("#a = :a"),
		ExpressionAttributeNames: map[string]string{
			"#t": fieldTicker,
			"#a": fieldActive,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": strVal(ticker),
			":a": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query campaigns by ticker: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no active campaign for %q: %w", ticker, domain.ErrNotFound)
	}
	var c domain.Campaign
	if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
		return nil, fmt.Errorf("unmarshal campaign: %w", err)
	}
	return &c, nil
}

// SetActive is the only mutation campaigns allow.
func (r *CampaignRepo) SetActive(ctx context.Context, campaignID string, active bool) error {
	defer metrics.ObserveStore("campaigns.set_active")()
	ue, err := buildUpdateExpr(map[string]interface{}{fieldActive: active})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldCampaignID, campaignID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(campaign_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("campaign not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return nil
}
