package dynamo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edge-rewards/internal/config"
	"github.com/edge-rewards/internal/domain"
)

const tableWaitTimeout = 2 * time.Minute

// TemplateCampaign is seeded on startup if missing and never overwritten.
var TemplateCampaign = domain.Campaign{
	CampaignID:          "btc-launch-2026",
	CurrencyPluginID:    "bitcoin",
	Ticker:              "btc",
	USDAmount:           "5.00",
	Active:              false,
	Description:         "Sample BTC launch promotion (disabled)",
	CurrencyDisplayName: "Bitcoin",
}

// Bootstrap creates all DynamoDB tables and GSIs if they don't already exist.
// Safe to call on every startup: existing tables are skipped.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables) {
	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Campaigns),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldCampaignID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldTicker), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldCampaignID), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexCampaignTicker, fieldTicker, ""),
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.Claims),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldClaimID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldCampaignID), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldNormalizedEmail), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldWalletAddress), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldStatus), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldToken), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(fieldCreatedAt), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldClaimID), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			gsi(indexEmailStatus, fieldNormalizedEmail, fieldStatus),
			gsi(indexWalletStatus, fieldWalletAddress, fieldStatus),
			gsi(indexToken, fieldToken, ""),
			gsi(indexCampaignEmail, fieldCampaignID, fieldNormalizedEmail),
			gsi(indexStatusCreated, fieldStatus, fieldCreatedAt),
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.ClaimGuards),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldGuardKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldGuardKey), KeyType: types.KeyTypeHash},
		},
	})

	createTable(ctx, client, &dynamodb.CreateTableInput{
		TableName:   aws.String(tables.CaptchaSessions),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldSessionToken), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldSessionToken), KeyType: types.KeyTypeHash},
		},
	})
	enableTTL(ctx, client, tables.CaptchaSessions, fieldExpiresAt)

	seedCampaign(ctx, client, tables.Campaigns, TemplateCampaign)
}

// gsi builds a GSI descriptor. If sortKey is empty, only a hash key is added.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if !errors.As(err, &riue) {
			slog.Warn("could not create table", "table", *input.TableName, "err", err)
		}
		return
	}
	slog.Info("created table", "table", *input.TableName)
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, tableWaitTimeout); err != nil {
		slog.Warn("table not active yet", "table", *input.TableName, "err", err)
	}
}

func enableTTL(ctx context.Context, client *dynamodb.Client, tableName, ttlAttr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		slog.Warn("could not enable TTL", "table", tableName, "err", err)
	}
}

// seedCampaign writes c only when no item with its id exists.
func seedCampaign(ctx context.Context, client *dynamodb.Client, tableName string, c domain.Campaign) {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		slog.Warn("could not marshal seed campaign", "campaign_id", c.CampaignID, "err", err)
		return
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(campaign_id)"),
	})
	switch {
	case err == nil:
		slog.Info("seeded campaign", "campaign_id", c.CampaignID)
	case !isConditionFailed(err):
		slog.Warn("could not seed campaign", "campaign_id", c.CampaignID, "err", err)
	}
}
