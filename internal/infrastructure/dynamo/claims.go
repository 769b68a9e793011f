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

// ClaimRepo stores verification claims. Every write is conditioned on the
// version read by the caller; a lost race surfaces as domain.ErrConcurrentUpdate.
//
// A guard item keyed "<campaign_id>#<normalized_email>" in the guards table
// is written and removed in the same transaction as its claim, so at most one
// claim exists per (campaign, normalized email).
type ClaimRepo struct {
	client     claimsAPI
	tableName  string
	guardTable string
}

func NewClaimRepo(client *dynamodb.Client, tableName, guardTable string) *ClaimRepo {
	return &ClaimRepo{client: client, tableName: tableName, guardTable: guardTable}
}

// claimsAPI is the subset of *dynamodb.Client the repo uses.
type claimsAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type claimGuard struct {
	GuardKey string `dynamodbav:"guard_key"`
	ClaimID  string `dynamodbav:"claim_id"`
}

// Create inserts c at version 1 together with its uniqueness guard.
func (r *ClaimRepo) Create(ctx context.Context, c *domain.Claim) error {
	defer metrics.ObserveStore("claims.create")()
	c.Version = 1
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}
	guard, err := attributevalue.MarshalMap(claimGuard{GuardKey: c.GuardKey(), ClaimID: c.ClaimID})
	if err != nil {
		return fmt.Errorf("marshal claim guard: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(claim_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.guardTable),
				Item:                guard,
				ConditionExpression: aws.String("attribute_not_exists(guard_key)"),
			}},
		},
	})
	if canceledBy(err, 0) || canceledBy(err, 1) {
		c.Version = 0
		return fmt.Errorf("claim already exists for campaign and email: %w", domain.ErrConflict)
	}
	if err != nil {
		c.Version = 0
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

func (r *ClaimRepo) Get(ctx context.Context, claimID string) (*domain.Claim, error) {
	defer metrics.ObserveStore("claims.get")()
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldClaimID, claimID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("claim not found: %w", domain.ErrNotFound)
	}
	var c domain.Claim
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal claim: %w", err)
	}
	return &c, nil
}

// GetByToken looks up a claim by its confirmation token via GSI. GSI reads
// are eventually consistent, so the hit is re-read from the table to get the
// current version.
func (r *ClaimRepo) GetByToken(ctx context.Context, token string) (*domain.Claim, error) {
	defer metrics.ObserveStore("claims.get_by_token")()
	items, err := r.query(ctx, indexToken, "#k = :k", map[string]string{"#k": fieldToken},
		map[string]types.AttributeValue{":k": strVal(token)}, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("claim not found: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, items[0].ClaimID)
}

// FindByCampaignEmail returns the claim for (campaign, normalized email),
// re-read consistently like GetByToken.
func (r *ClaimRepo) FindByCampaignEmail(ctx context.Context, campaignID, normalizedEmail string) (*domain.Claim, error) {
	defer metrics.ObserveStore("claims.find_by_campaign_email")()
	items, err := r.query(ctx, indexCampaignEmail, "#c = :c AND #e = :e",
		map[string]string{"#c": fieldCampaignID, "#e": fieldNormalizedEmail},
		map[string]types.AttributeValue{":c": strVal(campaignID), ":e": strVal(normalizedEmail)}, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("claim not found: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, items[0].ClaimID)
}

// HasPaidEmail reports whether any claim for the normalized email reached
// paymentSent, across all campaigns.
func (r *ClaimRepo) HasPaidEmail(ctx context.Context, normalizedEmail string) (bool, error) {
	defer metrics.ObserveStore("claims.has_paid_email")()
	return r.hasPaid(ctx, indexEmailStatus, fieldNormalizedEmail, normalizedEmail)
}

// HasPaidWallet reports whether any claim for the wallet reached paymentSent,
// across all campaigns.
func (r *ClaimRepo) HasPaidWallet(ctx context.Context, walletAddress string) (bool, error) {
	defer metrics.ObserveStore("claims.has_paid_wallet")()
	return r.hasPaid(ctx, indexWalletStatus, fieldWalletAddress, walletAddress)
}

func (r *ClaimRepo) hasPaid(ctx context.Context, index, attr, value string) (bool, error) {
	items, err := r.query(ctx, index, "#k = :k AND #s = :s",
		map[string]string{"#k": attr, "#s": fieldStatus},
		map[string]types.AttributeValue{
			":k": strVal(value),
			":s": strVal(string(domain.StatusPaymentSent)),
		}, 1)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// ListByStatus returns up to limit claims in status, oldest first.
func (r *ClaimRepo) ListByStatus(ctx context.Context, status domain.ClaimStatus, limit int) ([]domain.Claim, error) {
	defer metrics.ObserveStore("claims.list_by_status")()
	return r.query(ctx, indexStatusCreated, "#s = :s",
		map[string]string{"#s": fieldStatus},
		map[string]types.AttributeValue{":s": strVal(string(status))}, limit)
}

// Update persists the mutable fields of c if its stored version still equals
// c.Version, then advances c.Version.
func (r *ClaimRepo) Update(ctx context.Context, c *domain.Claim) error {
	defer metrics.ObserveStore("claims.update")()
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:       c.Status,
		fieldCryptoAmount: c.CryptoAmount,
		fieldExchangeRate: c.ExchangeRate,
		fieldPayoutID:     c.PayoutID,
		fieldPayoutStatus: c.PayoutStatus,
	})
	if err != nil {
		return err
	}
	next := c.Version + 1
	ue.Expr += ", #ver = :next"
	ue.Names["#ver"] = fieldVersion
	ue.Values[":next"] = numVal(next)
	ue.Values[":expected"] = numVal(c.Version)

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldClaimID, c.ClaimID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ver = :expected"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("update claim %s: %w", c.ClaimID, domain.ErrConcurrentUpdate)
	}
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	c.Version = next
	return nil
}

// Delete removes c and its guard if the stored version still equals c.Version.
func (r *ClaimRepo) Delete(ctx context.Context, c *domain.Claim) error {
	defer metrics.ObserveStore("claims.delete")()
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(r.tableName),
				Key:                      strKey(fieldClaimID, c.ClaimID),
				ConditionExpression:      aws.String("#ver = :expected"),
				ExpressionAttributeNames: map[string]string{"#ver": fieldVersion},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":expected": numVal(c.Version),
				},
			}},
			{Delete: &types.Delete{
				TableName:           aws.String(r.guardTable),
				Key:                 strKey(fieldGuardKey, c.GuardKey()),
				ConditionExpression: aws.String("attribute_not_exists(guard_key) OR claim_id = :id"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":id": strVal(c.ClaimID),
				},
			}},
		},
	})
	if canceledBy(err, 0) || canceledBy(err, 1) {
		return fmt.Errorf("delete claim %s: %w", c.ClaimID, domain.ErrConcurrentUpdate)
	}
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return nil
}

func (r *ClaimRepo) query(ctx context.Context, index, keyCond string, names map[string]string, values map[string]types.AttributeValue, limit int) ([]domain.Claim, error) {
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query claims on %s: %w", index, err)
	}
	var claims []domain.Claim
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}
	return claims, nil
}
