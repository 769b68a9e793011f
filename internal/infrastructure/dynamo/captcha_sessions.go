package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/edge-rewards/internal/domain"
	"github.com/edge-rewards/internal/observability/metrics"
)

// CaptchaSessionRepo stores one-time captcha session tokens. The table's TTL
// on expires_at garbage-collects sessions that are never consumed.
type CaptchaSessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCaptchaSessionRepo(client *dynamodb.Client, tableName string) *CaptchaSessionRepo {
	return &CaptchaSessionRepo{client: client, tableName: tableName}
}

func (r *CaptchaSessionRepo) Put(ctx context.Context, s *domain.CaptchaSession) error {
	defer metrics.ObserveStore("captcha_sessions.put")()
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal captcha session: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#tok)"),
		ExpressionAttributeNames: map[string]string{
			"#tok": fieldSessionToken,
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("captcha session exists: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("put captcha session: %w", err)
	}
	return nil
}

// Consume deletes the session and reports whether it existed and was still
// valid at now. The single DeleteItem makes consumption linearizable per
// token: only one caller can receive the old item.
func (r *CaptchaSessionRepo) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	defer metrics.ObserveStore("captcha_sessions.consume")()
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          strKey(fieldSessionToken, token),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("delete captcha session: %w", err)
	}
	if len(out.Attributes) == 0 {
		return false, nil
	}
	var s domain.CaptchaSession
	if err := attributevalue.UnmarshalMap(out.Attributes, &s); err != nil {
		return false, fmt.Errorf("unmarshal captcha session: %w", err)
	}
	return !s.Expired(now), nil
}
