package s3infra

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used by ReceiptArchive.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient creates an S3 client. When endpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, endpointURL string) *s3.Client {
	clientOpts := []func(*s3.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...)
}

// ReceiptArchive keeps the raw payout provider response for each paid claim.
type ReceiptArchive struct {
	client ObjectPutter
	bucket string
}

func NewReceiptArchive(client ObjectPutter, bucket string) *ReceiptArchive {
	return &ReceiptArchive{client: client, bucket: bucket}
}

// receiptKey is "payouts/<yyyy>/<mm>/<dd>/<claim id>.json" with the claim id
// path-escaped.
func receiptKey(claimID string, at time.Time) string {
	return fmt.Sprintf("payouts/%s/%s.json", at.UTC().Format("2006/01/02"), url.PathEscape(claimID))
}

// Store uploads a payout receipt and returns its s3:// location.
func (a *ReceiptArchive) Store(ctx context.Context, claimID string, at time.Time, raw []byte) (string, error) {
	key := receiptKey(claimID, at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
