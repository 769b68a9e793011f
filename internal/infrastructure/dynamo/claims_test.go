package dynamo

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edge-rewards/internal/domain"
)

type mockClaimsAPI struct{ mock.Mock }

func (m *mockClaimsAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockClaimsAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockClaimsAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockClaimsAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func claimItem(t *testing.T, c domain.Claim) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(c)
	require.NoError(t, err)
	return item
}

// expectIndexHitThenTableRead stubs a GSI query that returns a stale copy
// (version 1) and a consistent table read that returns version 2.
func expectIndexHitThenTableRead(t *testing.T, m *mockClaimsAPI, index string) {
	stale := domain.Claim{ClaimID: "btc-2026:1:abc", CampaignID: "btc-2026", Status: domain.StatusCreated, Version: 1}
	fresh := stale
	fresh.Status = domain.StatusEmailSent
	fresh.Version = 2

	m.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == index
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{claimItem(t, stale)}}, nil)
	m.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{Item: claimItem(t, fresh)}, nil)
}

func TestGetByToken_RereadsFromTable(t *testing.T) {
	m := new(mockClaimsAPI)
	expectIndexHitThenTableRead(t, m, indexToken)
	repo := &ClaimRepo{client: m, tableName: "claims", guardTable: "guards"}

	c, err := repo.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Version)
	assert.Equal(t, domain.StatusEmailSent, c.Status)
	m.AssertExpectations(t)
}

func TestFindByCampaignEmail_RereadsFromTable(t *testing.T) {
	m := new(mockClaimsAPI)
	expectIndexHitThenTableRead(t, m, indexCampaignEmail)
	repo := &ClaimRepo{client: m, tableName: "claims", guardTable: "guards"}

	c, err := repo.FindByCampaignEmail(context.Background(), "btc-2026", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Version)
	m.AssertExpectations(t)
}

func TestGetByToken_DeletedBetweenIndexAndTable(t *testing.T) {
	m := new(mockClaimsAPI)
	m.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{claimItem(t, domain.Claim{ClaimID: "gone", Version: 1})},
	}, nil)
	m.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)
	repo := &ClaimRepo{client: m, tableName: "claims", guardTable: "guards"}

	_, err := repo.GetByToken(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByToken_NoIndexHit(t *testing.T) {
	m := new(mockClaimsAPI)
	m.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)
	repo := &ClaimRepo{client: m, tableName: "claims", guardTable: "guards"}

	_, err := repo.GetByToken(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	m.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}
