package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sebvill/go-delivery-claims/internal/aws"
)

// ErrVersionConflict indicates a conditional write lost against a concurrent
// writer; the caller should reload and retry.
var ErrVersionConflict = errors.New("blob version conflict")

// Store is a small versioned key-value blob store on top of a single DynamoDB
// table. Each key holds one opaque string payload plus a monotonically
// increasing version used as the compare-and-swap token on writes.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// blobItem is the shape persisted per key.
type blobItem struct {
	BlobKey   string `dynamodbav:"blob_key"` // PK
	Payload   string `dynamodbav:"payload"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// NewStore returns a Store bound to tableName.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches the payload and version stored under key. A missing key returns
// ("", 0, nil): version 0 is the expected version for a first write.
func (s *Store) Get(ctx context.Context, key string) (string, int64, error) {
	input := &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"blob_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: awsBool(true),
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return "", 0, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return "", 0, nil
	}
	var item blobItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", 0, fmt.Errorf("unmarshal item: %w", err)
	}
	return item.Payload, item.Version, nil
}

// Put writes payload under key, guarded by expectedVersion: 0 requires the key
// to be absent, any other value must match the stored version. On success the
// new version (expectedVersion+1) is returned; a lost race returns
// ErrVersionConflict.
func (s *Store) Put(ctx context.Context, key, payload string, expectedVersion int64) (int64, error) {
	item, err := attributevalue.MarshalMap(blobItem{
		BlobKey:   key,
		Payload:   payload,
		Version:   expectedVersion + 1,
		UpdatedAt: s.nowFunc().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, fmt.Errorf("marshal item: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}
	if expectedVersion == 0 {
		input.ConditionExpression = awsString("attribute_not_exists(blob_key)")
	} else {
		input.ConditionExpression = awsString("version = :expected")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
			return 0, ErrVersionConflict
		}
		return 0, fmt.Errorf("put item: %w", err)
	}
	return expectedVersion + 1, nil
}

// Delete removes key entirely. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	input := &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"blob_key": &types.AttributeValueMemberS{Value: key},
		},
	}
	if _, err := s.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Helpers
func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
