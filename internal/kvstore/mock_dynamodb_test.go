package kvstore

import (
	"context"
	"errors"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a very small in-memory mock for GetItem/PutItem/DeleteItem used
// in unit tests. It honors the two condition expressions the store issues.
type simpleMock struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue

	putCalls    int
	getCalls    int
	deleteCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func itemKey(item map[string]types.AttributeValue) (string, error) {
	attr, ok := item["blob_key"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing blob_key")
	}
	return attr.Value, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	k, err := itemKey(params.Item)
	if err != nil {
		return nil, err
	}
	existing, exists := m.table[k]

	if params.ConditionExpression != nil {
		switch *params.ConditionExpression {
		case "attribute_not_exists(blob_key)":
			if exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case "version = :expected":
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
			want := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value
			got := existing["version"].(*types.AttributeValueMemberN).Value
			if want != got {
				return nil, &types.ConditionalCheckFailedException{}
			}
		default:
			return nil, errors.New("unsupported condition: " + *params.ConditionExpression)
		}
	}

	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	delete(m.table, k)
	return &dyn.DeleteItemOutput{}, nil
}

// bumpVersion rewrites the stored version for a key, simulating a concurrent
// writer sneaking in between a test's Get and Put.
func (m *simpleMock) bumpVersion(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table[key]
	if !ok {
		return
	}
	v, _ := strconv.ParseInt(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
	item["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(v+1, 10)}
	m.table[key] = item
}
