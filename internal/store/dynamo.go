package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"smart-bin-backend/internal/model"
)

const (
	dynamoBatchLimit = 25 // BatchWriteItem hard limit
	maxBatchRetries  = 3
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoTables names the three tables. The status and commands tables are keyed
// by device_id; the history table by device_id and ts (epoch milliseconds).
type DynamoTables struct {
	Status   string
	History  string
	Commands string
}

type DynamoStore struct {
	Client DynamoAPI
	Tables DynamoTables
}

func NewDynamoStore(client DynamoAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{Client: client, Tables: tables}
}

// historyItem adds a millisecond sort key so readings of the same second do
// not overwrite each other.
type historyItem struct {
	model.Reading
	TS int64 `dynamodbav:"ts"`
}

func deviceKey(deviceID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"device_id": &types.AttributeValueMemberS{Value: deviceID},
	}
}

func (s *DynamoStore) GetStatus(ctx context.Context, deviceID string) (model.Status, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Status),
		Key:            deviceKey(deviceID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.Status{}, fmt.Errorf("failed to get status for %s: %w", deviceID, err)
	}
	if len(out.Item) == 0 {
		return model.Status{}, ErrNotFound
	}

	var status model.Status
	if err := attributevalue.UnmarshalMap(out.Item, &status); err != nil {
		return model.Status{}, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return status, nil
}

func (s *DynamoStore) SaveStatus(ctx context.Context, status model.Status, expectedVersion int64) error {
	status.Version = expectedVersion + 1
	item, err := attributevalue.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Status),
		Item:      item,
	}
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(device_id)")
	} else {
		input.ConditionExpression = aws.String("#version = :expected")
		input.ExpressionAttributeNames = map[string]string{"#version": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to store status in dynamodb: %w", err)
	}
	return nil
}

func (s *DynamoStore) PutStatus(ctx context.Context, status model.Status) error {
	current, err := s.GetStatus(ctx, status.DeviceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	status.Version = current.Version + 1

	item, err := attributevalue.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Status),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store status in dynamodb: %w", err)
	}
	return nil
}

func (s *DynamoStore) ListStatuses(ctx context.Context) ([]model.Status, error) {
	var statuses []model.Status
	paginator := dynamodb.NewScanPaginator(s.Client, &dynamodb.ScanInput{
		TableName: aws.String(s.Tables.Status),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statuses: %w", err)
		}
		var batch []model.Status
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal statuses: %w", err)
		}
		statuses = append(statuses, batch...)
	}
	return statuses, nil
}

// AppendReadings writes readings in chunks of 25 and retries unprocessed items.
func (s *DynamoStore) AppendReadings(ctx context.Context, readings ...model.Reading) error {
	for i := 0; i < len(readings); i += dynamoBatchLimit {
		end := min(i+dynamoBatchLimit, len(readings))

		var requests []types.WriteRequest
		for _, r := range readings[i:end] {
			item, err := attributevalue.MarshalMap(historyItem{Reading: r, TS: r.Timestamp.UnixMilli()})
			if err != nil {
				return fmt.Errorf("failed to marshal reading: %w", err)
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := s.writeBatchWithRetry(ctx, requests); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoStore) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	pending := requests

	for attempt := 0; attempt <= maxBatchRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := s.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.Tables.History: pending,
			},
		})
		if err != nil {
			return fmt.Errorf("batch write attempt %d failed: %w", attempt+1, err)
		}

		pending = out.UnprocessedItems[s.Tables.History]
		if len(pending) == 0 {
			return nil
		}
	}

	return fmt.Errorf("batch write: %d items still unprocessed after %d retries", len(pending), maxBatchRetries)
}

func (s *DynamoStore) RecentReadings(ctx context.Context, deviceID string, limit int) ([]model.Reading, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	out, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.History),
		KeyConditionExpression: aws.String("device_id = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: deviceID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", deviceID, err)
	}

	var items []historyItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	readings := make([]model.Reading, len(items))
	for i, it := range items {
		readings[len(items)-1-i] = it.Reading
	}
	return readings, nil
}

func (s *DynamoStore) ReadingsSince(ctx context.Context, since time.Time) ([]model.Reading, error) {
	var readings []model.Reading
	paginator := dynamodb.NewScanPaginator(s.Client, &dynamodb.ScanInput{
		TableName:        aws.String(s.Tables.History),
		FilterExpression: aws.String("ts >= :since"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":since": &types.AttributeValueMemberN{Value: strconv.FormatInt(since.UnixMilli(), 10)},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		var items []historyItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
		for _, it := range items {
			readings = append(readings, it.Reading)
		}
	}

	sortByTimestamp(readings)
	return readings, nil
}

func (s *DynamoStore) PutCommand(ctx context.Context, cmd model.Command) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Commands),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store command in dynamodb: %w", err)
	}
	return nil
}

// TakeCommand deletes the item and returns its old attributes, so only one of
// two racing callers sees the command.
func (s *DynamoStore) TakeCommand(ctx context.Context, deviceID string) (model.Command, error) {
	out, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.Tables.Commands),
		Key:          deviceKey(deviceID),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return model.Command{}, fmt.Errorf("failed to take command for %s: %w", deviceID, err)
	}
	if len(out.Attributes) == 0 {
		return model.Command{}, ErrNotFound
	}

	var cmd model.Command
	if err := attributevalue.UnmarshalMap(out.Attributes, &cmd); err != nil {
		return model.Command{}, fmt.Errorf("failed to unmarshal command: %w", err)
	}
	return cmd, nil
}
