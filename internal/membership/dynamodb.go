package membership

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	id "campusreg/pkg/domain"
)

// DynamoDBAPI is the subset of *dynamodb.Client the index uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps one item per user (string set of event IDs) and one item per
// event (string set of user IDs). Adds and removes update both items in a single
// TransactWriteItems call, so a cancelled transaction leaves both untouched.
type DynamoStore struct {
	client      DynamoDBAPI
	usersTable  string
	eventsTable string
}

type userItem struct {
	UserID   string   `dynamodbav:"user_id"`
	EventIDs []string `dynamodbav:"event_ids,stringset"`
}

type eventItem struct {
	EventID string   `dynamodbav:"event_id"`
	UserIDs []string `dynamodbav:"user_ids,stringset"`
}

func NewDynamo(client DynamoDBAPI, usersTable, eventsTable string) *DynamoStore {
	return &DynamoStore{client: client, usersTable: usersTable, eventsTable: eventsTable}
}

func (s *DynamoStore) AddMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	return s.transact(ctx, "ADD", userID, eventID)
}

func (s *DynamoStore) RemoveMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	return s.transact(ctx, "DELETE", userID, eventID)
}

// transact applies op (ADD or DELETE) to both set attributes. Set ADD/DELETE are
// idempotent, which makes repeated calls no-ops.
func (s *DynamoStore) transact(ctx context.Context, op string, userID id.UserID, eventID id.EventID) error {
	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:        aws.String(s.usersTable),
					Key:              map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: userID.String()}},
					UpdateExpression: aws.String(op + " event_ids :e"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":e": &types.AttributeValueMemberSS{Value: []string{eventID.String()}},
					},
				},
			},
			{
				Update: &types.Update{
					TableName:        aws.String(s.eventsTable),
					Key:              map[string]types.AttributeValue{"event_id": &types.AttributeValueMemberS{Value: eventID.String()}},
					UpdateExpression: aws.String(op + " user_ids :u"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":u": &types.AttributeValueMemberSS{Value: []string{userID.String()}},
					},
				},
			},
		},
	}
	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		return fmt.Errorf("membership %s transaction: %w", op, err)
	}
	return nil
}

func (s *DynamoStore) IsMember(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error) {
	events, err := s.EventsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, e := range events {
		if e == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (s *DynamoStore) MembersOf(ctx context.Context, eventID id.EventID) ([]id.UserID, error) {
	var item eventItem
	found, err := s.get(ctx, s.eventsTable, "event_id", eventID.String(), &item)
	if err != nil || !found {
		return []id.UserID{}, err
	}
	out := make([]id.UserID, 0, len(item.UserIDs))
	for _, raw := range item.UserIDs {
		u, err := id.ParseUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("event %s holds malformed user id %q: %w", eventID, raw, err)
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *DynamoStore) EventsOf(ctx context.Context, userID id.UserID) ([]id.EventID, error) {
	var item userItem
	found, err := s.get(ctx, s.usersTable, "user_id", userID.String(), &item)
	if err != nil || !found {
		return []id.EventID{}, err
	}
	out := make([]id.EventID, 0, len(item.EventIDs))
	for _, raw := range item.EventIDs {
		e, err := id.ParseEventID(raw)
		if err != nil {
			return nil, fmt.Errorf("user %s holds malformed event id %q: %w", userID, raw, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *DynamoStore) get(ctx context.Context, table, keyName, key string, out any) (bool, error) {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            map[string]types.AttributeValue{keyName: &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("get %s item: %w", table, err)
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("decode %s item: %w", table, err)
	}
	return true, nil
}
