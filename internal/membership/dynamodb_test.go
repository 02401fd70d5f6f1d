package membership

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "campusreg/pkg/domain"
)

// fakeDynamo applies TransactWriteItems all-or-nothing over in-memory string sets.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]struct{} // table -> key -> set
	failNext bool
	calls    int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]map[string]map[string]struct{}{}}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := aws.ToString(in.TableName)
	keyName, key := singleKey(in.Key)
	set := f.tables[table][key]
	if len(set) == 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	attr := "event_ids"
	if keyName == "event_id" {
		attr = "user_ids"
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		keyName: &types.AttributeValueMemberS{Value: key},
		attr:    &types.AttributeValueMemberSS{Value: values},
	}}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext {
		f.failNext = false
		return nil, &types.TransactionCanceledException{Message: aws.String("simulated cancellation")}
	}

	for _, item := range in.TransactItems {
		u := item.Update
		table := aws.ToString(u.TableName)
		_, key := singleKey(u.Key)
		op := strings.Fields(aws.ToString(u.UpdateExpression))[0]
		var values []string
		for _, v := range u.ExpressionAttributeValues {
			values = v.(*types.AttributeValueMemberSS).Value
		}
		if f.tables[table] == nil {
			f.tables[table] = map[string]map[string]struct{}{}
		}
		if f.tables[table][key] == nil {
			f.tables[table][key] = map[string]struct{}{}
		}
		for _, v := range values {
			if op == "ADD" {
				f.tables[table][key][v] = struct{}{}
			} else {
				delete(f.tables[table][key], v)
			}
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func singleKey(key map[string]types.AttributeValue) (string, string) {
	for k, v := range key {
		return k, v.(*types.AttributeValueMemberS).Value
	}
	return "", ""
}

type DynamoStoreSuite struct {
	suite.Suite
	fake  *fakeDynamo
	store *DynamoStore
	ctx   context.Context
}

func TestDynamoStoreSuite(t *testing.T) {
	suite.Run(t, new(DynamoStoreSuite))
}

func (s *DynamoStoreSuite) SetupTest() {
	s.fake = newFakeDynamo()
	s.store = NewDynamo(s.fake, "user_events", "event_users")
	s.ctx = context.Background()
}

func (s *DynamoStoreSuite) TestAddWritesBothItemsInOneTransaction() {
	user := id.UserID(uuid.New())
	event := id.EventID(uuid.New())

	s.Require().NoError(s.store.AddMembership(s.ctx, user, event))
	s.Equal(1, s.fake.calls)

	ok, err := s.store.IsMember(s.ctx, user, event)
	s.Require().NoError(err)
	s.True(ok)
	members, err := s.store.MembersOf(s.ctx, event)
	s.Require().NoError(err)
	s.Equal([]id.UserID{user}, members)
}

func (s *DynamoStoreSuite) TestCancelledTransactionChangesNeitherSide() {
	user := id.UserID(uuid.New())
	event := id.EventID(uuid.New())
	s.fake.failNext = true

	err := s.store.AddMembership(s.ctx, user, event)
	s.Require().Error(err)
	var cancelled *types.TransactionCanceledException
	s.True(errors.As(err, &cancelled))

	members, _ := s.store.MembersOf(s.ctx, event)
	s.Empty(members)
	events, _ := s.store.EventsOf(s.ctx, user)
	s.Empty(events)
}

func (s *DynamoStoreSuite) TestRemoveIsIdempotent() {
	user := id.UserID(uuid.New())
	event := id.EventID(uuid.New())
	s.Require().NoError(s.store.AddMembership(s.ctx, user, event))

	s.Require().NoError(s.store.RemoveMembership(s.ctx, user, event))
	s.Require().NoError(s.store.RemoveMembership(s.ctx, user, event))

	ok, _ := s.store.IsMember(s.ctx, user, event)
	s.False(ok)
	members, _ := s.store.MembersOf(s.ctx, event)
	s.Empty(members)
}
