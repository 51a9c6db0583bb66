package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *MockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *MockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
	assert.Equal(t, `a\\b`, escapeSoql(`a\b`))
	assert.Equal(t, "plain", escapeSoql("plain"))
}

func TestFindContactByEmail_Found(t *testing.T) {
	m := new(MockClient)
	m.On("Query", mock.Anything, mock.MatchedBy(func(soql string) bool {
		return assert.Contains(t, soql, "WHERE Email = 'jane@acme.com'")
	}), mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(2).(*[]Contact)
		*out = []Contact{{ID: "003abc", Email: "jane@acme.com"}}
	}).Return(nil)

	contact, err := FindContactByEmail(context.Background(), m, "jane@acme.com")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, "003abc", contact.ID)
}

func TestFindContactByEmail_NotFound(t *testing.T) {
	m := new(MockClient)
	m.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	contact, err := FindContactByEmail(context.Background(), m, "nobody@acme.com")
	require.NoError(t, err)
	assert.Nil(t, contact)
}

func TestUpsertContact_UpdatesExisting(t *testing.T) {
	m := new(MockClient)
	m.On("Query", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(2).(*[]Contact)
		*out = []Contact{{ID: "003abc"}}
	}).Return(nil)
	m.On("UpdateOne", mock.Anything, "Contact", "003abc", mock.Anything).Return(nil)

	id, err := UpsertContact(context.Background(), m, "jane@acme.com", map[string]any{"Phone": "555-1234"})
	require.NoError(t, err)
	assert.Equal(t, "003abc", id)
	m.AssertNotCalled(t, "InsertOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertContact_CreatesNew(t *testing.T) {
	m := new(MockClient)
	m.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.On("InsertOne", mock.Anything, "Contact", mock.MatchedBy(func(fields map[string]any) bool {
		return fields["Email"] == "jane@acme.com"
	})).Return("003new", nil)

	id, err := UpsertContact(context.Background(), m, "jane@acme.com", map[string]any{"Phone": "555-1234"})
	require.NoError(t, err)
	assert.Equal(t, "003new", id)
}

func TestUpsertContact_Validation(t *testing.T) {
	m := new(MockClient)

	_, err := UpsertContact(context.Background(), m, "", map[string]any{"Phone": "x"})
	assert.Error(t, err)

	_, err = UpsertContact(context.Background(), m, "jane@acme.com", nil)
	assert.Error(t, err)
}

func TestUpsertContact_QueryError(t *testing.T) {
	m := new(MockClient)
	m.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom"))

	_, err := UpsertContact(context.Background(), m, "jane@acme.com", map[string]any{"Phone": "x"})
	assert.Error(t, err)
}
