package dynamo

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeTxnItems_TokenGuardedAndSessionsDeleted(t *testing.T) {
	txn := &ResetTxn{usersTable: "users", sessionsTable: "sessions", resetsTable: "resets"}
	usedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	writes := txn.consumeTxnItems("tok1", "u1", "hash1", []string{"s1", "s2"}, usedAt)

	require.Len(t, writes, 4)

	tokenUp := writes[0].Update
	require.NotNil(t, tokenUp)
	assert.Equal(t, "resets", *tokenUp.TableName)
	require.NotNil(t, tokenUp.ConditionExpression)
	assert.Contains(t, *tokenUp.ConditionExpression, "attribute_not_exists(used_at)")

	userUp := writes[1].Update
	require.NotNil(t, userUp)
	assert.Equal(t, "users", *userUp.TableName)
	hash, ok := userUp.ExpressionAttributeValues[":h"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "hash1", hash.Value)

	// Sessions go as unconditional deletes: no condition to cancel the reset
	// on, and no update to resurrect a concurrently removed row.
	for i, want := range []string{"s1", "s2"} {
		del := writes[2+i].Delete
		require.NotNil(t, del)
		assert.Equal(t, "sessions", *del.TableName)
		assert.Nil(t, del.ConditionExpression)
		sid, ok := del.Key[fieldSessionID].(*types.AttributeValueMemberS)
		require.True(t, ok)
		assert.Equal(t, want, sid.Value)
	}
}

func TestConsumeTxnItems_NoSessions_StillWritesTokenAndPassword(t *testing.T) {
	txn := &ResetTxn{usersTable: "users", sessionsTable: "sessions", resetsTable: "resets"}

	writes := txn.consumeTxnItems("tok1", "u1", "hash1", nil, time.Now().UTC())

	require.Len(t, writes, 2)
	require.NotNil(t, writes[0].Update)
	require.NotNil(t, writes[1].Update)
}
