package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-verify-api/internal/domain"
)

// ResetTxn executes the cross-table consumption transaction: new password
// hash on the account, used_at on the reset credential, and every active
// session removed — all or nothing.
type ResetTxn struct {
	client        *dynamodb.Client
	usersTable    string
	sessionsTable string
	resetsTable   string
}

func NewResetTxn(client *dynamodb.Client, usersTable, sessionsTable, resetsTable string) *ResetTxn {
	return &ResetTxn{
		client:        client,
		usersTable:    usersTable,
		sessionsTable: sessionsTable,
		resetsTable:   resetsTable,
	}
}

// Consume commits the triple in one TransactWriteItems. The used_at write
// carries an attribute_not_exists condition, so two concurrent consumptions
// of the same token can never both commit: the loser's whole transaction
// cancels, leaving password and sessions untouched, and ErrTokenUsed is
// returned.
//
// TransactWriteItems caps at 100 items, which bounds revocable sessions per
// call; DynamoDB rejects the whole transaction beyond that, never partially
// applying it.
func (t *ResetTxn) Consume(ctx context.Context, token, userID, passwordHash string, sessionIDs []string, usedAt time.Time) error {
	_, err := t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: t.consumeTxnItems(token, userID, passwordHash, sessionIDs, usedAt),
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return fmt.Errorf("reset credential already consumed: %w", domain.ErrTokenUsed)
				}
			}
		}
		return fmt.Errorf("consume reset transaction: %w", err)
	}
	return nil
}

// consumeTxnItems builds the consumption writes. Sessions are deleted
// outright and without a condition: the sessions table is shared with the
// token issuer, and a disabling update on a key the issuer removed
// concurrently would resurrect it as a phantom row, while a conditional one
// would cancel the whole reset.
func (t *ResetTxn) consumeTxnItems(token, userID, passwordHash string, sessionIDs []string, usedAt time.Time) []types.TransactWriteItem {
	now := usedAt.UTC().Format(time.RFC3339)

	writes := make([]types.TransactWriteItem, 0, len(sessionIDs)+2)
	writes = append(writes, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                aws.String(t.resetsTable),
			Key:                      strKey(fieldToken, token),
			UpdateExpression:         aws.String("SET used_at = :now"),
			ConditionExpression:      aws.String("attribute_exists(#tok) AND attribute_not_exists(used_at)"),
			ExpressionAttributeNames: map[string]string{"#tok": fieldToken},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberS{Value: now},
			},
		},
	})
	writes = append(writes, types.TransactWriteItem{
		Update: &types.Update{
			TableName:        aws.String(t.usersTable),
			Key:              strKey(fieldUserID, userID),
			UpdateExpression: aws.String("SET password_hash = :h, updated_at = :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":h":   &types.AttributeValueMemberS{Value: passwordHash},
				":now": &types.AttributeValueMemberS{Value: now},
			},
		},
	})
	for _, sid := range sessionIDs {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(t.sessionsTable),
				Key:       strKey(fieldSessionID, sid),
			},
		})
	}
	return writes
}
