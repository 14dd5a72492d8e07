package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-verify-api/internal/domain"
)

// CredentialRepo provides typed DynamoDB operations for the verification
// credentials table. PK: credential_id (ULID); GSI subject_id-index with
// credential_id as range key, so ULID order doubles as creation order.
type CredentialRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCredentialRepo(client *dynamodb.Client, tableName string) *CredentialRepo {
	return &CredentialRepo{client: client, tableName: tableName}
}

// InsertAndSupersede marks every unused credential of the subject as used
// and inserts the new record, all in one TransactWriteItems. Each supersede
// carries an is_used = false condition, and the transaction always ends with
// a compare-and-swap on the subject's issuance marker, so two concurrent
// issuances cannot both leave their record live even when neither saw a
// prior unused record: the loser's transaction cancels and is retried
// against the fresh state.
func (r *CredentialRepo) InsertAndSupersede(ctx context.Context, cred *domain.VerificationCredential) error {
	const maxRetries = 3
	for attempt := 0; ; attempt++ {
		prior, err := r.unusedBySubject(ctx, cred.SubjectID)
		if err != nil {
			return err
		}
		prevLatest, markerFound, err := r.latestIssued(ctx, cred.SubjectID)
		if err != nil {
			return err
		}
		item, err := attributevalue.MarshalMap(cred)
		if err != nil {
			return fmt.Errorf("marshal credential: %w", err)
		}

		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: issueTxnItems(r.tableName, item, cred, prior, prevLatest, markerFound),
		})
		if err == nil {
			return nil
		}
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) && attempt < maxRetries {
			// A concurrent issuance won the marker swap or superseded one of
			// the prior records first. Re-read and try again.
			continue
		}
		return fmt.Errorf("insert and supersede: %w", err)
	}
}

// subjectMarkerKey returns the PK of the per-subject issuance marker. The
// marker row carries no subject_id, is_used, expires_at, or ttl attributes,
// so the GSI, the sweep, and the table TTL never see it.
func subjectMarkerKey(subjectID string) string {
	return "subject#" + subjectID
}

// latestIssued reads the subject's issuance marker with a consistent read,
// returning the last committed credential ID and whether a marker exists.
func (r *CredentialRepo) latestIssued(ctx context.Context, subjectID string) (string, bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldCredentialID, subjectMarkerKey(subjectID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("read issuance marker: %w", err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}
	av, ok := out.Item[fieldLatestCredID].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, fmt.Errorf("issuance marker missing %s", fieldLatestCredID)
	}
	return av.Value, true, nil
}

// issueTxnItems builds the writes for one issuance: a conditional used flip
// per prior unused record, the new credential, and the marker swap. The
// marker write is the serialization point: a first-ever issuance puts the
// marker under attribute_not_exists, every later one swaps it conditioned on
// the value it read, so issuances for a subject form a total order and at
// most one unused credential survives any interleaving.
func issueTxnItems(tableName string, item map[string]types.AttributeValue, cred *domain.VerificationCredential, prior []domain.VerificationCredential, prevLatest string, markerFound bool) []types.TransactWriteItem {
	writes := make([]types.TransactWriteItem, 0, len(prior)+2)
	for _, p := range prior {
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(tableName),
				Key:                 strKey(fieldCredentialID, p.CredentialID),
				UpdateExpression:    aws.String("SET is_used = :t"),
				ConditionExpression: aws.String("is_used = :f"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":t": &types.AttributeValueMemberBOOL{Value: true},
					":f": &types.AttributeValueMemberBOOL{Value: false},
				},
			},
		})
	}
	writes = append(writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(tableName),
			Item:      item,
		},
	})

	marker := types.TransactWriteItem{}
	if markerFound {
		marker.Update = &types.Update{
			TableName:           aws.String(tableName),
			Key:                 strKey(fieldCredentialID, subjectMarkerKey(cred.SubjectID)),
			UpdateExpression:    aws.String("SET latest_credential_id = :new"),
			ConditionExpression: aws.String("latest_credential_id = :prev"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new":  &types.AttributeValueMemberS{Value: cred.CredentialID},
				":prev": &types.AttributeValueMemberS{Value: prevLatest},
			},
		}
	} else {
		marker.Put = &types.Put{
			TableName: aws.String(tableName),
			Item: map[string]types.AttributeValue{
				fieldCredentialID: &types.AttributeValueMemberS{Value: subjectMarkerKey(cred.SubjectID)},
				fieldLatestCredID: &types.AttributeValueMemberS{Value: cred.CredentialID},
			},
			ConditionExpression: aws.String("attribute_not_exists(credential_id)"),
		}
	}
	return append(writes, marker)
}

// FindLatestUnused returns the most recent credential of the subject with
// is_used = false, or ErrNotFound.
func (r *CredentialRepo) FindLatestUnused(ctx context.Context, subjectID string) (*domain.VerificationCredential, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("subject_id-index"),
		KeyConditionExpression: aws.String("subject_id = :sid"),
		FilterExpression:       aws.String("is_used = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: subjectID},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(false), // newest ULID first
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no unused credential for subject: %w", domain.ErrNotFound)
	}
	var c domain.VerificationCredential
	if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts bumps the failed-attempt counter by one atomically and
// returns the new count. ADD is serialized by DynamoDB, so concurrent wrong
// guesses never lose an update.
func (r *CredentialRepo) IncrementAttempts(ctx context.Context, credentialID string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldCredentialID, credentialID),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ConditionExpression: aws.String("attribute_exists(credential_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, fmt.Errorf("credential gone: %w", domain.ErrNotFound)
		}
		return 0, err
	}
	n, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attempts attribute missing from update response")
	}
	return strconv.Atoi(n.Value)
}

// MarkUsed flips is_used exactly once. A conditional-check failure means a
// concurrent verification already consumed the credential.
func (r *CredentialRepo) MarkUsed(ctx context.Context, credentialID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldCredentialID, credentialID),
		UpdateExpression:    aws.String("SET is_used = :t"),
		ConditionExpression: aws.String("is_used = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("credential already consumed: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// SweepStale deletes credentials that are used, expired, or past their
// staleness deadline. Returns the number of rows removed. Deleting a row a
// concurrent verify is reading is harmless: every matching row is terminal.
func (r *CredentialRepo) SweepStale(ctx context.Context, nowUnix int64) (int, error) {
	return sweepTable(ctx, r.client, r.tableName, fieldCredentialID,
		"is_used = :t OR expires_at < :now OR #t < :now",
		map[string]string{"#t": fieldTTL},
		map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(nowUnix, 10)},
		})
}

func (r *CredentialRepo) unusedBySubject(ctx context.Context, subjectID string) ([]domain.VerificationCredential, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("subject_id-index"),
		KeyConditionExpression: aws.String("subject_id = :sid"),
		FilterExpression:       aws.String("is_used = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: subjectID},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	var creds []domain.VerificationCredential
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}
