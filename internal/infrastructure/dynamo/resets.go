package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-verify-api/internal/domain"
)

// ResetRepo provides typed DynamoDB operations for the password resets
// table. The raw token is the partition key, so lookup is a point read.
type ResetRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewResetRepo(client *dynamodb.Client, tableName string) *ResetRepo {
	return &ResetRepo{client: client, tableName: tableName}
}

func (r *ResetRepo) Put(ctx context.Context, cred *domain.ResetCredential) error {
	item, err := attributevalue.MarshalMap(cred)
	if err != nil {
		return fmt.Errorf("marshal reset credential: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// GetByToken returns the credential for the token or ErrNotFound. The error
// does not distinguish "never issued" from "already swept".
func (r *ResetRepo) GetByToken(ctx context.Context, token string) (*domain.ResetCredential, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldToken, token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("reset credential not found: %w", domain.ErrNotFound)
	}
	var c domain.ResetCredential
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SweepStale deletes reset credentials that are consumed, expired, or past
// their staleness deadline. Returns the number of rows removed.
func (r *ResetRepo) SweepStale(ctx context.Context, nowUnix int64) (int, error) {
	return sweepTable(ctx, r.client, r.tableName, fieldToken,
		"attribute_exists(used_at) OR expires_at < :now OR #t < :now",
		map[string]string{"#t": fieldTTL},
		map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(nowUnix, 10)},
		})
}
