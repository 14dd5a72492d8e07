package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// batchDeleteSize is the BatchWriteItem request cap.
const batchDeleteSize = 25

// sweepTable scans the table with the given filter and batch-deletes every
// matching row by its key attribute. Pages through the full table; safe to
// run concurrently with live traffic since callers only match terminal rows.
func sweepTable(
	ctx context.Context,
	client *dynamodb.Client,
	tableName, keyAttr, filter string,
	names map[string]string,
	values map[string]types.AttributeValue,
) (int, error) {
	deleted := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(tableName),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ProjectionExpression:      aws.String(keyAttr),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return deleted, err
		}

		for i := 0; i < len(out.Items); i += batchDeleteSize {
			end := i + batchDeleteSize
			if end > len(out.Items) {
				end = len(out.Items)
			}
			reqs := make([]types.WriteRequest, 0, end-i)
			for _, item := range out.Items[i:end] {
				reqs = append(reqs, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
						keyAttr: item[keyAttr],
					}},
				})
			}
			if _, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{tableName: reqs},
			}); err != nil {
				return deleted, err
			}
			deleted += len(reqs)
		}

		if out.LastEvaluatedKey == nil {
			return deleted, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
