// Package dynamodb implements an ODM driver which stores documents in
// an Amazon DynamoDB table.
//
// All collections share a single table, keyed by the collection name
// (partition key) and the document id (sort key). The URL value names
// the table and the following options are supported:
//
//	region      AWS region (defaults to the SDK configuration)
//	endpoint    custom endpoint URL, e.g. for DynamoDB Local
//	consistent  use strongly consistent reads (default true)
//	create      create the table in Initialize (default true)
//	parallel    maximum concurrent requests in InsertMany (default 4)
//
// e.g. dynamodb://documents?region=eu-west-1&endpoint=http://localhost:8000
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/rainycape/odm/internal/awsx"
	"github.com/rainycape/odm/odm/driver"
)

const (
	collectionAttr = "Collection"
	idAttr         = "ID"
	dataAttr       = "Data"

	// maxTransactItems is the maximum number of items
	// in a TransactWriteItems request.
	maxTransactItems = 100
)

// Driver is the DynamoDB ODM driver. Bulk inserts are split in
// transactions of up to 100 documents, so they're only atomic
// when they don't exceed that size.
type Driver struct {
	// Client is the DynamoDB client to use.
	Client *dynamodb.Client

	// Table is the table name used for storing documents.
	Table string

	// Consistent indicates whether reads should be strongly consistent.
	Consistent bool

	// Create indicates whether Initialize should create the table.
	Create bool

	// Parallel is the maximum number of concurrent transactions
	// issued by InsertMany.
	Parallel int

	// DecorateGetItem is an optional function that is called before each
	// DynamoDB "GetItem" request.
	//
	// It may modify the API input in-place. It returns options that will be
	// applied to the request.
	DecorateGetItem func(*dynamodb.GetItemInput) []func(*dynamodb.Options)

	// DecorateQuery is an optional function that is called before each
	// DynamoDB "Query" request.
	DecorateQuery func(*dynamodb.QueryInput) []func(*dynamodb.Options)

	// DecoratePutItem is an optional function that is called before each
	// DynamoDB "PutItem" request.
	DecoratePutItem func(*dynamodb.PutItemInput) []func(*dynamodb.Options)

	// DecorateDeleteItem is an optional function that is called before each
	// DynamoDB "DeleteItem" request.
	DecorateDeleteItem func(*dynamodb.DeleteItemInput) []func(*dynamodb.Options)

	// DecorateTransactWriteItems is an optional function that is called
	// before each DynamoDB "TransactWriteItems" request.
	DecorateTransactWriteItems func(*dynamodb.TransactWriteItemsInput) []func(*dynamodb.Options)
}

func (d *Driver) key(m driver.Model, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		collectionAttr: &types.AttributeValueMemberS{Value: m.Collection()},
		idAttr:         &types.AttributeValueMemberS{Value: id},
	}
}

func (d *Driver) item(m driver.Model, id string, data []byte) map[string]types.AttributeValue {
	item := d.key(m, id)
	item[dataAttr] = &types.AttributeValueMemberB{Value: data}
	return item
}

// Check verifies that the table exists. When Create is set, a missing
// table is not an error, since Initialize will create it.
func (d *Driver) Check(ctx context.Context) error {
	_, err := d.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.Table),
	})
	if d.Create && errors.As(err, new(*types.ResourceNotFoundException)) {
		return nil
	}
	return err
}

func (d *Driver) Initialize(ctx context.Context, ms []driver.Model) error {
	if !d.Create {
		return nil
	}
	return CreateTable(ctx, d.Client, d.Table)
}

func (d *Driver) Get(ctx context.Context, m driver.Model, id string) ([]byte, error) {
	out, err := awsx.Do(
		ctx,
		d.Client.GetItem,
		d.DecorateGetItem,
		&dynamodb.GetItemInput{
			TableName:            aws.String(d.Table),
			Key:                  d.key(m, id),
			ConsistentRead:       aws.Bool(d.Consistent),
			ProjectionExpression: aws.String("#D"),
			ExpressionAttributeNames: map[string]string{
				"#D": dataAttr,
			},
		},
	)
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, driver.ErrNotFound
	}
	v, err := getAttr[*types.AttributeValueMemberB](out.Item, dataAttr)
	if err != nil {
		return nil, err
	}
	return v.Value, nil
}

func (d *Driver) put(ctx context.Context, m driver.Model, id string, data []byte, cond string) error {
	_, err := awsx.Do(
		ctx,
		d.Client.PutItem,
		d.DecoratePutItem,
		&dynamodb.PutItemInput{
			TableName:           aws.String(d.Table),
			Item:                d.item(m, id, data),
			ConditionExpression: aws.String(cond),
			ExpressionAttributeNames: map[string]string{
				"#I": idAttr,
			},
		},
	)
	return err
}

func (d *Driver) Insert(ctx context.Context, m driver.Model, id string, data []byte) error {
	err := d.put(ctx, m, id, data, "attribute_not_exists(#I)")
	if errors.As(err, new(*types.ConditionalCheckFailedException)) {
		return fmt.Errorf("%w: %s", driver.ErrDuplicate, id)
	}
	return err
}

func (d *Driver) InsertMany(ctx context.Context, m driver.Model, items []driver.Item) error {
	g, ctx := errgroup.WithContext(ctx)
	if d.Parallel > 0 {
		g.SetLimit(d.Parallel)
	}
	for start := 0; start < len(items); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		g.Go(func() error {
			return d.transactInsert(ctx, m, chunk)
		})
	}
	return g.Wait()
}

func (d *Driver) transactInsert(ctx context.Context, m driver.Model, items []driver.Item) error {
	writes := make([]types.TransactWriteItem, len(items))
	for ii, v := range items {
		writes[ii] = types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(d.Table),
				Item:                d.item(m, v.ID, v.Data),
				ConditionExpression: aws.String("attribute_not_exists(#I)"),
				ExpressionAttributeNames: map[string]string{
					"#I": idAttr,
				},
			},
		}
	}
	_, err := awsx.Do(
		ctx,
		d.Client.TransactWriteItems,
		d.DecorateTransactWriteItems,
		&dynamodb.TransactWriteItemsInput{
			TransactItems: writes,
		},
	)
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for ii, v := range canceled.CancellationReasons {
			if aws.ToString(v.Code) == "ConditionalCheckFailed" && ii < len(items) {
				return fmt.Errorf("%w: %s", driver.ErrDuplicate, items[ii].ID)
			}
		}
	}
	return err
}

func (d *Driver) Update(ctx context.Context, m driver.Model, id string, data []byte) (bool, error) {
	err := d.put(ctx, m, id, data, "attribute_exists(#I)")
	if errors.As(err, new(*types.ConditionalCheckFailedException)) {
		return false, nil
	}
	return err == nil, err
}

func (d *Driver) Delete(ctx context.Context, m driver.Model, id string) (bool, error) {
	_, err := awsx.Do(
		ctx,
		d.Client.DeleteItem,
		d.DecorateDeleteItem,
		&dynamodb.DeleteItemInput{
			TableName:           aws.String(d.Table),
			Key:                 d.key(m, id),
			ConditionExpression: aws.String("attribute_exists(#I)"),
			ExpressionAttributeNames: map[string]string{
				"#I": idAttr,
			},
		},
	)
	if errors.As(err, new(*types.ConditionalCheckFailedException)) {
		return false, nil
	}
	return err == nil, err
}

func (d *Driver) query(m driver.Model, count bool) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(d.Table),
		ConsistentRead:         aws.Bool(d.Consistent),
		KeyConditionExpression: aws.String("#C = :C"),
		ExpressionAttributeNames: map[string]string{
			"#C": collectionAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":C": &types.AttributeValueMemberS{Value: m.Collection()},
		},
	}
	if count {
		in.Select = types.SelectCount
	} else {
		in.ProjectionExpression = aws.String("#I, #D")
		in.ExpressionAttributeNames["#I"] = idAttr
		in.ExpressionAttributeNames["#D"] = dataAttr
	}
	return in
}

func (d *Driver) Count(ctx context.Context, m driver.Model) (uint64, error) {
	in := d.query(m, true)
	var count uint64
	for {
		out, err := awsx.Do(ctx, d.Client.Query, d.DecorateQuery, in)
		if err != nil {
			return 0, err
		}
		count += uint64(out.Count)
		if out.LastEvaluatedKey == nil {
			return count, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (d *Driver) Range(ctx context.Context, m driver.Model, fn driver.RangeFunc) error {
	in := d.query(m, false)
	for {
		out, err := awsx.Do(ctx, d.Client.Query, d.DecorateQuery, in)
		if err != nil {
			return err
		}

		for _, item := range out.Items {
			id, err := getAttr[*types.AttributeValueMemberS](item, idAttr)
			if err != nil {
				return err
			}

			data, err := getAttr[*types.AttributeValueMemberB](item, dataAttr)
			if err != nil {
				return err
			}

			ok, err := fn(ctx, id.Value, data.Value)
			if !ok || err != nil {
				return err
			}
		}

		if out.LastEvaluatedKey == nil {
			return nil
		}

		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (d *Driver) Capabilities() driver.Capability {
	if d.Consistent {
		return driver.CAP_PERSISTENT
	}
	return driver.CAP_PERSISTENT | driver.CAP_EVENTUAL
}

func (d *Driver) Close() error {
	return nil
}

// CreateTable creates a DynamoDB table for use with [Driver]. It
// does nothing if the table already exists.
func CreateTable(
	ctx context.Context,
	client *dynamodb.Client,
	table string,
	decorators ...func(*dynamodb.CreateTableInput) []func(*dynamodb.Options),
) error {
	_, err := awsx.Do(
		ctx,
		client.CreateTable,
		func(in *dynamodb.CreateTableInput) []func(*dynamodb.Options) {
			var options []func(*dynamodb.Options)
			for _, dec := range decorators {
				options = append(options, dec(in)...)
			}

			return options
		},
		&dynamodb.CreateTableInput{
			TableName: aws.String(table),
			AttributeDefinitions: []types.AttributeDefinition{
				{
					AttributeName: aws.String(collectionAttr),
					AttributeType: types.ScalarAttributeTypeS,
				},
				{
					AttributeName: aws.String(idAttr),
					AttributeType: types.ScalarAttributeTypeS,
				},
			},
			KeySchema: []types.KeySchemaElement{
				{
					AttributeName: aws.String(collectionAttr),
					KeyType:       types.KeyTypeHash,
				},
				{
					AttributeName: aws.String(idAttr),
					KeyType:       types.KeyTypeRange,
				},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	)

	if errors.As(err, new(*types.ResourceInUseException)) {
		return nil
	}

	return err
}

// DeleteTable removes the table, ignoring the error if it
// does not exist.
func DeleteTable(ctx context.Context, client *dynamodb.Client, table string) error {
	if _, err := client.DeleteTable(
		ctx,
		&dynamodb.DeleteTableInput{
			TableName: aws.String(table),
		},
	); err != nil {
		if !errors.As(err, new(*types.ResourceNotFoundException)) {
			return err
		}
	}
	return nil
}
