package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/odm/driver"
)

// NewClient returns a DynamoDB client configured from the given
// URL options (region, endpoint, access_key and secret_key) and the
// default AWS SDK configuration sources.
func NewClient(ctx context.Context, url *config.URL) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := url.Get("region"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if endpoint := url.Get("endpoint"); endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...any) (aws.Endpoint, error) {
					return aws.Endpoint{URL: endpoint}, nil
				},
			),
		))
	}
	if key := url.Get("access_key"); key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.StaticCredentialsProvider{
				Value: aws.Credentials{
					AccessKeyID:     key,
					SecretAccessKey: url.Get("secret_key"),
				},
			},
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func dynamodbOpener(url *config.URL) (driver.Driver, error) {
	if url.Value == "" {
		return nil, errors.New("dynamodb driver requires a table name")
	}
	consistent, err := url.Bool("consistent", true)
	if err != nil {
		return nil, err
	}
	create, err := url.Bool("create", true)
	if err != nil {
		return nil, err
	}
	parallel, err := url.Int("parallel", 4)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(context.Background(), url)
	if err != nil {
		return nil, err
	}
	return &Driver{
		Client:     client,
		Table:      url.Value,
		Consistent: consistent,
		Create:     create,
		Parallel:   parallel,
	}, nil
}

func init() {
	driver.Register("dynamodb", dynamodbOpener)
}
