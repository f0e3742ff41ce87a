// Package client talks to a Data API endpoint through the AWS SDK, the
// same way applications using RDS Data API do.
package client

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rdsdataservice"

	"github.com/tomyedwab/dataapi/dataapi/types"
)

type Config struct {
	// Endpoint is the base URL of the Data API, e.g. http://localhost:8080.
	Endpoint    string
	ResourceARN string
	SecretARN   string
	// Database is selected for every call when set.
	Database string
	// Region defaults to us-east-1. The emulator does not check signatures.
	Region string
}

// Client wraps the RDS Data Service client.
type Client struct {
	service *rdsdataservice.RDSDataService
	cfg     Config
}

func New(cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(cfg.Region),
		Endpoint:    aws.String(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentials("dataapi", "dataapi", ""),
		MaxRetries:  aws.Int(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &Client{service: rdsdataservice.New(sess), cfg: cfg}, nil
}

func (c *Client) database() *string {
	if c.cfg.Database == "" {
		return nil
	}
	return aws.String(c.cfg.Database)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// BeginTransaction starts a transaction and returns its id.
func (c *Client) BeginTransaction(ctx context.Context) (string, error) {
	out, err := c.service.BeginTransactionWithContext(ctx, &rdsdataservice.BeginTransactionInput{
		ResourceArn: aws.String(c.cfg.ResourceARN),
		SecretArn:   aws.String(c.cfg.SecretARN),
		Database:    c.database(),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.TransactionId), nil
}

// CommitTransaction commits and returns the reported status.
func (c *Client) CommitTransaction(ctx context.Context, transactionID string) (string, error) {
	out, err := c.service.CommitTransactionWithContext(ctx, &rdsdataservice.CommitTransactionInput{
		ResourceArn:   aws.String(c.cfg.ResourceARN),
		SecretArn:     aws.String(c.cfg.SecretARN),
		TransactionId: aws.String(transactionID),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.TransactionStatus), nil
}

// RollbackTransaction rolls back and returns the reported status.
func (c *Client) RollbackTransaction(ctx context.Context, transactionID string) (string, error) {
	out, err := c.service.RollbackTransactionWithContext(ctx, &rdsdataservice.RollbackTransactionInput{
		ResourceArn:   aws.String(c.cfg.ResourceARN),
		SecretArn:     aws.String(c.cfg.SecretARN),
		TransactionId: aws.String(transactionID),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.TransactionStatus), nil
}

// Statement is a single SQL statement to execute.
type Statement struct {
	SQL             string
	Parameters      []types.SqlParameter
	TransactionID   string
	IncludeMetadata bool
}

// ExecuteStatement runs one statement and converts the SDK output into the
// wire types.
func (c *Client) ExecuteStatement(ctx context.Context, stmt Statement) (*types.ExecuteStatementResponse, error) {
	out, err := c.service.ExecuteStatementWithContext(ctx, &rdsdataservice.ExecuteStatementInput{
		ResourceArn:           aws.String(c.cfg.ResourceARN),
		SecretArn:             aws.String(c.cfg.SecretARN),
		Database:              c.database(),
		Sql:                   aws.String(stmt.SQL),
		Parameters:            toSDKParameters(stmt.Parameters),
		TransactionId:         optional(stmt.TransactionID),
		IncludeResultMetadata: aws.Bool(stmt.IncludeMetadata),
	})
	if err != nil {
		return nil, err
	}

	resp := &types.ExecuteStatementResponse{
		NumberOfRecordsUpdated: aws.Int64Value(out.NumberOfRecordsUpdated),
		GeneratedFields:        fromSDKFields(out.GeneratedFields),
		Records:                make([][]types.Value, 0, len(out.Records)),
		ColumnMetadata:         make([]types.ColumnMetadata, 0, len(out.ColumnMetadata)),
	}
	for _, record := range out.Records {
		resp.Records = append(resp.Records, fromSDKFields(record))
	}
	for _, m := range out.ColumnMetadata {
		resp.ColumnMetadata = append(resp.ColumnMetadata, types.ColumnMetadata{
			Name:       aws.StringValue(m.Name),
			Label:      aws.StringValue(m.Label),
			SchemaName: aws.StringValue(m.SchemaName),
			TableName:  aws.StringValue(m.TableName),
			TypeName:   aws.StringValue(m.TypeName),
			Nullable:   m.Nullable,
			Precision:  m.Precision,
			Scale:      m.Scale,
			IsSigned:   m.IsSigned,
		})
	}
	return resp, nil
}

// BatchExecuteStatement runs sql once per parameter set.
func (c *Client) BatchExecuteStatement(ctx context.Context, sql string, sets [][]types.SqlParameter, transactionID string) (*types.BatchExecuteStatementResponse, error) {
	parameterSets := make([][]*rdsdataservice.SqlParameter, len(sets))
	for i, set := range sets {
		parameterSets[i] = toSDKParameters(set)
	}
	out, err := c.service.BatchExecuteStatementWithContext(ctx, &rdsdataservice.BatchExecuteStatementInput{
		ResourceArn:   aws.String(c.cfg.ResourceARN),
		SecretArn:     aws.String(c.cfg.SecretARN),
		Database:      c.database(),
		Sql:           aws.String(sql),
		ParameterSets: parameterSets,
		TransactionId: optional(transactionID),
	})
	if err != nil {
		return nil, err
	}

	resp := &types.BatchExecuteStatementResponse{UpdateResults: make([]types.UpdateResult, 0, len(out.UpdateResults))}
	for _, res := range out.UpdateResults {
		resp.UpdateResults = append(resp.UpdateResults, types.UpdateResult{GeneratedFields: fromSDKFields(res.GeneratedFields)})
	}
	return resp, nil
}

func toSDKParameters(params []types.SqlParameter) []*rdsdataservice.SqlParameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]*rdsdataservice.SqlParameter, len(params))
	for i, p := range params {
		out[i] = &rdsdataservice.SqlParameter{
			Name:     aws.String(p.Name),
			Value:    toSDKField(p.Value),
			TypeHint: optional(p.TypeHint),
		}
	}
	return out
}

func toSDKField(v types.Value) *rdsdataservice.Field {
	switch v.Kind() {
	case types.KindBlob:
		return &rdsdataservice.Field{BlobValue: v.Blob()}
	case types.KindBoolean:
		return &rdsdataservice.Field{BooleanValue: aws.Bool(v.Bool())}
	case types.KindDouble:
		return &rdsdataservice.Field{DoubleValue: aws.Float64(v.Double())}
	case types.KindLong:
		return &rdsdataservice.Field{LongValue: aws.Int64(v.Long())}
	case types.KindString:
		return &rdsdataservice.Field{StringValue: aws.String(v.Str())}
	default:
		return &rdsdataservice.Field{IsNull: aws.Bool(true)}
	}
}

func fromSDKFields(fields []*rdsdataservice.Field) []types.Value {
	if fields == nil {
		return nil
	}
	out := make([]types.Value, len(fields))
	for i, f := range fields {
		out[i] = fromSDKField(f)
	}
	return out
}

func fromSDKField(f *rdsdataservice.Field) types.Value {
	switch {
	case f == nil || aws.BoolValue(f.IsNull):
		return types.NullValue()
	case f.LongValue != nil:
		return types.LongValue(*f.LongValue)
	case f.StringValue != nil:
		return types.StringValue(*f.StringValue)
	case f.DoubleValue != nil:
		return types.DoubleValue(*f.DoubleValue)
	case f.BooleanValue != nil:
		return types.BooleanValue(*f.BooleanValue)
	case f.BlobValue != nil:
		return types.BlobValue(f.BlobValue)
	}
	return types.NullValue()
}
