package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// Static credentials only; LoadDefaultConfig would query IMDS and hang
		// outside of EC2.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	logger = logger.With().Str("component", "storage").Logger()
	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) SaveDecisionRecord(ctx context.Context, record types.DecisionRecord) error {
	return s.put(ctx, s.config.DecisionsTable, "decision record", record)
}

func (s *DynamoDBStore) SaveAgentDailyStats(ctx context.Context, stats types.AgentDailyStats) error {
	return s.put(ctx, s.config.AgentStatsTable, "agent daily stats", stats)
}

func (s *DynamoDBStore) put(ctx context.Context, table, what string, v interface{}) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", what, err)
	}
	return nil
}

func (s *DynamoDBStore) GetDecisionRecords(ctx context.Context, dateKey string) ([]types.DecisionRecord, error) {
	items, err := s.queryPartition(ctx, s.config.DecisionsTable, "DateKey", dateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}

	var records []types.DecisionRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision records: %w", err)
	}
	return records, nil
}

func (s *DynamoDBStore) GetAgentDailyStats(ctx context.Context, agentID string) ([]types.AgentDailyStats, error) {
	items, err := s.queryPartition(ctx, s.config.AgentStatsTable, "AgentID", agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent daily stats: %w", err)
	}

	var stats []types.AgentDailyStats
	if err := attributevalue.UnmarshalListOfMaps(items, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent daily stats: %w", err)
	}
	return stats, nil
}

// queryPartition returns every item of one partition, following pagination
func (s *DynamoDBStore) queryPartition(ctx context.Context, table, pk, value string) ([]map[string]dbtypes.AttributeValue, error) {
	keyCond := expression.Key(pk).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []map[string]dbtypes.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if result.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none)")
		return NewNoopStore(), nil
	}
}

// TruncateAll deletes all items from both DynamoDB tables (scan + batch delete)
func (s *DynamoDBStore) TruncateAll(ctx context.Context) error {
	for _, table := range s.config.tableKeys() {
		if err := s.truncateTable(ctx, table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table.name, err)
		}
	}
	return nil
}

func (s *DynamoDBStore) truncateTable(ctx context.Context, table tableKey) error {
	var lastKey map[string]dbtypes.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:            aws.String(table.name),
			ProjectionExpression: aws.String("#pk, #sk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": table.pk,
				"#sk": table.sk,
			},
			Limit: aws.Int32(500),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return err
		}

		// Batch delete in groups of 25
		for i := 0; i < len(result.Items); i += 25 {
			end := i + 25
			if end > len(result.Items) {
				end = len(result.Items)
			}

			requests := make([]dbtypes.WriteRequest, 0, end-i)
			for _, item := range result.Items[i:end] {
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{
						Key: map[string]dbtypes.AttributeValue{
							table.pk: item[table.pk],
							table.sk: item[table.sk],
						},
					},
				})
			}

			_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dbtypes.WriteRequest{
					table.name: requests,
				},
			})
			if err != nil {
				return err
			}
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	s.logger.Info().Str("table", table.name).Msg("table truncated")
	return nil
}
