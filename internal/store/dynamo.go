// ABOUTME: Table-store adapter over DynamoDB, scoped to one federated session
// ABOUTME: Profile, asset and liability persistence with owner-checked mutations

package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/oakledger/oakledger/internal/federate"
)

// tableAPI is the subset of the DynamoDB client the adapter uses.
type tableAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DB persists profiles, assets and liabilities. A DB is built per request
// from the caller's federated session, so every call is authorized by the
// caller's own scoped credentials; the table store enforces its side too.
type DB struct {
	api    tableAPI
	tables Tables
}

// NewDB creates a DB over an already-built API client.
func NewDB(api tableAPI, tables Tables) *DB {
	return &DB{api: api, tables: tables}
}

// NewDBFromSession builds a DB whose client signs with the session's
// temporary credentials.
func NewDBFromSession(region string, s *federate.Session, tables Tables) *DB {
	return NewDB(dynamodb.New(dynamodb.Options{
		Region:      region,
		Credentials: sessionCredentials(s),
	}), tables)
}

// PutProfile writes (or overwrites) the caller's profile row.
func (db *DB) PutProfile(ctx context.Context, p *Profile) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	_, err = db.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(db.tables.Profiles),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}

// GetProfile reads a profile row by username.
func (db *DB) GetProfile(ctx context.Context, username string) (*Profile, error) {
	out, err := db.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.tables.Profiles),
		Key: map[string]types.AttributeValue{
			"userName": &types.AttributeValueMemberS{Value: username},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var p Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}
	return &p, nil
}

// PutAsset writes an asset row.
func (db *DB) PutAsset(ctx context.Context, a *Asset) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshaling asset: %w", err)
	}
	_, err = db.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(db.tables.Assets),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing asset: %w", err)
	}
	return nil
}

// GetAsset reads one asset row and checks ownership.
func (db *DB) GetAsset(ctx context.Context, id, username string) (*Asset, error) {
	out, err := db.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.tables.Assets),
		Key: map[string]types.AttributeValue{
			"asset_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var a Asset
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshaling asset: %w", err)
	}
	if a.Username != username {
		return nil, ErrNotOwner
	}
	return &a, nil
}

// ListAssets returns all of the user's asset rows.
func (db *DB) ListAssets(ctx context.Context, username string) ([]Asset, error) {
	items, err := db.scanByUsername(ctx, db.tables.Assets, username)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	var assets []Asset
	if err := attributevalue.UnmarshalListOfMaps(items, &assets); err != nil {
		return nil, fmt.Errorf("unmarshaling assets: %w", err)
	}
	return assets, nil
}

// DeleteAsset removes one asset row after an ownership check.
func (db *DB) DeleteAsset(ctx context.Context, id, username string) error {
	if _, err := db.GetAsset(ctx, id, username); err != nil {
		return err
	}
	_, err := db.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.tables.Assets),
		Key: map[string]types.AttributeValue{
			"asset_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	return nil
}

// PutLiability writes a liability row.
func (db *DB) PutLiability(ctx context.Context, l *Liability) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshaling liability: %w", err)
	}
	_, err = db.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(db.tables.Liabilities),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing liability: %w", err)
	}
	return nil
}

// GetLiability reads one liability row and checks ownership.
func (db *DB) GetLiability(ctx context.Context, id, username string) (*Liability, error) {
	out, err := db.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(db.tables.Liabilities),
		Key: map[string]types.AttributeValue{
			"liability_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading liability: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var l Liability
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, fmt.Errorf("unmarshaling liability: %w", err)
	}
	if l.Username != username {
		return nil, ErrNotOwner
	}
	return &l, nil
}

// ListLiabilities returns all of the user's liability rows.
func (db *DB) ListLiabilities(ctx context.Context, username string) ([]Liability, error) {
	items, err := db.scanByUsername(ctx, db.tables.Liabilities, username)
	if err != nil {
		return nil, fmt.Errorf("listing liabilities: %w", err)
	}
	var liabilities []Liability
	if err := attributevalue.UnmarshalListOfMaps(items, &liabilities); err != nil {
		return nil, fmt.Errorf("unmarshaling liabilities: %w", err)
	}
	return liabilities, nil
}

// DeleteLiability removes one liability row after an ownership check.
func (db *DB) DeleteLiability(ctx context.Context, id, username string) error {
	if _, err := db.GetLiability(ctx, id, username); err != nil {
		return err
	}
	_, err := db.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(db.tables.Liabilities),
		Key: map[string]types.AttributeValue{
			"liability_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting liability: %w", err)
	}
	return nil
}

func (db *DB) scanByUsername(ctx context.Context, table, username string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue

	for {
		out, err := db.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(table),
			FilterExpression:         aws.String("#u = :u"),
			ExpressionAttributeNames: map[string]string{"#u": "username"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: username},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
