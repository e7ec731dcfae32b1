package dynamo

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-auth/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
// Email, phone and social identity are kept unique through guard rows in
// keysTable.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
	keysTable string
}

func NewUserRepo(client *dynamodb.Client, tableName, keysTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, keysTable: keysTable}
}

// Save inserts u or replaces the record with the same user id. It fails
// with domain.ErrDuplicateEmail, domain.ErrDuplicatePhone or
// domain.ErrLinkConflict when another user already holds one of u's
// lookup values.
func (r *UserRepo) Save(ctx context.Context, u *domain.User) error {
	item, err := marshalUser(u)
	if err != nil {
		return err
	}
	keys := lookupKeys(u)
	_, err = r.client.TransactWriteItems(ctx, saveTransaction(r.tableName, r.keysTable, item, u, keys))
	if err != nil {
		if conflict := conflictFrom(err, keys); conflict != nil {
			return conflict
		}
		return unavailable("save", err)
	}
	return nil
}

// Delete removes u's record and releases its guards. Deleting a missing
// record is not an error.
func (r *UserRepo) Delete(ctx context.Context, u *domain.User) error {
	keys := lookupKeys(u)
	_, err := r.client.TransactWriteItems(ctx, deleteTransaction(r.tableName, r.keysTable, u, keys))
	if err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryOne(ctx, indexEmail, eqCondition(attrEmail, email))
}

func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.queryOne(ctx, indexPhone, eqCondition(attrPhone, phone))
}

func (r *UserRepo) FindBySocialIDAndProvider(ctx context.Context, socialID, provider string) (*domain.User, error) {
	return r.queryOne(ctx, indexSocial, eqCondition(attrSocialID, socialID, attrProvider, provider))
}

// ScanPage returns up to limit users. cursor is the opaque value returned
// by the previous page; the returned cursor is empty on the last page.
func (r *UserRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Limit:     aws.Int32(limit),
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey(attrUserID, userID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", unavailable("scan", err)
	}
	users := make([]domain.User, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, "", fmt.Errorf("unmarshal users: %w", err)
	}
	next := ""
	if v, ok := out.LastEvaluatedKey[attrUserID].(*types.AttributeValueMemberS); ok {
		next = encodeCursor(v.Value)
	}
	return users, next, nil
}

func encodeCursor(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// queryOne returns the first item of a GSI query, or domain.ErrUserNotFound.
func (r *UserRepo) queryOne(ctx context.Context, index string, kc keyCondition) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String(kc.Expr),
		ExpressionAttributeNames:  kc.Names,
		ExpressionAttributeValues: kc.Values,
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, unavailable("query "+index, err)
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return unmarshalUser(out.Items[0])
}

func marshalUser(u *domain.User) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	return item, nil
}

func unmarshalUser(item map[string]types.AttributeValue) (*domain.User, error) {
	var u domain.User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}
