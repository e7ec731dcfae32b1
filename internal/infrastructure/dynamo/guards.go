package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-auth/internal/domain"
)

// The user_keys table holds one guard row per unique lookup value, keyed
// "EMAIL#<email>", "PHONE#<e164>" or "SOCIAL#<provider>#<id>" and naming
// the owning user. Guards are written in the same transaction as the user
// record, so two users can never claim the same value.
const attrLookupKey = "lookup_key"

const conditionalCheckFailed = "ConditionalCheckFailed"

// claimedBySelf passes when the guard is free or already ours.
const claimedBySelf = "attribute_not_exists(#lk) OR #uid = :uid"

type lookupKey struct {
	key      string
	conflict error
}

// lookupKeys lists the guards u needs, in a fixed order.
func lookupKeys(u *domain.User) []lookupKey {
	var keys []lookupKey
	if u.Email != "" {
		keys = append(keys, lookupKey{"EMAIL#" + u.Email, domain.ErrDuplicateEmail})
	}
	if u.Phone != "" {
		keys = append(keys, lookupKey{"PHONE#" + u.Phone, domain.ErrDuplicatePhone})
	}
	if u.SocialID != "" {
		keys = append(keys, lookupKey{"SOCIAL#" + u.Provider + "#" + u.SocialID, domain.ErrLinkConflict})
	}
	return keys
}

func guardCondition(userID string) (map[string]string, map[string]types.AttributeValue) {
	return map[string]string{"#lk": attrLookupKey, "#uid": attrUserID},
		map[string]types.AttributeValue{":uid": &types.AttributeValueMemberS{Value: userID}}
}

// saveTransaction writes the user item and claims every guard for it.
func saveTransaction(usersTable, keysTable string, item map[string]types.AttributeValue, u *domain.User, keys []lookupKey) *dynamodb.TransactWriteItemsInput {
	items := []types.TransactWriteItem{{
		Put: &types.Put{TableName: aws.String(usersTable), Item: item},
	}}
	for _, k := range keys {
		names, values := guardCondition(u.UserID)
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(keysTable),
			Item: map[string]types.AttributeValue{
				attrLookupKey: &types.AttributeValueMemberS{Value: k.key},
				attrUserID:    &types.AttributeValueMemberS{Value: u.UserID},
			},
			ConditionExpression:       aws.String(claimedBySelf),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}})
	}
	return &dynamodb.TransactWriteItemsInput{TransactItems: items}
}

// deleteTransaction removes the user item and releases the guards it holds.
func deleteTransaction(usersTable, keysTable string, u *domain.User, keys []lookupKey) *dynamodb.TransactWriteItemsInput {
	items := []types.TransactWriteItem{{
		Delete: &types.Delete{TableName: aws.String(usersTable), Key: strKey(attrUserID, u.UserID)},
	}}
	for _, k := range keys {
		names, values := guardCondition(u.UserID)
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(keysTable),
			Key:                       strKey(attrLookupKey, k.key),
			ConditionExpression:       aws.String(claimedBySelf),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		}})
	}
	return &dynamodb.TransactWriteItemsInput{TransactItems: items}
}

// conflictFrom maps a cancelled transaction to the domain error of the
// first guard owned by another user. Item 0 is the user record itself.
func conflictFrom(err error, keys []lookupKey) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	for i, reason := range tce.CancellationReasons {
		if i == 0 || i > len(keys) {
			continue
		}
		if aws.ToString(reason.Code) == conditionalCheckFailed {
			return keys[i-1].conflict
		}
	}
	return nil
}
