package dynamo

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-auth/internal/domain"
)

// Attribute and index names of the users table.
const (
	attrUserID   = "user_id"
	attrEmail    = "email"
	attrPhone    = "phone"
	attrSocialID = "social_id"
	attrProvider = "provider"

	indexEmail  = "email-index"
	indexPhone  = "phone-index"
	indexSocial = "social-index"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// keyCondition is a KeyConditionExpression plus its placeholder maps.
type keyCondition struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// eqCondition builds "#k0 = :v0 AND #k1 = :v1 ..." over attribute/value pairs.
func eqCondition(pairs ...string) keyCondition {
	kc := keyCondition{
		Names:  make(map[string]string, len(pairs)/2),
		Values: make(map[string]types.AttributeValue, len(pairs)/2),
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		n := fmt.Sprintf("#k%d", i/2)
		v := fmt.Sprintf(":v%d", i/2)
		kc.Names[n] = pairs[i]
		kc.Values[v] = &types.AttributeValueMemberS{Value: pairs[i+1]}
		if i > 0 {
			kc.Expr += " AND "
		}
		kc.Expr += n + " = " + v
	}
	return kc
}

// unavailable hides a DynamoDB fault behind domain.ErrUnavailable.
func unavailable(op string, err error) error {
	slog.Error("dynamodb operation failed", "op", op, "err", err)
	return fmt.Errorf("users %s: %w", op, domain.ErrUnavailable)
}
