package mongostore_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/warp/incentive-engine/generic"
	mongostore "github.com/warp/incentive-engine/store/mongo"
)

type amountDoc struct {
	Amount   decimal.Decimal      `bson:"amount"`
	Optional *decimal.Decimal     `bson:"optional,omitempty"`
	Rule     generic.RuleSnapshot `bson:"rule"`
}

func TestDecimalCodec_StoresDecimal128(t *testing.T) {
	reg := mongostore.NewRegistry()
	doc := amountDoc{Amount: decimal.RequireFromString("1234.56"), Rule: generic.DefaultRuleSnapshot()}

	raw, err := bson.MarshalWithRegistry(reg, doc)
	require.NoError(t, err)

	// THEN: Money is a Decimal128, not a string or double
	assert.Equal(t, bsontype.Decimal128, bson.Raw(raw).Lookup("amount").Type)
	assert.Equal(t, bsontype.Decimal128, bson.Raw(raw).Lookup("rule", "incentive", "rate").Type)
}

func TestDecimalCodec_RoundTrip(t *testing.T) {
	reg := mongostore.NewRegistry()
	opt := decimal.RequireFromString("0.015")
	rule := generic.DefaultRuleSnapshot()
	rule.RuleID = "r-1"
	doc := amountDoc{Amount: decimal.RequireFromString("99.90"), Optional: &opt, Rule: rule}

	raw, err := bson.MarshalWithRegistry(reg, doc)
	require.NoError(t, err)

	var got amountDoc
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &got))
	assert.True(t, doc.Amount.Equal(got.Amount))
	require.NotNil(t, got.Optional)
	assert.True(t, opt.Equal(*got.Optional))
	assert.True(t, rule.Equal(got.Rule))
}

func TestDecimalCodec_DecodesLegacyNumbers(t *testing.T) {
	reg := mongostore.NewRegistry()

	cases := map[string]bson.M{
		"string": {"amount": "12.5"},
		"double": {"amount": 12.5},
		"int32":  {"amount": int32(12)},
		"int64":  {"amount": int64(12)},
	}
	want := map[string]string{"string": "12.5", "double": "12.5", "int32": "12", "int64": "12"}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(in)
			require.NoError(t, err)

			var got amountDoc
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &got))
			assert.True(t, decimal.RequireFromString(want[name]).Equal(got.Amount))
		})
	}
}
