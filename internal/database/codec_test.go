package database

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type priced struct {
	Price   decimal.Decimal  `bson:"price"`
	Compare *decimal.Decimal `bson:"compare,omitempty"`
}

func TestDecimalStoredAsDecimal128(t *testing.T) {
	reg := Registry()
	compare := decimal.RequireFromString("3200.00")

	raw, err := bson.MarshalWithRegistry(reg, priced{Price: decimal.RequireFromString("2950.50"), Compare: &compare})
	require.NoError(t, err)

	assert.Equal(t, bsontype.Decimal128, bson.Raw(raw).Lookup("price").Type)

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.True(t, out.Price.Equal(decimal.RequireFromString("2950.5")))
	require.NotNil(t, out.Compare)
	assert.True(t, out.Compare.Equal(compare))
}

func TestDecimalDecodesLegacyNumbers(t *testing.T) {
	reg := Registry()

	cases := map[string]bson.M{
		"double": {"price": 1500.25},
		"int32":  {"price": int32(1500)},
		"int64":  {"price": int64(1500)},
		"string": {"price": "1500.25"},
	}
	want := map[string]string{
		"double": "1500.25",
		"int32":  "1500",
		"int64":  "1500",
		"string": "1500.25",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(doc)
			require.NoError(t, err)

			var out priced
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
			assert.True(t, out.Price.Equal(decimal.RequireFromString(want[name])), out.Price.String())
		})
	}
}

func TestDecimalRejectsBoolean(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"price": true})
	require.NoError(t, err)

	var out priced
	assert.Error(t, bson.UnmarshalWithRegistry(Registry(), raw, &out))
}
