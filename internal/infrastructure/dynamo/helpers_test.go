package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrKey(t *testing.T) {
	key := strKey("digest", "abc123")
	require.Len(t, key, 1)
	s, ok := key["digest"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "abc123", s.Value)
}

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{"name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", expr)
	assert.Equal(t, "name", names["#f0"])
	s, ok := values[":v0"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "Alice", s.Value)
}

func TestBuildUpdateExpr_MultipleFields(t *testing.T) {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{
		"name":     "Alice",
		"verified": true,
	})
	require.NoError(t, err)
	assert.Len(t, names, 2)
	assert.Len(t, values, 2)
	assert.Contains(t, expr, "SET ")
	assert.Contains(t, expr, ", ")
}

func TestBuildUpdateExpr_Empty(t *testing.T) {
	_, _, _, err := buildUpdateExpr(map[string]interface{}{})
	require.Error(t, err)
}
