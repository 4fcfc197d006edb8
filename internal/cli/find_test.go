package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st9db/st9.go/pkg/query"
)

func TestParseTerms(t *testing.T) {
	got, err := parseTerms([]string{"count.gt=5", "color.in=red,blue", "owner_id=null", "name=a=b"})
	require.NoError(t, err)
	assert.Equal(t, query.Fields{
		"count.gt": "5",
		"color.in": []any{"red", "blue"},
		"owner_id": nil,
		"name":     "a=b",
	}, got)

	_, err = parseTerms([]string{"count"})
	assert.Error(t, err)
	_, err = parseTerms([]string{"=5"})
	assert.Error(t, err)
	_, err = parseTerms([]string{"count=1", "count=2"})
	assert.Error(t, err)
}
