package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantyard/trendrank/internal/oracle"
)

func TestNewKey_OrderIndependent(t *testing.T) {
	params := oracle.Params{Timeframe: "all", Category: 16, Property: "news"}

	a := oracle.Group{Items: []oracle.Item{"AAPL", "MSFT", "GOOG"}, Params: params}
	b := oracle.Group{Items: []oracle.Item{"GOOG", "AAPL", "MSFT"}, Params: params}

	assert.Equal(t, NewKey(a), NewKey(b))
}

func TestNewKey_DistinguishesMembersAndParams(t *testing.T) {
	params := oracle.Params{Timeframe: "all", Category: 16}
	base := oracle.Group{Items: []oracle.Item{"AAPL", "MSFT"}, Params: params}

	tests := []struct {
		name  string
		other oracle.Group
	}{
		{"different member", oracle.Group{Items: []oracle.Item{"AAPL", "GOOG"}, Params: params}},
		{"subset", oracle.Group{Items: []oracle.Item{"AAPL"}, Params: params}},
		{"different timeframe", oracle.Group{Items: base.Items, Params: oracle.Params{Timeframe: "today 5-y", Category: 16}}},
		{"different category", oracle.Group{Items: base.Items, Params: oracle.Params{Timeframe: "all", Category: 7}}},
		{"different property", oracle.Group{Items: base.Items, Params: oracle.Params{Timeframe: "all", Category: 16, Property: "news"}}},
		{"different geo", oracle.Group{Items: base.Items, Params: oracle.Params{Timeframe: "all", Category: 16, Geo: "US"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, NewKey(base), NewKey(tt.other))
		})
	}
}
