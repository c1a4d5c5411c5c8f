package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quantyard/trendrank/internal/oracle"
)

// Key canonically encodes a comparison group: the member set (order ignored)
// plus every query parameter. Identical groups always hash to the same key,
// which is what makes the cache the source of truth for "already asked".
type Key string

// NewKey builds the canonical key for a group. Members are sorted, so the
// construction order of the group does not matter.
func NewKey(group oracle.Group) Key {
	items := make([]string, len(group.Items))
	for i, item := range group.Items {
		items[i] = string(item)
	}
	sort.Strings(items)

	p := group.Params
	return Key(fmt.Sprintf("v1|%s|tf=%s|cat=%d|gprop=%s|geo=%s",
		strings.Join(items, "\x1f"), p.Timeframe, p.Category, p.Property, p.Geo))
}
