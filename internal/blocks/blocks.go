// Package blocks parses composite vehicle block identifiers.
//
// The trips report encodes a block as "<blockKey>_<token>": the key names
// the vehicle assignment and the token usually carries the intra-block
// sequence number. Everything downstream partitions on the key, never on
// the raw identifier.
package blocks

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a parsed block identifier.
type ID struct {
	Key    string // block key, the grouping unit
	Token  string // raw token after the first separator
	Seq    int    // numeric token value, when HasSeq
	HasSeq bool
}

// Parse splits a raw block identifier at the first underscore. The token
// may itself contain underscores; only the first one separates. An
// identifier with no separator or an empty key is malformed.
func Parse(raw string) (ID, error) {
	key, token, found := strings.Cut(raw, "_")
	if !found {
		return ID{}, fmt.Errorf("block id %q has no separator", raw)
	}
	if key == "" {
		return ID{}, fmt.Errorf("block id %q has an empty key", raw)
	}

	id := ID{Key: key, Token: token}
	if n, err := strconv.Atoi(token); err == nil && n > 0 {
		id.Seq = n
		id.HasSeq = true
	}
	return id, nil
}

// GroupKey is the partition unit of the pipeline: one service date of one
// block key.
type GroupKey struct {
	Date string // YYYY-MM-DD
	Key  string
}

func (k GroupKey) String() string {
	return k.Date + "/" + k.Key
}
