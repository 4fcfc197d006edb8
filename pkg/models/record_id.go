package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/st9db/st9.go/pkg/constants"
)

// findableID is the public form of an id: the 16 character token, optionally
// followed by a free-form "-suffix" (slugs) that is dropped on lookup.
var findableID = regexp.MustCompile(`^([a-z0-9]{16})(-.*)?$`)

var tokenPattern = regexp.MustCompile(`^[a-z0-9]{16}$`)

// RecordID is a parsed db id. Persisted entities are addressed by
// "@<type>:<token>"; integer sequence lookups use "<type>:<n>".
type RecordID struct {
	Type  string
	Token string
}

// ParseRecordID splits a db id into its type name and token.
func ParseRecordID(id string) (*RecordID, error) {
	typ, token, ok := strings.Cut(strings.TrimPrefix(id, "@"), ":")
	if !ok || typ == "" || token == "" {
		return nil, fmt.Errorf("%w: %q", constants.ErrInvalidFindableID, id)
	}
	return &RecordID{Type: typ, Token: token}, nil
}

func (r *RecordID) String() string {
	return fmt.Sprintf("@%s:%s", r.Type, r.Token)
}

// ShortID returns the token part of a db id, or the input when it has none.
func ShortID(dbID string) string {
	if i := strings.LastIndexByte(dbID, ':'); i >= 0 {
		return dbID[i+1:]
	}
	return dbID
}

// ToDBID validates a lookup key and turns it into the db id the store
// understands. Accepted keys are a findable token, a full db id of this type's
// base, or a positive integer sequence.
func (t *EntityType) ToDBID(id any) (string, error) {
	base := t.Base().Name

	switch v := id.(type) {
	case string:
		if m := findableID.FindStringSubmatch(v); m != nil {
			return "@" + base + ":" + m[1], nil
		}
		prefix := "@" + base + ":"
		if strings.HasPrefix(v, prefix) && len(v) >= len(prefix)+16 && tokenPattern.MatchString(v[len(prefix):len(prefix)+16]) {
			return v, nil
		}
	case *RecordID:
		if v != nil && v.Type == base && tokenPattern.MatchString(v.Token) {
			return v.String(), nil
		}
	case int, int32, int64, uint, uint32, uint64:
		n, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		if err == nil && n > 0 {
			return base + ":" + strconv.FormatInt(n, 10), nil
		}
	}
	return "", fmt.Errorf("%w: %v", constants.ErrInvalidFindableID, id)
}

// ToDBIDs applies ToDBID to every key.
func (t *EntityType) ToDBIDs(ids []any) ([]string, error) {
	out := make([]string, len(ids))
	for i, id := range ids {
		dbID, err := t.ToDBID(id)
		if err != nil {
			return nil, err
		}
		out[i] = dbID
	}
	return out, nil
}
