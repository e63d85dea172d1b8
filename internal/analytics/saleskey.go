package analytics

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tuushin/crmsync/backend-go/internal/domain"
)

// MaxSalesKeyLength bounds the encoded token accepted from clients.
const MaxSalesKeyLength = 8192

// ErrInvalidSalesKey is returned for any token that does not decode to a well-formed identity.
var ErrInvalidSalesKey = errors.New("invalid sales key")

type salesKeyPayload struct {
	SalesManagers []string `json:"salesManagers"`
	Managers      []string `json:"managers"`
	Unassigned    bool     `json:"unassigned"`
}

// EncodeSalesKey serializes an identity into a URL-safe token. Value sets are
// sorted and de-duplicated so equal identities always encode identically.
func EncodeSalesKey(identity domain.SalesIdentity) string {
	payload := salesKeyPayload{
		SalesManagers: sortedSet(identity.SalesManagers),
		Managers:      sortedSet(identity.Managers),
		Unassigned:    identity.Unassigned,
	}
	// Marshalling strings and a bool cannot fail.
	b, _ := json.Marshal(payload)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSalesKey reverses EncodeSalesKey. All three fields must be present with
// the expected types; anything else is ErrInvalidSalesKey.
func DecodeSalesKey(token string) (domain.SalesIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > MaxSalesKeyLength {
		return domain.SalesIdentity{}, ErrInvalidSalesKey
	}

	// Accept padded tokens too; some clients re-encode.
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return domain.SalesIdentity{}, fmt.Errorf("%w: %v", ErrInvalidSalesKey, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return domain.SalesIdentity{}, ErrInvalidSalesKey
	}
	if len(fields) != 3 {
		return domain.SalesIdentity{}, ErrInvalidSalesKey
	}

	var identity domain.SalesIdentity
	if identity.SalesManagers, err = decodeStringSet(fields, "salesManagers"); err != nil {
		return domain.SalesIdentity{}, err
	}
	if identity.Managers, err = decodeStringSet(fields, "managers"); err != nil {
		return domain.SalesIdentity{}, err
	}
	raw, ok := fields["unassigned"]
	if !ok || json.Unmarshal(raw, &identity.Unassigned) != nil || string(raw) == "null" {
		return domain.SalesIdentity{}, ErrInvalidSalesKey
	}
	return identity, nil
}

func decodeStringSet(fields map[string]json.RawMessage, name string) ([]string, error) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil, ErrInvalidSalesKey
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, ErrInvalidSalesKey
	}
	return sortedSet(values), nil
}

func sortedSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
