package axnext

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Identity is the deduplication and cache key of a request: method, URL and
// serialized query parameters. Bodies do not participate.
type Identity string

// NewIdentity derives the identity of a request. A query already present in
// rawURL is merged with params, and the result is serialized with sorted
// keys, so "/d?a=1" and "/d" with {a: 1} share an identity.
func NewIdentity(method, rawURL string, params url.Values) Identity {
	target, query := splitQuery(rawURL, params)

	var b strings.Builder
	b.Grow(len(method) + len(target) + 16)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(target)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return Identity(b.String())
}

// splitQuery returns rawURL without its query and the union of that query
// with params. An unparsable rawURL is kept verbatim.
func splitQuery(rawURL string, params url.Values) (string, url.Values) {
	i := strings.IndexByte(rawURL, '?')
	if i < 0 {
		return rawURL, params
	}
	embedded, err := url.ParseQuery(rawURL[i+1:])
	if err != nil {
		return rawURL, params
	}

	merged := make(url.Values, len(embedded)+len(params))
	for k, v := range embedded {
		merged[k] = append(merged[k], v...)
	}
	for k, v := range params {
		merged[k] = append(merged[k], v...)
	}
	return rawURL[:i], merged
}

// Key returns a compact, fixed-length key for external stores.
func (id Identity) Key() string {
	return strconv.FormatUint(xxhash.Sum64String(string(id)), 16)
}

// String implements fmt.Stringer.
func (id Identity) String() string {
	return string(id)
}
