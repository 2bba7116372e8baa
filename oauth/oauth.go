// Package oauth signs requests with OAuth 1.0a HMAC-SHA1 (RFC 5849).
package oauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"
)

// Signer holds the credentials for one consumer/token pair. Nonce and Now
// default to a random hex nonce and time.Now.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	// Realm, when set, is sent first in the header and is not signed.
	Realm string

	Nonce func() string
	Now   func() time.Time
}

type pair struct{ k, v string }

// Sign returns the Authorization header value for a request. params are the
// request parameters; any query string on rawURL is signed as well.
func (s *Signer) Sign(method, rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("oauth: parse url: %w", err)
	}

	oauthParams := []pair{
		{"oauth_consumer_key", s.ConsumerKey},
		{"oauth_token", s.Token},
		{"oauth_nonce", s.nonce()},
		{"oauth_timestamp", strconv.FormatInt(s.now().Unix(), 10)},
		{"oauth_signature_method", SignatureMethod},
		{"oauth_version", Version},
	}

	all := make([]pair, 0, len(oauthParams)+len(params))
	for _, p := range oauthParams {
		all = append(all, pair{Encode(p.k), Encode(p.v)})
	}
	for _, vals := range []url.Values{u.Query(), params} {
		for k, vs := range vals {
			for _, v := range vs {
				all = append(all, pair{Encode(k), Encode(v)})
			}
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].k != all[j].k {
			return all[i].k < all[j].k
		}
		return all[i].v < all[j].v
	})

	var ps strings.Builder
	for i, p := range all {
		if i > 0 {
			ps.WriteByte('&')
		}
		ps.WriteString(p.k)
		ps.WriteByte('=')
		ps.WriteString(p.v)
	}

	base := strings.ToUpper(method) + "&" + Encode(baseURL(u)) + "&" + Encode(ps.String())
	key := Encode(s.ConsumerSecret) + "&" + Encode(s.TokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var h strings.Builder
	h.WriteString("OAuth ")
	if s.Realm != "" {
		fmt.Fprintf(&h, `realm="%s", `, Encode(s.Realm))
	}
	for _, p := range append(oauthParams, pair{"oauth_signature", sig}) {
		fmt.Fprintf(&h, `%s="%s", `, Encode(p.k), Encode(p.v))
	}
	return strings.TrimSuffix(h.String(), ", "), nil
}

func (s *Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// baseURL is the scheme, host and path of u, without query or fragment.
// Scheme and host are lower-cased and default ports dropped.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// Encode percent-encodes s per RFC 3986: only ALPHA, DIGIT, '-', '.', '_'
// and '~' are left as is.
func Encode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}
