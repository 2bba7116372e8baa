// Package cardmarket talks to the Cardmarket API: signed requests behind a
// cache and daily budget, price-guide normalization and price sync.
package cardmarket

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/config"
	"github.com/padraicbc/mtgvault/logger"
	"github.com/padraicbc/mtgvault/oauth"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.cardmarket.com/ws/v2.0"

const (
	gameMagic       = "1"
	languageEnglish = "1"
	maxBody         = 8 << 20
)

// Doer issues HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Product is one search hit from /products/find.
type Product struct {
	ID            int64  `json:"idProduct"`
	Name          string `json:"enName"`
	ExpansionName string `json:"expansionName"`
	Number        string `json:"number"`
	Rarity        string `json:"rarity"`
	Website       string `json:"website"`
}

// Client issues signed, gated GET requests.
type Client struct {
	baseURL string
	signer  *oauth.Signer
	http    Doer
	gate    *Gate
	ttl     time.Duration
	log     *zap.Logger
}

// NewClient builds a client from explicit settings. A nil httpClient gets
// one with cfg.Timeout.
func NewClient(cfg config.CardmarketConfig, gate *Gate, httpClient Doer, log *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		signer: &oauth.Signer{
			ConsumerKey:    cfg.AppToken,
			ConsumerSecret: cfg.AppSecret,
			Token:          cfg.AccessToken,
			TokenSecret:    cfg.AccessSecret,
		},
		http: httpClient,
		gate: gate,
		ttl:  cfg.PriceTTL,
		log:  logger.OrNop(log),
	}
}

// Configured reports whether app credentials are present.
func (c *Client) Configured() bool {
	return c.signer.ConsumerKey != "" && c.signer.ConsumerSecret != ""
}

// PriceGuide returns the raw product response for a marketplace product id.
// Only responses that Normalize accepts are cached.
func (c *Client) PriceGuide(ctx context.Context, productID int64) ([]byte, error) {
	key := "cardmarket_price_" + strconv.FormatInt(productID, 10)
	return c.gate.Fetch(ctx, key, c.ttl, func(ctx context.Context) ([]byte, error) {
		body, err := c.get(ctx, "/products/"+strconv.FormatInt(productID, 10), nil)
		if err != nil {
			return nil, err
		}
		if _, err := Normalize(body); err != nil {
			return nil, err
		}
		return body, nil
	})
}

// FindProducts searches English Magic products by name, optionally within
// one expansion.
func (c *Client) FindProducts(ctx context.Context, name, expansion string) ([]Product, error) {
	params := url.Values{
		"search":   {name},
		"game":     {gameMagic},
		"language": {languageEnglish},
	}
	if expansion != "" {
		params.Set("expansion", expansion)
	}
	sum := md5.Sum([]byte(name + expansion))
	key := "cardmarket_search_" + hex.EncodeToString(sum[:])

	body, err := c.gate.Fetch(ctx, key, c.ttl, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, "/products/find", params)
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Product []Product `json:"product"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("cardmarket: decode search: %w", err)
	}
	if resp.Product == nil {
		return []Product{}, nil
	}
	return resp.Product, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrAuthNotConfigured
	}
	endpoint := c.baseURL + path

	auth, err := c.signer.Sign(http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	target := endpoint
	if len(params) > 0 {
		target += "?" + encodeQuery(params)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &FetchError{URL: endpoint, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("cardmarket error response",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body[:min(len(body), 512)]))
		return nil, &FetchError{URL: endpoint, Status: resp.StatusCode}
	}
	return body, nil
}

// encodeQuery encodes params with RFC 3986 escaping so the query matches
// what was signed.
func encodeQuery(params url.Values) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(params)) {
		for _, v := range params[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(oauth.Encode(k))
			b.WriteByte('=')
			b.WriteString(oauth.Encode(v))
		}
	}
	return b.String()
}
