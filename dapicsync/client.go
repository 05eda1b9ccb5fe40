package dapicsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/grupovitrine/painel_backend/config"
)

// PageSize is the fixed upstream page size. A page with fewer records is the
// last one.
const PageSize = 200

// tokenSafetyMargin is subtracted from the reported TTL so we renew before
// the upstream actually expires the token.
const tokenSafetyMargin = 300 * time.Second

// CredentialsError marks a store without usable Dapic credentials. Every call
// for that store fails fast, before any network traffic.
type CredentialsError struct {
	Store string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("dapic credentials missing or rejected for store %q", e.Store)
}

type tokenEntry struct {
	token     string
	expiresAt time.Time
}

// TokenCache holds one bearer token per store. Process-local, no persistence
// across restarts.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]tokenEntry
}

func NewTokenCache() *TokenCache {
	return &TokenCache{entries: map[string]tokenEntry{}}
}

func (c *TokenCache) get(storeId string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[storeId]
	if !ok || now.After(entry.expiresAt) {
		return "", false
	}
	return entry.token, true
}

func (c *TokenCache) set(storeId string, token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[storeId] = tokenEntry{token: token, expiresAt: expiresAt}
}

func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]tokenEntry{}
}

// Client talks to the Dapic ERP for every configured store.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenCache
	refs    *referenceCache
	now     func() time.Time
}

func NewClient() *Client {
	return &Client{
		baseURL: config.GetDapicBaseURL(),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  NewTokenCache(),
		refs:    newReferenceCache(),
		now:     time.Now,
	}
}

// Tokens exposes the cache so callers can invalidate it explicitly.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

func (c *Client) bearerToken(ctx context.Context, storeId string) (string, error) {
	if token, ok := c.tokens.get(storeId, c.now()); ok {
		return token, nil
	}

	creds, ok := config.GetDapicCredentials(storeId)
	if !ok {
		return "", &CredentialsError{Store: storeId}
	}

	payload, _ := json.Marshal(map[string]string{
		"usuario": creds.Username,
		"senha":   creds.Password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &CredentialsError{Store: storeId}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &CredentialsError{Store: storeId}
	}

	var parsed dapicTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.bearer() == "" {
		return "", &CredentialsError{Store: storeId}
	}

	ttl := time.Duration(parsed.ExpiresIn) * time.Second
	if ttl <= tokenSafetyMargin {
		ttl = tokenSafetyMargin * 2
	}
	expiresAt := c.now().Add(ttl - tokenSafetyMargin)
	c.tokens.set(storeId, parsed.bearer(), expiresAt)
	return parsed.bearer(), nil
}

func (c *Client) getJSON(ctx context.Context, storeId string, path string, params url.Values, dest interface{}) error {
	token, err := c.bearerToken(ctx, storeId)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dapic api error %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, dest)
}

// FetchSalesPage retrieves one page of finalized sales for the store inside
// the inclusive date range. Pages are 1-based.
func (c *Client) FetchSalesPage(ctx context.Context, storeId string, start time.Time, end time.Time, page int) ([]RawSale, error) {
	params := url.Values{}
	params.Set("Pagina", strconv.Itoa(page))
	params.Set("RegistrosPorPagina", strconv.Itoa(PageSize))
	params.Set("DataInicial", start.Format("2006-01-02"))
	params.Set("DataFinal", end.Format("2006-01-02"))

	var parsed dapicPage
	if err := c.getJSON(ctx, storeId, "/api/v1/vendas", params, &parsed); err != nil {
		return nil, err
	}

	records := parsed.records()
	out := make([]RawSale, 0, len(records))
	for _, raw := range records {
		var sale dapicSale
		if err := json.Unmarshal(raw, &sale); err != nil {
			// Keep the record around as an empty RawSale; the sync
			// pipeline records it as a per-record failure.
			out = append(out, RawSale{})
			continue
		}
		out = append(out, sale.toRawSale())
	}
	return out, nil
}
