package dapicsync

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/grupovitrine/painel_backend/config"
)

// referenceDataTTL bounds the reference-data cache (clients, products). That
// data is identical across stores upstream, so one canonical store is
// queried and the result distributed to every store slot.
const referenceDataTTL = 5 * time.Minute

type referenceEntry struct {
	records   []json.RawMessage
	expiresAt time.Time
}

type referenceCache struct {
	mu      sync.Mutex
	entries map[string]referenceEntry
}

func newReferenceCache() *referenceCache {
	return &referenceCache{entries: map[string]referenceEntry{}}
}

func (c *referenceCache) get(kind string, now time.Time) ([]json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[kind]
	if !ok || now.After(entry.expiresAt) {
		return nil, false
	}
	return entry.records, true
}

func (c *referenceCache) set(kind string, records []json.RawMessage, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = referenceEntry{records: records, expiresAt: now.Add(referenceDataTTL)}
}

func (c *referenceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]referenceEntry{}
}

func deepCopyRecords(records []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, rec := range records {
		dup := make(json.RawMessage, len(rec))
		copy(dup, rec)
		out[i] = dup
	}
	return out
}

// FetchReference returns reference data (kind "clientes" or "produtos") for
// one store, or for every store when storeId is the all-stores pseudo id.
// The all-stores case queries a single canonical store and deep-copies the
// payload into every store's slot; results are cached for 5 minutes.
func (c *Client) FetchReference(ctx context.Context, kind string, storeId string) (map[string][]json.RawMessage, map[string]string) {
	results := map[string][]json.RawMessage{}
	errors := map[string]string{}

	if storeId != config.StoreAll {
		records, err := c.fetchReferencePage(ctx, kind, storeId)
		if err != nil {
			errors[storeId] = err.Error()
			return results, errors
		}
		results[storeId] = records
		return results, errors
	}

	stores := config.GetStores()
	records, ok := c.refs.get(kind, c.now())
	if !ok {
		var canonical string
		// First store with working credentials is the canonical one.
		for _, store := range stores {
			fetched, err := c.fetchReferencePage(ctx, kind, store)
			if err != nil {
				errors[store] = err.Error()
				continue
			}
			canonical = store
			records = fetched
			break
		}
		if canonical == "" {
			return results, errors
		}
		// Stores whose own credentials failed still receive the canonical
		// copy, so their fetch errors are not surfaced.
		for store := range errors {
			delete(errors, store)
		}
		c.refs.set(kind, records, c.now())
	}

	for _, store := range stores {
		results[store] = deepCopyRecords(records)
	}
	return results, errors
}

func (c *Client) fetchReferencePage(ctx context.Context, kind string, storeId string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("Pagina", "1")
	params.Set("RegistrosPorPagina", "500")

	var parsed dapicPage
	if err := c.getJSON(ctx, storeId, "/api/v1/"+kind, params, &parsed); err != nil {
		return nil, err
	}
	return parsed.records(), nil
}
