package dapicsync

import (
	"context"
	"sync"
	"time"

	"github.com/grupovitrine/painel_backend/config"
)

// FanOutSales fetches a single sales page from every configured store
// concurrently. Per-store failures land in the errors map keyed by store id
// and never abort the other stores.
func (c *Client) FanOutSales(ctx context.Context, page int, start, end time.Time) (map[string][]RawSale, map[string]string) {
	stores := config.GetStores()

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := map[string][]RawSale{}
	errors := map[string]string{}

	for _, store := range stores {
		wg.Add(1)
		go func(store string) {
			defer wg.Done()
			sales, err := c.FetchSalesPage(ctx, store, start, end, page)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errors[store] = err.Error()
				return
			}
			results[store] = sales
		}(store)
	}
	wg.Wait()

	return results, errors
}
