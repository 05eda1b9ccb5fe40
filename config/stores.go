package config

import (
	"os"
	"strings"
)

// StoreAll is the pseudo store identifier that fans a request out to every
// configured store.
const StoreAll = "all stores"

var defaultStores = []string{"loja1", "loja2", "loja3"}

// DapicCredentials are the per-store upstream ERP credentials exchanged for a
// bearer token.
type DapicCredentials struct {
	Username string
	Password string
}

// GetStores returns the fixed set of store identifiers. Overridable via
// DAPIC_STORES as a comma-separated list.
func GetStores() []string {
	raw := strings.TrimSpace(os.Getenv("DAPIC_STORES"))
	if raw == "" {
		out := make([]string, len(defaultStores))
		copy(out, defaultStores)
		return out
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, defaultStores...)
	}
	return out
}

func IsValidStore(storeId string) bool {
	for _, s := range GetStores() {
		if s == storeId {
			return true
		}
	}
	return false
}

// GetDapicCredentials reads DAPIC_USERNAME_<STORE> / DAPIC_PASSWORD_<STORE>.
// A store without both values is treated as unconfigured.
func GetDapicCredentials(storeId string) (DapicCredentials, bool) {
	suffix := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(storeId), " ", "_"))
	creds := DapicCredentials{
		Username: strings.TrimSpace(os.Getenv("DAPIC_USERNAME_" + suffix)),
		Password: strings.TrimSpace(os.Getenv("DAPIC_PASSWORD_" + suffix)),
	}
	if creds.Username == "" || creds.Password == "" {
		return DapicCredentials{}, false
	}
	return creds, true
}

// GetDapicBaseURL returns the upstream ERP base url.
func GetDapicBaseURL() string {
	base := strings.TrimSpace(os.Getenv("DAPIC_API_BASE_URL"))
	if base == "" {
		base = "https://api.dapic.com.br"
	}
	return strings.TrimRight(base, "/")
}
