// Package geo resolves request IPs to coarse locations and evaluates
// travel plausibility between consecutive logins. Lookups are best-effort:
// every failure path returns a nil location and callers proceed without one.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Location is the resolved coarse position of an IP.
type Location struct {
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Pretty  string  `json:"pretty"`
}

// Resolver maps an IP to a Location. Implementations must honor the context
// deadline and return (nil, nil) when the IP cannot be resolved; a non-nil
// error is reserved for programmer mistakes, not lookup failures.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// NoopResolver never resolves anything. Wired in tests and when no provider
// URL is configured.
type NoopResolver struct{}

func (NoopResolver) Resolve(ctx context.Context, ip string) (*Location, error) { return nil, nil }

const (
	lookupTimeout = 5 * time.Second
	cacheTTL      = 24 * time.Hour
)

// HTTPResolver queries an ip-api-compatible JSON endpoint, caching results
// in Redis for a day. Private and loopback ranges short-circuit to a
// synthetic "Local Network" result without touching the provider.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	cache   *redis.Client // may be nil; lookups then go straight out
}

// NewHTTPResolver builds a resolver for the given provider base URL, e.g.
// "http://ip-api.com/json". The cache client may be nil.
func NewHTTPResolver(baseURL string, cache *redis.Client) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: lookupTimeout},
		cache:   cache,
	}
}

// providerResponse mirrors the ip-api.com JSON shape.
type providerResponse struct {
	Status  string  `json:"status"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Resolve looks up ip with a hard 5-second deadline. Timeouts, provider
// errors and unparseable payloads all yield (nil, nil).
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	if loc := localNetworkLocation(ip); loc != nil {
		return loc, nil
	}

	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, cacheKey(ip)).Bytes(); err == nil {
			var loc Location
			if json.Unmarshal(raw, &loc) == nil {
				return &loc, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+ip, nil)
	if err != nil {
		return nil, nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("geo: lookup %s failed: %v", ip, err)
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, nil
	}
	if pr.Status != "" && pr.Status != "success" {
		return nil, nil
	}

	loc := &Location{
		City:    pr.City,
		Country: pr.Country,
		Lat:     pr.Lat,
		Lon:     pr.Lon,
		Pretty:  prettyName(pr.City, pr.Country),
	}

	if r.cache != nil {
		if raw, err := json.Marshal(loc); err == nil {
			_ = r.cache.Set(ctx, cacheKey(ip), raw, cacheTTL).Err()
		}
	}
	return loc, nil
}

func cacheKey(ip string) string { return "geo:" + ip }

func prettyName(city, country string) string {
	switch {
	case city != "" && country != "":
		return fmt.Sprintf("%s, %s", city, country)
	case country != "":
		return country
	default:
		return city
	}
}

// localNetworkLocation returns the synthetic result for private, loopback
// and otherwise unroutable addresses, or nil for public ones.
func localNetworkLocation(ip string) *Location {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified() {
		return &Location{City: "Local Network", Pretty: "Local Network"}
	}
	return nil
}
