// Package geo resolves client IPs to coarse location and ISP data for audit
// display. Lookups are best-effort: every failure resolves to nil.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"radportal/internal/metrics"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL    = "http://ip-api.com/json"
	DefaultTimeout    = 5 * time.Second
	DefaultCacheTTL   = 24 * time.Hour
	DefaultMaxEntries = 1000
	DefaultEvictBatch = 100

	lookupFields = "status,message,country,countryCode,region,regionName,city,zip,lat,lon,timezone,isp,org,as,query"
)

type Data struct {
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"countryCode,omitempty"`
	Region      string  `json:"region,omitempty"`
	RegionName  string  `json:"regionName,omitempty"`
	City        string  `json:"city,omitempty"`
	Zip         string  `json:"zip,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Org         string  `json:"org,omitempty"`
	AS          string  `json:"as,omitempty"`
	Query       string  `json:"query,omitempty"`
}

type cacheEntry struct {
	data      *Data
	timestamp time.Time
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     logrus.FieldLogger

	ttl        time.Duration
	maxEntries int
	evictBatch int
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.WithField("component", "Geolocation"),
		ttl:        DefaultCacheTTL,
		maxEntries: DefaultMaxEntries,
		evictBatch: DefaultEvictBatch,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// Lookup returns location data for ip, or nil when the address is local,
// the upstream fails, or the upstream reports anything but success.
func (c *Client) Lookup(ctx context.Context, ip string) *Data {
	ip = strings.TrimSpace(ip)
	if IsPrivateIP(ip) {
		metrics.GeolocationLookups.WithLabelValues("skipped").Inc()
		return nil
	}

	if cached := c.cached(ip); cached != nil {
		metrics.GeolocationLookups.WithLabelValues("cache_hit").Inc()
		return cached
	}

	data, err := c.fetch(ctx, ip)
	if err != nil {
		metrics.GeolocationLookups.WithLabelValues("error").Inc()
		c.logger.WithError(err).WithField("ip", ip).Warn("geolocation lookup failed")
		return nil
	}
	if data.Status != "success" {
		metrics.GeolocationLookups.WithLabelValues("unresolved").Inc()
		c.logger.WithFields(logrus.Fields{"ip": ip, "message": data.Message}).Warn("geolocation lookup unresolved")
		return data
	}

	metrics.GeolocationLookups.WithLabelValues("resolved").Inc()
	c.store(ip, data)
	return data
}

func (c *Client) fetch(ctx context.Context, ip string) (*Data, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s?fields=%s", c.baseURL, url.PathEscape(ip), lookupFields)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("geolocation upstream returned status %d", response.StatusCode)
	}

	var data Data
	if err := json.NewDecoder(response.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}
	return &data, nil
}

func (c *Client) cached(ip string) *Data {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[ip]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		delete(c.cache, ip)
		return nil
	}
	return entry.data
}

func (c *Client) store(ip string, data *Data) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[ip] = cacheEntry{data: data, timestamp: c.now()}
	if len(c.cache) > c.maxEntries {
		c.evictOldestLocked()
	}
}

// evictOldestLocked drops the evictBatch entries with the oldest timestamps.
func (c *Client) evictOldestLocked() {
	type aged struct {
		ip string
		at time.Time
	}
	entries := make([]aged, 0, len(c.cache))
	for ip, entry := range c.cache {
		entries = append(entries, aged{ip: ip, at: entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	n := c.evictBatch
	if n > len(entries) {
		n = len(entries)
	}
	for _, entry := range entries[:n] {
		delete(c.cache, entry.ip)
	}
}

func (c *Client) cacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// IsPrivateIP reports whether ip should never be sent upstream: empty or
// unparseable input, loopback, private ranges, link-local and unspecified.
func IsPrivateIP(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" || strings.EqualFold(ip, "localhost") {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return true
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}
