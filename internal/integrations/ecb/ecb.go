// Package ecb fetches the European Central Bank daily reference exchange
// rates, used to normalize subscription spend across currencies on the
// dashboard.
package ecb

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Client retrieves and caches ECB reference rates
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger

	mu        sync.Mutex
	rates     map[string]float64
	fetchedOn string // calendar day of the cached feed
}

// NewClient initializes a new ECB rates client
func NewClient(url string, log *logrus.Logger) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Rates returns EUR-based reference rates keyed by currency code, EUR
// included at 1. The feed updates once per business day, so the parsed table
// is cached for the calendar day.
func (c *Client) Rates() (map[string]float64, error) {
	today := time.Now().Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rates != nil && c.fetchedOn == today {
		return c.rates, nil
	}

	body, err := c.fetchFeed()
	if err != nil {
		// A stale table beats no table for dashboard math
		if c.rates != nil {
			c.log.Warnf("Using cached FX rates from %s: %v", c.fetchedOn, err)
			return c.rates, nil
		}
		return nil, err
	}

	rates, err := parseRates(body)
	if err != nil {
		return nil, err
	}

	c.rates = rates
	c.fetchedOn = today
	c.log.Infof("Loaded %d ECB reference rates", len(rates))
	return rates, nil
}

func (c *Client) fetchFeed() ([]byte, error) {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ECB rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ECB response: %w", err)
	}
	return body, nil
}

// parseRates extracts the currency/rate pairs from the eurofxref XML feed
func parseRates(rawBody []byte) (map[string]float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse ECB XML: %w", err)
	}

	cubes := doc.FindElements("//Cube/Cube/Cube")
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no rate data found in ECB feed")
	}

	rates := map[string]float64{"EUR": 1}
	for _, cube := range cubes {
		currency := cube.SelectAttrValue("currency", "")
		rateText := cube.SelectAttrValue("rate", "")
		if currency == "" || rateText == "" {
			continue
		}
		var rate float64
		if _, err := fmt.Sscanf(rateText, "%f", &rate); err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %w", currency, err)
		}
		rates[currency] = rate
	}
	return rates, nil
}
