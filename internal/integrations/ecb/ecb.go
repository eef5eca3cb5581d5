package ecb

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/lmoretti/finance-service/internal/config"
	"github.com/sirupsen/logrus"
)

// Client handles integration with the ECB daily reference rate feed
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new ECB client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.RatesURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// fetch downloads the daily reference rate XML
func (c *Client) fetch() ([]byte, error) {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	c.log.Debugf("ECB XML response: %s", string(body))
	return body, nil
}

// parseRates extracts currency rates from the eurofxref XML document
func (c *Client) parseRates(rawBody []byte) (map[string]float64, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %v", err)
	}

	cubes := doc.FindElements("//Cube[@currency]")
	if len(cubes) == 0 {
		return nil, fmt.Errorf("no rate data found in XML")
	}

	rates := make(map[string]float64, len(cubes))
	for _, cube := range cubes {
		currency := cube.SelectAttrValue("currency", "")
		rateAttr := cube.SelectAttrValue("rate", "")
		rate, err := strconv.ParseFloat(rateAttr, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate for %s: %v", currency, err)
		}
		rates[strings.ToUpper(currency)] = rate
	}
	return rates, nil
}

// Rates retrieves the current EUR-based reference rates
func (c *Client) Rates() (map[string]float64, error) {
	body, err := c.fetch()
	if err != nil {
		return nil, err
	}

	rates, err := c.parseRates(body)
	if err != nil {
		return nil, err
	}

	c.log.Infof("Retrieved %d reference rates", len(rates))
	return rates, nil
}

// Rate retrieves the EUR-based rate for a single currency
func (c *Client) Rate(currency string) (float64, error) {
	currency = strings.ToUpper(currency)
	if currency == "EUR" {
		return 1, nil
	}
	rates, err := c.Rates()
	if err != nil {
		return 0, err
	}
	rate, ok := rates[currency]
	if !ok {
		return 0, fmt.Errorf("no reference rate for %q", currency)
	}
	return rate, nil
}
