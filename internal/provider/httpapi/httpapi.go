// Package httpapi implements the provider client against the vendor's
// HTTP API: every operation is a GET with the command and its parameters
// in the query string, answered by a JSON object whose result field is
// the literal "success" when the operation went through.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/evanofslack/dyndns-sync/internal/metrics"
	"github.com/evanofslack/dyndns-sync/internal/provider"
)

const requestTimeout = 30 * time.Second

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    Httper
	metrics *metrics.Metrics
}

type response struct {
	Result string       `json:"result"`
	Data   []wireRecord `json:"data"`
}

type wireRecord struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func New(baseURL, apiKey string, metrics *metrics.Metrics) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("provider api url empty")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("provider api key empty")
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		metrics: metrics,
	}
	return c, nil
}

func (c *Client) ListRecords(ctx context.Context, zone string) ([]provider.Record, error) {
	slog.Debug("Listing DNS records", "zone", zone)

	params := url.Values{}
	params.Set("zone", zone)
	resp, err := c.call(ctx, "listrecords", params)
	if err != nil {
		c.metrics.IncProviderRequest("list", zone, false)
		return nil, err
	}

	records := make([]provider.Record, 0, len(resp.Data))
	for _, r := range resp.Data {
		records = append(records, provider.Record{
			Name:  r.Name,
			Type:  r.Type,
			Value: r.Value,
		})
	}
	c.metrics.IncProviderRequest("list", zone, true)
	return records, nil
}

func (c *Client) AddRecord(ctx context.Context, name, recordType, value string) error {
	slog.Info("Adding DNS record", "name", name, "type", recordType, "value", value)

	params := url.Values{}
	params.Set("name", name)
	params.Set("type", recordType)
	params.Set("value", value)
	if _, err := c.call(ctx, "addrecord", params); err != nil {
		c.metrics.IncProviderRequest("add", name, false)
		return err
	}
	c.metrics.IncProviderRequest("add", name, true)
	return nil
}

func (c *Client) RemoveRecord(ctx context.Context, record provider.Record) error {
	slog.Info("Removing DNS record", "name", record.Name, "type", record.Type, "value", record.Value)

	params := url.Values{}
	params.Set("name", record.Name)
	params.Set("type", record.Type)
	params.Set("value", record.Value)
	if _, err := c.call(ctx, "removerecord", params); err != nil {
		c.metrics.IncProviderRequest("remove", record.Name, false)
		return err
	}
	c.metrics.IncProviderRequest("remove", record.Name, true)
	return nil
}

func (c *Client) call(ctx context.Context, command string, params url.Values) (response, error) {
	params.Set("command", command)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return response{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("provider api request, command=%s, err=%w", command, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return response{}, fmt.Errorf("provider api request, command=%s, status=%d", command, resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return response{}, fmt.Errorf("parse provider api response, command=%s, err=%w", command, err)
	}
	if parsed.Result != "success" {
		return response{}, fmt.Errorf("command=%s, result=%s: %w", command, parsed.Result, provider.ErrAPIFailure)
	}
	return parsed, nil
}
