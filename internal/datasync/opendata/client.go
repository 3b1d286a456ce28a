// Package opendata reads the regional tourism registry through the
// Opendatasoft Explore v2.1 records API.
package opendata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	dserrors "apartur/internal/datasync/errors"
	"apartur/pkg/client"
	"apartur/pkg/config"
	"apartur/pkg/logger"
	"apartur/pkg/model"
)

// The records endpoint rejects offset+limit beyond this window.
const maxRecordWindow = 10000

type Client struct {
	http     *client.HttpClient
	dataset  string
	where    string
	pageSize int
	headers  map[string]string
	log      *logger.Logger
}

func NewClient(cfg *config.Config) *Client {
	pageSize := cfg.OpenDataPageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Client{
		http:     client.NewHttpClient(cfg.OpenDataBaseURL, cfg.OpenDataHTTPTimeout),
		dataset:  cfg.OpenDataDataset,
		where:    cfg.OpenDataWhere,
		pageSize: pageSize,
		headers:  requestHeaders(cfg.OpenDataAPIKey),
		log:      cfg.Log,
	}
}

// Anonymous access is rate limited per IP; an API key lifts the quota.
func requestHeaders(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Apikey " + apiKey}
}

type recordsPage struct {
	TotalCount int      `json:"total_count"`
	Results    []record `json:"results"`
}

// FetchAll pages through the dataset until total_count records have been read
// or the server returns a short page.
func (c *Client) FetchAll(ctx context.Context) ([]*model.Apartment, error) {
	var apartments []*model.Apartment
	offset := 0

	for {
		page, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		for i := range page.Results {
			apartments = append(apartments, page.Results[i].toModel())
		}
		offset += len(page.Results)

		if len(page.Results) < c.pageSize || offset >= page.TotalCount {
			break
		}
		if offset+c.pageSize > maxRecordWindow {
			c.log.Warn("Open-data result window exhausted", "fetched", offset, "total_count", page.TotalCount)
			break
		}
	}

	c.log.Info("Fetched open-data records", "dataset", c.dataset, "count", len(apartments))
	return apartments, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) (*recordsPage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageSize))
	query.Set("offset", strconv.Itoa(offset))
	if c.where != "" {
		query.Set("where", c.where)
	}
	path := fmt.Sprintf("/catalog/datasets/%s/records?%s", url.PathEscape(c.dataset), query.Encode())

	resp, err := c.http.GETWithHeaders(ctx, path, c.headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserrors.ErrFetchFailed, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s", dserrors.ErrFetchFailed, resp.ToString())
	}

	var page recordsPage
	if err := resp.DecodeJSON(&page); err != nil {
		return nil, fmt.Errorf("%w: invalid response at offset %d: %v", dserrors.ErrFetchFailed, offset, err)
	}
	return &page, nil
}
