// internal/sap/odata.go
package sap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "asset-migrator/internal/common/errors"
)

// Query carries the OData system query options supported by the wrappers.
type Query struct {
	Filter string
	Expand string
	Select string
	Top    int
}

// Values renders the query options plus the paging cursor.
func (q Query) Values(skip int) url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.Expand != "" {
		v.Set("$expand", q.Expand)
	}
	if q.Select != "" {
		v.Set("$select", q.Select)
	}
	if q.Top > 0 {
		v.Set("$top", strconv.Itoa(q.Top))
	}
	if skip > 0 {
		v.Set("$skip", strconv.Itoa(skip))
	}
	return v
}

// Row is one record of an OData collection, kept generic because the
// SAP response shapes differ per entity and are persisted column-by-name.
type Row = map[string]interface{}

// DecodeCollection extracts the record list from any of the envelope shapes
// the four systems return: {"value": [...]}, a bare array, or the OData v2
// {"d": {"results": [...]}} wrapper.
func DecodeCollection(raw []byte) ([]Row, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var rows []Row
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode array envelope: %w", err)
		}
		return rows, nil
	}

	var envelope struct {
		Value []Row `json:"value"`
		D     *struct {
			Results []Row `json:"results"`
		} `json:"d"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode collection envelope: %w", err)
	}
	if envelope.Value != nil {
		return envelope.Value, nil
	}
	if envelope.D != nil {
		return envelope.D.Results, nil
	}
	return nil, nil
}

// GetBatches pages through an OData collection with $skip/$top until a page
// comes back shorter than the batch size. The accumulated records are
// returned in request order.
func (c *Client) GetBatches(ctx context.Context, endpoint string, q Query) ([]Row, error) {
	top := q.Top
	if top <= 0 {
		top = 100
	}
	q.Top = top

	var all []Row
	skip := 0

	for {
		resp, err := c.Do(ctx, http.MethodGet, endpoint, q.Values(skip), nil, nil)
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.NewAPIError(endpoint, resp.StatusCode, string(body))
		}

		rows, err := DecodeCollection(body)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}

		all = append(all, rows...)
		if len(rows) < top {
			break
		}
		skip += top
	}

	return all, nil
}

// GetNextLinkPages pages through a collection that returns an "@nextLink"
// cursor instead of honoring $skip. The suffix from each page is resolved
// against the service base URL.
func (c *Client) GetNextLinkPages(ctx context.Context, baseURL, suffix string) ([]Row, error) {
	var all []Row

	for {
		endpoint := baseURL + suffix
		resp, err := c.Do(ctx, http.MethodGet, endpoint, nil, nil, nil)
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.NewAPIError(endpoint, resp.StatusCode, string(body))
		}

		var page struct {
			Value    []Row  `json:"value"`
			NextLink string `json:"@nextLink"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}

		all = append(all, page.Value...)

		if page.NextLink == "" {
			break
		}
		suffix = "/" + strings.TrimPrefix(page.NextLink, "/")
	}

	return all, nil
}

// Count fetches an OData $count endpoint, which returns a plain-text integer.
func (c *Client) Count(ctx context.Context, endpoint string, q Query) (int, error) {
	resp, err := c.Do(ctx, http.MethodGet, endpoint, q.Values(0), nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, apperrors.NewAPIError(endpoint, resp.StatusCode, string(body))
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("unexpected $count body %q: %w", string(body), err)
	}
	return count, nil
}
