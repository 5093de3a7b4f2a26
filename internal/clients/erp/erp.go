// Package erp talks to the ERP (S/4HANA) classification OData services.
// Unlike the cloud systems, ERP authenticates with Basic auth and guards
// modifying requests with an x-csrf-token fetched over the same session.
package erp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"asset-migrator/internal/common/config"
	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/common/metrics"
	"asset-migrator/internal/sap"
)

// Classification service and entity set used for indicator characteristics.
const (
	CharacteristicService   = "API_CLFN_CHARACTERISTIC_SRV"
	CharacteristicEntitySet = "A_ClfnCharacteristicForKeyDate"
)

// Client holds the Basic-auth session against one ERP client.
type Client struct {
	host       string
	sapClient  string
	username   string
	password   string
	batchSize  int
	httpClient *http.Client
	log        logger.Logger
}

// CSRFSession is the token and cookies a modifying request must carry.
type CSRFSession struct {
	Token   string
	Cookies []*http.Cookie
}

// New builds an ERP client from the tenant configuration.
func New(cfg *config.Config, log logger.Logger) (*Client, error) {
	sys, err := cfg.SystemByType(config.SystemERP)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport
	if sys.IgnoreCert {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		host:      sys.Host,
		sapClient: sys.Client,
		username:  sys.Credentials.Username,
		password:  sys.Credentials.Password,
		batchSize: cfg.Migration.BatchSize,
		httpClient: &http.Client{
			Timeout:   config.GetDuration(cfg.Migration.RequestTimeout),
			Transport: transport,
		},
		log: log.WithFields(map[string]interface{}{"system": config.SystemERP, "client": sys.Client}),
	}, nil
}

// EndpointURL composes the OData URL for a service and entity set.
func (c *Client) EndpointURL(service, entitySet string) string {
	return fmt.Sprintf("%s/sap/opu/odata/sap/%s/%s", c.host, service, entitySet)
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body []byte, headers map[string]string, cookies []*http.Cookie) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("sap-client", c.sapClient)
	query.Set("$format", "json")
	req.URL.RawQuery = query.Encode()

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	metrics.APIRequests.WithLabelValues(config.SystemERP, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// FetchCSRF obtains an x-csrf-token and the session cookies that validate it.
// The probe is a minimal read on the entity set the caller will write to.
func (c *Client) FetchCSRF(ctx context.Context, service, entitySet string) (*CSRFSession, error) {
	endpoint := c.EndpointURL(service, entitySet)
	query := url.Values{}
	query.Set("$top", "1")
	query.Set("$skip", "0")

	resp, err := c.do(ctx, http.MethodGet, endpoint, query, nil, map[string]string{
		"x-csrf-token": "FETCH",
	}, nil)
	if err != nil {
		return nil, apperrors.NewCSRFFetchFailedError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get("x-csrf-token")
	if resp.StatusCode != http.StatusOK || token == "" {
		return nil, apperrors.NewAPIError(endpoint, resp.StatusCode, "csrf token not granted")
	}
	return &CSRFSession{Token: token, Cookies: resp.Cookies()}, nil
}

// GetEntities pages through an entity set with $skip/$top, decoding the
// OData v2 d.results envelope.
func (c *Client) GetEntities(ctx context.Context, service, entitySet, filter string) ([]sap.Row, error) {
	endpoint := c.EndpointURL(service, entitySet)
	top := c.batchSize
	if top <= 0 {
		top = 100
	}

	var all []sap.Row
	skip := 0

	for {
		query := url.Values{}
		if filter != "" {
			query.Set("$filter", filter)
		}
		query.Set("$top", strconv.Itoa(top))
		query.Set("$skip", strconv.Itoa(skip))

		resp, err := c.do(ctx, http.MethodGet, endpoint, query, nil, nil, nil)
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

		rows, err := sap.DecodeCollection(body)
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

	c.log.Info("[GET] "+entitySet, map[string]interface{}{"count": len(all)})
	return all, nil
}

// GetCharacteristics extracts the classification characteristics valid today.
func (c *Client) GetCharacteristics(ctx context.Context) ([]sap.Row, error) {
	return c.GetEntities(ctx, CharacteristicService, CharacteristicEntitySet, "")
}

// GetCharacteristicByName looks up a characteristic by its exact name.
// A nil result means the characteristic does not exist yet.
func (c *Client) GetCharacteristicByName(ctx context.Context, name string) (sap.Row, error) {
	filter := fmt.Sprintf("Characteristic eq '%s'", name)
	rows, err := c.GetEntities(ctx, CharacteristicService, CharacteristicEntitySet, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// CharacteristicRequest is the payload for creating a classification
// characteristic. Dates follow the OData v2 epoch-millisecond convention.
type CharacteristicRequest struct {
	Characteristic       string `json:"Characteristic"`
	CharcDescription     string `json:"CharcDescription"`
	CharcStatus          string `json:"CharcStatus"`
	CharcDataType        string `json:"CharcDataType"`
	CharcLength          int    `json:"CharcLength"`
	CharcDecimals        int    `json:"CharcDecimals"`
	ValidityStartDate    string `json:"ValidityStartDate"`
	KeyDate              string `json:"KeyDate"`
	CharcMaintAuthGrp    string `json:"CharcMaintAuthGrp,omitempty"`
	CharcTemplate        string `json:"CharcTemplate,omitempty"`
	NegativeValueAllowed bool   `json:"NegativeValueIsAllowed"`
}

// ODataDate renders t as the /Date(ms)/ literal OData v2 write payloads use.
func ODataDate(t time.Time) string {
	return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
}

// CreateCharacteristic creates a characteristic under the given CSRF session
// and returns the created record.
func (c *Client) CreateCharacteristic(ctx context.Context, session *CSRFSession, req CharacteristicRequest) (sap.Row, error) {
	endpoint := c.EndpointURL(CharacteristicService, CharacteristicEntitySet)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, nil, body, map[string]string{
		"x-csrf-token": session.Token,
		"Content-Type": "application/json",
	}, session.Cookies)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, apperrors.NewAPIError(endpoint, resp.StatusCode, string(respBody))
	}

	var envelope struct {
		D sap.Row `json:"d"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	c.log.Info("[POST] characteristic created", map[string]interface{}{"name": req.Characteristic})
	return envelope.D, nil
}
