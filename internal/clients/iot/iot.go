// Package iot wraps the Leonardo IoT thing configuration and cold store
// APIs. Thing metadata drives the model and indicator mapping; the cold
// store export produces the time series files migrated into Embedded IoT.
package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"asset-migrator/internal/common/config"
	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/sap"
)

// Endpoint keys looked up in the system configuration. IoT splits its APIs
// over several hosts, so each one is configured explicitly.
const (
	EndpointConfigThing       = "config_thing"
	EndpointThing             = "thing"
	EndpointColdStore         = "cold_store"
	EndpointColdStoreDownload = "cold_store_download"
)

// Export status values reported by the cold store.
const (
	StatusInitiated        = "Initiated"
	StatusReadyForDownload = "Ready for Download"
)

// Client talks to the IoT configuration and cold store APIs.
type Client struct {
	api       *sap.Client
	endpoints map[string]string
	batchSize int
	log       logger.Logger
}

// New builds an IoT client from the tenant configuration.
func New(cfg *config.Config, log logger.Logger) (*Client, error) {
	sys, err := cfg.SystemByType(config.SystemIOT)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{EndpointConfigThing, EndpointThing, EndpointColdStore, EndpointColdStoreDownload} {
		if sys.Endpoints[key] == "" {
			return nil, apperrors.NewConfigInvalidError("iot endpoint " + key + " is not configured")
		}
	}

	return &Client{
		api:       sap.NewClient(sys, config.GetDuration(cfg.Migration.RequestTimeout)),
		endpoints: sys.Endpoints,
		batchSize: cfg.Migration.BatchSize,
		log:       log.WithFields(map[string]interface{}{"system": config.SystemIOT}),
	}, nil
}

// GetPropertySetTypes retrieves all property set types of the tenant package.
func (c *Client) GetPropertySetTypes(ctx context.Context) ([]sap.Row, error) {
	endpoint := c.endpoints[EndpointConfigThing] + "/ThingConfiguration/v1/PropertySetTypes"
	rows, err := c.api.GetBatches(ctx, endpoint, sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] property set types", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetThingTypes retrieves all thing types of the tenant package.
func (c *Client) GetThingTypes(ctx context.Context) ([]sap.Row, error) {
	endpoint := c.endpoints[EndpointConfigThing] + "/ThingConfiguration/v1/ThingTypes"
	rows, err := c.api.GetBatches(ctx, endpoint, sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] thing types", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetTimeSeriesPropertySets retrieves the property sets of one thing type and
// keeps only the ones carrying time series data, which are the only sets the
// cold store exports.
func (c *Client) GetTimeSeriesPropertySets(ctx context.Context, thingType string) ([]sap.Row, error) {
	endpoint := fmt.Sprintf("%s/ThingConfiguration/v1/ThingTypes('%s')/PropertySets",
		c.endpoints[EndpointConfigThing], url.PathEscape(thingType))

	rows, err := c.api.GetBatches(ctx, endpoint, sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}

	sets := rows[:0:0]
	for _, row := range rows {
		if row["DataCategory"] == "TimeSeriesData" {
			sets = append(sets, row)
		}
	}
	return sets, nil
}

// GetThingByExternalID resolves a thing by its external (ERP) id.
// A nil result means no thing carries that external id.
func (c *Client) GetThingByExternalID(ctx context.Context, externalID string) (sap.Row, error) {
	endpoint := c.endpoints[EndpointThing] + "/Things"
	filter := fmt.Sprintf("_externalId eq '%s'", externalID)

	rows, err := c.api.GetBatches(ctx, endpoint, sap.Query{Filter: filter, Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// InitiateDataExport asks the cold store to assemble an export file for one
// property set group over a time range, returning the request id to poll.
// Re-initiating a range that is already being assembled answers 208 and is
// treated as success.
func (c *Client) InitiateDataExport(ctx context.Context, group string, from, to time.Time) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/InitiateDataExport/%s", c.endpoints[EndpointColdStore], url.PathEscape(group))
	query := url.Values{}
	query.Set("timerange", fmt.Sprintf("%s-%s", from.Format("2006-01-02"), to.Format("2006-01-02")))

	resp, err := c.api.Do(ctx, http.MethodPost, endpoint, query, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		c.log.Info("export initiated", map[string]interface{}{"group": group, "timerange": query.Get("timerange")})
	case http.StatusAlreadyReported:
		c.log.Warn("export already initiated", map[string]interface{}{"group": group, "timerange": query.Get("timerange")})
	default:
		return "", apperrors.NewAPIError(endpoint, resp.StatusCode, string(body))
	}

	var ack struct {
		RequestID string `json:"RequestId"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return ack.RequestID, nil
}

// GetDataExportStatus returns the assembly state of an export request. The
// cold store phrases completion as a sentence, normalized here to the status
// value the polling loop compares against.
func (c *Client) GetDataExportStatus(ctx context.Context, requestID string) (string, error) {
	endpoint := c.endpoints[EndpointColdStore] + "/v1/DataExportStatus"
	query := url.Values{}
	query.Set("requestId", requestID)

	var status struct {
		Status string `json:"Status"`
	}
	if err := c.api.GetJSON(ctx, endpoint+"?"+query.Encode(), nil, &status); err != nil {
		return "", err
	}

	if status.Status == "The file is available for download." {
		return StatusReadyForDownload, nil
	}
	return status.Status, nil
}

// DownloadData streams a finished export file to w, resuming on failures.
func (c *Client) DownloadData(ctx context.Context, requestID string, w io.Writer) (int64, error) {
	endpoint := fmt.Sprintf("%s/v1/DownloadData('%s')", c.endpoints[EndpointColdStoreDownload], requestID)
	return c.api.DownloadSequential(ctx, endpoint, w, c.log)
}

// YearlySlices splits [from, to] into calendar-aligned slices no longer than
// one year, the largest range a single export request accepts.
func YearlySlices(from, to time.Time) [][2]time.Time {
	var slices [][2]time.Time
	for start := from; start.Before(to); {
		end := start.AddDate(1, 0, 0)
		if end.After(to) {
			end = to
		}
		slices = append(slices, [2]time.Time{start, end})
		start = end
	}
	return slices
}
