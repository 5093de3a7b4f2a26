// Package apm wraps the Asset Performance Management indicator APIs:
// indicator positions, indicators, characteristics and technical objects,
// plus the Embedded IoT metadata sync and file upload services.
package apm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"asset-migrator/internal/common/config"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/sap"
)

// Service paths under the APM host.
const (
	IndicatorService       = "/IndicatorService/v1"
	TechnicalObjectService = "/TechnicalObjectService/v1"
	EIoTMetadataService    = "/EIoTMetadataSyncService/v1"
	FileUploadService      = "/FileUploadService/v1"
)

// Client talks to one APM service.
type Client struct {
	api     *sap.Client
	baseURL string
	erpSSID string
	log     logger.Logger
}

// New builds an APM client rooted at the given service path.
func New(cfg *config.Config, service string, log logger.Logger) (*Client, error) {
	sys, err := cfg.SystemByType(config.SystemAPM)
	if err != nil {
		return nil, err
	}
	ssid, err := cfg.ERPSSID()
	if err != nil {
		return nil, err
	}

	api := sap.NewClient(sys, config.GetDuration(cfg.Migration.RequestTimeout))
	return &Client{
		api:     api,
		baseURL: api.BaseURL + service,
		erpSSID: ssid,
		log:     log.WithFields(map[string]interface{}{"system": config.SystemAPM, "service": service}),
	}, nil
}

// ERPSSID returns the logical system id of the connected ERP.
func (c *Client) ERPSSID() string {
	return c.erpSSID
}

// IndicatorPosition is one named position an indicator can be attached to.
type IndicatorPosition struct {
	ID   string `json:"ID"`
	SSID string `json:"SSID"`
	Name string `json:"name"`
}

// GetIndicatorPositions lists all indicator positions. The service ignores
// $skip and returns an @nextLink cursor instead.
func (c *Client) GetIndicatorPositions(ctx context.Context) ([]sap.Row, error) {
	rows, err := c.api.GetNextLinkPages(ctx, c.baseURL, "/IndicatorPositions")
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] indicator positions", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetIndicatorPositionsCount returns the number of indicator positions.
func (c *Client) GetIndicatorPositionsCount(ctx context.Context) (int, error) {
	return c.api.Count(ctx, c.baseURL+"/IndicatorPositions/$count", sap.Query{})
}

// CreateIndicatorPosition creates a position under the ERP SSID and returns
// the created record including its GUID.
func (c *Client) CreateIndicatorPosition(ctx context.Context, name string) (*IndicatorPosition, error) {
	body := map[string]string{
		"SSID": c.erpSSID,
		"name": name,
	}

	var created IndicatorPosition
	if err := c.api.PostJSON(ctx, c.baseURL+"/IndicatorPositions", body, 201, &created); err != nil {
		return nil, err
	}
	c.log.Info("[POST] indicator position", map[string]interface{}{"name": name, "id": created.ID})
	return &created, nil
}

// GetIndicatorPositionByName looks a position up by its (upper-cased) name.
// A nil result means no position with that name exists.
func (c *Client) GetIndicatorPositionByName(ctx context.Context, name string) (*IndicatorPosition, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("name eq '%s'", strings.ToUpper(name)))

	var page struct {
		Value []IndicatorPosition `json:"value"`
	}
	if err := c.api.GetJSON(ctx, c.baseURL+"/IndicatorPositions", query, &page); err != nil {
		return nil, err
	}
	if len(page.Value) == 0 {
		return nil, nil
	}
	return &page.Value[0], nil
}

// IndicatorRequest carries the cross-system references an indicator is
// created from: the technical object from ERP, the category, the ERP
// characteristic and the APM position.
type IndicatorRequest struct {
	TechnicalObjectNumber string `json:"technicalObject_number"`
	TechnicalObjectSSID   string `json:"technicalObject_SSID"`
	TechnicalObjectType   string `json:"technicalObject_type"`
	CategorySSID          string `json:"category_SSID"`
	CategoryName          string `json:"category_name"`
	CharacteristicsSSID   string `json:"characteristics_SSID"`
	CharacteristicsID     string `json:"characteristics_characteristicsInternalId"`
	PositionDetailsID     string `json:"positionDetails_ID"`
}

// CreateIndicator creates an indicator record and returns the raw response.
func (c *Client) CreateIndicator(ctx context.Context, req IndicatorRequest) (sap.Row, error) {
	var created sap.Row
	if err := c.api.PostJSON(ctx, c.baseURL+"/Indicators", req, 201, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// SearchIndicator looks for an existing indicator matching all references of
// req, used to keep indicator creation idempotent across runs.
func (c *Client) SearchIndicator(ctx context.Context, req IndicatorRequest) ([]sap.Row, error) {
	filter := fmt.Sprintf(
		"technicalObject_number eq '%s' and technicalObject_type eq '%s' and technicalObject_SSID eq '%s'"+
			" and category_name eq '%s' and category_SSID eq '%s'"+
			" and characteristics_characteristicsInternalId eq '%s' and positionDetails_ID eq '%s'"+
			" and characteristics_SSID eq '%s'",
		req.TechnicalObjectNumber, req.TechnicalObjectType, req.TechnicalObjectSSID,
		req.CategoryName, req.CategorySSID,
		req.CharacteristicsID, req.PositionDetailsID,
		req.CharacteristicsSSID,
	)

	query := url.Values{}
	query.Set("$filter", filter)

	var page struct {
		Value []sap.Row `json:"value"`
	}
	if err := c.api.GetJSON(ctx, c.baseURL+"/Indicators", query, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// GetCharacteristic fetches one replicated ERP characteristic by internal id.
func (c *Client) GetCharacteristic(ctx context.Context, internalID string) (sap.Row, error) {
	endpoint := fmt.Sprintf("%s/Characteristics(SSID='%s',characteristicsInternalId='%s')",
		c.baseURL, c.erpSSID, internalID)

	var row sap.Row
	if err := c.api.GetJSON(ctx, endpoint, nil, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// GetTechnicalObjectNumber resolves a technical object by its external id.
func (c *Client) GetTechnicalObjectNumber(ctx context.Context, externalID string) (sap.Row, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("externalId eq '%s'", externalID))

	var page struct {
		Value []sap.Row `json:"value"`
	}
	if err := c.api.GetJSON(ctx, c.baseURL+"/TechnicalObjects", query, &page); err != nil {
		return nil, err
	}
	if len(page.Value) == 0 {
		return nil, nil
	}
	return page.Value[0], nil
}
