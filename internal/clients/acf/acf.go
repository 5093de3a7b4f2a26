// Package acf wraps the Asset Central Foundation master data APIs:
// equipment, functional locations, models, templates, indicators and
// external IDs. All list endpoints page through the shared OData client.
package acf

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"asset-migrator/internal/common/config"
	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/sap"
)

const servicePath = "/ain/services/api/v1"

// Client talks to the ACF REST APIs.
type Client struct {
	api       *sap.Client
	baseURL   string
	erpSSID   string
	batchSize int
	log       logger.Logger
}

// New builds an ACF client from the tenant configuration.
func New(cfg *config.Config, log logger.Logger) (*Client, error) {
	sys, err := cfg.SystemByType(config.SystemACF)
	if err != nil {
		return nil, err
	}
	ssid, err := cfg.ERPSSID()
	if err != nil {
		return nil, err
	}

	api := sap.NewClient(sys, config.GetDuration(cfg.Migration.RequestTimeout))
	return &Client{
		api:       api,
		baseURL:   api.BaseURL + servicePath,
		erpSSID:   ssid,
		batchSize: cfg.Migration.BatchSize,
		log:       log.WithFields(map[string]interface{}{"system": config.SystemACF}),
	}, nil
}

// ERPSSID returns the logical system id of the connected ERP.
func (c *Client) ERPSSID() string {
	return c.erpSSID
}

// GetEquipments retrieves equipment master records in batches.
func (c *Client) GetEquipments(ctx context.Context, filter string) ([]sap.Row, error) {
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/equipment", sap.Query{Filter: filter, Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] equipments", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetFunctionalLocations retrieves functional location master records in batches.
func (c *Client) GetFunctionalLocations(ctx context.Context, filter string) ([]sap.Row, error) {
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/floc", sap.Query{Filter: filter, Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] functional locations", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetModels retrieves all models.
func (c *Client) GetModels(ctx context.Context) ([]sap.Row, error) {
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/models", sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] models", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetModelsByType retrieves models of one type ("EQU" or "FLOC"), keeping
// only models that carry search terms, as the migration has always done.
func (c *Client) GetModelsByType(ctx context.Context, modelType string) ([]sap.Row, error) {
	filter := fmt.Sprintf("modelType eq '%s'", modelType)
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/models", sap.Query{Filter: filter, Top: c.batchSize})
	if err != nil {
		return nil, err
	}

	models := rows[:0:0]
	for _, row := range rows {
		if terms, ok := row["modelSearchTerms"]; ok && terms != nil && terms != "" {
			models = append(models, row)
		}
	}
	c.log.Info("[GET] models by type", map[string]interface{}{"type": modelType, "count": len(models)})
	return models, nil
}

// GetEquipmentModels retrieves models of type EQU.
func (c *Client) GetEquipmentModels(ctx context.Context) ([]sap.Row, error) {
	return c.GetModelsByType(ctx, "EQU")
}

// GetFlocModels retrieves models of type FLOC.
func (c *Client) GetFlocModels(ctx context.Context) ([]sap.Row, error) {
	return c.GetModelsByType(ctx, "FLOC")
}

// GetModelHeader retrieves the header section of one model.
func (c *Client) GetModelHeader(ctx context.Context, modelID string) (sap.Row, error) {
	var header sap.Row
	endpoint := fmt.Sprintf("%s/models(%s)/header", c.baseURL, modelID)
	if err := c.api.GetJSON(ctx, endpoint, nil, &header); err != nil {
		return nil, err
	}
	return header, nil
}

// GetTemplate retrieves one template by GUID.
func (c *Client) GetTemplate(ctx context.Context, templateID string) ([]sap.Row, error) {
	var rows []sap.Row
	endpoint := fmt.Sprintf("%s/templates(%s)", c.baseURL, templateID)
	if err := c.api.GetJSON(ctx, endpoint, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetIndicators retrieves the full indicator catalog.
func (c *Client) GetIndicators(ctx context.Context) ([]sap.Row, error) {
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/indicators", sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] indicators", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetIndicatorsCount retrieves the indicator catalog size.
func (c *Client) GetIndicatorsCount(ctx context.Context) (int, error) {
	return c.api.Count(ctx, c.baseURL+"/indicators/$count", sap.Query{})
}

// GetIndicatorGroups retrieves the full indicator group catalog.
func (c *Client) GetIndicatorGroups(ctx context.Context) ([]sap.Row, error) {
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/indicatorgroups", sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] indicator groups", map[string]interface{}{"count": len(rows)})
	return rows, nil
}

// GetIndicatorGroupsCount retrieves the indicator group catalog size.
func (c *Client) GetIndicatorGroupsCount(ctx context.Context) (int, error) {
	return c.api.Count(ctx, c.baseURL+"/indicatorgroups/$count", sap.Query{})
}

// GetIndicatorGroup retrieves one indicator group by GUID.
func (c *Client) GetIndicatorGroup(ctx context.Context, guid string) (sap.Row, error) {
	var group sap.Row
	endpoint := fmt.Sprintf("%s/indicatorgroups/%s", c.baseURL, guid)
	if err := c.api.GetJSON(ctx, endpoint, nil, &group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetExternalData retrieves external ID assignments matching the filter.
// External data is bulkier than other entities, so it pages with its own
// batch size (historically 5000).
func (c *Client) GetExternalData(ctx context.Context, filter string, batchSize int) ([]sap.Row, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/externaldata", sap.Query{Filter: filter, Top: batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] external data", map[string]interface{}{"filter": filter, "count": len(rows)})
	return rows, nil
}

// GetObjectByThingID resolves the ACF object assigned to an IoT thing id.
func (c *Client) GetObjectByThingID(ctx context.Context, externalID string) (sap.Row, error) {
	return c.getObjectByExternalID(ctx, externalID, "pdmsSysThing")
}

// GetModelIDByThingType resolves the ACF model assigned to an IoT thing type.
func (c *Client) GetModelIDByThingType(ctx context.Context, thingType string) (sap.Row, error) {
	return c.getObjectByExternalID(ctx, thingType, "pdmsSysPackage")
}

func (c *Client) getObjectByExternalID(ctx context.Context, externalID, systemName string) (sap.Row, error) {
	endpoint := fmt.Sprintf("%s/objectsid/ainobjects(%s)", c.baseURL, externalID)
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("systemName eq '%s'", systemName))

	var rows []sap.Row
	if err := c.api.GetJSON(ctx, endpoint+"?"+query.Encode(), nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewAPIError(endpoint, http.StatusNotFound, "no object assigned to external id "+externalID)
	}
	return rows[0], nil
}

// GetAlertTypes retrieves the alert type catalog.
func (c *Client) GetAlertTypes(ctx context.Context) ([]sap.Row, error) {
	rows, err := c.api.GetBatches(ctx, c.baseURL+"/alerttypes", sap.Query{Top: c.batchSize})
	if err != nil {
		return nil, err
	}
	c.log.Info("[GET] alert types", map[string]interface{}{"count": len(rows)})
	return rows, nil
}
