package apm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	apperrors "asset-migrator/internal/common/errors"
	"asset-migrator/internal/sap"
)

// eiotObjectType maps ACF object types to the type names the Embedded IoT
// metadata service expects. Equipment is "EQUI" there, not "EQU".
var eiotObjectType = map[string]string{
	"EQU":  "EQUI",
	"FLOC": "FLOC",
}

// TechnicalObjectType translates an ACF object type into the technical
// object type APM uses.
func TechnicalObjectType(acfType string) string {
	if mapped, ok := eiotObjectType[acfType]; ok {
		return mapped
	}
	return acfType
}

// EIoTClient talks to the Embedded IoT metadata sync and file upload
// services, which live on the APM host next to the indicator services.
type EIoTClient struct {
	*Client
	uploadURL string
}

// NewEIoT builds a client for the EIoT metadata sync service.
func NewEIoT(c *Client) *EIoTClient {
	host := c.api.BaseURL
	return &EIoTClient{
		Client:    &Client{api: c.api, baseURL: host + EIoTMetadataService, erpSSID: c.erpSSID, log: c.log},
		uploadURL: host + FileUploadService,
	}
}

// GetSyncedTechnicalObject fetches a technical object from the EIoT metadata
// store with its indicators expanded, to check whether indicator metadata has
// replicated. objectType is the ACF type ("EQU" or "FLOC").
func (c *EIoTClient) GetSyncedTechnicalObject(ctx context.Context, number, objectType string) (sap.Row, error) {
	eiotType, ok := eiotObjectType[objectType]
	if !ok {
		eiotType = objectType
	}

	endpoint := fmt.Sprintf("%s/TechnicalObjects(number='%s',SSID='%s',type='%s')",
		c.baseURL, number, c.erpSSID, eiotType)

	query := url.Values{}
	query.Set("$expand", "indicators")

	var obj sap.Row
	if err := c.api.GetJSON(ctx, endpoint, query, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// ProbeSSID reads the SSID off any synced technical object, which is how the
// logical system id is discovered when the ERP connection is not configured.
func (c *EIoTClient) ProbeSSID(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("$top", "1")
	query.Set("$select", "SSID")

	var page struct {
		Value []struct {
			SSID string `json:"SSID"`
		} `json:"value"`
	}
	if err := c.api.GetJSON(ctx, c.baseURL+"/TechnicalObjects", query, &page); err != nil {
		return "", err
	}
	if len(page.Value) == 0 {
		return "", apperrors.NewAPIError(c.baseURL+"/TechnicalObjects", http.StatusNotFound, "no synced technical objects")
	}
	return page.Value[0].SSID, nil
}

// UploadFileResponse is the acknowledgement of an accepted file upload.
type UploadFileResponse struct {
	FileID string `json:"fileId"`
	Status string `json:"status"`
}

// UploadFile submits a time series file to the file upload service. The
// service answers 202 and processes the file asynchronously; poll
// GetFileStatus with the returned file id.
func (c *EIoTClient) UploadFile(ctx context.Context, filename string, content io.Reader) (*UploadFileResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to buffer upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	endpoint := c.uploadURL + "/upload"
	resp, err := c.api.Do(ctx, http.MethodPost, endpoint, nil, buf.Bytes(), map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil, apperrors.NewAPIError(endpoint, resp.StatusCode, string(body))
	}

	var ack UploadFileResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	c.log.Info("[POST] file upload accepted", map[string]interface{}{"file": filename, "fileId": ack.FileID})
	return &ack, nil
}

// GetFileStatus returns the processing state of an uploaded file.
func (c *EIoTClient) GetFileStatus(ctx context.Context, fileID string) (sap.Row, error) {
	endpoint := fmt.Sprintf("%s/files/status('%s')", c.uploadURL, fileID)

	var status sap.Row
	if err := c.api.GetJSON(ctx, endpoint, nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}
