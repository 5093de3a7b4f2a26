package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-migrator/internal/common/logger"
)

const characteristicPath = "/sap/opu/odata/sap/API_CLFN_CHARACTERISTIC_SRV/A_ClfnCharacteristicForKeyDate"

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return &Client{
		host:       baseURL,
		sapClient:  "100",
		username:   "MIGRATOR",
		password:   "secret",
		batchSize:  2,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        logger.NewTestLogger(t),
	}
}

func TestFetchCSRF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, characteristicPath, r.URL.Path)
		assert.Equal(t, "FETCH", r.Header.Get("x-csrf-token"))
		assert.Equal(t, "100", r.URL.Query().Get("sap-client"))
		assert.Equal(t, "json", r.URL.Query().Get("$format"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "MIGRATOR", user)
		assert.Equal(t, "secret", pass)

		http.SetCookie(w, &http.Cookie{Name: "SAP_SESSIONID", Value: "abc"})
		w.Header().Set("x-csrf-token", "csrf-123")
		fmt.Fprint(w, `{"d":{"results":[]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	session, err := c.FetchCSRF(context.Background(), CharacteristicService, CharacteristicEntitySet)
	require.NoError(t, err)
	assert.Equal(t, "csrf-123", session.Token)
	require.Len(t, session.Cookies, 1)
	assert.Equal(t, "SAP_SESSIONID", session.Cookies[0].Name)
}

func TestFetchCSRFDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no auth", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.FetchCSRF(context.Background(), CharacteristicService, CharacteristicEntitySet)
	require.Error(t, err)
}

func TestGetEntitiesPagesThroughResults(t *testing.T) {
	var skips []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skips = append(skips, r.URL.Query().Get("$skip"))

		if r.URL.Query().Get("$skip") == "0" {
			fmt.Fprint(w, `{"d":{"results":[{"Characteristic":"TEMP"},{"Characteristic":"PRES"}]}}`)
			return
		}
		fmt.Fprint(w, `{"d":{"results":[{"Characteristic":"FLOW"}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	rows, err := c.GetCharacteristics(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{"0", "2"}, skips)
}

func TestGetCharacteristicByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Characteristic eq 'TEMP'", r.URL.Query().Get("$filter"))
		fmt.Fprint(w, `{"d":{"results":[{"Characteristic":"TEMP","CharcInternalID":"42"}]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	row, err := c.GetCharacteristicByName(context.Background(), "TEMP")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "42", row["CharcInternalID"])
}

func TestGetCharacteristicByNameMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"d":{"results":[]}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	row, err := c.GetCharacteristicByName(context.Background(), "TEMP")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCreateCharacteristicSendsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "csrf-123", r.Header.Get("x-csrf-token"))

		cookie, err := r.Cookie("SAP_SESSIONID")
		require.NoError(t, err)
		assert.Equal(t, "abc", cookie.Value)

		var body CharacteristicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TEMP_SENSOR", body.Characteristic)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"d":{"Characteristic":"TEMP_SENSOR","CharcInternalID":"99"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	session := &CSRFSession{
		Token:   "csrf-123",
		Cookies: []*http.Cookie{{Name: "SAP_SESSIONID", Value: "abc"}},
	}

	created, err := c.CreateCharacteristic(context.Background(), session, CharacteristicRequest{
		Characteristic:    "TEMP_SENSOR",
		CharcDataType:     "NUM",
		CharcLength:       10,
		ValidityStartDate: ODataDate(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.Equal(t, "99", created["CharcInternalID"])
}

func TestODataDate(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, fmt.Sprintf("/Date(%d)/", ts.UnixMilli()), ODataDate(ts))
}
