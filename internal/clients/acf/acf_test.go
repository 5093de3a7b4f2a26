package acf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-migrator/internal/common/config"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/sap"
)

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, `{"access_token":"test-token","expires_in":3600}`)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	api := sap.NewClient(&config.SystemConfig{
		Type: config.SystemACF,
		Host: baseURL,
		Credentials: config.CredentialsConfig{
			ClientID:     "client",
			ClientSecret: "secret",
			TokenURL:     baseURL + "/oauth/token",
		},
	}, 5*time.Second)

	return &Client{
		api:       api,
		baseURL:   baseURL + servicePath,
		erpSSID:   "S4H_100",
		batchSize: 100,
		log:       logger.NewTestLogger(t),
	}
}

func TestGetModelsByTypeKeepsSearchTermModels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc(servicePath+"/models", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "modelType eq 'EQU'", r.URL.Query().Get("$filter"))
		fmt.Fprint(w, `[
			{"modelId":"m1","modelSearchTerms":"pump"},
			{"modelId":"m2","modelSearchTerms":""},
			{"modelId":"m3"}
		]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	models, err := c.GetEquipmentModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0]["modelId"])
}

func TestGetExternalDataPagesWithOwnBatchSize(t *testing.T) {
	var tops []string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc(servicePath+"/externaldata", func(w http.ResponseWriter, r *http.Request) {
		tops = append(tops, r.URL.Query().Get("$top"))
		assert.Equal(t, "objectType eq 'EQU'", r.URL.Query().Get("$filter"))
		fmt.Fprint(w, `[{"externalId":"10001234","ainObjectId":"eq-1"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	rows, err := c.GetExternalData(context.Background(), "objectType eq 'EQU'", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// Unset batch size falls back to the historical 5000.
	assert.Equal(t, []string{"5000"}, tops)
}

func TestGetObjectByThingID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc(servicePath+"/objectsid/ainobjects(thing-1)", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "systemName eq 'pdmsSysThing'", r.URL.Query().Get("$filter"))
		fmt.Fprint(w, `[{"ainObjectId":"eq-1","systemName":"pdmsSysThing"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	obj, err := c.GetObjectByThingID(context.Background(), "thing-1")
	require.NoError(t, err)
	assert.Equal(t, "eq-1", obj["ainObjectId"])
}

func TestGetObjectByThingIDUnassigned(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc(servicePath+"/objectsid/ainobjects(thing-1)", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.GetObjectByThingID(context.Background(), "thing-1")
	require.Error(t, err)
}

func TestGetTemplateSections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc(servicePath+"/templates(tmpl-1)", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"sec-1","indicatorGroups":[{"id":"g1","internalId":"IG_TEMP"}]},
			{"id":"sec-2","indicatorGroups":null}
		]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	sections, err := c.GetTemplate(context.Background(), "tmpl-1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "sec-1", sections[0]["id"])
}
