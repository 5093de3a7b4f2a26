package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-migrator/internal/clients/apm"
	"asset-migrator/internal/common/config"
	"asset-migrator/internal/common/database"
	"asset-migrator/internal/common/logger"
	"asset-migrator/internal/store"
)

// apmServer fakes the indicator service endpoints the load stage talks to.
type apmServer struct {
	mux              *http.ServeMux
	positionSearches []string
	positionCreates  []string
	indicatorCreates []apm.IndicatorRequest

	// names of positions and characteristic ids of indicators the fake
	// already knows, so searches for them come back non-empty
	existingPositions  map[string]bool
	existingIndicators map[string]bool
}

func newAPMServer() *apmServer {
	s := &apmServer{
		mux:                http.NewServeMux(),
		existingPositions:  map[string]bool{},
		existingIndicators: map[string]bool{},
	}

	s.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"test-token","expires_in":3600}`)
	})

	s.mux.HandleFunc("/IndicatorService/v1/IndicatorPositions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			s.positionCreates = append(s.positionCreates, body["name"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"ID":"pos-%d","SSID":"%s","name":"%s"}`,
				len(s.positionCreates), body["SSID"], body["name"])
			return
		}

		filter := r.URL.Query().Get("$filter")
		s.positionSearches = append(s.positionSearches, filter)
		name := strings.TrimSuffix(strings.TrimPrefix(filter, "name eq '"), "'")
		if s.existingPositions[name] {
			fmt.Fprintf(w, `{"value":[{"ID":"pos-existing","SSID":"S4H_100","name":"%s"}]}`, name)
			return
		}
		fmt.Fprint(w, `{"value":[]}`)
	})

	s.mux.HandleFunc("/IndicatorService/v1/Indicators", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req apm.IndicatorRequest
			json.NewDecoder(r.Body).Decode(&req)
			s.indicatorCreates = append(s.indicatorCreates, req)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"ID":"ind-%d","technicalObject_number":"%s","positionDetails_ID":"%s"}`,
				len(s.indicatorCreates), req.TechnicalObjectNumber, req.PositionDetailsID)
			return
		}

		filter := r.URL.Query().Get("$filter")
		for charcID := range s.existingIndicators {
			if strings.Contains(filter, fmt.Sprintf("characteristics_characteristicsInternalId eq '%s'", charcID)) {
				fmt.Fprintf(w, `{"value":[{"ID":"ind-existing","characteristics_characteristicsInternalId":"%s"}]}`, charcID)
				return
			}
		}
		fmt.Fprint(w, `{"value":[]}`)
	})

	return s
}

func newTestPipeline(t *testing.T, baseURL string) (*Pipeline, sqlmock.Sqlmock) {
	t.Helper()

	cfg := &config.Config{
		Tenant: "tenant1",
		Systems: []config.SystemConfig{
			{
				Type: config.SystemAPM,
				Host: baseURL,
				Credentials: config.CredentialsConfig{
					ClientID:     "client",
					ClientSecret: "secret",
					TokenURL:     baseURL + "/oauth/token",
				},
			},
			{Type: config.SystemERP, SysID: "s4h", Client: "100"},
		},
	}

	apmClient, err := apm.New(cfg, apm.IndicatorService, logger.NewTestLogger(t))
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.New(&database.PostgresClient{DB: db}, "tenant1", logger.NewTestLogger(t))

	p := &Pipeline{
		cfg:   cfg,
		store: st,
		apm:   apmClient,
		log:   logger.NewTestLogger(t),
		runID: "test-run",
	}
	return p, mock
}

func expectInsertBatch(mock sqlmock.Sqlmock, table store.Table, rows int) {
	mock.ExpectBegin()
	prepared := mock.ExpectPrepare(regexp.QuoteMeta(fmt.Sprintf(`COPY "%s"`, table.Name)))
	for i := 0; i < rows; i++ {
		prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	prepared.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
}

func TestLoadSkipsExistingIndicators(t *testing.T) {
	apmSrv := newAPMServer()
	apmSrv.existingIndicators["42"] = true

	srv := httptest.NewServer(apmSrv.mux)
	defer srv.Close()

	p, mock := newTestPipeline(t, srv.URL)

	// Every decided position already resolved, so no positions are created
	// and the pre-load mapping is not rebuilt.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "V_APM_INDICATOR_POSITIONS"`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"APMIndicatorPosition"}))

	preloadColumns := []string{
		"externalId", "technicalObject_type", "ssid",
		"APMIndicatorCategory", "CharcInternalID", "apm_guid", "valid",
	}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "T_PRE_LOAD_INDICATORS"`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows(preloadColumns).
			AddRow("10001", "EQUI", "S4H_100", "M", "42", "g1", "X").
			AddRow("10002", "EQUI", "S4H_100", "M", "43", "g1", "X"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "T_LOAD_INDICATORS"`)).
		WithArgs("tenant1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectInsertBatch(mock, store.LoadIndicators, 2)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "T_LOAD_INDICATORS"`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows(store.LoadIndicators.Columns).
			AddRow("10001", "EQUI", "S4H_100", "M", "S4H_100", "42", "S4H_100", "g1", "X").
			AddRow("10002", "EQUI", "S4H_100", "M", "S4H_100", "43", "S4H_100", "g1", "X"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "T_POST_LOAD_INDICATORS"`)).
		WithArgs("tenant1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectInsertBatch(mock, store.PostLoadIndicators, 2)

	require.NoError(t, p.Load(context.Background()))

	// Only the indicator without an APM match was created.
	require.Len(t, apmSrv.indicatorCreates, 1)
	assert.Equal(t, "10002", apmSrv.indicatorCreates[0].TechnicalObjectNumber)
	assert.Equal(t, "43", apmSrv.indicatorCreates[0].CharacteristicsID)
	assert.Empty(t, apmSrv.positionCreates)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsurePositionsCreatesOnlyMissing(t *testing.T) {
	apmSrv := newAPMServer()
	apmSrv.existingPositions["TEMPERATURE"] = true

	srv := httptest.NewServer(apmSrv.mux)
	defer srv.Close()

	p, mock := newTestPipeline(t, srv.URL)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "V_APM_INDICATOR_POSITIONS"`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"APMIndicatorPosition"}).
			AddRow("Temperature").
			AddRow("PRESSURE").
			AddRow("TEMPERATURE")) // duplicate after upper-casing

	// Both resolved positions land in the staged catalog, created or not.
	expectInsertBatch(mock, store.APMIndicatorPositions, 2)

	created, err := p.ensurePositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// The existing position is found by name and never created.
	require.Len(t, apmSrv.positionCreates, 1)
	assert.Equal(t, "PRESSURE", apmSrv.positionCreates[0])
	assert.Len(t, apmSrv.positionSearches, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}
