package sap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCollectionEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"value envelope", `{"value":[{"a":"1"},{"a":"2"}]}`, 2},
		{"bare array", `[{"a":"1"}]`, 1},
		{"odata v2", `{"d":{"results":[{"a":"1"},{"a":"2"},{"a":"3"}]}}`, 3},
		{"empty value", `{"value":[]}`, 0},
		{"null body", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := DecodeCollection([]byte(tt.body))
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestQueryValues(t *testing.T) {
	q := Query{Filter: "modelType eq 'EQU'", Select: "name", Top: 50}
	v := q.Values(100)

	assert.Equal(t, "modelType eq 'EQU'", v.Get("$filter"))
	assert.Equal(t, "name", v.Get("$select"))
	assert.Equal(t, "50", v.Get("$top"))
	assert.Equal(t, "100", v.Get("$skip"))

	assert.Empty(t, Query{}.Values(0).Get("$skip"))
}

func TestGetBatchesStopsOnShortPage(t *testing.T) {
	var requests []string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/equipment", func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("$skip"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))

		// Two full pages of 2, then a short page of 1.
		var rows []Row
		switch skip {
		case 0, 2:
			rows = []Row{{"n": "a"}, {"n": "b"}}
		default:
			rows = []Row{{"n": "c"}}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"value": rows})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)

	rows, err := client.GetBatches(context.Background(), srv.URL+"/equipment", Query{Top: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Equal(t, []string{"0", "2", "4"}, requests)
}

func TestGetBatchesStopsOnEmptyPage(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/equipment", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(map[string]interface{}{"value": []Row{{"n": "a"}, {"n": "b"}}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []Row{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)

	rows, err := client.GetBatches(context.Background(), srv.URL+"/equipment", Query{Top: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, calls)
}

func TestGetNextLinkPagesFollowsCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/svc/IndicatorPositions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, `{"value":[{"ID":"1"}],"@nextLink":"IndicatorPositions?cursor=abc"}`)
			return
		}
		fmt.Fprint(w, `{"value":[{"ID":"2"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)

	rows, err := client.GetNextLinkPages(context.Background(), srv.URL+"/svc", "/IndicatorPositions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["ID"])
	assert.Equal(t, "2", rows[1]["ID"])
}

func TestCountParsesPlainText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler)
	mux.HandleFunc("/indicators/$count", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, " 1234\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)

	count, err := client.Count(context.Background(), srv.URL+"/indicators/$count", Query{})
	require.NoError(t, err)
	assert.Equal(t, 1234, count)
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(TokenResponse{AccessToken: "test-token", ExpiresIn: 3600})
}
