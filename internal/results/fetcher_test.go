package results

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{
	"data": [
		{"Candidato": "A", "Partido": "Partido Nuevo Progresista", "Puesto": "Gobernador", "Votos": 1000, "PorCiento": "55.0", "Ganador": true},
		{"Candidato": "B", "Partido": "Partido Popular Democrático", "Puesto": "Gobernador", "Votos": 800, "PorCiento": "45.0", "Ganador": false},
		{"Candidato": "C", "Partido": "Proyecto Dignidad", "Puesto": "Comisionado Residente", "Votos": 12, "PorCiento": 1.5, "Ganador": false}
	],
	"updatedAt": "2024-11-06T03:15:00.000Z"
}`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query parameters, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Success(t *testing.T) {
	srv := serve(t, http.StatusOK, sampleBody)

	payload, err := NewFetcher(srv.URL, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, payload.Records, 3)
	assert.Equal(t, Record{
		Candidate:  "A",
		Party:      "Partido Nuevo Progresista",
		Office:     OfficeGovernor,
		Votes:      1000,
		Percentage: "55.0",
		Winner:     true,
	}, payload.Records[0])
	assert.Equal(t, Percent("1.5"), payload.Records[2].Percentage)
	assert.True(t, payload.UpdatedAt.Equal(time.Date(2024, 11, 6, 3, 15, 0, 0, time.UTC)))
}

func TestFetch_EmptyData(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"data": [], "updatedAt": "2024-11-06T03:15:00Z"}`)

	payload, err := NewFetcher(srv.URL, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, payload.Records)
}

func TestFetch_HTTPStatus(t *testing.T) {
	srv := serve(t, http.StatusServiceUnavailable, `upstream down`)

	_, err := NewFetcher(srv.URL, srv.Client()).Fetch(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindHTTPStatus, fe.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.NotErrorIs(t, err, ErrParse)
}

func TestFetch_ParseErrors(t *testing.T) {
	cases := map[string]string{
		"not json":          `<html>oops</html>`,
		"missing data":      `{"updatedAt": "2024-11-06T03:15:00Z"}`,
		"null data":         `{"data": null, "updatedAt": "2024-11-06T03:15:00Z"}`,
		"missing updatedAt": `{"data": []}`,
		"data not array":    `{"data": {}, "updatedAt": "2024-11-06T03:15:00Z"}`,
		"negative votes":    `{"data": [{"Candidato": "X", "Puesto": "Gobernador", "Votos": -1, "PorCiento": "1"}], "updatedAt": "2024-11-06T03:15:00Z"}`,
		"bad percent":       `{"data": [{"Candidato": "X", "Puesto": "Gobernador", "Votos": 1, "PorCiento": true}], "updatedAt": "2024-11-06T03:15:00Z"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)

			_, err := NewFetcher(srv.URL, srv.Client()).Fetch(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, KindParse, fe.Kind)
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(url, nil).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestDecode_ZonelessTimestamp(t *testing.T) {
	payload, err := Decode([]byte(`{"data": [], "updatedAt": "2024-11-06T03:15:00"}`))
	require.NoError(t, err)
	assert.True(t, payload.UpdatedAt.Equal(time.Date(2024, 11, 6, 3, 15, 0, 0, time.UTC)))
}

func TestDecode_TimestampForms(t *testing.T) {
	cases := map[string]time.Time{
		"2024-11-06T03:15:00.000Z":     time.Date(2024, 11, 6, 3, 15, 0, 0, time.UTC),
		"2024-11-06T03:15:00.000+0000": time.Date(2024, 11, 6, 3, 15, 0, 0, time.UTC),
		"2024-11-06T03:15:00-0400":     time.Date(2024, 11, 6, 7, 15, 0, 0, time.UTC),
		"2024-11-06T03:15:00.5-04:00":  time.Date(2024, 11, 6, 7, 15, 0, 500_000_000, time.UTC),
		"2024-11-06 03:15:00":          time.Date(2024, 11, 6, 3, 15, 0, 0, time.UTC),
		"2024-11-06 03:15:00+00:00":    time.Date(2024, 11, 6, 3, 15, 0, 0, time.UTC),
		"2024-11-06":                   time.Date(2024, 11, 6, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		payload, err := Decode([]byte(`{"data": [{"Candidato": "A", "Puesto": "Gobernador", "Votos": 1, "PorCiento": "1"}], "updatedAt": "` + in + `"}`))
		require.NoError(t, err, "updatedAt %q", in)
		assert.Len(t, payload.Records, 1, "updatedAt %q", in)
		assert.True(t, payload.UpdatedAt.Equal(want), "updatedAt %q parsed as %v", in, payload.UpdatedAt)
	}
}

func TestFetch_UnreadableTimestampKeepsRecords(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"data": [{"Candidato": "A", "Puesto": "Gobernador", "Votos": 1, "PorCiento": "1"}], "updatedAt": "yesterday"}`)

	payload, err := NewFetcher(srv.URL, srv.Client()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Records, 1)
	assert.Equal(t, "A", payload.Records[0].Candidate)
	assert.True(t, payload.UpdatedAt.IsZero())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "http status", KindHTTPStatus.String())
	assert.Equal(t, "parse", KindParse.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
