package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meganemura/norikra/engine"
	"github.com/meganemura/norikra/output"
	"github.com/meganemura/norikra/testutil"
)

type fixture struct {
	server *Server
	engine *engine.Engine
	rt     *testutil.FakeRuntime
	tee    *output.Tee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := testutil.NewFakeRuntime()
	tee := output.NewTee()
	eng, err := engine.New(engine.Deps{Runtime: rt, Sink: tee, Logger: logger})
	require.NoError(t, err)

	srv, err := NewServer(":0", Deps{Engine: eng, Results: tee, Logger: logger})
	require.NoError(t, err)
	return &fixture{server: srv, engine: eng, rt: rt, tee: tee}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(":0", Deps{})
	assert.Error(t, err)
}

func TestOpenAndListTargets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/targets", `{"name":"visit","fields":{"path":"string","status":"integer"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Reopening is a benign no-op, not an error.
	rec = f.do(t, "POST", "/targets", `{"name":"visit"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/targets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var targets []engine.TargetInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targets))
	require.Len(t, targets, 1)
	assert.Equal(t, "visit", targets[0].Name)
	assert.True(t, targets[0].Activated)
}

func TestOpenTargetValidation(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/targets", `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/targets", `not json`).Code)
	// Unsupported field type is a client error.
	rec := f.do(t, "POST", "/targets", `{"name":"visit","fields":{"path":"blob"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseTarget(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, "POST", "/targets", `{"name":"visit"}`).Code)

	assert.Equal(t, http.StatusOK, f.do(t, "DELETE", "/targets/visit", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "DELETE", "/targets/visit", "").Code)
}

func TestReserve(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, "POST", "/targets", `{"name":"visit"}`).Code)

	assert.Equal(t, http.StatusOK,
		f.do(t, "POST", "/targets/visit/reserve", `{"field":"status","type":"integer"}`).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, "POST", "/targets/other/reserve", `{"field":"status","type":"integer"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, "POST", "/targets/visit/reserve", `{"field":"","type":""}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, "POST", "/targets/visit/reserve", `{"field":"x","type":"blob"}`).Code)
}

func TestSendEvents(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, "POST", "/targets", `{"name":"visit"}`).Code)

	// Single object and array forms are both accepted.
	rec := f.do(t, "POST", "/targets/visit/events", `{"path":"/","status":200}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = f.do(t, "POST", "/targets/visit/events", `[{"path":"/a","status":200},{"path":"/b","status":404}]`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, f.rt.Sent, 3)

	// Events for an unopened target are accepted and discarded.
	rec = f.do(t, "POST", "/targets/nope/events", `{"a":1}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, f.rt.Sent, 3)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/targets/visit/events", `"scalar"`).Code)
}

func TestQueryLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/targets", `{"name":"visit","fields":{"status":"integer"}}`).Code)

	expr := "select count(*) from visit"
	f.rt.DeclareQuery(expr, map[string][]string{"visit": {"status"}})

	rec := f.do(t, "POST", "/queries", `{"name":"q1","group":"stats","expression":"`+expr+`"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate name and unparsable expression are client errors.
	rec = f.do(t, "POST", "/queries", `{"name":"q1","expression":"`+expr+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, "POST", "/queries", `{"name":"q2","expression":"garbage"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "GET", "/queries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var queries []engine.QueryInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queries))
	require.Len(t, queries, 1)
	assert.Equal(t, "active", queries[0].Status)
	assert.Equal(t, "stats", queries[0].Group)

	assert.Equal(t, http.StatusOK, f.do(t, "DELETE", "/queries/q1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "DELETE", "/queries/q1", "").Code)
}

func TestStreamDisabledWithoutTee(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := engine.New(engine.Deps{Runtime: testutil.NewFakeRuntime(), Logger: logger})
	require.NoError(t, err)
	srv, err := NewServer(":0", Deps{Engine: eng, Logger: logger})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/stream", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
