package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, initial string) (*httptest.Server, string, *int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	reloads := 0
	srv := newServer(path, func() { reloads++ })
	ts := httptest.NewServer(srv.router())
	t.Cleanup(ts.Close)
	return ts, path, &reloads
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestStatus(t *testing.T) {
	ts, _, _ := newTestServer(t, `{}`)

	resp := doRequest(t, http.MethodGet, ts.URL+"/status", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetConfig(t *testing.T) {
	ts, _, _ := newTestServer(t, `{"timeout": 15, "foo": ["bar"]}`)

	resp := doRequest(t, http.MethodGet, ts.URL+"/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decodeBody(t, resp)
	assert.Equal(t, float64(15), cfg["timeout"])
}

func TestGetConfigBrokenFile(t *testing.T) {
	ts, _, _ := newTestServer(t, `{`)

	resp := doRequest(t, http.MethodGet, ts.URL+"/config", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "error", body["status"])
}

func TestSetConfigReplacesAndTriggersReload(t *testing.T) {
	ts, path, reloads := newTestServer(t, `{"old": true}`)

	resp := doRequest(t, http.MethodPut, ts.URL+"/config", `{"config": {"timeout": 30}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, *reloads)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, map[string]any{"timeout": float64(30)}, onDisk)
}

func TestSetConfigRequiresConfigParam(t *testing.T) {
	ts, _, reloads := newTestServer(t, `{}`)

	resp := doRequest(t, http.MethodPut, ts.URL+"/config", `{"other": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, *reloads)
}

func TestUpdateConfigDeepMerges(t *testing.T) {
	ts, path, reloads := newTestServer(t, `{"a": 1, "nested": {"keep": true, "x": 1}}`)

	resp := doRequest(t, http.MethodPatch, ts.URL+"/config", `{"config": {"nested": {"x": 2}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, *reloads)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, float64(1), onDisk["a"])
	nested := onDisk["nested"].(map[string]any)
	assert.Equal(t, true, nested["keep"])
	assert.Equal(t, float64(2), nested["x"])
}

func TestSetLogLevel(t *testing.T) {
	ts, _, _ := newTestServer(t, `{}`)
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	resp := doRequest(t, http.MethodPut, ts.URL+"/log/debug", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	resp = doRequest(t, http.MethodPut, ts.URL+"/log/nonsense", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	ts, _, _ := newTestServer(t, `{}`)

	resp := doRequest(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  map[string]any
		src  map[string]any
		want map[string]any
	}{
		{
			name: "adds new keys",
			dst:  map[string]any{"a": 1},
			src:  map[string]any{"b": 2},
			want: map[string]any{"a": 1, "b": 2},
		},
		{
			name: "replaces scalars",
			dst:  map[string]any{"a": 1},
			src:  map[string]any{"a": 2},
			want: map[string]any{"a": 2},
		},
		{
			name: "merges nested objects",
			dst:  map[string]any{"n": map[string]any{"keep": 1, "x": 1}},
			src:  map[string]any{"n": map[string]any{"x": 2}},
			want: map[string]any{"n": map[string]any{"keep": 1, "x": 2}},
		},
		{
			name: "object replaces scalar",
			dst:  map[string]any{"a": 1},
			src:  map[string]any{"a": map[string]any{"b": 2}},
			want: map[string]any{"a": map[string]any{"b": 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merge(tt.dst, tt.src)
			assert.Equal(t, tt.want, tt.dst)
		})
	}
}
