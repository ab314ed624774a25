package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/showrun/internal/engine"
	"github.com/Tiliavir/showrun/internal/logger"
	"github.com/Tiliavir/showrun/internal/model"
	"github.com/Tiliavir/showrun/internal/playback"
	"github.com/Tiliavir/showrun/internal/storage"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	p := storage.NewProject()
	for i, id := range []string{"intro", "keynote"} {
		ev := model.NewEvent(id)
		ev.Title = id
		ev.TimeStart = int64(9+i) * 3_600_000
		ev.Duration = 1_800_000
		ev.TimeEnd = ev.TimeStart + ev.Duration
		p.Rundown.Order = append(p.Rundown.Order, id)
		p.Rundown.Entries[id] = ev
	}
	e, err := engine.New(p, engine.Options{Location: time.UTC, Log: logger.NewMockLogger()})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return NewServer(e, logger.NewMockLogger()).Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeRundown(t *testing.T, rr *httptest.ResponseRecorder) rundownResponse {
	t.Helper()
	var resp rundownResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleHealth(t *testing.T) {
	rr := do(t, newTestServer(t), http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestRundownEndpoints(t *testing.T) {
	h := newTestServer(t)

	t.Run("get", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/rundown", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decodeRundown(t, rr)
		assert.Equal(t, []string{"intro", "keynote"}, resp.Metadata.PlayableOrder)
		assert.Equal(t, int64(9*3_600_000), resp.Metadata.FirstStart)
	})

	t.Run("insert delay", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/rundown/entries", map[string]any{
			"entry": map[string]any{"type": "delay", "duration": 300000},
			"after": "intro",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		resp := decodeRundown(t, rr)
		require.NotEmpty(t, resp.Created)
		assert.Equal(t, []string{"intro", resp.Created, "keynote"}, resp.Rundown.Order)

		keynote, ok := resp.Rundown.Event("keynote")
		require.True(t, ok)
		assert.Equal(t, int64(300000), keynote.Delay)

		rr = do(t, h, http.MethodPost, "/api/rundown/delays/"+resp.Created+"/apply", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		keynote, _ = decodeRundown(t, rr).Rundown.Event("keynote")
		assert.Equal(t, int64(10*3_600_000+300000), keynote.TimeStart)
	})

	t.Run("patch", func(t *testing.T) {
		rr := do(t, h, http.MethodPatch, "/api/rundown/entries/intro", `{"title":"Welcome"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		intro, _ := decodeRundown(t, rr).Rundown.Event("intro")
		assert.Equal(t, "Welcome", intro.Title)
	})

	t.Run("group and ungroup", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/rundown/groups", map[string]any{"ids": []string{"intro", "keynote"}})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		group := decodeRundown(t, rr).Created
		require.NotEmpty(t, group)

		rr = do(t, h, http.MethodDelete, "/api/rundown/groups/"+group, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, []string{"intro", "keynote"}, decodeRundown(t, rr).Rundown.Order)
	})

	t.Run("custom fields", func(t *testing.T) {
		rr := do(t, h, http.MethodPost, "/api/rundown/custom-fields", map[string]any{"label": "lighting", "type": "text", "colour": "#fff"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		rr = do(t, h, http.MethodGet, "/api/rundown/custom-fields", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"lighting"`)

		rr = do(t, h, http.MethodDelete, "/api/rundown/custom-fields/lighting", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), `"lighting"`)
	})
}

func TestRundownErrors(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown entry type", http.MethodPost, "/api/rundown/entries", `{"entry":{"type":"scene"}}`, http.StatusBadRequest},
		{"missing entry", http.MethodPost, "/api/rundown/entries", `{}`, http.StatusBadRequest},
		{"malformed body", http.MethodPatch, "/api/rundown/entries/intro", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/rundown/entries/intro", `{"colour":"red","mood":"happy"}`, http.StatusBadRequest},
		{"invalid value", http.MethodPatch, "/api/rundown/entries/intro", `{"timerType":"sideways"}`, http.StatusBadRequest},
		{"patch missing", http.MethodPatch, "/api/rundown/entries/nope", `{"title":"x"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/rundown/entries", `{"ids":["nope"]}`, http.StatusNotFound},
		{"delete nothing", http.MethodDelete, "/api/rundown/entries", `{"ids":[]}`, http.StatusBadRequest},
		{"apply non delay", http.MethodPost, "/api/rundown/delays/intro/apply", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}
}

func TestPlaybackEndpoints(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/playback/pause", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/playback/load/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/playback/load/intro", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/playback/start", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap playback.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, playback.StatusPlay, snap.Status)
	require.NotNil(t, snap.EventNext)
	assert.Equal(t, "keynote", snap.EventNext.ID)

	rr = do(t, h, http.MethodPost, "/api/playback/addtime", `{"time":"1m"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, int64(60000), snap.Timer.AddedTime)

	rr = do(t, h, http.MethodPost, "/api/playback/addtime", `{"time":"later"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/playback", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"play"`)

	rr = do(t, h, http.MethodPost, "/api/playback/stop", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"stop"`)
}

func TestAutomationEndpoints(t *testing.T) {
	h := newTestServer(t)

	valid := map[string]any{
		"enabled":  true,
		"triggers": []map[string]any{{"id": "t", "trigger": "onStart", "automationId": "cue"}},
		"automations": map[string]any{
			"cue": map[string]any{
				"id":      "cue",
				"outputs": []map[string]any{{"type": "http", "url": "http://127.0.0.1:1/cue"}},
			},
		},
	}
	rr := do(t, h, http.MethodPut, "/api/automation", valid)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/automation", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cue"`)

	rr = do(t, h, http.MethodPut, "/api/automation", `{"enabled":true,"triggers":[{"id":"t","trigger":"onStart","automationId":"missing"}]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
