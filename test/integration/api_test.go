//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/steampack-go/api"
	"github.com/yourusername/steampack-go/internal/domain"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()

	env := newTestEnv(t)
	require.NoError(t, env.queueMgr.Start(context.Background()))
	t.Cleanup(func() { env.queueMgr.Stop() })

	router := api.SetupRouter(env.queueMgr, env.session, env.checker,
		env.cfg.Paths.OutputDir(), env.cfg.Paths.LogsDir(), zap.NewNop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return env, srv
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAPI_HealthAndReady(t *testing.T) {
	_, srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestAPI_TaskLifecycle(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/tasks", map[string]interface{}{
		"source": "https://store.steampowered.com/app/730/CS2/",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task domain.DownloadTask
	decodeJSON(t, resp, &task)
	require.NotEmpty(t, task.ID)
	assert.Equal(t, "730", task.AppID)

	taskURL := fmt.Sprintf("%s/api/v1/tasks/%s", srv.URL, task.ID)
	var fetched domain.DownloadTask
	require.Eventually(t, func() bool {
		r, err := http.Get(taskURL)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&fetched); err != nil {
			return false
		}
		return fetched.IsTerminal()
	}, 15*time.Second, 100*time.Millisecond)
	require.Equal(t, domain.StatusCompleted, fetched.Status, "error: %s", fetched.ErrorMessage)
	assert.FileExists(t, fetched.OutputPath)

	// The finished archive shows up in the output file listing.
	r, err := http.Get(srv.URL + "/api/v1/files")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, r.StatusCode)
	var listing struct {
		Count int `json:"count"`
		Files []struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		} `json:"files"`
	}
	decodeJSON(t, r, &listing)
	require.GreaterOrEqual(t, listing.Count, 1)
	assert.NotZero(t, listing.Files[0].Size)
}

func TestAPI_AddTaskValidation(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/tasks", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/tasks", map[string]interface{}{
		"source": "not an app id",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_QueueStatus(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/queue/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Running      bool `json:"running"`
		PendingCount int  `json:"pending_count"`
	}
	decodeJSON(t, resp, &status)
	assert.True(t, status.Running)
	assert.Zero(t, status.PendingCount)
}

func TestAPI_SystemCheck(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/system/check")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Healthy bool `json:"healthy"`
		Items   []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"items"`
	}
	decodeJSON(t, resp, &report)
	assert.True(t, report.Healthy)
	assert.NotEmpty(t, report.Items)
}

func TestAPI_SystemDisk(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/system/disk")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var disk struct {
		FreeBytes uint64 `json:"free_bytes"`
		Free      string `json:"free"`
	}
	decodeJSON(t, resp, &disk)
	assert.NotZero(t, disk.FreeBytes)
	assert.NotEmpty(t, disk.Free)
}

func TestAPI_DirectSessionRun(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/sessions/run", map[string]interface{}{
		"source": "440",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Task    domain.DownloadTask `json:"task"`
		Archive string              `json:"archive"`
		Volumes []string            `json:"volumes"`
		Log     []string            `json:"log"`
	}
	decodeJSON(t, resp, &result)
	assert.Equal(t, domain.StatusCompleted, result.Task.Status)
	assert.FileExists(t, result.Archive)
	assert.NotEmpty(t, result.Log)
}

func TestAPI_DeleteUnknownTask(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tasks/no-such-id", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}
