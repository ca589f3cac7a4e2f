package sdk_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/pkg/sdk"
	"github.com/faisalnazir/rllab/policy"
)

func testServer(t *testing.T) (*httptest.Server, *bool) {
	t.Helper()

	cancelled := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /job", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(job.Job{
			ID:            "job-1",
			Name:          "training",
			State:         job.Running,
			Iteration:     7,
			PolicyVersion: 8,
		})
	})
	mux.HandleFunc("GET /policy", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(policy.Version{
			ID:      8,
			Weights: policy.DefaultWeights(),
		})
	})
	mux.HandleFunc("GET /metrics/export", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"episode":1,"reward_score":10,"trial":1,"completion_percentage":50,"elapsed_time":1.5,"source":"train"}]`))
	})
	mux.HandleFunc("POST /job/cancel", func(w http.ResponseWriter, _ *http.Request) {
		cancelled = true
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, &cancelled
}

func TestSDKJob(t *testing.T) {
	srv, _ := testServer(t)
	s := sdk.NewSDK(sdk.Config{TrainerURL: srv.URL})

	j, err := s.Job()
	require.NoError(t, err)
	assert.Equal(t, "job-1", j.ID)
	assert.Equal(t, job.Running, j.State)
	assert.Equal(t, int64(7), j.Iteration)
	assert.Equal(t, int64(8), j.PolicyVersion)
}

func TestSDKPolicy(t *testing.T) {
	srv, _ := testServer(t)
	s := sdk.NewSDK(sdk.Config{TrainerURL: srv.URL})

	v, err := s.Policy()
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.ID)
	assert.Len(t, v.Weights.W, policy.ActionCount)
}

func TestSDKExportMetrics(t *testing.T) {
	srv, _ := testServer(t)
	s := sdk.NewSDK(sdk.Config{TrainerURL: srv.URL})

	data, err := s.ExportMetrics()
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 1)
	assert.InDelta(t, 10, rows[0]["reward_score"], 1e-12)
}

func TestSDKCancel(t *testing.T) {
	srv, cancelled := testServer(t)
	s := sdk.NewSDK(sdk.Config{TrainerURL: srv.URL})

	require.NoError(t, s.Cancel())
	assert.True(t, *cancelled)
}

func TestSDKUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s := sdk.NewSDK(sdk.Config{TrainerURL: srv.URL})

	_, err := s.Job()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}
