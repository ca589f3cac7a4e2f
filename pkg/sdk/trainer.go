package sdk

import (
	"encoding/json"
	"net/http"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/policy"
)

const (
	jobEndpoint     = "/job"
	cancelEndpoint  = "/job/cancel"
	policyEndpoint  = "/policy"
	metricsEndpoint = "/metrics/export"
)

func (sdk *rlSDK) Job() (job.Job, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.trainerURL+jobEndpoint, http.StatusOK)
	if err != nil {
		return job.Job{}, err
	}

	var j job.Job
	if err := json.Unmarshal(body, &j); err != nil {
		return job.Job{}, err
	}

	return j, nil
}

func (sdk *rlSDK) Policy() (policy.Version, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.trainerURL+policyEndpoint, http.StatusOK)
	if err != nil {
		return policy.Version{}, err
	}

	var v policy.Version
	if err := json.Unmarshal(body, &v); err != nil {
		return policy.Version{}, err
	}

	return v, nil
}

func (sdk *rlSDK) ExportMetrics() ([]byte, error) {
	return sdk.processRequest(http.MethodGet, sdk.trainerURL+metricsEndpoint, http.StatusOK)
}

func (sdk *rlSDK) Cancel() error {
	_, err := sdk.processRequest(http.MethodPost, sdk.trainerURL+cancelEndpoint, http.StatusAccepted)

	return err
}
