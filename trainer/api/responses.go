package api

import (
	"net/http"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/metrics"
	pkgapi "github.com/faisalnazir/rllab/pkg/api"
	"github.com/faisalnazir/rllab/policy"
)

var (
	_ pkgapi.Response = (*jobResponse)(nil)
	_ pkgapi.Response = (*policyResponse)(nil)
	_ pkgapi.Response = (*cancelResponse)(nil)
)

type jobResponse struct {
	job.Job
}

func (r jobResponse) Code() int {
	return http.StatusOK
}

func (r jobResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r jobResponse) Empty() bool {
	return false
}

type policyResponse struct {
	policy.Version
}

func (r policyResponse) Code() int {
	return http.StatusOK
}

func (r policyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r policyResponse) Empty() bool {
	return false
}

type metricsResponse struct {
	Records []metrics.Record
}

type cancelResponse struct{}

func (r cancelResponse) Code() int {
	return http.StatusAccepted
}

func (r cancelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r cancelResponse) Empty() bool {
	return true
}
