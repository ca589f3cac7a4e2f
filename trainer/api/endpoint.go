package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/faisalnazir/rllab/trainer"
)

func getJobEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		j, err := svc.Job(ctx)
		if err != nil {
			return jobResponse{}, err
		}

		return jobResponse{Job: j}, nil
	}
}

func getPolicyEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		v, err := svc.Policy(ctx)
		if err != nil {
			return policyResponse{}, err
		}

		return policyResponse{Version: v}, nil
	}
}

func exportMetricsEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		records, err := svc.Metrics(ctx)
		if err != nil {
			return metricsResponse{}, err
		}

		return metricsResponse{Records: records}, nil
	}
}

func cancelEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		if err := svc.Cancel(ctx); err != nil {
			return cancelResponse{}, err
		}

		return cancelResponse{}, nil
	}
}
