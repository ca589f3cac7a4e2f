package sdk

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/faisalnazir/rllab/job"
	"github.com/faisalnazir/rllab/policy"
)

const CTJSON string = "application/json"

type SDK interface {
	// Job returns the training job record with its live counters.
	//
	// example:
	//  j, _ := sdk.Job()
	//  fmt.Println(j)
	Job() (job.Job, error)

	// Policy returns the latest published policy version.
	//
	// example:
	//  v, _ := sdk.Policy()
	//  fmt.Println(v.ID)
	Policy() (policy.Version, error)

	// ExportMetrics returns the flat metric record list as raw JSON.
	//
	// example:
	//  data, _ := sdk.ExportMetrics()
	//  os.Stdout.Write(data)
	ExportMetrics() ([]byte, error)

	// Cancel raises the job's cancellation signal.
	//
	// example:
	//  _ = sdk.Cancel()
	Cancel() error
}

type Config struct {
	TrainerURL      string
	TLSVerification bool
}

type rlSDK struct {
	trainerURL string
	client     *http.Client
}

func NewSDK(conf Config) SDK {
	client := &http.Client{}
	if !conf.TLSVerification {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec
			},
		}
	}

	return &rlSDK{
		trainerURL: conf.TrainerURL,
		client:     client,
	}
}

func (sdk *rlSDK) processRequest(method, url string, expectedCode int) ([]byte, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != expectedCode {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	return body, nil
}
