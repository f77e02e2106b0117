// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("ADVISOR_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
}

// queryResult 服务端 POST /api/query 的响应
type queryResult struct {
	RunID              string         `json:"run_id"`
	Text               string         `json:"text"`
	Data               map[string]any `json:"data"`
	Intent             string         `json:"intent"`
	Unvalidated        bool           `json:"unvalidated"`
	NeedsClarification bool           `json:"needs_clarification"`
}

func postQuery(query, clientID, sessionID string) (*queryResult, error) {
	var out queryResult
	resp, err := newClient().R().
		SetBody(map[string]string{
			"query":      query,
			"client_id":  clientID,
			"session_id": sessionID,
		}).
		SetResult(&out).
		Post("/api/query")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("POST /api/query: %s", resp.String())
	}
	return &out, nil
}

func getTrace(runID string) (map[string]any, error) {
	var out map[string]any
	resp, err := newClient().R().
		SetResult(&out).
		Get("/api/runs/" + runID + "/trace")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("GET /api/runs/%s/trace: %s", runID, resp.String())
	}
	return out, nil
}

func getHealth() error {
	resp, err := newClient().R().Get("/api/health")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("GET /api/health: %s", resp.String())
	}
	return nil
}
