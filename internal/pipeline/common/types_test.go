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

package common

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeTicker(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"msft", "MSFT", true},
		{" AAPL ", "AAPL", true},
		{"BRK", "BRK", true},
		{"GOOGL", "GOOGL", true},
		{"", "", false},
		{"TOOLONGX", "", false},
		{"AB-C", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeTicker(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("NormalizeTicker(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDedupeEntities(t *testing.T) {
	in := []Entity{
		NewEntity("MSFT"),
		NewEntity("AAPL"),
		NewEntity("msft"),
	}
	out := DedupeEntities(in)
	if len(out) != 2 {
		t.Fatalf("期望去重后 2 个实体，实际 %d", len(out))
	}
	if out[0].Symbol != "MSFT" || out[1].Symbol != "AAPL" {
		t.Errorf("去重应保持首次出现顺序，实际 %v", out)
	}
}

func TestExecutionPlanHasAgent(t *testing.T) {
	plan := ExecutionPlan{Agents: []string{StageMarket, StagePortfolio}}
	if !plan.HasAgent(StageMarket) {
		t.Error("应包含 market agent")
	}
	if plan.HasAgent(StageResponse) {
		t.Error("不应包含 response agent")
	}
}

func TestStageResultOK(t *testing.T) {
	if !Success(nil).OK() {
		t.Error("success 应为 OK")
	}
	if !Partial(nil, []string{"AAPL"}).OK() {
		t.Error("partial 应为 OK")
	}
	if NotFoundResult("no data").OK() {
		t.Error("not_found 不应为 OK")
	}
	if FailureResult("collaborator timed out").OK() {
		t.Error("failure 不应为 OK")
	}
}

func TestFallbackCause(t *testing.T) {
	if got := FallbackCause(context.DeadlineExceeded); got != "timeout" {
		t.Errorf("deadline exceeded 应归类为 timeout，实际 %s", got)
	}
	if got := FallbackCause(ErrCollaboratorTimeout); got != "timeout" {
		t.Errorf("collaborator timeout 应归类为 timeout，实际 %s", got)
	}
	if got := FallbackCause(ErrCollaboratorMalformedOutput); got != "malformed" {
		t.Errorf("malformed 应归类为 malformed，实际 %s", got)
	}
	if got := FallbackCause(errors.New("boom")); got != "error" {
		t.Errorf("其他错误应归类为 error，实际 %s", got)
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	err := NewStageError(StagePlanner, "plan rejected", ErrInvalidPlan)
	if !errors.Is(err, ErrInvalidPlan) {
		t.Error("StageError 应可解包到底层错误")
	}
	if err.Error() == "" {
		t.Error("错误信息不应为空")
	}
}
