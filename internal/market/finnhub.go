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

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"advisor-platform/pkg/config"
)

// FinnhubProvider Finnhub 行情数据客户端
type FinnhubProvider struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

// NewFinnhubProvider 创建 Finnhub 客户端
func NewFinnhubProvider(cfg config.MarketConfig) *FinnhubProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}

	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(0)

	return &FinnhubProvider{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

// Price 最新价格（quote 端点的 c 字段），查无返回 0
func (p *FinnhubProvider) Price(ctx context.Context, symbol string) (float64, error) {
	var quote struct {
		Current float64 `json:"c"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": strings.ToUpper(symbol),
			"token":  p.apiKey,
		}).
		Get(p.baseURL + "/quote")
	if err != nil {
		return 0, fmt.Errorf("调用 Finnhub quote failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("Finnhub quote 返回错误: %s", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), &quote); err != nil {
		return 0, fmt.Errorf("解析 Finnhub quote failed: %w", err)
	}
	return quote.Current, nil
}

// Headlines 近 7 天公司新闻
func (p *FinnhubProvider) Headlines(ctx context.Context, symbol string, max int) ([]Headline, error) {
	now := time.Now().UTC()
	var items []struct {
		Headline string `json:"headline"`
		Source   string `json:"source"`
		Datetime int64  `json:"datetime"`
		Summary  string `json:"summary"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": strings.ToUpper(symbol),
			"from":   now.AddDate(0, 0, -7).Format("2006-01-02"),
			"to":     now.Format("2006-01-02"),
			"token":  p.apiKey,
		}).
		Get(p.baseURL + "/company-news")
	if err != nil {
		return nil, fmt.Errorf("调用 Finnhub company-news failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Finnhub company-news 返回错误: %s", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("解析 Finnhub company-news failed: %w", err)
	}

	if max > 0 && len(items) > max {
		items = items[:max]
	}
	out := make([]Headline, 0, len(items))
	for _, it := range items {
		out = append(out, Headline{
			Title:     it.Headline,
			Source:    it.Source,
			Published: it.Datetime,
			Summary:   it.Summary,
		})
	}
	return out, nil
}

// Filings 近期监管申报
func (p *FinnhubProvider) Filings(ctx context.Context, symbol string, max int) ([]Filing, error) {
	var items []struct {
		Form     string `json:"form"`
		FiledAt  string `json:"filedDate"`
		Symbol   string `json:"symbol"`
		Headline string `json:"reportUrl"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": strings.ToUpper(symbol),
			"token":  p.apiKey,
		}).
		Get(p.baseURL + "/stock/filings")
	if err != nil {
		return nil, fmt.Errorf("调用 Finnhub filings failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Finnhub filings 返回错误: %s", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("解析 Finnhub filings failed: %w", err)
	}

	if max > 0 && len(items) > max {
		items = items[:max]
	}
	out := make([]Filing, 0, len(items))
	for _, it := range items {
		out = append(out, Filing{
			Type:  it.Form,
			Title: fmt.Sprintf("%s filing for %s", it.Form, strings.ToUpper(symbol)),
			Date:  it.FiledAt,
		})
	}
	return out, nil
}
