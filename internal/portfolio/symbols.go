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

package portfolio

import (
	"sort"
	"strings"
)

// 公司名尾缀，构建名称变体时剥离
var commonSuffixes = map[string]bool{
	"inc": true, "inc.": true, "corp": true, "corp.": true, "corporation": true,
	"ltd": true, "ltd.": true, "plc": true, "llc": true,
	"co": true, "co.": true, "company": true, "incorporated": true,
}

// StripCommonSuffixes 剥离公司名尾缀，如 "Tesla Inc" → "tesla"
func StripCommonSuffixes(name string) string {
	parts := strings.Fields(strings.ToLower(name))
	for len(parts) > 0 && commonSuffixes[parts[len(parts)-1]] {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

// BuildSymbolMap 从持仓构建 代码→名称变体 映射，变体含原名小写与去尾缀版本
func BuildSymbolMap(holdings []Holding) map[string][]string {
	out := make(map[string][]string, len(holdings))
	for _, h := range holdings {
		symbol := strings.ToUpper(strings.TrimSpace(h.Symbol))
		name := strings.TrimSpace(h.Name)
		if symbol == "" || name == "" {
			continue
		}

		normalized := strings.ToLower(name)
		variations := []string{normalized}
		if stripped := StripCommonSuffixes(normalized); stripped != "" && stripped != normalized {
			variations = append(variations, stripped)
		}
		out[symbol] = variations
	}
	return out
}

// ReverseSymbolMap 反转为 名称变体→代码 映射，冲突时先到先得
func ReverseSymbolMap(symbolMap map[string][]string) map[string]string {
	symbols := make([]string, 0, len(symbolMap))
	for s := range symbolMap {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make(map[string]string)
	for _, symbol := range symbols {
		for _, variant := range symbolMap[symbol] {
			variant = strings.ToLower(strings.TrimSpace(variant))
			if variant == "" {
				continue
			}
			if _, exists := out[variant]; !exists {
				out[variant] = symbol
			}
		}
	}
	return out
}
