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

// advisor 命令行客户端：面向本地调试的交互式问答入口
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version":
		fmt.Println("advisor cli 0.1.0")
	case "health":
		if err := getHealth(); err != nil {
			fmt.Fprintf(os.Stderr, "api unreachable: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ok")
	case "ask":
		runAsk(args)
	case "chat":
		runChat(args)
	case "trace":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "Usage: advisor trace <run_id>")
			os.Exit(1)
		}
		runTrace(args[0])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`advisor - investment Q&A client

Usage:
  advisor ask <client_id> <question...>   one-shot question
  advisor chat <client_id>                interactive session
  advisor trace <run_id>                  show run trace
  advisor health                          check API health
  advisor version`)
}

func runAsk(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: advisor ask <client_id> <question...>")
		os.Exit(1)
	}
	clientID := args[0]
	query := strings.Join(args[1:], " ")

	result, err := postQuery(query, clientID, uuid.NewString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
		os.Exit(1)
	}
	printResult(result)
}

func runChat(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: advisor chat <client_id>")
		os.Exit(1)
	}
	clientID := args[0]
	sessionID := uuid.NewString()
	fmt.Printf("session %s (client %s) — type 'exit' to quit\n", sessionID, clientID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		result, err := postQuery(line, clientID, sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func runTrace(runID string) {
	tr, err := getTrace(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace failed: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(tr, "", "  ")
	fmt.Println(string(out))
}

func printResult(result *queryResult) {
	fmt.Println(result.Text)
	if result.NeedsClarification {
		return
	}
	fmt.Printf("[intent=%s run=%s", result.Intent, result.RunID)
	if result.Unvalidated {
		fmt.Print(" unvalidated")
	}
	fmt.Println("]")
}
