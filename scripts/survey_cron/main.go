// Command survey_cron drives the operational survey endpoints from an external
// scheduler. A typical crontab runs send-surveys Monday morning, send-reminders
// midweek and process-expired nightly.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type loginEnvelope struct {
	Data struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

type taskResult struct {
	Task     string
	Status   int
	Body     string
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base     string
		prefix   string
		email    string
		password string
		task     string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.StringVar(&email, "email", os.Getenv("TRIVSEL_CRON_EMAIL"), "Admin account email")
	flag.StringVar(&password, "password", os.Getenv("TRIVSEL_CRON_PASSWORD"), "Admin account password")
	flag.StringVar(&task, "task", "all", "Task to run: send-surveys, send-reminders, process-expired or all")
	flag.DurationVar(&timeout, "timeout", 120*time.Second, "HTTP client timeout")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("missing credentials: set -email/-password or TRIVSEL_CRON_EMAIL/TRIVSEL_CRON_PASSWORD")
	}

	tasks, err := resolveTasks(task)
	if err != nil {
		log.Fatalf("invalid task: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	apiBase := strings.TrimRight(base, "/") + prefix

	token, err := login(client, apiBase, email, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	failed := 0
	for _, t := range tasks {
		res := runTask(client, apiBase, token, t)
		if res.Err != nil {
			failed++
			fmt.Printf("%-16s ERROR %v\n", res.Task, res.Err)
			continue
		}
		if res.Status >= 400 {
			failed++
		}
		fmt.Printf("%-16s %d %s (%s)\n", res.Task, res.Status, res.Body, res.Duration.Round(time.Millisecond))
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func resolveTasks(task string) ([]string, error) {
	known := []string{"send-surveys", "send-reminders", "process-expired"}
	if task == "all" {
		return known, nil
	}
	for _, k := range known {
		if task == k {
			return []string{k}, nil
		}
	}
	return nil, fmt.Errorf("%q is not one of %s or all", task, strings.Join(known, ", "))
}

func login(client *http.Client, apiBase, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(apiBase+"/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env loginEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if env.Data.AccessToken == "" {
		return "", fmt.Errorf("login response carried no access token")
	}
	return env.Data.AccessToken, nil
}

func runTask(client *http.Client, apiBase, token, task string) taskResult {
	res := taskResult{Task: task}

	req, err := http.NewRequest(http.MethodPost, apiBase+"/system/"+task, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = err
		return res
	}
	res.Status = resp.StatusCode
	res.Body = strings.TrimSpace(string(body))
	return res
}
