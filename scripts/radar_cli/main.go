// Command radar_cli drives a full sync run against a running API server
// from the terminal: start a run, poll its progress, then print the
// finished week schedule.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type runResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Timezone string `json:"timezone"`
}

type runStatus struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Completed    int    `json:"completed"`
	Total        int    `json:"total"`
	Progress     int    `json:"progress"`
	ErrorMessage string `json:"error_message"`
}

type scheduledAssignment struct {
	Course    string `json:"course"`
	Name      string `json:"assignment"`
	DueLabel  string `json:"due_label"`
	DaysLeft  int    `json:"days_left"`
	HoursLeft int    `json:"hours_left"`
}

type undatedAssignment struct {
	Course string `json:"course"`
	Name   string `json:"assignment"`
}

type weekSchedule struct {
	Timezone string `json:"timezone"`
	Days     []struct {
		Day         string                `json:"day"`
		Assignments []scheduledAssignment `json:"assignments"`
	} `json:"days"`
	NoDueDate []undatedAssignment `json:"no_due_date"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base     string
		token    string
		timezone string
		interval time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("CANVAS_TOKEN"), "LMS access token (defaults to CANVAS_TOKEN)")
	flag.StringVar(&timezone, "timezone", "", "IANA zone for weekday bucketing")
	flag.DurationVar(&interval, "interval", time.Second, "poll interval")
	flag.Parse()

	if token == "" {
		log.Fatal("no access token: pass -token or set CANVAS_TOKEN")
	}

	client := &http.Client{Timeout: 30 * time.Second}

	run, err := startRun(client, base, token, timezone)
	if err != nil {
		log.Fatalf("failed to start run: %v", err)
	}
	fmt.Printf("run %s queued (timezone %s)\n", run.ID, run.Timezone)

	status, err := pollRun(client, base, run.ID, interval)
	if err != nil {
		log.Fatalf("run did not finish: %v", err)
	}
	if status.Status != "FINISHED" {
		log.Fatalf("run %s: %s", status.Status, status.ErrorMessage)
	}

	schedule, err := fetchSchedule(client, base, run.ID)
	if err != nil {
		log.Fatalf("failed to fetch schedule: %v", err)
	}
	printSchedule(schedule)
}

func startRun(client *http.Client, base, token, timezone string) (*runResponse, error) {
	body, _ := json.Marshal(map[string]string{"timezone": timezone})
	req, err := http.NewRequest(http.MethodPost, base+"/runs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var run runResponse
	if err := do(client, req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func pollRun(client *http.Client, base, id string, interval time.Duration) (*runStatus, error) {
	for {
		req, err := http.NewRequest(http.MethodGet, base+"/runs/"+id, nil)
		if err != nil {
			return nil, err
		}
		var status runStatus
		if err := do(client, req, &status); err != nil {
			return nil, err
		}
		switch status.Status {
		case "FINISHED", "FAILED":
			return &status, nil
		}
		if status.Total > 0 {
			fmt.Printf("\rsyncing courses %d/%d (%d%%)", status.Completed, status.Total, status.Progress)
		}
		time.Sleep(interval)
	}
}

func fetchSchedule(client *http.Client, base, id string) (*weekSchedule, error) {
	req, err := http.NewRequest(http.MethodGet, base+"/runs/"+id+"/schedule", nil)
	if err != nil {
		return nil, err
	}
	var schedule weekSchedule
	if err := do(client, req, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func printSchedule(schedule *weekSchedule) {
	fmt.Printf("\n\nWeek schedule (%s)\n", schedule.Timezone)
	for _, day := range schedule.Days {
		if len(day.Assignments) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", day.Day)
		for _, a := range day.Assignments {
			fmt.Printf("  %-30s %-40s due %s (%dd %dh left)\n", a.Course, a.Name, a.DueLabel, a.DaysLeft, a.HoursLeft)
		}
	}
	if len(schedule.NoDueDate) > 0 {
		fmt.Printf("\nNo Due Date\n")
		for _, a := range schedule.NoDueDate {
			fmt.Printf("  %-30s %s\n", a.Course, a.Name)
		}
	}
}

func do(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
