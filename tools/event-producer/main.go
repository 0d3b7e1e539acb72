// event-producer is a standalone load tool that posts synthetic events to a
// running scenariosd instance. It is intentionally dependency-free so it can
// be run from anywhere with just the Go toolchain.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type eventRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

var eventTypes = []string{"user-created", "new-subscription", "scenarios-test-user"}

func main() {
	target := flag.String("target", envOr("TARGET", "http://localhost:8080"), "base URL of the scenariosd API")
	eventType := flag.String("type", "", "event type to send (default: rotate through all known types)")
	count := flag.Int("count", 10, "number of events to send (0 = run until interrupted)")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between events")
	maxUserID := flag.Int64("max-user-id", 1000, "user IDs are drawn from [1, max-user-id]")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	url := *target + "/v1/events"

	var sent, failed int
	for i := 0; *count == 0 || i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}

		t := *eventType
		if t == "" {
			t = eventTypes[i%len(eventTypes)]
		}

		if err := send(client, url, buildEvent(t, *maxUserID)); err != nil {
			failed++
			log.Printf("event-producer: send failed: %v", err)
			continue
		}
		sent++
	}

	log.Printf("event-producer: done (sent=%d, failed=%d)", sent, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func buildEvent(eventType string, maxUserID int64) eventRequest {
	userID := rand.Int63n(maxUserID) + 1

	payload := map[string]any{"user_id": userID}
	if eventType == "new-subscription" {
		payload = map[string]any{"subscription_id": rand.Int63n(maxUserID) + 1}
	}

	return eventRequest{Type: eventType, Payload: payload}
}

func send(client *http.Client, url string, ev eventRequest) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
