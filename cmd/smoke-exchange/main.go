// Command smoke-exchange drives a running exgate-api through the happy path:
// obtain tokens, submit a request, reject it, and verify the notification and
// the double-decision guard. Intended for deploy verification, not CI.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

type tokenResponse struct {
	Token string `json:"token"`
}

type submitResponse struct {
	Request struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"request"`
}

type notificationList struct {
	Items []struct {
		Message string `json:"message"`
	} `json:"items"`
}

func main() {
	base := os.Getenv("EXGATE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	consumerToken := obtainToken(client, base, "smoke-consumer", "institution", "inst-stats")
	adminToken := obtainToken(client, base, "smoke-admin", "admin", "")

	var created submitResponse
	status := call(client, http.MethodPost, base+"/v1/requests", consumerToken, map[string]any{
		"consumer_institution_id":   "inst-stats",
		"consumer_institution_name": "Bureau of Statistics",
		"services":                  []string{"Business Registration"},
		"title":                     "Smoke test access",
	}, &created)
	if status != http.StatusCreated {
		log.Fatalf("submit: unexpected status %d", status)
	}
	if created.Request.Status != "Submitted" {
		log.Fatalf("submit: unexpected request status %q", created.Request.Status)
	}
	id := created.Request.ID

	var notifs notificationList
	status = call(client, http.MethodGet, base+"/v1/requests/"+id+"/notifications", consumerToken, nil, &notifs)
	if status != http.StatusOK || len(notifs.Items) != 1 {
		log.Fatalf("notifications: status %d, %d items", status, len(notifs.Items))
	}

	status = call(client, http.MethodPost, base+"/v1/requests/"+id+"/reject", adminToken, map[string]any{
		"reason": "smoke test rejection",
	}, nil)
	if status != http.StatusOK {
		log.Fatalf("reject: unexpected status %d", status)
	}

	// Second decision must hit the status guard.
	status = call(client, http.MethodPost, base+"/v1/requests/"+id+"/approve", adminToken, nil, nil)
	if status != http.StatusConflict {
		log.Fatalf("approve after reject: expected 409, got %d", status)
	}

	fmt.Printf("exgate smoke test passed: request=%s\n", id)
}

func obtainToken(client *http.Client, base, user, role, institution string) string {
	var resp tokenResponse
	status := call(client, http.MethodPost, base+"/v1/auth/token", "", map[string]any{
		"user":           user,
		"role":           role,
		"institution_id": institution,
	}, &resp)
	if status != http.StatusOK || resp.Token == "" {
		log.Fatalf("token for %s: status %d", user, status)
	}
	return resp.Token
}

func call(client *http.Client, method, url, token string, body, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}
