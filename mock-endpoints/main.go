// A standalone subscriber simulator for local testing. It receives webhook
// deliveries, verifies the signature when a secret is provided, and offers
// failing and Slack-style endpoints to exercise retries and formatting.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/papermark/webhook-engine/internal/signature"
)

var requestCount atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	// When set, deliveries with a bad signature are rejected with 401.
	secret := os.Getenv("WEBHOOK_SECRET")

	// Successful endpoint — always returns 200
	http.HandleFunc("/webhook/success", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		body, _ := io.ReadAll(r.Body)

		if secret != "" {
			sig := r.Header.Get(signature.Header)
			if !signature.Verify(secret, body, sig) {
				logRequest(r, count, 401, "")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "bad signature"})
				return
			}
		}

		logRequest(r, count, 200, eventName(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received"})
	})

	// Slow endpoint — delays 3 seconds before responding
	http.HandleFunc("/webhook/slow", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		time.Sleep(3 * time.Second)
		logRequest(r, count, 200, "")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "received (slow)"})
	})

	// Failing endpoint — always returns 500
	http.HandleFunc("/webhook/fail", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(r, count, 500, "")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	// Slack-style endpoint — expects a {"text": ...} body and prints it
	http.HandleFunc("/webhook/slack", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		var msg struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.Text == "" {
			logRequest(r, count, 400, "")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "expected a text field"})
			return
		}

		fmt.Printf("[#%d] slack message: %s\n", count, msg.Text)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Stats endpoint — shows request count
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("Mock endpoint server starting on :%s", port)
	log.Printf("  POST /webhook/success  -> 200 OK (verifies signature if WEBHOOK_SECRET set)")
	log.Printf("  POST /webhook/slow     -> 200 OK (3s delay)")
	log.Printf("  POST /webhook/fail     -> 500 Error")
	log.Printf("  POST /webhook/slack    -> 200 OK (expects {\"text\": ...})")
	log.Printf("  GET  /stats            -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, status int, event string) {
	fmt.Printf("[#%d] %s %s -> %d | sig=%s event=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		truncate(r.Header.Get(signature.Header), 16),
		event,
	)
}

func eventName(body []byte) string {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Event
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
