// ingest-logger is a standalone stand-in for the monitor's ingest endpoint.
// Point a messageforwarder's HUB_INGEST_URL at it to watch forwarded
// messages arrive during local loop testing.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type delivery struct {
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlation_id"`
	Scope         string `json:"scope"`
	Body          string `json:"body"`
}

type stats struct {
	Count          int64      `json:"count"`
	LastDeliveries []delivery `json:"last_deliveries"`
	Since          string     `json:"since"`
}

var (
	mu             sync.Mutex
	count          int64
	lastDeliveries []delivery
	since          time.Time
	maxStored      = 50
)

func main() {
	since = time.Now().UTC()

	addr := ":8090"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/ingest", handleIngest)
	http.HandleFunc("/stats", handleStats)

	log.Printf("ingest-logger listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	d := delivery{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		CorrelationID: r.Header.Get("X-Correlation-Id"),
		Scope:         r.Header.Get("X-Scope"),
		Body:          string(body),
	}

	mu.Lock()
	count++
	lastDeliveries = append(lastDeliveries, d)
	if len(lastDeliveries) > maxStored {
		lastDeliveries = lastDeliveries[len(lastDeliveries)-maxStored:]
	}
	n := count
	mu.Unlock()

	log.Printf("delivery #%d correlation_id=%s scope=%s bytes=%d",
		n, d.CorrelationID, d.Scope, len(body))

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, `{"status":"accepted"}`)
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	s := stats{
		Count:          count,
		LastDeliveries: append([]delivery(nil), lastDeliveries...),
		Since:          since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		log.Printf("encode stats: %v", err)
	}
}
