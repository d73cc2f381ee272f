// Package observ provides the structured event log and the in-process
// metric registry. Events are single-line JSON on stdout; metrics are
// exposed as a plain JSON dump, not Prometheus format, because the
// fleet is one process and the dashboards scrape JSON.
package observ

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Log emits one structured event line.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64
	gauges   map[string]map[string]float64
	hist     map[string]map[string][]float64
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
	hist:     map[string]map[string][]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	m[canonLabels(labels)]++
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	m[canonLabels(labels)] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	m[k] = append(m[k], value)
}

// RecordDuration records a duration observation in milliseconds.
func RecordDuration(name string, d time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(d.Milliseconds()), labels)
}

// MetricsHandler dumps the registry as JSON.
func MetricsHandler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// HealthProbe contributes one named detail block to the health report.
// Probes that return degraded or failed drag the overall status down.
type HealthProbe func() (status string, details any)

var (
	probeMu   sync.Mutex
	probes    = map[string]HealthProbe{}
	startTime = time.Now()
)

// RegisterHealthProbe attaches a component's health to /healthz.
func RegisterHealthProbe(name string, p HealthProbe) {
	probeMu.Lock()
	defer probeMu.Unlock()
	probes[name] = p
}

// HealthHandler reports overall process health. Degraded components
// yield 200 with status "degraded"; a failed component yields 503.
func HealthHandler() http.Handler {
	type health struct {
		Status    string         `json:"status"`
		Timestamp string         `json:"timestamp"`
		Uptime    string         `json:"uptime"`
		Details   map[string]any `json:"details"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probeMu.Lock()
		defer probeMu.Unlock()

		overall := "healthy"
		details := make(map[string]any, len(probes))
		for name, probe := range probes {
			status, d := probe()
			details[name] = d
			switch status {
			case "failed":
				overall = "failed"
			case "degraded":
				if overall != "failed" {
					overall = "degraded"
				}
			}
		}

		code := http.StatusOK
		if overall == "failed" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(health{
			Status:    overall,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Details:   details,
		})
	})
}
