package main

import (
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"datamap-cloud/internal/schema/infrastructure/catalogfile"
	"datamap-cloud/internal/schema/infrastructure/datasetfile"
	"datamap-cloud/internal/suggest/heuristic"
)

func main() {
	addr := getenvDefault("FAKE_SUGGEST_ADDR", ":18090")
	manifest := getenvDefault("FAKE_SUGGEST_MANIFEST", "")
	latencyMs := getenvIntDefault("FAKE_SUGGEST_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_SUGGEST_FAIL_RATE", 0)
	forcedStatus := getenvIntDefault("FAKE_SUGGEST_STATUS", 0)
	floor := getenvFloatDefault("FAKE_SUGGEST_FLOOR", heuristic.DefaultFloor)

	if manifest == "" {
		log.Fatal("FAKE_SUGGEST_MANIFEST is required")
	}
	entries, err := datasetfile.LoadManifest(manifest)
	if err != nil {
		log.Fatalf("manifest error: %v", err)
	}
	columns, err := datasetfile.NewSource(entries)
	if err != nil {
		log.Fatalf("dataset source error: %v", err)
	}
	catalog, err := catalogfile.NewSource(getenvDefault("FAKE_SUGGEST_CATALOG", ""), nil)
	if err != nil {
		log.Fatalf("catalog error: %v", err)
	}
	suggester, err := heuristic.New(catalog, columns, heuristic.WithFloor(floor))
	if err != nil {
		log.Fatalf("suggester error: %v", err)
	}

	srv := newFakeServer(suggester, time.Duration(latencyMs)*time.Millisecond, failRate, forcedStatus, rand.New(rand.NewSource(time.Now().UnixNano())))
	log.Printf("fake suggestion server listening on %s (%d datasets)", addr, len(entries))
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatal(err)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
