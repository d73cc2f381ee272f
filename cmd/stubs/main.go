package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/metalfolio/price-engine/internal/stubs"
)

// Runs the fake upstream. Point every feed at it for a keyless local
// setup:
//
//	LIVE_API_URL=http://localhost:8091 \
//	BAR_API_URL=http://localhost:8091 BAR_API_KEY=stub \
//	HISTORICAL_API_URL=http://localhost:8091 HISTORICAL_API_KEY=stub \
//	go run ./cmd/server
func main() {
	addr := flag.String("addr", ":8091", "listen address")
	flag.Parse()

	log.Printf("stub upstream listening on %s", *addr)
	if err := http.ListenAndServe(*addr, stubs.NewUpstream().Handler()); err != nil {
		log.Fatal(err)
	}
}
