// Package cmd holds the ppcalc command-line entry points.
//
// # Commands
//
// ppcalc generate: Simulates sources sending messages through an anonymous
// communication network and writes the observed trace.
//
//	go run ./cmd/ppcalc generate -s 100 -d 10 --network-delay uniform:50:500 trace.csv.zst
//
// ppcalc analyze: Runs Progressive Pruning over a trace.
//
//	go run ./cmd/ppcalc analyze --min-window 50 --max-window 500 -o sets.json trace.csv.zst
//	go run ./cmd/ppcalc analyze --min-window 0 --max-window 10 --generate-testcase ./cases/small trace.csv
//
// ppcalc verify: Recomputes stored test cases.
//
//	go run ./cmd/ppcalc verify ./testcase/testdata
//
// ppcalc serve: HTTP analysis service with run history.
//
//	go run ./cmd/ppcalc serve --addr=:8080 --metrics-addr=:9090
//	go run ./cmd/ppcalc serve --postgres-dsn=postgres://ppcalc@localhost/ppcalc?sslmode=disable
//
// # Configuration
//
// All commands accept a YAML configuration file via --config. Command-line
// flags override config file values.
//
//	log_level: info
//	log_json: false
//	server:
//	  http_addr: ":8080"
//	  metrics_addr: ":9090"
//	  cors_origins: ["https://dashboard.example.org"]
//	  drain_duration: 5s
//	  graceful_shutdown_duration: 30s
//	analysis:
//	  workers: 8
//	  min_window_ms: 50
//	  max_window_ms: 500
//	postgres:
//	  host: localhost
//	  user: ppcalc
//	  database: ppcalc
//	generator:
//	  sources: 1000
//	  destinations: 50
//	  destination_selection: normal
//	  source_imd: "normal:1000:100"
//	  source_wait: "uniform:0:1000"
//	  num_messages: "constant:20"
//	  network_delay: "uniform:50:500"
//
// The PostgreSQL password may be passed via PPCALC_POSTGRES_PASSWORD.
package cmd
