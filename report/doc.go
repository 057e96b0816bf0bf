// Package report turns Progressive Pruning results into the artifacts users
// look at: which sources were deanonymized and when, how anonymity set
// sizes evolve, and aggregate summaries. Reports are written as JSON,
// optionally zstd-compressed.
package report
