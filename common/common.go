// Package common holds build metadata and the (optionally compressed) file
// I/O shared by the ppcalc packages.
package common

var (
	// PackageName is used as the metrics namespace and in log records.
	PackageName = "ppcalc"

	// Version is overridden at build time via -ldflags.
	Version = "dev"
)
