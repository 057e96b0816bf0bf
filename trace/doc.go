// Package trace models the ground truth of an anonymous communication
// network run.
//
// A trace lists every message that crossed the network together with the
// source that sent it, the destination that received it and both
// timestamps. Traces are usually produced by a simulation (see package
// generator) or by instrumenting a controlled deployment, and are the input
// of the Progressive Pruning metric.
//
// # File Format
//
// Traces are stored as CSV with a header row:
//
//	m_id,source_id,source_timestamp,destination_id,destination_timestamp
//	0,0,1970-01-01 00:00:01.000000000,3,1970-01-01 00:00:01.042000000
//
// Files whose name ends in ".zst" are zstd-compressed.
//
// # Validation
//
// A Builder collects entries and Build checks the invariants the metric
// relies on: message IDs are 0..n-1, arrival times do not decrease with the
// message ID, and source IDs are 0..k-1. Fix renumbers messages by arrival
// time so that arbitrary input can be brought into this form.
package trace
