package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/flashbots/ppcalc/report"
	"github.com/flashbots/ppcalc/trace"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestGenerateAnalyzeVerify(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.csv.zst")

	_, err := execute(t, "generate",
		"-s", "6", "-d", "3",
		"--destination-selection", "roundrobin",
		"--source-imd", "constant:100",
		"--source-wait", "uniform:0:100",
		"--num-messages", "constant:5",
		"--network-delay", "uniform:10:50",
		"--seed", "11",
		"--write-sources", filepath.Join(dir, "sources.json"),
		tracePath,
	)
	require.NoError(t, err)

	b, err := trace.LoadFile(tracePath)
	require.NoError(t, err)
	tr, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 30, tr.Len())

	var streams []trace.SourceStream
	require.NoError(t, report.ReadJSON(filepath.Join(dir, "sources.json"), &streams))
	require.Len(t, streams, 6)

	// a second run over the recorded senders keeps their send times
	replayPath := filepath.Join(dir, "replay.csv")
	_, err = execute(t, "generate",
		"-d", "2",
		"--network-delay", "constant:5",
		"--reuse-sources", filepath.Join(dir, "sources.json"),
		"--seed", "12",
		replayPath,
	)
	require.NoError(t, err)
	rb, err := trace.LoadFile(replayPath)
	require.NoError(t, err)
	replay, err := rb.Build()
	require.NoError(t, err)
	require.Equal(t, streams, trace.SourcesFromTrace(replay))

	fromTrace, err := loadSources(tracePath)
	require.NoError(t, err)
	require.Equal(t, streams, fromTrace)

	caseDir := filepath.Join(dir, "case")
	out, err := execute(t, "analyze",
		"--min-window", "10", "--max-window", "50",
		"-o", filepath.Join(dir, "sets.json"),
		"--output-user-anonsets", filepath.Join(dir, "users.json"),
		"--timeline", filepath.Join(dir, "timeline.json"),
		"--generate-testcase", caseDir,
		tracePath,
	)
	require.NoError(t, err)

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, 6, summary.Sources)
	require.Equal(t, 30, summary.Messages)
	require.Zero(t, summary.IncorrectlyPruned)

	var users []report.DeanonymizationEntry
	require.NoError(t, report.ReadJSON(filepath.Join(dir, "users.json"), &users))
	require.Len(t, users, 6)

	var timeline []report.TimelinePoint
	require.NoError(t, report.ReadJSON(filepath.Join(dir, "timeline.json"), &timeline))
	require.Len(t, timeline, 30)

	out, err = execute(t, "verify", caseDir)
	require.NoError(t, err)
	require.Contains(t, out, "ok")
}

func TestAnalyzeSizesOnly(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sizes.json.zst")

	_, err := execute(t, "analyze", "--min-window", "0", "--max-window", "10", "--sizes-only", "-o", out,
		filepath.Join("..", "..", "testcase", "testdata", "simple_test_1", "network_trace.csv"))
	require.NoError(t, err)

	var sizes map[trace.SourceID][]report.SizeEntry
	require.NoError(t, report.ReadJSON(out, &sizes))
	require.Equal(t, []report.SizeEntry{{Message: 0, Size: 2}, {Message: 2, Size: 1}}, sizes[0])
}

func TestAnalyzeTable(t *testing.T) {
	out, err := execute(t, "analyze", "--min-window", "0", "--max-window", "10", "--format", "table",
		filepath.Join("..", "..", "testcase", "testdata", "simple_test_1", "network_trace.csv"))
	require.NoError(t, err)
	require.Contains(t, out, "Deanonymized")
	require.Contains(t, out, "SET SIZE")

	_, err = execute(t, "analyze", "--format", "xml", "trace.csv")
	require.ErrorContains(t, err, "invalid format")
}

func TestAnalyzeFlagConflicts(t *testing.T) {
	_, err := execute(t, "analyze", "--sizes-only", "--generate-testcase", t.TempDir(), "trace.csv")
	require.Error(t, err)

	_, err = execute(t, "analyze", "--sizes-only", "--output-user-anonsets", "users.json", "trace.csv")
	require.Error(t, err)
}

func TestAnalyzeInvalidWindow(t *testing.T) {
	_, err := execute(t, "analyze", "--min-window", "20", "--max-window", "10", "trace.csv")
	require.Error(t, err)
}

func TestVerifyAllFixtures(t *testing.T) {
	out, err := execute(t, "verify", filepath.Join("..", "..", "testcase", "testdata"))
	require.Error(t, err)
	require.Contains(t, out, "FAIL")
	require.Contains(t, out, "simple_test_1")
	require.ErrorContains(t, err, "1 of 2 test cases failed")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "verify", t.TempDir())
	require.ErrorContains(t, err, "invalid log level")
}
