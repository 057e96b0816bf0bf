package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteTable(t *testing.T) {
	tr := pruningTrace(t)
	res := analyze(t, tr, 0, 10)
	entries := Deanonymization(res, tr)

	var buf bytes.Buffer
	WriteTable(&buf, Summarize(res, tr, entries), entries)
	out := buf.String()

	require.Contains(t, out, "Mean final set size")
	require.Contains(t, out, "1.50")
	require.Contains(t, out, "0-10")
	require.Contains(t, out, "DEANONYMIZED AT")

	var empty bytes.Buffer
	WriteTable(&empty, Summary{}, nil)
	require.NotContains(t, empty.String(), "DEANONYMIZED AT")
}
