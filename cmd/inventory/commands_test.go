package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
	"github.com/andresuchdata/eisen-inventory/internal/importer"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSummaryLine(t *testing.T) {
	line := summaryLine([]domain.AlertEvaluation{
		{ProductID: 1, Status: domain.StatusLow},
		{ProductID: 2, Status: domain.StatusLow},
		{ProductID: 3, Status: domain.StatusOK},
	})
	require.Equal(t, "Evaluated 3 products: LOW=2 APPROACHING=0 OK=1", line)
}

func TestPrintImportResultTruncatesRowErrors(t *testing.T) {
	result := &importer.Result{RunID: "run-1", Mode: importer.ModeAppend, Created: 1, Failed: 25}
	for i := 0; i < 25; i++ {
		result.RowErrors = append(result.RowErrors, importer.RowError{Line: i + 2, SKU: "X", Message: "boom"})
	}

	var buf bytes.Buffer
	printImportResult(&buf, result)
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "run run-1 (append): created=1 updated=0 skipped=0 failed=25\n"))
	require.Equal(t, 20, strings.Count(out, ": boom"))
	require.Contains(t, out, "... 5 more row errors")
}

func TestWithDBSkipsParentCommands(t *testing.T) {
	cmd := withDB(&cli.Command{
		Name:        "seed",
		Subcommands: []*cli.Command{{Name: "sample"}, {Name: "sales"}},
	})
	require.Nil(t, cmd.Before)
	for _, sub := range cmd.Subcommands {
		require.NotNil(t, sub.Before)
		require.NotNil(t, sub.After)
	}
}
