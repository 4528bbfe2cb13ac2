package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportConfigDefaultsWithoutFile(t *testing.T) {
	holder, err := NewReportConfigHolder(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultReportConfig(), holder.Get())
}

func TestReportConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  pdfRowsPerPage: 40\n"), 0o600))

	holder, err := NewReportConfigHolder(Config{ReportConfigPath: path})
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 40, cfg.PDFRowsPerPage)
	assert.Equal(t, DefaultReportConfig().MaxRangeDays, cfg.MaxRangeDays)
}

func TestReportConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yml")
	content := "report:\n  maxRangeDays: 31\n  pdfRowsPerPage: 10\n  pdfTitle: Clinic billing\n  csvDelimiter: \";\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := NewReportConfigHolder(Config{ReportConfigPath: path})
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 31, cfg.MaxRangeDays)
	assert.Equal(t, 10, cfg.PDFRowsPerPage)
	assert.Equal(t, "Clinic billing", cfg.PDFTitle)
	assert.Equal(t, ";", cfg.CSVDelimiter)
}

func TestReportConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  pdfRowsPerPage: 0\n"), 0o600))

	_, err := NewReportConfigHolder(Config{ReportConfigPath: path})
	assert.Error(t, err)
}
