package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Student Roster",
		Headers: []string{"ID", "Name", "Balance"},
		Rows: []map[string]string{
			{"ID": "1", "Name": "Asha, R.", "Balance": "500.00"},
			{"ID": "2", "Name": "Ben", "Balance": "0.00"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "ID,Name,Balance\n1,\"Asha, R.\",500.00\n2,Ben,0.00\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestColumnWidthsHonourMinimum(t *testing.T) {
	widths := columnWidths(Dataset{Headers: []string{"ID", "A much longer header name"}})
	require.Len(t, widths, 2)
	assert.GreaterOrEqual(t, widths[0], pdfMinColumn)
	assert.Greater(t, widths[1], widths[0])
}
