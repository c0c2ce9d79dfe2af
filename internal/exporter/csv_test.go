package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		validate func(t *testing.T, path string)
	}{
		{
			name:     "basic write with headers",
			filePath: "basic.csv",
			options: WriteOptions{
				Headers: []string{"city", "district", "rate"},
				Records: [][]string{
					{"台北市", "大安區", "42.50"},
					{"台北市", "信義區", "18.00"},
				},
			},
			validate: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.False(t, bytes.HasPrefix(content, utf8BOM), "no BOM requested")

				rows := readAllCSV(t, path)
				require.Len(t, rows, 3)
				assert.Equal(t, []string{"city", "district", "rate"}, rows[0])
				assert.Equal(t, "大安區", rows[1][1])
			},
		},
		{
			name:     "bom prefix for excel",
			filePath: "bom.csv",
			options: WriteOptions{
				Headers:   []string{"metric", "value"},
				Records:   [][]string{{"projects", "3"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.True(t, bytes.HasPrefix(content, utf8BOM))
			},
		},
		{
			name:     "empty records still writes header",
			filePath: "empty.csv",
			options: WriteOptions{
				Headers: []string{"a", "b"},
			},
			validate: func(t *testing.T, path string) {
				rows := readAllCSV(t, path)
				require.Len(t, rows, 1)
				assert.Equal(t, []string{"a", "b"}, rows[0])
			},
		},
		{
			name:     "nested relative path creates directories",
			filePath: filepath.Join("history", "nested.csv"),
			options: WriteOptions{
				Headers: []string{"x"},
				Records: [][]string{{"1"}},
			},
			validate: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, writer.WriteCSV(tt.filePath, tt.options))
			tt.validate(t, filepath.Join(tempDir, tt.filePath))
		})
	}
}

func TestWriteSimpleCSVAlwaysHasBOM(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	err := writer.WriteSimpleCSV("simple.csv",
		[]string{"quarter", "units_sold"},
		[][]string{{"112Y1S", "4"}, {"112Y2S", "2"}})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(tempDir, "simple.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, utf8BOM))

	rows := readAllCSV(t, filepath.Join(tempDir, "simple.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, "112Y2S", rows[2][0])
}

func TestAppendToCSV(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	require.NoError(t, writer.WriteSimpleCSV("append.csv",
		[]string{"metric", "value"},
		[][]string{{"run_id", "abc"}}))
	require.NoError(t, writer.AppendToCSV("append.csv",
		[][]string{{"projects", "3"}, {"cities", "1"}}))

	rows := readAllCSV(t, filepath.Join(tempDir, "append.csv"))
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"projects", "3"}, rows[2])
	assert.Equal(t, []string{"cities", "1"}, rows[3])
}

func TestAppendDoesNotRepeatHeaderOrBOM(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	require.NoError(t, writer.WriteSimpleCSV("grow.csv",
		[]string{"a"}, [][]string{{"1"}}))
	require.NoError(t, writer.AppendToCSV("grow.csv", [][]string{{"2"}}))

	content, err := os.ReadFile(filepath.Join(tempDir, "grow.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(content, utf8BOM))
	assert.Equal(t, 1, strings.Count(string(content), "a\n"))
}

func TestStreamWriter(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(tempDir)

	sw, err := writer.CreateStreamWriter("stream.csv", []string{"id", "rate"})
	require.NoError(t, err)

	require.NoError(t, sw.WriteRecord([]string{"RPAAA", "10.00"}))
	require.NoError(t, sw.WriteRecord([]string{"RPBBB", "25.00"}))
	require.NoError(t, sw.Close())

	content, err := os.ReadFile(filepath.Join(tempDir, "stream.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, utf8BOM))

	rows := readAllCSV(t, filepath.Join(tempDir, "stream.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "rate"}, rows[0])
	assert.Equal(t, []string{"RPBBB", "25.00"}, rows[2])
}

func TestResolvePathAbsolutePassThrough(t *testing.T) {
	tempDir := t.TempDir()
	writer := NewCSVWriter(filepath.Join(tempDir, "reports"))

	abs := filepath.Join(tempDir, "elsewhere", "direct.csv")
	require.NoError(t, writer.WriteSimpleCSV(abs, []string{"a"}, [][]string{{"1"}}))

	_, err := os.Stat(abs)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tempDir, "reports", abs))
	assert.Error(t, err)
}

// readAllCSV decodes a file, skipping the BOM when present.
func readAllCSV(t *testing.T, path string) [][]string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = bytes.TrimPrefix(content, utf8BOM)

	rows, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return rows
}
