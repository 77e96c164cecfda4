package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/covtrail/covtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormatters(t *testing.T) {
	assert.Equal(t, "84.20", createFormatters(2)(84.2))
	assert.Equal(t, "-0.26", createFormatters(2)(-0.256))
	assert.Equal(t, "3", createFormatters(0)(3.14159))
}

func TestNumberText(t *testing.T) {
	b := schema.BuildCoverage{Fields: map[string]any{
		"n":   json.Number("84.20"),
		"f":   90.5,
		"i":   7,
		"i64": int64(-3),
		"s":   "12",
	}}
	assert.Equal(t, "84.20", numberText(b, "n"))
	assert.Equal(t, "90.5", numberText(b, "f"))
	assert.Equal(t, "7", numberText(b, "i"))
	assert.Equal(t, "-3", numberText(b, "i64"))
	assert.Equal(t, "", numberText(b, "s"))
	assert.Equal(t, "", numberText(b, "missing"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, []string{"a", "b"}))
	assert.Equal(t, "[\n  \"a\",\n  \"b\"\n]\n", buf.String())
}

func TestWriteJSONError(t *testing.T) {
	// Test with a value that can't be marshaled to JSON
	var buf bytes.Buffer
	err := writeJSON(&buf, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode JSON")
}

func TestWriteCSVWithHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		rows     [][]string
		expected string
	}{
		{
			name:     "simple csv",
			header:   []string{"commit_sha", "branch"},
			rows:     [][]string{{"a1", "main"}, {"b2", "dev"}},
			expected: "commit_sha,branch\na1,main\nb2,dev\n",
		},
		{
			name:     "empty rows",
			header:   []string{"col1", "col2"},
			expected: "col1,col2\n",
		},
		{
			name:     "values with commas",
			header:   []string{"sha", "message"},
			rows:     [][]string{{"a1", "Fix parser, add tests"}},
			expected: "sha,message\na1,\"Fix parser, add tests\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := writeCSVWithHeader(&buf, tt.header, func(w *csv.Writer) error {
				for _, row := range tt.rows {
					if err := w.Write(row); err != nil {
						return err
					}
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestWriteCSVWithHeaderError(t *testing.T) {
	var buf bytes.Buffer
	err := writeCSVWithHeader(&buf, []string{"col"}, func(w *csv.Writer) error {
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)
}

func TestWriteWithFileStdout(t *testing.T) {
	called := false
	err := writeWithFile("", func(w io.Writer) error {
		called = true
		return nil
	}, "Test message")

	require.NoError(t, err)
	assert.True(t, called, "Writer function should have been called")
}

func TestWriteWithFileActualFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.txt")

	err := writeWithFile(tmpFile, func(w io.Writer) error {
		_, err := w.Write([]byte("test content"))
		return err
	}, "Test message")
	require.NoError(t, err)

	content, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(content))
}

func TestWriteWithFileError(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.txt")
	err := writeWithFile(tmpFile, func(w io.Writer) error {
		return assert.AnError
	}, "Test message")
	assert.Equal(t, assert.AnError, err)
}

func TestWriteWithFileInvalidPath(t *testing.T) {
	err := writeWithFile("/nonexistent/path/file.txt", func(w io.Writer) error {
		return nil
	}, "Test message")
	require.Error(t, err)
}
