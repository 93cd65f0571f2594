package render

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCols = []string{"pid", "name", "cpu"}
	testRows = [][]any{
		{int64(1), "init", 0.5},
		{int64(42), "sshd, main", nil},
		{int64(100), []byte("bash"), 1.25},
	}
)

func TestPrinter_Table(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, Printer{Format: FormatTable}.Print(&buf, testCols, testRows))
	exp := strings.Join([]string{
		"pid  name        cpu",
		"1    init        0.5",
		"42   sshd, main  NULL",
		"100  bash        1.25",
	}, "\n") + "\n"
	assert.Equal(t, exp, buf.String())

	buf.Reset()
	require.NoError(t, Printer{}.Print(&buf, []string{"a"}, nil))
	assert.Equal(t, "a\n", buf.String(), "default format is table")
}

func TestPrinter_TableColor(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, Printer{Format: FormatTable, Color: true}.Print(&buf, testCols, testRows))
	out := buf.String()
	assert.Contains(t, out, "\x1b[", "escape sequences written")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "1    init        0.5", lines[1], "plain cells not colored")
	assert.Contains(t, lines[2], "sshd, main  \x1b[")
	assert.Contains(t, lines[2], "NULL\x1b[0m")
}

func TestPrinter_JSON(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, Printer{Format: FormatJSON}.Print(&buf, testCols, testRows))
	exp := `[
  {"pid": 1, "name": "init", "cpu": 0.5},
  {"pid": 42, "name": "sshd, main", "cpu": null},
  {"pid": 100, "name": "bash", "cpu": 1.25}
]
`
	assert.Equal(t, exp, buf.String())

	buf.Reset()
	require.NoError(t, Printer{Format: FormatJSON}.Print(&buf, []string{"a", "b"}, [][]any{{math.Inf(1), math.NaN()}}))
	assert.Equal(t, "[\n  {\"a\": \"+Inf\", \"b\": \"NaN\"}\n]\n", buf.String(), "non-finite floats as strings")

	buf.Reset()
	require.NoError(t, Printer{Format: FormatJSON}.Print(&buf, testCols, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestPrinter_CSV(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, Printer{Format: FormatCSV}.Print(&buf, testCols, testRows))
	exp := "pid,name,cpu\n1,init,0.5\n42,\"sshd, main\",\n100,bash,1.25\n"
	assert.Equal(t, exp, buf.String())
}

func TestPrinter_UnknownFormat(t *testing.T) {
	err := Printer{Format: "xml"}.Print(&bytes.Buffer{}, testCols, testRows)
	assert.EqualError(t, err, `unknown format "xml"`)
}

func TestText(t *testing.T) {
	tbl := []struct {
		in  any
		out string
	}{
		{nil, "NULL"},
		{"s", "s"},
		{[]byte("b"), "b"},
		{int64(-5), "-5"},
		{1e21, "1e+21"},
		{2.5, "2.5"},
		{true, "true"},
		{uint8(7), "7"},
	}
	for _, tt := range tbl {
		assert.Equal(t, tt.out, Text(tt.in))
	}
}
