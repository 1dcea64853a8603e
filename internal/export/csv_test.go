package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle/internal/population"
)

func TestWriteCSV(t *testing.T) {
	rows := []population.Row{
		{ID: "007", Attrs: map[string]any{"고객ID": "007", "성별": "여성", "age": int64(34), "vip": true}},
		{ID: "8", Attrs: map[string]any{"고객ID": int64(8), "성별": "남성", "score": 1.5, "age": nil}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, "고객ID", []string{"성별", "age", "고객ID", "score", "vip"}, rows))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}), "output starts with a UTF-8 BOM")

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"고객ID", "age", "score", "vip", "성별"},
		{"007", "34", "", "true", "여성"},
		{"8", "", "1.5", "", "남성"},
	}, records)
}

func TestWriteCSV_NoRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, "id", nil, nil))
	assert.Equal(t, "\xEF\xBB\xBFid\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriteCSV_WriterError(t *testing.T) {
	assert.Error(t, WriteCSV(failingWriter{}, "id", nil, []population.Row{{ID: "a"}}))
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{"id", "a", "b"}, Header("id", []string{"b", "id", "a"}))
}
