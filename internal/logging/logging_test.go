package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(&buf, "json", "warn")
	require.NoError(t, err)

	log.Info().Msg("dropped")
	log.Warn().Str("column", "age").Msg("kept")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "kept", rec["message"])
	require.Equal(t, "age", rec["column"])
}

func TestNewRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "xml", "info")
	require.Error(t, err)
	_, err = New(nil, "json", "loud")
	require.Error(t, err)
}
