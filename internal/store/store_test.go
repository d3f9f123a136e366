package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/knmi-hourly/internal/knmi"
)

func TestDatasetsResetDiscardsPreviousRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stations_tmp")
	ds := NewDatasets(dir)

	require.NoError(t, ds.Reset())
	require.NoError(t, ds.Append(260, "STN,A\n1,2\n"))
	require.True(t, ds.Exists(260))

	require.NoError(t, ds.Reset())
	assert.False(t, ds.Exists(260))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDatasetsAppend(t *testing.T) {
	ds := NewDatasets(t.TempDir())

	require.NoError(t, ds.Append(1, "STN,A\n"))
	require.NoError(t, ds.Append(1, "1,2\n"))

	b, err := os.ReadFile(ds.Path(1))
	require.NoError(t, err)
	assert.Equal(t, "STN,A\n1,2\n", string(b))
}

func TestDatasetsAppendMissingDirectory(t *testing.T) {
	ds := NewDatasets(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, ds.Append(1, "x"))
}

func TestDatasetsStationIDs(t *testing.T) {
	dir := t.TempDir()
	ds := NewDatasets(dir)

	for _, id := range []int{380, 235, 260} {
		require.NoError(t, ds.Append(id, "STN,A\n"))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "240.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "999.csv"), 0o755))

	ids, err := ds.StationIDs()
	require.NoError(t, err)
	assert.Equal(t, []int{235, 260, 380}, ids)

	path, err := ds.Open(260)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "260.csv"), path)

	_, err = ds.Open(240)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatasetsStationIDsMissingDirectory(t *testing.T) {
	ids, err := NewDatasets(filepath.Join(t.TempDir(), "nope")).StationIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRunHistoryRetention(t *testing.T) {
	h := NewRunHistory(2)

	_, err := h.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []string{"a", "b", "c"} {
		h.SaveRun(&knmi.Summary{RunID: id})
	}

	assert.Equal(t, 2, h.Len())
	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Equal(t, "c", latest.RunID)

	got, err := h.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.RunID)

	_, err = h.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunHistoryUnlimited(t *testing.T) {
	h := NewRunHistory(0)
	for i := 0; i < 50; i++ {
		h.SaveRun(&knmi.Summary{})
	}
	assert.Equal(t, 50, h.Len())
}
