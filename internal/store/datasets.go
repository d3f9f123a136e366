package store

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const datasetExt = ".csv"

// Datasets keeps one CSV file per station below a directory.
type Datasets struct {
	dir string
}

// NewDatasets creates a dataset store rooted at dir. The directory is not
// touched until Reset or Append.
func NewDatasets(dir string) *Datasets {
	return &Datasets{dir: dir}
}

// Dir returns the root directory.
func (d *Datasets) Dir() string {
	return d.dir
}

// Path returns the dataset file of a station.
func (d *Datasets) Path(stationID int) string {
	return filepath.Join(d.dir, strconv.Itoa(stationID)+datasetExt)
}

// Reset discards every dataset and recreates an empty directory.
func (d *Datasets) Reset() error {
	if err := os.RemoveAll(d.dir); err != nil {
		return errors.Wrapf(err, "remove %s", d.dir)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", d.dir)
	}
	return nil
}

// Append writes text at the end of a station's dataset, creating it if needed.
func (d *Datasets) Append(stationID int, text string) (err error) {
	f, err := os.OpenFile(d.Path(stationID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open dataset")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close dataset")
		}
	}()

	if _, err := f.WriteString(text); err != nil {
		return errors.Wrap(err, "append dataset")
	}
	return nil
}

// Exists reports whether a station has a dataset.
func (d *Datasets) Exists(stationID int) bool {
	info, err := os.Stat(d.Path(stationID))
	return err == nil && info.Mode().IsRegular()
}

// Open returns the dataset path of a station, or ErrNotFound.
func (d *Datasets) Open(stationID int) (string, error) {
	if !d.Exists(stationID) {
		return "", ErrNotFound
	}
	return d.Path(stationID), nil
}

// StationIDs lists the stations that have a dataset, in ascending order.
// A missing directory yields no stations.
func (d *Datasets) StationIDs() ([]int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list %s", d.dir)
	}

	var ids []int
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, datasetExt) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(name, datasetExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
