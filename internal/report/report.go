/*
Package report writes the JSON artifacts of a run (download metadata, alerts,
upload results) and reads the filing-row batches produced by extraction.
*/
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"

	"github.com/shanehull/idxscraper/internal/filings"
	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

// WriteFileAtomic writes data to a temporary file next to path and renames it into place
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "create directory")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "write temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return perr.Wrap(err, perr.ErrorCodeUnknown, "rename temp file")
	}
	return nil
}

// WriteJSON writes v as indented JSON. A nil slice is written as [] so
// consumers always see an array.
func WriteJSON(path string, v any) error {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.IsNil() {
		v = []any{}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeParse, "marshal %s", filepath.Base(path))
	}
	data = append(data, '\n')
	if err := WriteFileAtomic(path, data); err != nil {
		return perr.WithOp(err, "write "+path)
	}
	return nil
}

// LoadRows reads a JSON array of filing rows
func LoadRows(path string) ([]filings.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.Wrapf(perr.ErrNotFound, perr.ErrorCodeValidation, "rows file %s", path)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "read rows file %s", path)
	}

	var rows []filings.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeParse, "decode rows file %s", path)
	}
	return rows, nil
}
