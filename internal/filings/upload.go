package filings

import (
	"context"
	"encoding/json"

	"github.com/shanehull/idxscraper/internal/platform/logger"
)

// UploadResult accumulates per-row outcomes in submission order
type UploadResult struct {
	InsertedCount int               `json:"inserted_count"`
	Inserted      []json.RawMessage `json:"inserted"`
	FailedRows    []Row             `json:"failed_rows"`
	Errors        []string          `json:"errors"`
}

// Uploader inserts rows one at a time. A rejected row is recorded and the
// batch continues unless StopOnFirstError is set.
type Uploader struct {
	store            Store
	allowed          map[string]struct{}
	StopOnFirstError bool
}

// NewUploader builds an Uploader. When allowedFields is non-empty, record keys
// outside it are stripped before insert.
func NewUploader(store Store, allowedFields []string, stopOnFirstError bool) *Uploader {
	u := &Uploader{store: store, StopOnFirstError: stopOnFirstError}
	if len(allowedFields) > 0 {
		u.allowed = make(map[string]struct{}, len(allowedFields))
		for _, f := range allowedFields {
			u.allowed[f] = struct{}{}
		}
	}
	return u
}

// Upload inserts rows in order
func (u *Uploader) Upload(ctx context.Context, rows []Row) UploadResult {
	log := logger.C(ctx).With().Str("component", "uploader").Logger()
	res := UploadResult{Inserted: []json.RawMessage{}, FailedRows: []Row{}, Errors: []string{}}

	for i, r := range rows {
		rec := u.record(r)
		body, err := u.store.InsertRow(ctx, rec)
		if err != nil {
			log.Warn().Err(err).Int("row", i).Str("symbol", r.Symbol).Str("timestamp", r.Timestamp).Msg("row rejected")
			res.FailedRows = append(res.FailedRows, r)
			res.Errors = append(res.Errors, err.Error())
			if u.StopOnFirstError {
				log.Warn().Int("remaining", len(rows)-i-1).Msg("stopping on first error")
				break
			}
			continue
		}
		res.InsertedCount++
		res.Inserted = append(res.Inserted, body)
	}

	log.Info().Int("inserted", res.InsertedCount).Int("failed", len(res.FailedRows)).Msg("upload done")
	return res
}

func (u *Uploader) record(r Row) map[string]any {
	rec := r.ToRecord()
	if u.allowed == nil {
		return rec
	}
	for k := range rec {
		if _, ok := u.allowed[k]; !ok {
			delete(rec, k)
		}
	}
	return rec
}
