/*
Package filings holds the normalized ownership-filing row, its content hash,
and the dedup and upload stages that move a batch of rows into a Store.
*/
package filings

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/window"
)

// Row is one normalized ownership change. Numeric fields are nil when the
// source did not report them.
type Row struct {
	Symbol                     string           `json:"symbol" validate:"required"`
	Timestamp                  string           `json:"timestamp" validate:"required"`
	TransactionType            string           `json:"transaction_type,omitempty"`
	HolderName                 string           `json:"holder_name,omitempty"`
	HolderType                 string           `json:"holder_type,omitempty"`
	HoldingBefore              *decimal.Decimal `json:"holding_before,omitempty"`
	HoldingAfter               *decimal.Decimal `json:"holding_after,omitempty"`
	SharePercentageBefore      *decimal.Decimal `json:"share_percentage_before,omitempty"`
	SharePercentageAfter       *decimal.Decimal `json:"share_percentage_after,omitempty"`
	SharePercentageTransaction *decimal.Decimal `json:"share_percentage_transaction,omitempty"`
	AmountTransaction          *decimal.Decimal `json:"amount_transaction,omitempty"`
	Price                      *decimal.Decimal `json:"price,omitempty"`
	TransactionValue           *decimal.Decimal `json:"transaction_value,omitempty"`
	Title                      string           `json:"title,omitempty"`
	URL                        string           `json:"url,omitempty"`
	Sector                     string           `json:"sector,omitempty"`
	SubSector                  string           `json:"sub_sector,omitempty"`
	Tags                       []string         `json:"tags,omitempty"`
	Source                     string           `json:"source,omitempty"`
	UID                        string           `json:"uid,omitempty"`
}

// Columns lists the store columns in record order
var Columns = []string{
	"symbol", "timestamp", "transaction_type", "holder_name", "holder_type",
	"holding_before", "holding_after", "share_percentage_before", "share_percentage_after",
	"share_percentage_transaction", "amount_transaction", "price", "transaction_value",
	"title", "url", "sector", "sub_sector", "tags", "source", "uid",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the fields every later stage depends on
func (r Row) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return perr.WithField(perr.Validationf("filing row: %s is required", fe.Field()), fe.Field())
		}
		return perr.Wrap(err, perr.ErrorCodeValidation, "filing row")
	}
	if _, err := r.Time(); err != nil {
		return perr.WithField(perr.Wrap(err, perr.ErrorCodeValidation, "filing row timestamp"), "Timestamp")
	}
	return nil
}

// Time parses Timestamp; naive values are read as UTC+7
func (r Row) Time() (time.Time, error) {
	return window.ParseLocal(r.Timestamp)
}

// Day is the UTC+7 calendar day of the row, at midnight
func (r Row) Day() (time.Time, bool) {
	t, err := r.Time()
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.In(window.Zone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, window.Zone), true
}

// ToRecord renders the row as a store record keyed by column, dropping absent values
func (r Row) ToRecord() map[string]any {
	rec := make(map[string]any, len(Columns))
	putStr := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			rec[k] = v
		}
	}
	putDec := func(k string, v *decimal.Decimal) {
		if v != nil {
			rec[k] = json.Number(v.String())
		}
	}

	putStr("symbol", r.Symbol)
	putStr("timestamp", r.Timestamp)
	putStr("transaction_type", r.TransactionType)
	putStr("holder_name", r.HolderName)
	putStr("holder_type", r.HolderType)
	putDec("holding_before", r.HoldingBefore)
	putDec("holding_after", r.HoldingAfter)
	putDec("share_percentage_before", r.SharePercentageBefore)
	putDec("share_percentage_after", r.SharePercentageAfter)
	putDec("share_percentage_transaction", r.SharePercentageTransaction)
	putDec("amount_transaction", r.AmountTransaction)
	putDec("price", r.Price)
	putDec("transaction_value", r.TransactionValue)
	putStr("title", r.Title)
	putStr("url", r.URL)
	putStr("sector", r.Sector)
	putStr("sub_sector", r.SubSector)
	if len(r.Tags) > 0 {
		rec["tags"] = append([]string(nil), r.Tags...)
	}
	putStr("source", r.Source)
	putStr("uid", r.UID)
	return rec
}

// RowFromRecord is the inverse of ToRecord, used by stores that read back
// loosely typed records
func RowFromRecord(rec map[string]any) (Row, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return Row{}, perr.Wrap(err, perr.ErrorCodeParse, "encode record")
	}
	var r Row
	if err := json.Unmarshal(b, &r); err != nil {
		return Row{}, perr.Wrap(err, perr.ErrorCodeParse, "decode record")
	}
	return r, nil
}
