// Package config loads run configuration from defaults, an optional YAML file
// and environment variables, in that order of precedence
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

// Store backends
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
)

type (
	// Config is the merged configuration of a run
	Config struct {
		Source     Source     `yaml:"source"`
		Documents  Documents  `yaml:"documents"`
		Classifier Classifier `yaml:"classifier"`
		Store      Store      `yaml:"store"`
		Output     Output     `yaml:"output"`
		SMTP       SMTP       `yaml:"smtp"`
	}

	// Source configures the paginated announcement listing
	Source struct {
		URL      string        `yaml:"url" validate:"required,url"`
		Keywords string        `yaml:"keywords"`
		PageSize int           `yaml:"page_size" validate:"gte=1,lte=100"`
		MaxPages int           `yaml:"max_pages" validate:"gte=1"`
		Lang     string        `yaml:"lang" validate:"required"`
		Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	}

	// Documents configures the document retriever
	Documents struct {
		SeedURL     string        `yaml:"seed_url" validate:"required,url"`
		Referer     string        `yaml:"referer" validate:"required,url"`
		UserAgent   string        `yaml:"user_agent" validate:"required"`
		Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
		InsecureTLS bool          `yaml:"insecure_tls"`
	}

	// Classifier configures title classification
	Classifier struct {
		Primary    string   `yaml:"primary" validate:"required"`
		Alternates []string `yaml:"alternates" validate:"min=1,dive,required"`
		Threshold  int      `yaml:"threshold" validate:"gte=0,lte=100"`
	}

	// Store configures the remote filings store
	Store struct {
		Backend          string        `yaml:"backend" validate:"oneof=postgrest postgres sqlite memory"`
		URL              string        `yaml:"url" validate:"required_if=Backend postgrest"`
		APIKey           string        `yaml:"api_key"`
		Table            string        `yaml:"table" validate:"required"`
		DSN              string        `yaml:"dsn" validate:"required_if=Backend postgres"`
		SQLitePath       string        `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
		AllowedFields    []string      `yaml:"allowed_fields"`
		PageSize         int           `yaml:"page_size" validate:"gte=1"`
		Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
		PercentPrecision int32         `yaml:"percent_precision" validate:"gte=0,lte=10"`
		PricePrecision   int32         `yaml:"price_precision" validate:"gte=0,lte=10"`
		LogSQL           bool          `yaml:"log_sql"`
	}

	// Output configures run artifact paths
	Output struct {
		Dir        string `yaml:"dir" validate:"required"`
		Downloads  string `yaml:"downloads" validate:"required"`
		Alerts     string `yaml:"alerts" validate:"required"`
		Checkpoint string `yaml:"checkpoint" validate:"required"`
	}

	// SMTP configures the optional alert digest
	SMTP struct {
		Server string `yaml:"server"`
		Port   int    `yaml:"port" validate:"gte=0,lte=65535"`
		User   string `yaml:"user"`
		Pass   string `yaml:"pass"`
		From   string `yaml:"from" validate:"omitempty,email"`
		To     string `yaml:"to" validate:"omitempty,email"`
	}
)

// Enabled reports whether every setting needed to send mail is present
func (s SMTP) Enabled() bool {
	return s.Server != "" && s.User != "" && s.Pass != "" && s.To != ""
}

// Sender returns From, falling back to the SMTP user
func (s SMTP) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.User
}

// Default returns the built-in configuration
func Default() Config {
	const ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	return Config{
		Source: Source{
			URL:      "https://www.idx.co.id/primary/ListedCompany/GetAnnouncement",
			Keywords: "kepemilikan",
			PageSize: 10,
			MaxPages: 200,
			Lang:     "id",
			Timeout:  30 * time.Second,
		},
		Documents: Documents{
			SeedURL:     "https://www.idx.co.id/id/perusahaan-tercatat/keterbukaan-informasi/",
			Referer:     "https://www.idx.co.id/id/perusahaan-tercatat/keterbukaan-informasi/",
			UserAgent:   ua,
			Timeout:     60 * time.Second,
			InsecureTLS: true,
		},
		Classifier: Classifier{
			Primary: "Laporan Kepemilikan atau Setiap Perubahan Kepemilikan Saham Perusahaan Terbuka",
			Alternates: []string{
				"Laporan Kepemilikan Saham 5% atau Lebih",
				"Keterbukaan Informasi Pemegang Saham Tertentu",
				"Laporan Perubahan Kepemilikan Saham Direksi dan Komisaris",
				"Penyampaian Informasi Kepemilikan Efek",
			},
			Threshold: 80,
		},
		Store: Store{
			Backend:          BackendPostgREST,
			Table:            "idx_filings",
			PageSize:         1000,
			Timeout:          30 * time.Second,
			PercentPrecision: 3,
			PricePrecision:   2,
		},
		Output: Output{
			Dir:        "downloads",
			Downloads:  "downloads/downloads.json",
			Alerts:     "downloads/alerts.json",
			Checkpoint: "downloads/checkpoint.json",
		},
		SMTP: SMTP{Port: 587},
	}
}

// Section names the parts of a Config a command depends on
type Section uint8

const (
	// Scrape covers Source, Documents, Classifier, Output and SMTP
	Scrape Section = 1 << iota
	// Storage covers Store
	Storage
)

// Load builds the configuration: defaults, then the YAML file at path (when
// non-empty), then environment overrides. Only the sections in need are
// validated, so a command is never refused for settings it does not use.
func Load(path string, need Section) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, perr.Wrapf(err, perr.ErrorCodeValidation, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, perr.Wrapf(err, perr.ErrorCodeValidation, "unmarshal config %s", path)
		}
	}
	applyEnv(&cfg, New())
	if err := Validate(cfg, need); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg
func applyEnv(cfg *Config, root Conf) {
	src := root.Prefix("IDX_")
	cfg.Source.URL = src.MayString("URL", cfg.Source.URL)
	cfg.Source.Keywords = src.MayString("KEYWORDS", cfg.Source.Keywords)
	cfg.Source.PageSize = src.MayInt("PAGE_SIZE", cfg.Source.PageSize)
	cfg.Source.MaxPages = src.MayInt("MAX_PAGES", cfg.Source.MaxPages)
	cfg.Source.Lang = src.MayString("LANG", cfg.Source.Lang)
	cfg.Source.Timeout = src.MayDuration("TIMEOUT", cfg.Source.Timeout)

	doc := root.Prefix("DOC_")
	cfg.Documents.SeedURL = doc.MayString("SEED_URL", cfg.Documents.SeedURL)
	cfg.Documents.Referer = doc.MayString("REFERER", cfg.Documents.Referer)
	cfg.Documents.UserAgent = doc.MayString("USER_AGENT", cfg.Documents.UserAgent)
	cfg.Documents.Timeout = doc.MayDuration("TIMEOUT", cfg.Documents.Timeout)
	cfg.Documents.InsecureTLS = doc.MayBool("INSECURE_TLS", cfg.Documents.InsecureTLS)

	cls := root.Prefix("CLASSIFIER_")
	cfg.Classifier.Primary = cls.MayString("PRIMARY", cfg.Classifier.Primary)
	cfg.Classifier.Alternates = cls.MayCSV("ALTERNATES", cfg.Classifier.Alternates)
	cfg.Classifier.Threshold = cls.MayInt("THRESHOLD", cfg.Classifier.Threshold)

	st := root.Prefix("STORE_")
	cfg.Store.Backend = strings.ToLower(st.MayString("BACKEND", cfg.Store.Backend))
	cfg.Store.URL = st.MayString("URL", root.MayString("SUPABASE_URL", cfg.Store.URL))
	cfg.Store.APIKey = st.MayString("API_KEY", root.MayString("SUPABASE_KEY", cfg.Store.APIKey))
	cfg.Store.Table = st.MayString("TABLE", cfg.Store.Table)
	cfg.Store.DSN = st.MayString("DSN", cfg.Store.DSN)
	cfg.Store.SQLitePath = st.MayString("SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Store.AllowedFields = st.MayCSV("ALLOWED_FIELDS", cfg.Store.AllowedFields)
	cfg.Store.PageSize = st.MayInt("PAGE_SIZE", cfg.Store.PageSize)
	cfg.Store.Timeout = st.MayDuration("TIMEOUT", cfg.Store.Timeout)
	cfg.Store.LogSQL = st.MayBool("LOG_SQL", cfg.Store.LogSQL)

	out := root.Prefix("OUTPUT_")
	cfg.Output.Dir = out.MayString("DIR", cfg.Output.Dir)
	cfg.Output.Downloads = out.MayString("DOWNLOADS", cfg.Output.Downloads)
	cfg.Output.Alerts = out.MayString("ALERTS", cfg.Output.Alerts)
	cfg.Output.Checkpoint = out.MayString("CHECKPOINT", cfg.Output.Checkpoint)

	smtp := root.Prefix("SMTP_")
	cfg.SMTP.Server = smtp.MayString("SERVER", cfg.SMTP.Server)
	cfg.SMTP.Port = smtp.MayInt("PORT", cfg.SMTP.Port)
	cfg.SMTP.User = smtp.MayString("USER", cfg.SMTP.User)
	cfg.SMTP.Pass = smtp.MayString("PASS", cfg.SMTP.Pass)
	cfg.SMTP.From = smtp.MayString("FROM", cfg.SMTP.From)
	cfg.SMTP.To = smtp.MayString("TO", cfg.SMTP.To)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the sections of cfg in need against their struct tags and
// reports the first failing field as a validation error
func Validate(cfg Config, need Section) error {
	var parts []any
	if need&Scrape != 0 {
		parts = append(parts, cfg.Source, cfg.Documents, cfg.Classifier, cfg.Output, cfg.SMTP)
	}
	if need&Storage != 0 {
		parts = append(parts, cfg.Store)
	}
	for _, p := range parts {
		if err := validateStruct(p); err != nil {
			return err
		}
	}
	return nil
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return perr.WithField(
			perr.Newf(perr.ErrorCodeValidation, "invalid config: %s failed %q", fe.Namespace(), fmtTag(fe)),
			fe.Field(),
		)
	}
	return perr.Wrap(err, perr.ErrorCodeValidation, "invalid config")
}

func fmtTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}
