/*
Package checkpoint persists the end of the last completed scrape window so
the next run can resume from there.
*/
package checkpoint

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/report"
)

// Checkpoint is the on-disk document
type Checkpoint struct {
	LastWindowEnd time.Time `json:"last_window_end"`
}

// Manager reads and writes one checkpoint file
type Manager struct {
	mutex sync.Mutex
	path  string
}

// NewManager returns a manager for the file at path
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path is the checkpoint file location
func (m *Manager) Path() string { return m.path }

// Load returns the recorded window end. A missing file reports false. A
// corrupt file is kept as <path>.broken and also reports false, so the run
// falls back to explicit window parameters.
func (m *Manager) Load() (time.Time, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	log := logger.Named("checkpoint")

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.path).Msg("no checkpoint yet")
			return time.Time{}, false, nil
		}
		return time.Time{}, false, perr.Wrap(err, perr.ErrorCodeUnknown, "read checkpoint")
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil || cp.LastWindowEnd.IsZero() {
		brokenPath := m.path + ".broken"
		_ = os.WriteFile(brokenPath, data, 0o644)
		log.Warn().Err(err).Str("path", m.path).Str("kept_as", brokenPath).Msg("checkpoint unreadable, ignoring")
		return time.Time{}, false, nil
	}
	return cp.LastWindowEnd, true, nil
}

// Save records end atomically
func (m *Manager) Save(end time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	data, err := json.MarshalIndent(Checkpoint{LastWindowEnd: end}, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeParse, "marshal checkpoint")
	}
	if err := report.WriteFileAtomic(m.path, append(data, '\n')); err != nil {
		return perr.WithOp(err, "save checkpoint")
	}
	logger.Named("checkpoint").Info().Str("path", m.path).Time("last_window_end", end).Msg("checkpoint saved")
	return nil
}

// Load is a shorthand for NewManager(path).Load()
func Load(path string) (time.Time, bool, error) { return NewManager(path).Load() }

// Save is a shorthand for NewManager(path).Save(end)
func Save(path string, end time.Time) error { return NewManager(path).Save(end) }
