// Package source discovers raw records in a spool directory. Each record is
// described by a *.meta.yaml sidecar pointing at its data file; the engine
// never fetches data itself, it only consumes what the spool already holds.
package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mapchef/mapchef/internal/model"
)

// Scanner reads the record pool from one spool directory.
type Scanner struct {
	Dir string
	Log *zap.Logger
}

// NewScanner creates a scanner over dir.
func NewScanner(dir string, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{Dir: dir, Log: log}
}

type sidecar struct {
	Model   string            `yaml:"model"`
	RefTime string            `yaml:"reftime"`
	Step    int               `yaml:"step"`
	Data    string            `yaml:"data"`
	Meta    map[string]string `yaml:"meta"`
}

// Scan walks the spool and returns all well-formed records, sorted by
// sidecar path for a stable pool order. Malformed sidecars and missing data
// files are logged and skipped; an unreadable spool is an error.
func (s *Scanner) Scan() ([]model.Record, error) {
	var paths []string
	err := filepath.WalkDir(s.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".meta.yaml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan spool %s", s.Dir)
	}
	sort.Strings(paths)

	records := make([]model.Record, 0, len(paths))
	for _, path := range paths {
		rec, err := s.readSidecar(path)
		if err != nil {
			s.Log.Warn("skipping record", zap.String("sidecar", path), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	s.Log.Debug("spool scanned", zap.Int("sidecars", len(paths)), zap.Int("records", len(records)))
	return records, nil
}

func (s *Scanner) readSidecar(path string) (model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Record{}, err
	}

	var sc sidecar
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return model.Record{}, errors.Wrap(err, "parse sidecar")
	}
	if sc.Model == "" || sc.Data == "" {
		return model.Record{}, errors.New("sidecar must set model and data")
	}

	refTime, err := time.ParseInLocation(model.RefTimeLayout, sc.RefTime, time.UTC)
	if err != nil {
		return model.Record{}, errors.Wrapf(err, "bad reftime %q", sc.RefTime)
	}

	dataPath := sc.Data
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(path), dataPath)
	}
	if _, err := os.Stat(dataPath); err != nil {
		return model.Record{}, errors.Wrapf(err, "data file %s", sc.Data)
	}

	meta := sc.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	return model.Record{
		Model:   sc.Model,
		RefTime: refTime,
		Step:    sc.Step,
		Meta:    meta,
		Path:    dataPath,
	}, nil
}
