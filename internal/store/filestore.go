package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quantlab/stratbench/internal/regression"
	"github.com/quantlab/stratbench/internal/walkforward"
)

// FileStore keeps baselines and walk-forward results as JSON snapshots on
// disk: <dir>/baselines/<symbol>.json and <dir>/walkforward/<id>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"baselines", "walkforward"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

// Load implements BaselineStore
func (s *FileStore) Load(_ context.Context, symbol string) (*regression.Baseline, error) {
	data, err := os.ReadFile(s.baselinePath(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read baseline for %s: %w", symbol, err)
	}
	return regression.ParseBaseline(data)
}

// Save implements BaselineStore
func (s *FileStore) Save(_ context.Context, baseline *regression.Baseline) error {
	data, err := baseline.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode baseline for %s: %w", baseline.Symbol, err)
	}
	path := s.baselinePath(baseline.Symbol)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	log.Info().Str("symbol", baseline.Symbol).Str("path", path).Msg("baseline saved")
	return nil
}

// SaveResult implements WalkForwardStore.Save
func (s *FileStore) SaveResult(_ context.Context, result *walkforward.Result) (string, error) {
	id := uuid.NewString()
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode walk-forward result: %w", err)
	}
	path := filepath.Join(s.dir, "walkforward", id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write walk-forward result: %w", err)
	}
	log.Info().Str("id", id).Str("path", path).Msg("walk-forward result saved")
	return id, nil
}

// LoadResult implements WalkForwardStore.Load
func (s *FileStore) LoadResult(_ context.Context, id string) (*walkforward.Result, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, "walkforward", id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read walk-forward result %s: %w", id, err)
	}
	var result walkforward.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("malformed walk-forward result %s: %w", id, err)
	}
	return &result, nil
}

func (s *FileStore) baselinePath(symbol string) string {
	// Symbols like BTC-USD map directly to file names; anything else is
	// flattened so a symbol cannot escape the store directory.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, symbol)
	return filepath.Join(s.dir, "baselines", safe+".json")
}

// fileWalkForwardStore adapts FileStore's result methods to WalkForwardStore
type fileWalkForwardStore struct{ *FileStore }

func (s fileWalkForwardStore) Save(ctx context.Context, result *walkforward.Result) (string, error) {
	return s.SaveResult(ctx, result)
}

func (s fileWalkForwardStore) Load(ctx context.Context, id string) (*walkforward.Result, error) {
	return s.LoadResult(ctx, id)
}

// WalkForward returns the store's WalkForwardStore view
func (s *FileStore) WalkForward() WalkForwardStore {
	return fileWalkForwardStore{s}
}
