package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// boardFile is the on-disk shape of a board definition. Selector values may
// be a single string or a list; rate_limit_delay is a duration string so the
// same file parses identically as TOML and YAML.
type boardFile struct {
	ID       string `toml:"id" yaml:"id"`
	Name     string `toml:"name" yaml:"name"`
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	Engine   string `toml:"engine" yaml:"engine"`
	Region   string `toml:"region" yaml:"region"`
	Category string `toml:"category" yaml:"category"`

	Selectors map[string]interface{} `toml:"selectors" yaml:"selectors"`

	RateLimitDelay string            `toml:"rate_limit_delay" yaml:"rate_limit_delay"`
	MaxConcurrent  int               `toml:"max_concurrent" yaml:"max_concurrent"`
	Headers        map[string]string `toml:"headers" yaml:"headers"`

	RequiresJS bool  `toml:"requires_js" yaml:"requires_js"`
	HasAntiBot bool  `toml:"has_anti_bot" yaml:"has_anti_bot"`
	Active     *bool `toml:"active" yaml:"active"`
	Priority   int   `toml:"priority" yaml:"priority"`
}

// Loader reads board definition files into the catalog.
type Loader struct {
	boards   interfaces.BoardStorage
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewLoader creates a catalog loader backed by the given board storage.
func NewLoader(boards interfaces.BoardStorage) *Loader {
	return &Loader{
		boards:   boards,
		validate: validator.New(),
		logger:   common.GetLogger(),
	}
}

// LoadDir loads every .toml/.yaml/.yml file in dir as one board definition
// and upserts it into storage. Malformed or invalid files are logged and
// skipped; a missing directory is not an error. Returns the number of boards
// loaded.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		l.logger.Debug().Str("dir", dir).Msg("Board catalog directory does not exist, skipping")
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read board catalog directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".toml" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		board, err := l.loadFile(filepath.Join(dir, entry.Name()), ext)
		if err != nil {
			l.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping board definition")
			continue
		}

		if err := l.upsert(ctx, board); err != nil {
			l.logger.Warn().Err(err).Str("file", entry.Name()).Str("board_id", board.ID).Msg("Failed to save board")
			continue
		}

		l.logger.Info().
			Str("board_id", board.ID).
			Str("name", board.Name).
			Str("engine", string(board.Engine)).
			Msg("Board loaded from file")
		loaded++
	}

	if loaded > 0 {
		l.logger.Info().Int("count", loaded).Str("dir", dir).Msg("Board catalog loaded")
	} else {
		l.logger.Debug().Str("dir", dir).Msg("No boards loaded from catalog")
	}
	return loaded, nil
}

func (l *Loader) loadFile(path, ext string) (*models.JobBoard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	var file boardFile
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("TOML parse failed: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("YAML parse failed: %w", err)
		}
	}

	board, err := file.toBoard()
	if err != nil {
		return nil, err
	}
	if err := l.validate.Struct(board); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return board, nil
}

// upsert writes the board, preserving fields the advisor and telemetry have
// learned since the previous load. File fields win per selector key.
func (l *Loader) upsert(ctx context.Context, board *models.JobBoard) error {
	existing, err := l.boards.GetBoard(ctx, board.ID)
	if err == nil && existing != nil {
		board.CreatedAt = existing.CreatedAt
		board.LastAnalyzedAt = existing.LastAnalyzedAt
		board.AnalysisConfidence = existing.AnalysisConfidence
		board.SuccessRate = existing.SuccessRate
		board.AvgResponseTime = existing.AvgResponseTime
		if board.Engine == models.EngineAuto && existing.Engine != models.EngineAuto && existing.LastAnalyzedAt != nil {
			board.Engine = existing.Engine
		}
		if len(existing.Selectors) > 0 {
			board.Selectors = existing.Selectors.Merge(board.Selectors)
		}
	}
	return l.boards.UpsertBoard(ctx, board)
}

func (f *boardFile) toBoard() (*models.JobBoard, error) {
	engine := models.EngineType(strings.ToLower(f.Engine))
	if engine == "" {
		engine = models.EngineAuto
	}
	if !validEngine(engine) {
		return nil, fmt.Errorf("unknown engine %q", f.Engine)
	}

	var delay time.Duration
	if f.RateLimitDelay != "" {
		parsed, err := time.ParseDuration(f.RateLimitDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid rate_limit_delay %q: %w", f.RateLimitDelay, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("rate_limit_delay must not be negative")
		}
		delay = parsed
	}

	selectors, err := normalizeSelectors(f.Selectors)
	if err != nil {
		return nil, err
	}

	active := true
	if f.Active != nil {
		active = *f.Active
	}

	return &models.JobBoard{
		ID:             f.ID,
		Name:           f.Name,
		BaseURL:        f.BaseURL,
		Engine:         engine,
		Region:         f.Region,
		Category:       f.Category,
		Selectors:      selectors,
		RateLimitDelay: delay,
		MaxConcurrent:  f.MaxConcurrent,
		Headers:        f.Headers,
		RequiresJS:     f.RequiresJS,
		HasAntiBot:     f.HasAntiBot,
		Active:         active,
		Priority:       f.Priority,
	}, nil
}

// normalizeSelectors accepts either a single CSS expression or an ordered
// fallback list per field.
func normalizeSelectors(raw map[string]interface{}) (models.SelectorMap, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	selectors := make(models.SelectorMap, len(raw))
	for field, value := range raw {
		switch v := value.(type) {
		case string:
			selectors[field] = []string{v}
		case []interface{}:
			list := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("selector %q entries must be strings", field)
				}
				list = append(list, s)
			}
			selectors[field] = list
		default:
			return nil, fmt.Errorf("selector %q must be a string or list of strings", field)
		}
	}
	return selectors, nil
}

func validEngine(engine models.EngineType) bool {
	for _, e := range models.ValidEngines {
		if e == engine {
			return true
		}
	}
	return false
}
