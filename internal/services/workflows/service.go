package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/tools"
	"gopkg.in/yaml.v3"
)

// RunOptions override the provider selection for one workflow run
type RunOptions struct {
	Provider string
	Model    string
	APIKey   string
}

// Service holds the recipe catalog and runs recipes through the toolbag.
// Built-in recipes load first; YAML files from the configured directory add
// to the catalog but cannot shadow a built-in.
type Service struct {
	config  *common.WorkflowsConfig
	toolbag *tools.Toolbag
	logger  arbor.ILogger

	mu      sync.RWMutex
	recipes map[string]*Recipe
	order   []string
}

// NewService creates the workflow service and loads the catalog
func NewService(config *common.WorkflowsConfig, toolbag *tools.Toolbag, logger arbor.ILogger) *Service {
	s := &Service{
		config:  config,
		toolbag: toolbag,
		logger:  logger,
		recipes: make(map[string]*Recipe),
	}

	for _, recipe := range builtinRecipes {
		s.recipes[recipe.Name] = recipe
		s.order = append(s.order, recipe.Name)
	}

	if config.RecipesDir != "" {
		if err := s.loadDir(config.RecipesDir); err != nil {
			logger.Warn().Err(err).Str("dir", config.RecipesDir).Msg("Failed to load workflow recipes")
		}
	}
	return s
}

// loadDir reads every .yml/.yaml file in the directory as one recipe
func (s *Service) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read recipe file")
			continue
		}

		var recipe Recipe
		if err := yaml.Unmarshal(data, &recipe); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse recipe file")
			continue
		}
		if recipe.Name == "" || len(recipe.Tools) == 0 || recipe.Query == "" {
			s.logger.Warn().Str("file", entry.Name()).Msg("Recipe missing name, tools or query, skipped")
			continue
		}
		if _, exists := s.recipes[recipe.Name]; exists {
			s.logger.Warn().Str("recipe", recipe.Name).Msg("Recipe name already defined, file skipped")
			continue
		}

		s.recipes[recipe.Name] = &recipe
		s.order = append(s.order, recipe.Name)
		s.logger.Info().Str("recipe", recipe.Name).Msg("Workflow recipe loaded")
	}
	return nil
}

// List returns the catalog in load order
func (s *Service) List() []*Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Recipe, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.recipes[name])
	}
	return out
}

// Get looks a recipe up by name
func (s *Service) Get(name string) (*Recipe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipe, ok := s.recipes[name]
	return recipe, ok
}

// Run executes the named recipe against a target through the toolbag
func (s *Service) Run(ctx context.Context, name, target string, opts RunOptions) (*models.ChainResult, error) {
	recipe, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown workflow: %s", name)
	}
	if target == "" {
		return nil, fmt.Errorf("workflow target is required")
	}

	s.logger.Info().Str("workflow", name).Str("target", target).Msg("Workflow started")

	result := s.toolbag.ExecuteChain(ctx, &tools.ChainParams{
		Tools:    recipe.Tools,
		Query:    strings.ReplaceAll(recipe.Query, "{{target}}", target),
		Mode:     recipe.Mode,
		Provider: opts.Provider,
		Model:    opts.Model,
		APIKey:   opts.APIKey,
	})

	s.logger.Info().
		Str("workflow", name).
		Bool("success", result.Success).
		Int("tools_executed", result.ToolsExecuted).
		Msg("Workflow finished")
	return result, nil
}
