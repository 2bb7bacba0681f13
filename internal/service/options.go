package service

import (
	"fmt"

	"github.com/Harshitk-cp/hyperholmes/internal/config"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/embedding"
	"github.com/Harshitk-cp/hyperholmes/internal/inference"
	"github.com/Harshitk-cp/hyperholmes/internal/trainer"
	"go.uber.org/zap"
)

// ConfigFromEnv builds a Config from environment settings. Rules in a
// RULES_PATH file that fail validation are logged and skipped; an unreadable
// file is an error.
func ConfigFromEnv(logger *zap.Logger) (Config, error) {
	client, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingDim())
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Inference: inference.Config{
			MaxIterations:  config.MaxInferenceIterations(),
			TemporalWindow: config.TemporalWindow(),
		},
		Trainer: trainer.Config{
			MinEventsForCentrality: config.CentralityMinEvents(),
			BurstWindow:            config.TemporalWindow(),
		},
		EmbeddingClient: client,
	}

	if raw := config.IntrospectionExpectations(); raw != nil {
		expectations := make(map[domain.AtomType]int, len(raw))
		for name, n := range raw {
			typ, ok := domain.ParseAtomType(name)
			if !ok {
				return Config{}, fmt.Errorf("introspection expectations: unknown atom type %q", name)
			}
			expectations[typ] = n
		}
		cfg.Trainer.Expectations = expectations
	}

	if path := config.RulesPath(); path != "" {
		rules, err := inference.LoadRulesFile(path)
		if len(rules) == 0 && err != nil {
			return Config{}, fmt.Errorf("load rules: %w", err)
		}
		if err != nil {
			logger.Warn("some rules were rejected", zap.String("path", path), zap.Error(err))
		}
		cfg.Rules = rules
		logger.Info("loaded rules", zap.String("path", path), zap.Int("count", len(rules)))
	}
	return cfg, nil
}
