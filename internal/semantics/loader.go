// Package semantics loads the declarative semantic model and metric
// definitions, holds them in an immutable catalog snapshot, and compiles
// metric queries into SQL.
package semantics

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mikallon/datacore/internal/domain"
)

// DefaultSchema is the warehouse schema holding the fact tables when the
// semantic model YAML does not name one.
const DefaultSchema = "main_dws"

type schemaFile struct {
	SemanticModels []domain.SemanticModel `yaml:"semantic_models"`
}

type metricsFile struct {
	Metrics []domain.MetricDefinition `yaml:"metrics"`
}

// LoadSemanticModel reads a dbt-style schema.yml and returns its first
// semantic model, the one active model per deployment.
func LoadSemanticModel(path string) (*domain.SemanticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read semantic model %s: %w", path, err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse semantic model %s: %w", path, err)
	}
	if len(file.SemanticModels) == 0 {
		return nil, domain.ErrValidation("no semantic_models defined in %s", path)
	}
	model := file.SemanticModels[0]
	if model.Schema == "" {
		model.Schema = DefaultSchema
	}
	return &model, nil
}

// LoadMetrics reads a dbt-style metrics.yml and returns its metric definitions.
func LoadMetrics(path string) ([]domain.MetricDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metrics %s: %w", path, err)
	}
	var file metricsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse metrics %s: %w", path, err)
	}
	if len(file.Metrics) == 0 {
		return nil, domain.ErrValidation("no metrics defined in %s", path)
	}
	return file.Metrics, nil
}

// LoadCatalog builds an immutable catalog from the two YAML sources.
func LoadCatalog(modelPath, metricsPath string) (*Catalog, error) {
	model, err := LoadSemanticModel(modelPath)
	if err != nil {
		return nil, err
	}
	metrics, err := LoadMetrics(metricsPath)
	if err != nil {
		return nil, err
	}
	return NewCatalog(model, metrics), nil
}
