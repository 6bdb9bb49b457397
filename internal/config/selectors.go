package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Selectors CSS-селекторы таблицы раздела
type Selectors struct {
	TableBody string `yaml:"table_body"`
	Row       string `yaml:"row"`
	Cell      string `yaml:"cell"`
	Link      string `yaml:"link"`
	SkipRows  int    `yaml:"skip_rows"`
}

// DefaultSelectors разметка ForumSection.aspx
func DefaultSelectors() *Selectors {
	return &Selectors{
		TableBody: ".contentMain > table:nth-child(1) > tbody:nth-child(1) > tr:nth-child(6) > td:nth-child(1) > table:nth-child(1) > tbody:nth-child(1)",
		Row:       "tr",
		Cell:      "td",
		Link:      `td.pricelist_02[align="left"] > div > a`,
		SkipRows:  1,
	}
}

// LoadSelectors загружает селекторы из YAML файла
func LoadSelectors(filePath string) (*Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	// Проверяем существование файла
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	selectors := DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

// LoadListingSelectors селекторы из selectors_file или встроенные.
// Относительный путь считается от каталога конфига.
func (c *Config) LoadListingSelectors(configDir string) (*Selectors, error) {
	if c.SelectorsFile == "" {
		return DefaultSelectors(), nil
	}

	filePath := c.SelectorsFile
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(configDir, filePath)
	}

	return LoadSelectors(filePath)
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *Selectors) error {
	if s.TableBody == "" {
		return fmt.Errorf("table_body is required")
	}
	if s.Row == "" {
		return fmt.Errorf("row is required")
	}
	if s.Cell == "" {
		return fmt.Errorf("cell is required")
	}
	if s.Link == "" {
		return fmt.Errorf("link is required")
	}
	if s.SkipRows < 0 {
		return fmt.Errorf("skip_rows must be >= 0")
	}

	return nil
}
