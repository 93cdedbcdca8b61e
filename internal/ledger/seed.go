package ledger

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"myfinance/internal/core"
)

// DefaultCategories returns the categories a new ledger starts with.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: "salary", Name: "Salary", Color: "#4ade80", Icon: "💼"},
		{ID: "food", Name: "Food", Color: "#fb7185", Icon: "🍎"},
		{ID: "car", Name: "Car", Color: "#38bdf8", Icon: "🚇"},
		{ID: "clothing", Name: "Clothing and Shoes", Color: "#ec4899", Icon: "👕"},
		{ID: "health", Name: "Health", Color: "#10b981", Icon: "🏥"},
		{ID: "entertainment", Name: "Entertainment", Color: "#22d3ee", Icon: "🎬"},
		{ID: "rent", Name: "Rent", Color: "#a855f7", Icon: "🏠"},
		{ID: "travel", Name: "Travel", Color: "#06b6d4", Icon: "✈️"},
		{ID: "invests", Name: "Invests", Color: "#22d3ee", Icon: "📈"},
		{ID: "dividends", Name: "Dividends", Color: "#fde047", Icon: "💰"},
		{ID: "debts", Name: "Debts", Color: "#f43f5e", Icon: "💸"},
		{ID: "subscriptions", Name: "Subscriptions", Color: "#fbbf24", Icon: "💳"},
	}
}

type seedFile struct {
	Categories []core.Category `yaml:"categories"`
}

// LoadCategorySeed reads a YAML file of the form
//
//	categories:
//	  - id: salary
//	    name: Salary
//	    color: "#4ade80"
//	    icon: "💼"
//
// Missing colors and icons take the defaults. Ids must be unique.
func LoadCategorySeed(path string) ([]core.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category seed: %w", err)
	}
	return ParseCategorySeed(data)
}

func ParseCategorySeed(data []byte) ([]core.Category, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category seed: %w", err)
	}

	seen := make(map[string]bool, len(f.Categories))
	out := make([]core.Category, 0, len(f.Categories))
	for i, c := range f.Categories {
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if c.ID == "" {
			return nil, fmt.Errorf("category seed entry %d: missing id", i)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("category seed entry %d (%s): %w", i, c.ID, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("category seed entry %d: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		out = append(out, c.WithDefaults())
	}
	return out, nil
}
