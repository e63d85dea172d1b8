package domain

import (
	"fmt"
	"strings"
)

// Category is a top-level partition of the upstream shipment data.
type Category string

const (
	CategoryImport  Category = "IMPORT"
	CategoryTransit Category = "TRANSIT"
	CategoryExport  Category = "EXPORT"

	// CategoryAll is only valid as a sync trigger token.
	CategoryAll Category = "ALL"
)

// Categories lists every concrete category in sync order.
var Categories = []Category{CategoryImport, CategoryTransit, CategoryExport}

var categoryLabels = map[Category]string{
	CategoryImport:  "Import",
	CategoryTransit: "Transit",
	CategoryExport:  "Export",
}

// Label returns a human-readable label for a category.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Valid reports whether c is one of the concrete categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory returns the category for a token (case-insensitive).
func ParseCategory(token string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(token)))
	return c, c.Valid()
}

// ParseCategoryList parses a comma-separated category list, de-duplicating values.
func ParseCategoryList(value string) ([]Category, error) {
	var (
		result []Category
		seen   = make(map[Category]struct{})
	)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, ok := ParseCategory(part)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", part)
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
	}
	return result, nil
}

// ExpandCategory turns a trigger token into the categories it covers.
func ExpandCategory(token string) ([]Category, error) {
	if strings.EqualFold(strings.TrimSpace(token), string(CategoryAll)) {
		return append([]Category(nil), Categories...), nil
	}
	c, ok := ParseCategory(token)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", token)
	}
	return []Category{c}, nil
}
