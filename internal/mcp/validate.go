package mcp

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/skeletor-js/medulla/internal/types"
)

// Validation limits, applied before any input reaches the stores.
const (
	MaxTitleLength      = 500
	MaxContentSize      = 100 * 1024
	MaxTagLength        = 100
	MaxTagsCount        = 50
	MaxContextSize      = 50 * 1024
	MaxConsequenceSize  = 1024
	MaxTemplateSize     = 50 * 1024
	MaxOutputSchemaSize = 10 * 1024
	MaxURLSize          = 2048
	DefaultLimit        = 50
	MaxLimit            = 100
	MaxBatchSize        = 100
)

func validateEntityType(entityType string) (types.Kind, error) {
	kind, err := types.ParseKind(entityType)
	if err != nil {
		return "", entityTypeInvalid(entityType)
	}
	return kind, nil
}

// validateTitle trims and bounds a title, returning the trimmed form.
func validateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", titleRequired()
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxTitleLength {
		return "", titleTooLong(n)
	}
	return trimmed, nil
}

func validateContent(content string) error {
	if len(content) > MaxContentSize {
		return validationFailed("content",
			fmt.Sprintf("content exceeds maximum size of %d bytes", MaxContentSize))
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > MaxTagsCount {
		return validationFailed("tags",
			fmt.Sprintf("at most %d tags allowed", MaxTagsCount))
	}
	for _, tag := range tags {
		if tag == "" {
			return validationFailed("tags", "tags must not be empty")
		}
		if len(tag) > MaxTagLength {
			return validationFailed("tags",
				fmt.Sprintf("tag %q exceeds maximum length of %d", tag, MaxTagLength))
		}
	}
	return nil
}

// validateDate parses a strict ISO YYYY-MM-DD date.
func validateDate(field, value string) (string, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return "", &ToolError{
			Code:      CodeValidationFailed,
			ErrorType: "InvalidDateFormat",
			Message:   fmt.Sprintf("Invalid date format for field '%s': '%s'. Expected ISO 8601 (YYYY-MM-DD)", field, value),
			Details:   map[string]any{"field": field, "value": value},
		}
	}
	return t.Format("2006-01-02"), nil
}

// validateURL requires a syntactically valid absolute URL within the
// size bound.
func validateURL(value string) error {
	if len(value) > MaxURLSize {
		return validationFailed("url",
			fmt.Sprintf("url exceeds maximum size of %d bytes", MaxURLSize))
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ToolError{
			Code:      CodeValidationFailed,
			ErrorType: "InvalidUrl",
			Message:   fmt.Sprintf("Invalid URL: %s", value),
			Details:   map[string]any{"value": value},
		}
	}
	return nil
}

// clampLimit applies the default and the hard ceiling to a requested
// page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
