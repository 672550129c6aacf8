package journal

import (
	"fmt"
	"strings"

	"photomemo/internal/apperr"
	"photomemo/internal/validate"
)

// fieldErrors returns the json names of the fields that failed validation,
// each prefixed with prefix.
func fieldErrors(s any, prefix string) ([]string, error) {
	return validate.Fields(s, prefix)
}

func validateItem(c Category, item ItemInput, prefix string) ([]string, error) {
	var fields []string
	if !c.Valid() {
		fields = append(fields, "category")
	}
	item.Title = strings.TrimSpace(item.Title)
	item.ImageURL = strings.TrimSpace(item.ImageURL)
	fe, err := fieldErrors(item, prefix)
	if err != nil {
		return nil, fmt.Errorf("validate item: %w", err)
	}
	return append(fields, fe...), nil
}

func missing(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return apperr.Validation("missing or invalid fields", fields...)
}
