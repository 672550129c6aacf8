// Package validate wraps a shared go-playground validator that reports
// fields by their json names.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func Struct(s any) error {
	return validate.Struct(s)
}

// Fields returns the json names of the fields of s that failed validation,
// each prefixed with prefix. A non-struct s is an error.
func Fields(s any, prefix string) ([]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, prefix+fe.Field())
	}
	return out, nil
}
