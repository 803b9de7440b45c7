package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/KAsare1/slotbook-server/apperror"
	"github.com/go-playground/validator/v10"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$|^24:00$`)
)

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return false
		}
		_, err := time.LoadLocation(name)
		return err == nil
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateStruct runs the struct tags and returns a validation error keyed by json field name.
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Validation("invalid request: %v", err)
	}
	appErr := apperror.Validation("invalid request")
	for _, fe := range fieldErrs {
		appErr.WithField(fieldPath(fe), describe(fe))
	}
	return appErr
}

// fieldPath strips the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "slug":
		return "may contain only lowercase letters, digits and dashes"
	case "clock":
		return "must be HH:MM"
	case "timezone":
		return "must be an IANA timezone"
	case "date":
		return "must be YYYY-MM-DD"
	default:
		return "is invalid"
	}
}
