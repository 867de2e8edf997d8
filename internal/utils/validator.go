// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("pricing_strategy", validatePricingStrategy)
	validate.RegisterValidation("remote_id", validateRemoteID)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validatePricingStrategy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "custom", "suggested", "markup_percentage", "markup_fixed":
		return true
	}
	return false
}

// Remote product/variant ids are opaque marketplace tokens; reject anything
// that could smuggle path segments into an outbound request.
func validateRemoteID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	return !strings.ContainsAny(id, "/?#& ")
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "pricing_strategy":
		return "Pricing strategy must be one of custom, suggested, markup_percentage, markup_fixed"
	case "remote_id":
		return e.Field() + " is not a valid marketplace id"
	default:
		return e.Field() + " is invalid"
	}
}
