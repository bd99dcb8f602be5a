package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Payment channel validation
	validate.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		channel := fl.Field().String()
		validChannels := []string{"card", "peer", "mobile_money", "bank_transfer", "wallet"}
		for _, c := range validChannels {
			if channel == c {
				return true
			}
		}
		return false
	})

	// Currency validation (supported 3-letter codes)
	validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		currency := fl.Field().String()
		validCurrencies := []string{"USD", "EUR", "GBP", "KES", "NGN"}
		for _, c := range validCurrencies {
			if currency == c {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "channel":
			errors[field] = "Unsupported payment channel"
		case "currency":
			errors[field] = "Unsupported currency code"
		case "uuid":
			errors[field] = "Invalid identifier format"
		default:
			errors[field] = "Invalid value"
		}
	}
	return errors
}
