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

	registerCustomValidations()
}

func registerCustomValidations() {
	// Wallet status validation
	validate.RegisterValidation("wallet_status", func(fl validator.FieldLevel) bool {
		status := fl.Field().String()
		validStatuses := []string{"active", "inactive", "suspended"}
		for _, s := range validStatuses {
			if status == s {
				return true
			}
		}
		return false
	})

	// Ledger transaction type validation
	validate.RegisterValidation("tx_type", func(fl validator.FieldLevel) bool {
		txType := fl.Field().String()
		validTypes := []string{"deposit", "withdraw", "payment", "refund", ""}
		for _, t := range validTypes {
			if txType == t {
				return true
			}
		}
		return false
	})

	// Ledger transaction status validation
	validate.RegisterValidation("tx_status", func(fl validator.FieldLevel) bool {
		txStatus := fl.Field().String()
		validStatuses := []string{"pending", "completed", "failed", "cancelled", ""}
		for _, s := range validStatuses {
			if txStatus == s {
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
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "uuid":
			errors[field] = "Invalid identifier format"
		case "wallet_status":
			errors[field] = "Invalid status. Must be: active, inactive, or suspended"
		case "tx_type":
			errors[field] = "Invalid type. Must be: deposit, withdraw, payment, or refund"
		case "tx_status":
			errors[field] = "Invalid status. Must be: pending, completed, failed, or cancelled"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
