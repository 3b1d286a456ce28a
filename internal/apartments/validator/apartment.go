package validator

import (
	"errors"
	"fmt"
	"strings"

	"apartur/pkg/logger"
	"apartur/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ApartmentValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewApartmentValidator(log *logger.Logger) *ApartmentValidator {
	return &ApartmentValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *ApartmentValidator) Validate(apartment *model.Apartment) error {
	return v.validateStruct(apartment)
}

func (v *ApartmentValidator) ValidatePrice(update *model.PriceUpdate) error {
	return v.validateStruct(update)
}

func (v *ApartmentValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ApartmentValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
		case "lte":
			message = fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
		case "latitude", "longitude":
			message = fmt.Sprintf("%s must be a valid %s", err.Field(), err.Tag())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", err.Field())
		case "numeric", "len":
			message = fmt.Sprintf("%s must be a 5-digit postal code", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
