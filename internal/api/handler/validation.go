package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/timmy/vidnotes/internal/domain"
	"github.com/timmy/vidnotes/internal/source"
)

// Binding tags registered by RegisterValidations.
const (
	ModelFamilyTag = "modelfamily"
	ModelSizeTag   = "modelsize"
)

// RegisterValidations adds the request validators used by the handlers.
// Parameters:
//   - v: validator engine, normally gin's binding.Validator engine.
//   - sources: registry backing the mediaurl tag.
// Returns:
//   - error: registration failure.
func RegisterValidations(v *validator.Validate, sources *source.Registry) error {
	if err := source.RegisterValidation(v, sources); err != nil {
		return err
	}
	if err := v.RegisterValidation(ModelFamilyTag, func(fl validator.FieldLevel) bool {
		return domain.ModelFamily(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation(ModelSizeTag, func(fl validator.FieldLevel) bool {
		return domain.ValidSize(fl.Field().String())
	})
}
