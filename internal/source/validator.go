package source

import (
	"github.com/go-playground/validator/v10"
)

// MediaURLTag is the struct tag name registered by RegisterValidation.
const MediaURLTag = "mediaurl"

// RegisterValidation adds the mediaurl tag to v, backed by r.
func RegisterValidation(v *validator.Validate, r *Registry) error {
	return v.RegisterValidation(MediaURLTag, func(fl validator.FieldLevel) bool {
		return r.Valid(fl.Field().String())
	})
}
