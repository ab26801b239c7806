package modlog

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate
var once sync.Once

func validateStruct(v interface{}) error {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate.Struct(v)
}

func validatePolicy(p *RotationPolicy) error {
	if err := validateStruct(p); err != nil {
		return &ConfigError{Reason: errMsgPolicyInvalid + " " + err.Error()}
	}
	return nil
}
