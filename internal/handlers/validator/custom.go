package validator

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// maxInputParametersBytes bounds the generation prompt payload. The worker
// rejects anything larger anyway, this just fails fast.
const maxInputParametersBytes = 64 * 1024

func inputParametersValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}

	if len(val) == 0 || len(val) > maxInputParametersBytes {
		return false
	}

	var params map[string]any
	if err := json.Unmarshal(val, &params); err != nil {
		return false
	}

	return len(params) > 0
}
