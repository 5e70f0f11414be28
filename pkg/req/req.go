package req

import (
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
)

// Decode декодирует JSON из io.Reader в структуру типа T.
func Decode[T any](body io.Reader) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T.
func IsValid[T any](payload T) error {
	validate := validator.New()
	err := validate.Struct(payload)
	return err
}
