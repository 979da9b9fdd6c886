package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nfrund/livechat/internal/domain"
)

// DefaultAccess is the record access method used for anonymous sign-up.
const DefaultAccess = "guest"

// Backend holds the connection parameters decoded from Runtime.BackendConfig.
type Backend struct {
	URL       string `json:"url" validate:"required,url"`
	Namespace string `json:"namespace" validate:"required"`
	Database  string `json:"database" validate:"required"`
	Access    string `json:"access"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseBackend decodes and validates the backend configuration blob.
// An absent, null or empty-object blob is a configuration error, as is any
// blob missing a required field.
func ParseBackend(raw json.RawMessage) (Backend, error) {
	const op = "parse backend config"

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Backend{}, domain.NewError(domain.ErrConfiguration, op, errors.New("backend configuration is missing"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Backend{}, domain.NewError(domain.ErrConfiguration, op, fmt.Errorf("decode: %w", err))
	}
	if len(fields) == 0 {
		return Backend{}, domain.NewError(domain.ErrConfiguration, op, errors.New("backend configuration is empty"))
	}

	var b Backend
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return Backend{}, domain.NewError(domain.ErrConfiguration, op, fmt.Errorf("decode: %w", err))
	}
	if b.Access == "" {
		b.Access = DefaultAccess
	}

	if err := validate.Struct(b); err != nil {
		return Backend{}, domain.NewError(domain.ErrConfiguration, op, describeValidation(err))
	}
	return b, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("field %q failed %q", fe.Field(), fe.Tag()))
	}
	return errors.Join(msgs...)
}
