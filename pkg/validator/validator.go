package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report field names as they appear on the wire.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(fmt.Sprintf("register validator translations: %v", err))
	}
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return &ValidationError{Errors: validationErrors}
		}
		return err
	}
	return nil
}

// ValidationError wraps validator.ValidationErrors with translated messages.
// Errors are kept in struct field order.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Translate(translator))
	}
	return strings.Join(msgs, "; ")
}

// First returns the message for the first violated field.
func (e *ValidationError) First() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Translate(translator)
}

// Field returns the wire name of the first violated field.
func (e *ValidationError) Field() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Field()
}

// Fields returns a map of field names to error messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, err := range e.Errors {
		fields[err.Field()] = err.Translate(translator)
	}
	return fields
}

// DecodeError reports a body that is not valid JSON for the target type.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(e.Err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type))
	}
	if errors.Is(e.Err, io.EOF) {
		return "request body is empty"
	}
	return e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

// DecodeOption tunes DecodeAndValidate.
type DecodeOption func(*json.Decoder)

// DisallowUnknownFields rejects bodies carrying keys the target type does not declare.
func DisallowUnknownFields() DecodeOption {
	return func(d *json.Decoder) { d.DisallowUnknownFields() }
}

// DecodeAndValidate decodes JSON from the request body into dst and
// validates it. Decoding failures, including a body cut off by
// http.MaxBytesReader, are returned as *DecodeError and rule violations as
// *ValidationError.
func DecodeAndValidate(r *http.Request, dst any, opts ...DecodeOption) error {
	dec := json.NewDecoder(r.Body)
	for _, opt := range opts {
		opt(dec)
	}
	if err := dec.Decode(dst); err != nil {
		return &DecodeError{Err: err}
	}
	return Validate(dst)
}
