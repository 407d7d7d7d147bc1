package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate holds the shared struct validator. Procedures declare their
// contracts as validate tags on input and output types.
var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeStrict unmarshals raw JSON into target, rejecting any field
// the target type does not declare.
func decodeStrict(raw json.RawMessage, target any) *Error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return Validation("invalid input: %s", decodeErrorDetail(err))
	}
	// Trailing data after the first JSON value is rejected as well.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Validation("invalid input: unexpected trailing data")
	}
	return nil
}

func decodeErrorDetail(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q expects %s", typeErr.Field, typeErr.Type)
	}
	msg := err.Error()
	if strings.Contains(msg, "unknown field") {
		return msg
	}
	return "malformed JSON"
}

// checkInput validates a decoded input value against its contract.
func checkInput(input any) *Error {
	if !isStruct(input) {
		return nil
	}
	if err := validate.Struct(input); err != nil {
		fieldErrs := validator.ValidationErrors{}
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]any, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fieldKey(fe)] = fmt.Sprintf("failed %q constraint", fe.Tag())
			}
			return &Error{Kind: KindValidation, Message: "input validation failed", Meta: fields}
		}
		return Validation("input validation failed")
	}
	return nil
}

// checkOutput validates a handler result against the declared output
// contract. A mismatch is a programming defect, never a caller problem.
func checkOutput(output any) *Error {
	if output == nil || !isStruct(output) {
		return nil
	}
	if err := validate.Struct(output); err != nil {
		fieldErrs := validator.ValidationErrors{}
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Internal("output contract violated on field %q", fieldKey(fieldErrs[0]))
		}
		return Internal("output contract violated")
	}
	return nil
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}

func fieldKey(fe validator.FieldError) string {
	// Strip the leading struct name from the namespace so callers see
	// "Lines[0].Qty" rather than "CreateInput.Lines[0].Qty".
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
