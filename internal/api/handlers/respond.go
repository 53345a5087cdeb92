package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
	"github.com/wonny/rfqnorm/backend/internal/normalizer"
)

// maxBodyBytes bounds a request body
const maxBodyBytes = 1 << 20

// FieldError is one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func respondFieldErrors(w http.ResponseWriter, fields []FieldError) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "validation failed",
		Fields: fields,
	})
}

// respondInvalid maps a normalizer.ValidationError to a 400, anything else to a 500
func respondInvalid(w http.ResponseWriter, err error) bool {
	var ve *normalizer.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	respondFieldErrors(w, []FieldError{{Field: ve.Field, Message: ve.Message}})
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// Validator checks request structs; field names in errors are the JSON names
// ⭐ SSOT: 요청 검증 규칙은 여기서만
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the json tag name func and the "date" rule
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", isDate)

	return &Validator{v: v}
}

// Struct validates s and returns the rejected fields, or nil
func (val *Validator) Struct(s interface{}) []FieldError {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: formatValidationError(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name: "BatchRequest.inquiries[0].text" -> "inquiries[0].text"
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s items", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must have at most %s items", fe.Param())
	case "date":
		return "must be a date in YYYY-MM-DD form"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func isDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(contracts.DateLayout, fl.Field().String())
	return err == nil
}
