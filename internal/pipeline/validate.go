package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
	"github.com/scholaraid/apiserver/types"
)

const msgValidationFailed = "Validation failed"

// Schema describes the shape a request part is decoded into.
type Schema struct {
	newValue func() any
}

// SchemaOf returns the schema for T. When *T has a Defaults method it runs
// before decoding so absent fields keep their defaults.
func SchemaOf[T any]() Schema {
	return Schema{newValue: func() any {
		v := new(T)
		if d, ok := any(v).(interface{ Defaults() }); ok {
			d.Defaults()
		}
		return v
	}}
}

func (s Schema) defined() bool { return s.newValue != nil }

// FieldMessages lets a schema override the message of one failed rule. Keys
// are "<field>.<tag>", with field in its wire spelling.
type FieldMessages interface {
	FieldMessages() map[string]string
}

// Pagination is embedded in every listing query.
type Pagination struct {
	Page  int `form:"page" validate:"min=1"`
	Limit int `form:"limit" validate:"min=1,max=100"`
}

func (p *Pagination) Defaults() {
	p.Page = 1
	p.Limit = 20
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta computes pagination metadata for total rows.
func (p Pagination) Meta(total int) *Meta {
	return NewMeta(p.Page, p.Limit, total)
}

// IDParam is the `:id` path parameter.
type IDParam struct {
	ID string `form:"id" validate:"required,uuid"`
}

// Validator decodes and validates request parts.
type Validator struct {
	validate   *validator.Validate
	forms      *form.Decoder
	production bool
}

// NewValidator builds a Validator. Production omits failure details.
func NewValidator(production bool) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(wireName)
	v.RegisterCustomTypeFunc(optionalValue,
		types.Optional[string]{},
		types.Optional[int]{},
		types.Optional[types.Date]{},
		types.Optional[json.RawMessage]{},
	)

	d := form.NewDecoder()
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		return types.ParseDate(vals[0])
	}, time.Time{})
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		t, err := types.ParseDate(vals[0])
		return types.Date{Time: t}, err
	}, types.Date{})

	return &Validator{validate: v, forms: d, production: production}
}

// Params returns the stage validating chi URL parameters against s.
func (v *Validator) Params(s Schema) Stage {
	return func(_ context.Context, c Call) (Call, error) {
		dst := s.newValue()
		if err := v.decodeValues(dst, urlParams(c.Request)); err != nil {
			return c, err
		}
		c.params = dst
		return c, nil
	}
}

// Query returns the stage validating the query string against s.
func (v *Validator) Query(s Schema) Stage {
	return func(_ context.Context, c Call) (Call, error) {
		dst := s.newValue()
		if err := v.decodeValues(dst, c.Request.URL.Query()); err != nil {
			return c, err
		}
		c.query = dst
		return c, nil
	}
}

// Body returns the stage validating the JSON body against s. An empty body
// validates as an empty object.
func (v *Validator) Body(s Schema) Stage {
	return func(_ context.Context, c Call) (Call, error) {
		dst := s.newValue()
		if err := decodeJSON(c.Request, dst); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return c, err
			}
			return c, v.failure(jsonProblem(err))
		}
		if err := v.check(dst); err != nil {
			return c, err
		}
		c.body = dst
		return c, nil
	}
}

// Struct validates an already decoded value, for handlers that read
// non-JSON bodies.
func (v *Validator) Struct(value any) error {
	return v.check(value)
}

func (v *Validator) decodeValues(dst any, values url.Values) error {
	if err := v.forms.Decode(dst, values); err != nil {
		var decodeErrs form.DecodeErrors
		if !errors.As(err, &decodeErrs) {
			return err
		}
		details := make(map[string][]string, len(decodeErrs))
		for field := range decodeErrs {
			details[field] = append(details[field], "Invalid value")
		}
		return v.failure(details)
	}
	return v.check(dst)
}

func (v *Validator) check(value any) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var overrides map[string]string
	if fm, ok := value.(FieldMessages); ok {
		overrides = fm.FieldMessages()
	}

	details := make(map[string][]string)
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		msg, ok := overrides[field+"."+fe.Tag()]
		if !ok {
			msg = ruleMessage(fe)
		}
		details[field] = append(details[field], msg)
	}
	return v.failure(details)
}

func (v *Validator) failure(details map[string][]string) *Halt {
	halt := BadRequest(msgValidationFailed)
	if !v.production {
		halt.Details = details
	}
	return halt
}

// Params returns the validated path parameters of c.
func Params[T any](c Call) *T { return part[T](c.params, "params") }

// Query returns the validated query of c.
func Query[T any](c Call) *T { return part[T](c.query, "query") }

// Body returns the validated body of c.
func Body[T any](c Call) *T { return part[T](c.body, "body") }

func part[T any](value any, name string) *T {
	v, ok := value.(*T)
	if !ok {
		panic(fmt.Sprintf("pipeline: route has no %s schema of type %T", name, v))
	}
	return v
}

func urlParams(r *http.Request) url.Values {
	values := url.Values{}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return values
	}
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		values.Set(key, rctx.URLParams.Values[i])
	}
	return values
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func jsonProblem(err error) map[string][]string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return map[string][]string{"body": {"Expected object, received " + typeErr.Value}}
		}
		return map[string][]string{field: {"Expected " + typeName(typeErr.Type) + ", received " + typeErr.Value}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return map[string][]string{"body": {"Malformed JSON"}}
	}
	return map[string][]string{"body": {err.Error()}}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func wireName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func optionalValue(field reflect.Value) any {
	if ov, ok := field.Interface().(interface{ ValidationValue() any }); ok {
		return ov.ValidationValue()
	}
	return nil
}

// fieldPath drops the root struct name and embedded struct names from a
// validator namespace. Wire names are never capitalised.
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	kept := parts[:0]
	for _, part := range parts {
		if part != "" && unicode.IsUpper(rune(part[0])) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, ".")
}

func ruleMessage(fe validator.FieldError) string {
	kind := fe.Kind()
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Invalid email"
	case "uuid", "uuid4":
		return "Invalid uuid"
	case "url", "http_url":
		return "Invalid url"
	case "oneof":
		return "Invalid enum value. Expected " + strings.Join(strings.Fields(fe.Param()), " | ")
	case "min", "gte":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("Array must contain at least %s element(s)", fe.Param())
		default:
			return fmt.Sprintf("Number must be greater than or equal to %s", fe.Param())
		}
	case "max", "lte":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("String must contain at most %s character(s)", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("Array must contain at most %s element(s)", fe.Param())
		default:
			return fmt.Sprintf("Number must be less than or equal to %s", fe.Param())
		}
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}
