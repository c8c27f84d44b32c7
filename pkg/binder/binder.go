package binder

import (
	"context"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/errcodes"
)

// Context keys handlers set to relax binding for a single request.
const (
	disallowEmptyBodyKey     = "disallow_empty_body"
	disallowUnknownFieldsKey = "disallow_unknown_fields"
)

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// validations are the tags payloads can use on top of the validator built-ins.
var validations = map[string]validator.Func{
	absPathTag:  absPathValidator,
	isbnTag:     isbnValidator,
	templateTag: templateValidator,
	urlTag:      urlValidator,
}

// Binder implements echo.Binder for the JSON API. Bodies must be JSON and
// query strings are decoded through `query` tags. Whatever was bound is then
// cleaned with mold `mod` tags, given its `default` tags, and validated.
type Binder struct {
	queryDecoder *schema.Decoder
	conform      *mold.Transformer
	validate     *validator.Validate
}

// New builds a Binder with the library's custom validations registered.
func New() (*Binder, error) {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")

	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	for tag, fn := range validations {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return nil, errors.Wrapf(err, "failed to register %s validation", tag)
		}
	}

	return &Binder{
		queryDecoder: queryDecoder,
		conform:      modifiers.New(),
		validate:     validate,
	}, nil
}

// jsonFieldName makes validation errors name fields the way clients send them.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Bind binds, modifies, and validates payloads against the given struct.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	switch {
	case req.ContentLength > 0:
		if err := b.bindJSON(i, c); err != nil {
			return err
		}
	case req.Method == http.MethodGet || req.Method == http.MethodDelete:
		if err := b.bindQuery(i, c.QueryParams()); err != nil {
			return errors.WithStack(err)
		}
	case flag(c, disallowEmptyBodyKey, true):
		return errcodes.EmptyRequestBody()
	}

	return b.finish(req.Context(), i)
}

func (b *Binder) bindJSON(i interface{}, c echo.Context) error {
	req := c.Request()
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return errcodes.UnsupportedMediaType()
	}
	defer req.Body.Close()

	dec := json.NewDecoder(req.Body)
	if flag(c, disallowUnknownFieldsKey, true) {
		dec.DisallowUnknownFields()
	}
	err := dec.Decode(i)
	if err == nil {
		return nil
	}

	if m := unknownFieldsRE.FindStringSubmatch(err.Error()); m != nil {
		return errcodes.UnknownParameter(m[1])
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errcodes.ValidationTypeError(formatUnmarshalTypeError(typeErr))
	}

	logger.FromEchoContext(c).Err(err).Error("unknown json decode error")
	return errcodes.MalformedPayload()
}

func (b *Binder) bindQuery(i interface{}, params url.Values) error {
	err := b.queryDecoder.Decode(i, params)
	if err == nil {
		return nil
	}

	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return errors.WithStack(err)
	}
	// Report one problem at a time, like the JSON path does.
	for _, err := range multi {
		switch e := err.(type) {
		case schema.ConversionError:
			return errcodes.ValidationTypeError(formatSchemaConversionError(e))
		case schema.UnknownKeyError:
			return errcodes.UnknownParameter(e.Key)
		default:
			return errors.WithStack(err)
		}
	}
	return nil
}

func (b *Binder) finish(ctx context.Context, i interface{}) error {
	if err := b.conform.Struct(ctx, i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) || len(errs) == 0 {
			return errors.WithStack(err)
		}
		return errcodes.ValidationError(formatValidationError(errs[0]))
	}
	return nil
}

// flag reads a boolean a handler stored on the context, falling back to def.
func flag(c echo.Context, key string, def bool) bool {
	if v, ok := c.Get(key).(bool); ok {
		return v
	}
	return def
}
