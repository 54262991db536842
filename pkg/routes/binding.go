// Package routes holds request binding shared by the API handlers.
package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the validator installed on the echo instance
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate renders validation failures as a 400 listing each field
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return httperror.NewHTTPError(http.StatusBadRequest, "invalid request: "+strings.Join(msgs, "; ")).AddMetaValue("fields", msgs)
}

// Bind decodes and validates a request body
func Bind(c echo.Context, dest any) error {
	if err := c.Bind(dest); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dest)
}
