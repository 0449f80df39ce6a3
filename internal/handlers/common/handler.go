// Package common holds request helpers shared by the handler packages.
package common

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"quoteflow/internal/apperr"
	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
	"quoteflow/internal/validation"
)

// Principal returns the authenticated caller of r, or nil.
func Principal(r *http.Request) *models.Principal {
	return auth.PrincipalFrom(r.Context())
}

// Var returns the named route variable.
func Var(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// IndexVar parses the {index} route variable of quote routes.
func IndexVar(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return 0, apperr.Validation("index", "must be an integer")
	}
	return n, nil
}

// Decode reads a JSON body into v and runs its validate tags.
func Decode(r *http.Request, v any) error {
	if err := response.DecodeBody(r, v); err != nil {
		return err
	}
	return validation.Struct(v)
}

// Bool parses an optional boolean query parameter.
func Bool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
