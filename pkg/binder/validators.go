package binder

import (
	"net/url"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/shishobooks/folio/pkg/identifiers"
	"github.com/shishobooks/folio/pkg/organizer"
)

// urlValidator accepts absolute http(s) URLs or the empty string.
func urlValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isbnValidator accepts an ISBN-10 or ISBN-13 with a valid checksum. Hyphens
// and spaces are allowed.
func isbnValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return identifiers.ToISBN13(value) != ""
}

// templateValidator accepts organizer path templates that stay inside the
// library root, or the empty string (meaning the configured template).
func templateValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return organizer.ValidateTemplate(value) == nil
}

// absPathValidator accepts absolute filesystem paths or the empty string.
func absPathValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return filepath.IsAbs(value)
}
