package identifiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		scheme   string
		expected Type
	}{
		{"isbn13 with scheme", "9780316769488", "ISBN", TypeISBN13},
		{"isbn10 with scheme", "0316769487", "ISBN", TypeISBN10},
		{"isbn13 hyphens with scheme", "978-0-316-76948-8", "ISBN", TypeISBN13},
		{"bad isbn with scheme", "9780316769489", "ISBN", TypeUnknown},
		{"asin with scheme", "B08N5WRWNW", "ASIN", TypeASIN},
		{"doi with scheme", "10.1000/xyz123", "DOI", TypeDOI},
		{"isbn13 pattern", "9780316769488", "", TypeISBN13},
		{"isbn10 pattern", "0316769487", "", TypeISBN10},
		{"isbn10 with X", "080442957X", "", TypeISBN10},
		{"urn isbn", "urn:isbn:9780306406157", "", TypeISBN13},
		{"doi url", "https://doi.org/10.1000/xyz123", "", TypeDOI},
		{"asin pattern", "B08N5WRWNW", "", TypeASIN},
		{"unknown scheme keeps isbn", "9780306406157", "calibre", TypeISBN13},
		{"unknown scheme is other", "a1b2c3d4-e5f6", "uuid", TypeOther},
		{"invalid isbn", "9780316769489", "", TypeUnknown},
		{"random value", "random text", "", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, DetectType(tt.value, tt.scheme))
		})
	}
}

func TestValidateISBN10(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		expected bool
	}{
		{"0306406152", true},
		{"0306406151", false},
		{"0316769487", true},
		{"080442957X", true},
		{"08044295X7", false}, // X only allowed last
		{"0451524934", true},
		{"123456789", false},
		{"12345678901", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ValidateISBN10(tt.value))
		})
	}
}

func TestValidateISBN13(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		expected bool
	}{
		{"9780306406157", true},
		{"9780306406158", false},
		{"9780316769488", true},
		{"9780804429573", true},
		{"978031676948", false},
		{"97803167694888", false},
		{"978030640615X", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ValidateISBN13(tt.value))
		})
	}
}

func TestNormalizeISBN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		expected string
	}{
		{"978-0-316-76948-8", "9780316769488"},
		{"0-316-76948-7", "0316769487"},
		{"978 0 316 76948 8", "9780316769488"},
		{"ISBN: 978-0-306-40615-7", "9780306406157"},
		{"urn:isbn:080442957x", "080442957X"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeISBN(tt.value))
		})
	}
}

func TestToISBN13(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "9780306406157", ToISBN13("0306406152"))
	assert.Equal(t, "9780306406157", ToISBN13("978-0-306-40615-7"))
	assert.Equal(t, "9780804429573", ToISBN13("080442957X"))
	assert.Equal(t, "", ToISBN13("0306406151"))
	assert.Equal(t, "", ToISBN13("not an isbn"))
}

func TestNormalizeDOI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "10.1000/xyz123", NormalizeDOI("doi:10.1000/XYZ123"))
	assert.Equal(t, "10.1000/xyz123", NormalizeDOI("https://dx.doi.org/10.1000/xyz123"))
	assert.Equal(t, "", NormalizeDOI("11.1000/xyz"))
}

func TestHarvestISBNs(t *testing.T) {
	t.Parallel()

	text := `Copyright 2019. All rights reserved.
ISBN-13: 978-0-306-40615-7
Printed on page 0306406151 which is not a valid number.
Also available as 0306406152 and again ISBN 9780306406157.`

	got := HarvestISBNs(text)
	assert.Equal(t, []Harvested{
		{Value: "9780306406157", Type: TypeISBN13, Labeled: true},
		{Value: "0306406152", Type: TypeISBN10, Labeled: false},
	}, got)
}

func TestHarvestISBNs_NothingValid(t *testing.T) {
	t.Parallel()
	assert.Empty(t, HarvestISBNs("call 555-123-4567 or 1234567890"))
}
