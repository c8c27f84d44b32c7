package identifiers

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shishobooks/folio/pkg/models"
)

// Type represents the type of identifier.
type Type string

const (
	TypeISBN10  Type = models.IdentifierTypeISBN10
	TypeISBN13  Type = models.IdentifierTypeISBN13
	TypeASIN    Type = models.IdentifierTypeASIN
	TypeDOI     Type = models.IdentifierTypeDOI
	TypeOther   Type = models.IdentifierTypeOther
	TypeUnknown Type = ""
)

var (
	asinRegex = regexp.MustCompile(`^B0[A-Z0-9]{8}$`)
	doiRegex  = regexp.MustCompile(`(?i)^(?:doi:\s*|https?://(?:dx\.)?doi\.org/)?(10\.\d{4,9}/\S+)$`)

	// isbnCandidateRegex finds ISBN-shaped tokens in free text. It is loose on
	// purpose; every match is checksum validated.
	isbnCandidateRegex = regexp.MustCompile(`(?i)\b(?:97[89][\s-]?)?\d{1,5}[\s-]?\d{1,7}[\s-]?\d{1,7}[\s-]?[\dX]\b`)
	isbnLabelRegex     = regexp.MustCompile(`(?i)isbn(?:[\s-]?1[03])?\s*[:#]?\s*$`)
)

// DetectType determines the identifier type from a value and optional scheme.
// If scheme is provided, it takes precedence. Otherwise, pattern matching is used.
func DetectType(value, scheme string) Type {
	value = strings.TrimSpace(value)
	scheme = strings.ToUpper(strings.TrimSpace(scheme))

	switch scheme {
	case "ISBN", "ISBN10", "ISBN13", "ISBN-10", "ISBN-13":
		return detectISBNType(value)
	case "ASIN", "MOBI-ASIN", "AMAZON":
		return TypeASIN
	case "DOI":
		return TypeDOI
	case "":
	default:
		// Unrecognized schemes still get a chance at pattern matching so that
		// e.g. scheme="calibre" ISBNs are kept.
		if t := detectByPattern(value); t != TypeUnknown {
			return t
		}
		return TypeOther
	}

	return detectByPattern(value)
}

func detectByPattern(value string) Type {
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "urn:isbn:") || strings.HasPrefix(lower, "isbn") || looksNumeric(value) {
		if t := detectISBNType(value); t != TypeUnknown {
			return t
		}
	}
	if doiRegex.MatchString(value) {
		return TypeDOI
	}
	if asinRegex.MatchString(strings.ToUpper(value)) {
		return TypeASIN
	}
	return TypeUnknown
}

// looksNumeric reports whether value is made only of digits, X, hyphens and
// spaces.
func looksNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) && r != '-' && r != ' ' && r != 'X' && r != 'x' {
			return false
		}
	}
	return true
}

func detectISBNType(value string) Type {
	normalized := NormalizeISBN(value)
	if len(normalized) == 13 && ValidateISBN13(normalized) {
		return TypeISBN13
	}
	if len(normalized) == 10 && ValidateISBN10(normalized) {
		return TypeISBN10
	}
	return TypeUnknown
}

// NormalizeISBN removes hyphens, spaces, and common prefixes from an ISBN.
func NormalizeISBN(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "URN:")
	value = strings.TrimPrefix(value, "ISBN:")
	value = strings.TrimPrefix(value, "ISBN")

	// Keep only digits and X (for ISBN-10 checksum)
	var result strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) || r == 'X' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeDOI returns the bare "10.xxxx/..." form of a DOI, or "" when value
// is not a DOI.
func NormalizeDOI(value string) string {
	m := doiRegex.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// Normalize returns the canonical stored form of value for the given type.
func Normalize(t Type, value string) string {
	switch t {
	case TypeISBN10, TypeISBN13:
		return NormalizeISBN(value)
	case TypeASIN:
		return strings.ToUpper(strings.TrimSpace(value))
	case TypeDOI:
		if doi := NormalizeDOI(value); doi != "" {
			return doi
		}
	}
	return strings.TrimSpace(value)
}

// ValidateISBN10 validates an ISBN-10 checksum.
// ISBN-10 uses modulo 11 with weights 10,9,8,7,6,5,4,3,2,1.
func ValidateISBN10(isbn string) bool {
	if len(isbn) != 10 {
		return false
	}

	var sum int
	for i, r := range isbn {
		var digit int
		switch {
		case r == 'X' || r == 'x':
			if i != 9 {
				return false
			}
			digit = 10
		case r >= '0' && r <= '9':
			digit = int(r - '0')
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

// ValidateISBN13 validates an ISBN-13 checksum.
// ISBN-13 uses alternating weights of 1 and 3.
func ValidateISBN13(isbn string) bool {
	if len(isbn) != 13 {
		return false
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return false
		}
	}
	return isbn13CheckDigit(isbn[:12]) == isbn[12]
}

func isbn13CheckDigit(first12 string) byte {
	var sum int
	for i := 0; i < 12; i++ {
		digit := int(first12[i] - '0')
		if i%2 == 0 {
			sum += digit
		} else {
			sum += digit * 3
		}
	}
	return strconv.Itoa((10 - sum%10) % 10)[0]
}

// ToISBN13 converts a valid ISBN-10 or ISBN-13 into its ISBN-13 form. It
// returns "" for anything else.
func ToISBN13(value string) string {
	isbn := NormalizeISBN(value)
	switch {
	case len(isbn) == 13 && ValidateISBN13(isbn):
		return isbn
	case len(isbn) == 10 && ValidateISBN10(isbn):
		body := "978" + isbn[:9]
		return body + string(isbn13CheckDigit(body))
	}
	return ""
}

// Harvested is an ISBN found in free text.
type Harvested struct {
	Value string
	Type  Type
	// Labeled is true when the match was directly preceded by an "ISBN" label.
	Labeled bool
}

// HarvestISBNs returns the distinct checksum-valid ISBNs found in text, in the
// order they first appear. Invalid ISBN-shaped numbers are dropped.
func HarvestISBNs(text string) []Harvested {
	var out []Harvested
	seen := map[string]int{}

	for _, loc := range isbnCandidateRegex.FindAllStringIndex(text, -1) {
		normalized := NormalizeISBN(text[loc[0]:loc[1]])
		t := detectISBNType(normalized)
		if t == TypeUnknown {
			continue
		}

		start := loc[0] - 16
		if start < 0 {
			start = 0
		}
		labeled := isbnLabelRegex.MatchString(text[start:loc[0]])

		if i, ok := seen[normalized]; ok {
			if labeled {
				out[i].Labeled = true
			}
			continue
		}
		seen[normalized] = len(out)
		out = append(out, Harvested{Value: normalized, Type: t, Labeled: labeled})
	}
	return out
}
