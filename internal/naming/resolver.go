// Package naming reconciles logical model names with the names a service
// schema actually uses.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Resolver decides whether a schema name satisfies a requested name.
type Resolver interface {
	IsMatch(actualName, requestedName string) bool
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(actualName, requestedName string) bool

func (f ResolverFunc) IsMatch(actualName, requestedName string) bool {
	return f(actualName, requestedName)
}

// Homogenize lower-cases s and drops every rune that is not a letter or digit,
// so "Person_123" and "person123" compare equal.
func Homogenize(s string) string {
	lowered := cases.Lower(language.Und).String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, lowered)
}

// lastSegment strips any namespace qualifier from a name.
func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ExactMatchResolver compares unqualified names literally, optionally after
// alphanumeric normalization and case folding.
type ExactMatchResolver struct {
	alphanumeric bool
	ignoreCase   bool
	tag          language.Tag
}

// ExactMatchOption configures an ExactMatchResolver.
type ExactMatchOption func(*ExactMatchResolver)

// WithAlphanumericComparison homogenizes both names before comparing.
func WithAlphanumericComparison() ExactMatchOption {
	return func(r *ExactMatchResolver) { r.alphanumeric = true }
}

// WithIgnoreCase compares names case-insensitively using the case folding
// rules of tag. language.Und gives culture invariant folding.
func WithIgnoreCase(tag language.Tag) ExactMatchOption {
	return func(r *ExactMatchResolver) {
		r.ignoreCase = true
		r.tag = tag
	}
}

// NewExactMatchResolver creates a strict resolver.
func NewExactMatchResolver(opts ...ExactMatchOption) *ExactMatchResolver {
	r := &ExactMatchResolver{tag: language.Und}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ExactMatchResolver) IsMatch(actualName, requestedName string) bool {
	actualName = lastSegment(actualName)
	requestedName = lastSegment(requestedName)
	if r.alphanumeric {
		actualName = Homogenize(actualName)
		requestedName = Homogenize(requestedName)
	}
	if !r.ignoreCase {
		return actualName == requestedName
	}
	// Casers are stateful and must not be shared between goroutines.
	var caser cases.Caser
	if r.tag == language.Und {
		caser = cases.Fold()
	} else {
		caser = cases.Lower(r.tag)
	}
	return caser.String(actualName) == caser.String(requestedName)
}

// BestMatchResolver accepts names that are equal after homogenization or that
// differ only in grammatical number.
type BestMatchResolver struct {
	pluralizer Pluralizer
}

// NewBestMatchResolver creates a resolver backed by pluralizer. A nil
// pluralizer selects the shared cached pluralizer.
func NewBestMatchResolver(pluralizer Pluralizer) *BestMatchResolver {
	if pluralizer == nil {
		pluralizer = Cached
	}
	return &BestMatchResolver{pluralizer: pluralizer}
}

func (r *BestMatchResolver) IsMatch(actualName, requestedName string) bool {
	actualName = Homogenize(lastSegment(actualName))
	requestedName = Homogenize(lastSegment(requestedName))

	return actualName == requestedName ||
		actualName == r.pluralizer.Singularize(requestedName) ||
		actualName == r.pluralizer.Pluralize(requestedName) ||
		r.pluralizer.Singularize(actualName) == requestedName ||
		r.pluralizer.Pluralize(actualName) == requestedName
}

var (
	// Strict matches unqualified names exactly.
	Strict Resolver = NewExactMatchResolver()
	// BestMatch is the default resolver for client sessions.
	BestMatch Resolver = NewBestMatchResolver(nil)
)
