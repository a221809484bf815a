package naming

import (
	"strings"
	"unicode"

	"github.com/nlstn/go-odata-client/internal/cache"
)

// Pluralizer converts English nouns between their singular and plural forms.
type Pluralizer interface {
	Pluralize(word string) string
	Singularize(word string) string
}

// PluralizerFunc adapts a pair of functions to the Pluralizer interface.
type PluralizerFunc struct {
	PluralizeFunc   func(string) string
	SingularizeFunc func(string) string
}

func (p PluralizerFunc) Pluralize(word string) string   { return p.PluralizeFunc(word) }
func (p PluralizerFunc) Singularize(word string) string { return p.SingularizeFunc(word) }

// CachedPluralizer memoizes both directions of an underlying Pluralizer.
// It is safe for concurrent use.
type CachedPluralizer struct {
	inner   Pluralizer
	plurals *cache.Memo[string]
	singles *cache.Memo[string]
}

// NewCachedPluralizer wraps inner with a memo per direction.
func NewCachedPluralizer(inner Pluralizer) *CachedPluralizer {
	return &CachedPluralizer{
		inner:   inner,
		plurals: cache.New[string](),
		singles: cache.New[string](),
	}
}

func (c *CachedPluralizer) Pluralize(word string) string {
	return c.plurals.GetOrAdd(word, func() string { return c.inner.Pluralize(word) })
}

func (c *CachedPluralizer) Singularize(word string) string {
	return c.singles.GetOrAdd(word, func() string { return c.inner.Singularize(word) })
}

// SetObserver forwards cache lookup outcomes to observer.
func (c *CachedPluralizer) SetObserver(observer cache.LookupObserver) {
	c.plurals.SetObserver(observer)
	c.singles.SetObserver(observer)
}

// Simple is the table driven English pluralizer.
var Simple Pluralizer = simplePluralizer{}

// Cached is the process-wide memoized form of Simple used by BestMatch.
var Cached = NewCachedPluralizer(Simple)

type word struct {
	singular string
	plural   string
}

type suffixRule struct {
	singular string
	plural   string
}

// Irregular words as (singular, plural, alternative plural) triples.
// An empty plural means the word is invariant.
var irregularWords = [...]string{
	"agendum", "agenda", "",
	"albino", "albinos", "",
	"alga", "algae", "",
	"alumna", "alumnae", "",
	"apex", "apices", "apexes",
	"archipelago", "archipelagos", "",
	"bacterium", "bacteria", "",
	"beef", "beefs", "beeves",
	"bison", "", "",
	"brother", "brothers", "brethren",
	"candelabrum", "candelabra", "",
	"carp", "", "",
	"casino", "casinos", "",
	"child", "children", "",
	"chassis", "", "",
	"chinese", "", "",
	"clippers", "", "",
	"cod", "", "",
	"codex", "codices", "",
	"commando", "commandos", "",
	"corps", "", "",
	"cortex", "cortices", "cortexes",
	"cow", "cows", "kine",
	"criterion", "criteria", "",
	"datum", "data", "",
	"debris", "", "",
	"diabetes", "", "",
	"ditto", "dittos", "",
	"djinn", "", "",
	"dynamo", "", "",
	"elk", "", "",
	"embryo", "embryos", "",
	"ephemeris", "ephemeris", "ephemerides",
	"erratum", "errata", "",
	"extremum", "extrema", "",
	"fiasco", "fiascos", "",
	"fish", "fishes", "fish",
	"flounder", "", "",
	"focus", "focuses", "foci",
	"fungus", "fungi", "funguses",
	"gallows", "", "",
	"genie", "genies", "genii",
	"ghetto", "ghettos", "",
	"graffiti", "", "",
	"headquarters", "", "",
	"herpes", "", "",
	"homework", "", "",
	"index", "indices", "indexes",
	"inferno", "infernos", "",
	"japanese", "", "",
	"jumbo", "jumbos", "",
	"latex", "latices", "latexes",
	"lingo", "lingos", "",
	"mackerel", "", "",
	"macro", "macros", "",
	"manifesto", "manifestos", "",
	"measles", "", "",
	"money", "moneys", "monies",
	"mongoose", "mongooses", "mongoose",
	"mumps", "", "",
	"murex", "murecis", "",
	"mythos", "mythos", "mythoi",
	"news", "", "",
	"octopus", "octopuses", "octopodes",
	"ovum", "ova", "",
	"ox", "ox", "oxen",
	"person", "persons", "people",
	"photo", "photos", "",
	"pincers", "", "",
	"pliers", "", "",
	"pro", "pros", "",
	"rabies", "", "",
	"radius", "radiuses", "radii",
	"rhino", "rhinos", "",
	"salmon", "", "",
	"scissors", "", "",
	"series", "", "",
	"shears", "", "",
	"silex", "silices", "",
	"simplex", "simplices", "simplexes",
	"soliloquy", "soliloquies", "soliloquy",
	"species", "", "",
	"stratum", "strata", "",
	"swine", "", "",
	"trout", "", "",
	"tuna", "", "",
	"vertebra", "vertebrae", "",
	"vertex", "vertices", "vertexes",
	"vortex", "vortices", "vortexes",
}

// Suffix rewrites are tried in order; the first match wins.
var suffixRules = []suffixRule{
	{"ch", "ches"},
	{"sh", "shes"},
	{"ss", "sses"},
	{"ay", "ays"},
	{"ey", "eys"},
	{"iy", "iys"},
	{"oy", "oys"},
	{"uy", "uys"},
	{"y", "ies"},
	{"ao", "aos"},
	{"eo", "eos"},
	{"io", "ios"},
	{"oo", "oos"},
	{"uo", "uos"},
	{"o", "oes"},
	{"cis", "ces"},
	{"sis", "ses"},
	{"xis", "xes"},
	{"louse", "lice"},
	{"mouse", "mice"},
	{"zoon", "zoa"},
	{"man", "men"},
	{"deer", "deer"},
	{"fish", "fish"},
	{"sheep", "sheep"},
	{"itis", "itis"},
	{"ois", "ois"},
	{"pox", "pox"},
	{"ox", "oxes"},
	{"foot", "feet"},
	{"goose", "geese"},
	{"tooth", "teeth"},
	{"alf", "alves"},
	{"elf", "elves"},
	{"olf", "olves"},
	{"arf", "arves"},
	{"leaf", "leaves"},
	{"nife", "nives"},
	{"life", "lives"},
	{"wife", "wives"},
}

var (
	specialSingulars map[string]word
	specialPlurals   map[string]word
)

func init() {
	specialSingulars = make(map[string]word, len(irregularWords)/3)
	specialPlurals = make(map[string]word, len(irregularWords)/3*2)
	for i := 0; i < len(irregularWords); i += 3 {
		s, p, p2 := irregularWords[i], irregularWords[i+1], irregularWords[i+2]
		if p == "" {
			p = s
		}
		w := word{singular: s, plural: p}
		specialSingulars[s] = w
		specialPlurals[p] = w
		if p2 != "" {
			specialPlurals[p2] = w
		}
	}
}

type simplePluralizer struct{}

func (simplePluralizer) Pluralize(noun string) string {
	return adjustCase(toPlural(noun), noun)
}

func (simplePluralizer) Singularize(noun string) string {
	return adjustCase(toSingular(noun), noun)
}

// IsPluralOf reports whether plural singularizes to singular, ignoring case.
func IsPluralOf(plural, singular string) bool {
	return strings.EqualFold(toSingular(plural), singular)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func toPlural(s string) string {
	if s == "" || !isASCII(s) {
		return s
	}
	if w, ok := specialSingulars[strings.ToLower(s)]; ok {
		return w.plural
	}
	for _, rule := range suffixRules {
		if hasSuffixFold(s, rule.singular) {
			return s[:len(s)-len(rule.singular)] + rule.plural
		}
	}
	return s + "s"
}

func toSingular(s string) string {
	if s == "" || !isASCII(s) {
		return s
	}
	if w, ok := specialPlurals[strings.ToLower(s)]; ok {
		return w.singular
	}
	for _, rule := range suffixRules {
		if hasSuffixFold(s, rule.plural) {
			return s[:len(s)-len(rule.plural)] + rule.singular
		}
	}
	if hasSuffixFold(s, "s") {
		return s[:len(s)-1]
	}
	return s
}

// adjustCase applies the casing pattern of template (all lower, all upper or
// capitalized) to s.
func adjustCase(s, template string) string {
	if s == "" {
		return s
	}

	found, allLower, allUpper, firstUpper := false, true, true, false
	for i, r := range template {
		switch {
		case unicode.IsUpper(r):
			if i == 0 {
				firstUpper = true
			}
			allLower = false
			found = true
		case unicode.IsLower(r):
			allUpper = false
			found = true
		}
	}
	if !found {
		return s
	}

	switch {
	case allLower:
		return strings.ToLower(s)
	case allUpper:
		return strings.ToUpper(s)
	case firstUpper:
		r := []rune(s)
		if !unicode.IsUpper(r[0]) {
			r[0] = unicode.ToUpper(r[0])
		}
		return string(r)
	}
	return s
}
