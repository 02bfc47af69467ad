package builder

import (
	"regexp"
	"strings"
)

// BundleSuffix is stripped from bundle identities before deriving a prefix.
const BundleSuffix = "Bundle"

var (
	underscoreAcronym = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	underscoreWord    = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// Prefix derives the naming prefix of a bundle from its identity, e.g.
// "Sylius\\Bundle\\AttributeBundle\\SyliusAttributeBundle" -> "sylius_attribute".
//
// The identity must end with BundleSuffix. An identity without it is converted
// as-is.
func Prefix(identity string) string {
	name := identity
	if i := strings.LastIndexAny(name, `\/.`); i >= 0 {
		name = name[i+1:]
	}
	return Underscore(strings.TrimSuffix(name, BundleSuffix))
}

// Underscore converts a CamelCase identifier to lower snake case following the
// container naming rule: "_" becomes "." first, so "Foo_Bar" -> "foo.bar".
func Underscore(id string) string {
	s := strings.ReplaceAll(id, "_", ".")
	s = underscoreAcronym.ReplaceAllString(s, "${1}_${2}")
	s = underscoreWord.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
