package builder

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ArgumentsFunc builds the positional arguments of a factory method.
type ArgumentsFunc func(ModuleContext) []any

// argumentBuilders holds the argument layout of each mapping format.
var argumentBuilders = map[MappingFormat]ArgumentsFunc{
	MappingXML:        fileArguments,
	MappingYAML:       fileArguments,
	MappingAnnotation: annotationArguments,
}

// fileArguments maps the mapping file location to the namespace.
func fileArguments(mc ModuleContext) []any {
	return []any{
		map[string]string{mc.ConfigFilesPath: mc.ModelNamespace},
		[]string{mc.ObjectManagerParameter},
		mc.PassID,
	}
}

// annotationArguments passes namespaces and directories as lists; only one of
// each is ever supplied.
func annotationArguments(mc ModuleContext) []any {
	return []any{
		[]string{mc.ModelNamespace},
		[]string{mc.ConfigFilesPath},
		[]string{mc.ObjectManagerParameter},
		mc.PassID,
	}
}

// MethodName returns the factory method expected for format, e.g.
// "createXmlMappingDriver".
func MethodName(format MappingFormat) string {
	return "create" + capitalize(string(format)) + "MappingDriver"
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	var sb strings.Builder
	sb.WriteRune(unicode.ToUpper(r))
	sb.WriteString(s[n:])
	return sb.String()
}

// CompilerPassFactory turns a provider and a mapping format into a compiler
// pass registration.
type CompilerPassFactory struct{}

// Build returns the compiler pass of provider for format. The boolean result
// is false when the provider is not available in this build; the driver is
// then skipped without error.
func (CompilerPassFactory) Build(provider *Provider, format MappingFormat, mc ModuleContext) (CompilerPassSpec, bool, error) {
	if !provider.Available {
		return CompilerPassSpec{}, false, nil
	}

	method := MethodName(format)
	args, ok := provider.Method(method)
	if !ok {
		return CompilerPassSpec{}, false, &InvalidMappingFormatError{Format: format, Provider: provider.Name, Method: method, Supported: provider.Methods()}
	}

	return CompilerPassSpec{
		Driver:    provider.Driver,
		Provider:  provider.Name,
		Method:    method,
		Arguments: args(mc),
		ID:        mc.PassID,
	}, true, nil
}
