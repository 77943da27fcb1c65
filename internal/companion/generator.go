package companion

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// statementIndicator flags a macro body that expands to a C statement
// rather than an expression — no safe shim exists for these, so they're
// skipped rather than guessed at.
var statementIndicator = regexp.MustCompile(`\b(if|else|while|do|void|inline|__attribute__)\b|#|\{|\}|\?|:`)

var stringLiteral = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

// Generator turns a header set and an optional inline-function source
// snippet into the companion compilation unit. Preprocessor and CParser are
// injected so the generator itself stays free of any real C grammar.
type Generator struct {
	Preprocessor Preprocessor
	Parser       CParser
	Prefix       string // defaults to DefaultPrefix when empty
}

// New constructs a Generator. prefix defaults to DefaultPrefix if empty.
func New(pp Preprocessor, parser CParser, prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{Preprocessor: pp, Parser: parser, Prefix: prefix}
}

// Generate expands headers through Preprocessor, parses inlineSrc (if
// non-empty) through CParser, and returns the companion compilation unit:
// one shim per inline function (plus its out-pointer variant for non-void
// returns) followed by one shim per eligible macro, the whole unit prefixed
// with one `#include` per header so the shim bodies can call the real symbols.
func (g *Generator) Generate(headers []string, inlineSrc string, defines map[string]string, includeDirs []string) (string, error) {
	macros, err := g.Preprocessor.Expand(headers, defines, includeDirs)
	if err != nil {
		return "", fmt.Errorf("companion: preprocess: %w", err)
	}

	ast := &CAST{}
	if strings.TrimSpace(inlineSrc) != "" {
		ast, err = g.Parser.Parse(inlineSrc)
		if err != nil {
			return "", fmt.Errorf("companion: parse: %w", err)
		}
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "#include %q\n", h)
	}

	for _, fn := range ast.Inlines {
		b.WriteString(g.generateInlineShim(fn))
		if shim := g.generatePtrShim(fn); shim != "" {
			b.WriteString(shim)
		}
	}

	names := make([]string, 0, len(macros))
	for name := range macros {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(g.generateMacroShim(name, macros[name]))
	}

	return b.String(), nil
}

// generateInlineShim synthesizes the non-inline forwarding wrapper: same
// signature, same parameter names, body is just a call to the original.
func (g *Generator) generateInlineShim(fn InlineFunction) string {
	params := make([]string, len(fn.Params))
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %s", p.Type, p.Name)
		names[i] = p.Name
	}
	call := fmt.Sprintf("%s(%s)", fn.Name, strings.Join(names, ", "))
	body := call + "; "
	if fn.ReturnType != "void" {
		body = "return " + body
	}
	return fmt.Sprintf("%s %s %s%s(%s) { %s}\n",
		funcAttrs, fn.ReturnType, g.Prefix, fn.Name, strings.Join(params, ", "), body)
}

// generatePtrShim synthesizes the out-pointer variant every non-void inline
// function gets, so a struct-by-value inline can still be invoked when its
// return is too large to come back in a single register word — the proxy
// layer decides at call time whether it actually needs this variant.
func (g *Generator) generatePtrShim(fn InlineFunction) string {
	if fn.ReturnType == "void" {
		return ""
	}
	params := make([]string, 0, len(fn.Params)+1)
	params = append(params, fmt.Sprintf("%s *_out", fn.ReturnType))
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params = append(params, fmt.Sprintf("%s %s", p.Type, p.Name))
		names[i] = p.Name
	}
	return fmt.Sprintf("%s void %s%s%s(%s) { *_out = %s(%s); }\n",
		funcAttrs, g.Prefix, ptrInfix, fn.Name, strings.Join(params, ", "),
		fn.Name, strings.Join(names, ", "))
}

// generateMacroShim classifies one macro by expansion form and emits its
// shim, or "" when no safe shim exists (statement-shaped or empty bodies).
func (g *Generator) generateMacroShim(name string, m MacroExpansion) string {
	body := strings.TrimSpace(m.Body)
	if body == "" {
		return ""
	}
	if statementIndicator.MatchString(body) {
		return ""
	}
	if m.HasArgs() {
		params := make([]string, len(m.Args))
		for i, a := range m.Args {
			params[i] = "unsigned long " + a
		}
		return fmt.Sprintf("%s unsigned long %s%s(%s) { return %s(%s); }\n",
			funcAttrs, g.Prefix, name, strings.Join(params, ", "), name, strings.Join(m.Args, ", "))
	}
	if stringLiteral.MatchString(body) {
		return fmt.Sprintf("%s const char %s%s[] = %s;\n", constAttrs, g.Prefix, name, name)
	}
	return fmt.Sprintf("%s const long long %s%s = %s;\n", constAttrs, g.Prefix, name, name)
}
