package minic

import (
	"strings"
	"text/scanner"

	"github.com/remlink/rlg/internal/companion"
)

// Parser extracts `inline <rettype> <name>(<params>) { ... }` definitions
// via a single token scan. It does not build a real AST: the function body
// is skipped by brace-depth counting rather than parsed, since only the
// signature is needed to synthesize a forwarding shim.
type Parser struct{}

var _ companion.CParser = (*Parser)(nil)

// Parse implements companion.CParser.
func (p *Parser) Parse(src string) (*companion.CAST, error) {
	var sc scanner.Scanner
	sc.Init(strings.NewReader(src))
	sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanChars | scanner.ScanStrings
	sc.Whitespace = scanner.GoWhitespace

	toks := tokenize(&sc)
	ast := &companion.CAST{}

	for i := 0; i < len(toks); i++ {
		if toks[i] != "inline" {
			continue
		}
		fn, lastIdx, ok := parseInlineFuncDef(toks[i+1:])
		if ok {
			ast.Inlines = append(ast.Inlines, fn)
			i += lastIdx + 1
		}
	}
	return ast, nil
}

func tokenize(sc *scanner.Scanner) []string {
	var toks []string
	for tok := sc.Scan(); tok != scanner.EOF; tok = sc.Scan() {
		toks = append(toks, sc.TokenText())
	}
	return toks
}

// parseInlineFuncDef consumes "<typeTokens...> name ( params ) { body }"
// immediately following the "inline" keyword, returning the definition and
// the index (within toks) of the closing '}' so the caller can skip the
// body rather than re-scan it for a nested "inline".
func parseInlineFuncDef(toks []string) (companion.InlineFunction, int, bool) {
	// Return type: every identifier/qualifier/'*' up to the function name,
	// which is the identifier immediately preceding '('.
	nameIdx := -1
	for i := 0; i < len(toks)-1; i++ {
		if toks[i+1] == "(" && isIdent(toks[i]) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return companion.InlineFunction{}, 0, false
	}

	typeToks := toks[:nameIdx]
	// Drop storage/qualifier noise that doesn't belong in a return-type
	// spelling re-emitted verbatim in the shim signature.
	typeToks = dropTokens(typeToks, "static")
	returnType := strings.Join(typeToks, " ")
	if returnType == "" {
		returnType = "void"
	}
	name := toks[nameIdx]

	closeParen := matchParen(toks, nameIdx+1)
	if closeParen < 0 {
		return companion.InlineFunction{}, 0, false
	}
	params := parseParams(toks[nameIdx+2 : closeParen])

	// Skip to the opening brace and consume the balanced body so the
	// caller's outer loop doesn't re-scan tokens inside it.
	bodyStart := closeParen + 1
	for bodyStart < len(toks) && toks[bodyStart] != "{" {
		bodyStart++
	}
	if bodyStart >= len(toks) {
		return companion.InlineFunction{}, 0, false
	}
	bodyEnd := matchBrace(toks, bodyStart)
	if bodyEnd < 0 {
		bodyEnd = len(toks) - 1
	}

	return companion.InlineFunction{Name: name, ReturnType: returnType, Params: params}, bodyEnd, true
}

func parseParams(toks []string) []companion.Param {
	if len(toks) == 0 || (len(toks) == 1 && toks[0] == "void") {
		return nil
	}
	var params []companion.Param
	var cur []string
	flush := func() {
		if len(cur) == 0 {
			return
		}
		if len(cur) == 1 {
			params = append(params, companion.Param{Type: cur[0], Name: "_"})
		} else {
			params = append(params, companion.Param{Type: strings.Join(cur[:len(cur)-1], " "), Name: cur[len(cur)-1]})
		}
		cur = nil
	}
	for _, t := range toks {
		if t == "," {
			flush()
			continue
		}
		cur = append(cur, t)
	}
	flush()
	return params
}

func matchParen(toks []string, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i] {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func matchBrace(toks []string, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i] {
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func dropTokens(toks []string, drop ...string) []string {
	out := toks[:0:0]
	for _, t := range toks {
		skip := false
		for _, d := range drop {
			if t == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, t)
		}
	}
	return out
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return true
}
