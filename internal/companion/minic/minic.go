// Package minic is the in-repo fallback for companion.Preprocessor and
// companion.CParser: a literal, text/scanner-driven reader that understands
// just enough of #define and `inline` function syntax to classify and
// re-emit the constructs the companion generator needs. It is not a C
// preprocessor or parser — no conditional compilation, no token-paste, no
// nested-macro argument substitution beyond one textual pass — and is meant
// for headers simple enough that reaching for a real toolchain isn't worth
// the dependency.
package minic

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/scanner"

	"github.com/remlink/rlg/internal/companion"
)

// Open resolves a header name to its content. A Preprocessor with a nil Open
// uses os.Open against includeDirs; tests supply an in-memory Open to avoid
// touching the filesystem. Parser reads no files.
type Open func(path string) (io.ReadCloser, error)

func defaultOpen(path string) (io.ReadCloser, error) { return os.Open(path) }

// Preprocessor reads headers line by line, recognizing `#define NAME body`
// and `#define NAME(args) body`, and performs a single textual substitution
// pass so a macro's body may reference an earlier macro by name.
type Preprocessor struct {
	Open Open
}

var _ companion.Preprocessor = (*Preprocessor)(nil)

// Expand implements companion.Preprocessor.
func (p *Preprocessor) Expand(headers []string, defines map[string]string, includeDirs []string) (map[string]companion.MacroExpansion, error) {
	open := p.Open
	if open == nil {
		open = defaultOpen
	}

	raw := make(map[string]companion.MacroExpansion, len(defines))
	for name, body := range defines {
		raw[name] = companion.MacroExpansion{Body: body}
	}

	for _, h := range headers {
		rc, err := resolveHeader(open, h, includeDirs)
		if err != nil {
			return nil, fmt.Errorf("minic: %s: %w", h, err)
		}
		if err := scanDefines(rc, raw); err != nil {
			rc.Close()
			return nil, fmt.Errorf("minic: %s: %w", h, err)
		}
		rc.Close()
	}

	expanded := make(map[string]companion.MacroExpansion, len(raw))
	for name, m := range raw {
		expanded[name] = companion.MacroExpansion{Args: m.Args, Body: substituteMacros(m.Body, raw, name)}
	}
	return expanded, nil
}

func resolveHeader(open Open, name string, includeDirs []string) (io.ReadCloser, error) {
	if rc, err := open(name); err == nil {
		return rc, nil
	}
	for _, dir := range includeDirs {
		if rc, err := open(dir + "/" + name); err == nil {
			return rc, nil
		}
	}
	return nil, fmt.Errorf("header not found")
}

// scanDefines walks r line by line collecting #define directives, honoring
// trailing-backslash line continuation.
func scanDefines(r io.Reader, into map[string]companion.MacroExpansion) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		for strings.HasSuffix(line, `\`) && sc.Scan() {
			line = strings.TrimSuffix(line, `\`) + " " + strings.TrimSpace(sc.Text())
		}
		if !strings.HasPrefix(line, "#define") {
			continue
		}
		name, m, ok := parseDefine(line)
		if !ok {
			continue
		}
		into[name] = m
	}
	return sc.Err()
}

// parseDefine splits `#define NAME(a,b) body` or `#define NAME body` into
// its name, argument list (nil for object-like) and raw body text.
func parseDefine(line string) (string, companion.MacroExpansion, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#define"))
	if rest == "" {
		return "", companion.MacroExpansion{}, false
	}

	nameEnd := 0
	for nameEnd < len(rest) && (isIdentByte(rest[nameEnd])) {
		nameEnd++
	}
	if nameEnd == 0 {
		return "", companion.MacroExpansion{}, false
	}
	name := rest[:nameEnd]
	rest = rest[nameEnd:]

	if strings.HasPrefix(rest, "(") {
		close := strings.Index(rest, ")")
		if close < 0 {
			return "", companion.MacroExpansion{}, false
		}
		argList := strings.TrimSpace(rest[1:close])
		var args []string
		if argList != "" {
			for _, a := range strings.Split(argList, ",") {
				args = append(args, strings.TrimSpace(a))
			}
		} else {
			args = []string{}
		}
		body := strings.TrimSpace(rest[close+1:])
		return name, companion.MacroExpansion{Args: args, Body: body}, true
	}

	return name, companion.MacroExpansion{Body: strings.TrimSpace(rest)}, true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// substituteMacros performs one textual replacement pass of every
// object-like macro reference inside body, guarding against the macro
// substituting into itself.
func substituteMacros(body string, all map[string]companion.MacroExpansion, skip string) string {
	var sc scanner.Scanner
	sc.Init(strings.NewReader(body))
	sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanChars | scanner.ScanStrings
	var out strings.Builder
	last := 0
	for tok := sc.Scan(); tok != scanner.EOF; tok = sc.Scan() {
		text := sc.TokenText()
		if tok != scanner.Ident || text == skip {
			continue
		}
		m, ok := all[text]
		if !ok || m.HasArgs() {
			continue
		}
		out.WriteString(body[last:sc.Position.Offset])
		out.WriteString(m.Body)
		last = sc.Position.Offset + len(text)
	}
	out.WriteString(body[last:])
	return out.String()
}
