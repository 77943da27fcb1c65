package minic

import (
	"io"
	"strings"
	"testing"
)

func memOpen(files map[string]string) Open {
	return func(path string) (io.ReadCloser, error) {
		content, ok := files[path]
		if !ok {
			return nil, io.ErrUnexpectedEOF
		}
		return io.NopCloser(strings.NewReader(content)), nil
	}
}

func TestPreprocessorExpandObjectAndFunctionMacros(t *testing.T) {
	pp := &Preprocessor{Open: memOpen(map[string]string{
		"dev.h": "#define BASE_ADDR 0x4000\n" +
			"#define MACRO_2(a,b) ((uint32_t)(a)+(b)+1)\n" +
			"#define DOUBLE_BASE (BASE_ADDR*2)\n",
	})}

	macros, err := pp.Expand([]string{"dev.h"}, nil, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	base, ok := macros["BASE_ADDR"]
	if !ok || base.HasArgs() || base.Body != "0x4000" {
		t.Fatalf("BASE_ADDR = %+v", base)
	}

	fn, ok := macros["MACRO_2"]
	if !ok || !fn.HasArgs() || len(fn.Args) != 2 {
		t.Fatalf("MACRO_2 = %+v", fn)
	}

	double, ok := macros["DOUBLE_BASE"]
	if !ok || double.HasArgs() {
		t.Fatalf("DOUBLE_BASE = %+v", double)
	}
	if !strings.Contains(double.Body, "0x4000") {
		t.Fatalf("DOUBLE_BASE did not substitute BASE_ADDR: %q", double.Body)
	}
}

func TestPreprocessorSeedDefines(t *testing.T) {
	pp := &Preprocessor{Open: memOpen(map[string]string{"empty.h": ""})}
	macros, err := pp.Expand([]string{"empty.h"}, map[string]string{"FOO": "1"}, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if macros["FOO"].Body != "1" {
		t.Fatalf("FOO = %+v", macros["FOO"])
	}
}

func TestPreprocessorIncludeDirFallback(t *testing.T) {
	pp := &Preprocessor{Open: memOpen(map[string]string{
		"/usr/include/target/dev.h": "#define X 7\n",
	})}
	macros, err := pp.Expand([]string{"dev.h"}, nil, []string{"/usr/include/target"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if macros["X"].Body != "7" {
		t.Fatalf("X = %+v", macros["X"])
	}
}

func TestParserExtractsInlineFunction(t *testing.T) {
	src := `
static inline int add(int a, int b) {
	return a + b;
}

inline void reset(void) {
	counter = 0;
}
`
	p := &Parser{}
	ast, err := p.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ast.Inlines) != 2 {
		t.Fatalf("got %d inline functions, want 2: %+v", len(ast.Inlines), ast.Inlines)
	}

	add := ast.Inlines[0]
	if add.Name != "add" || add.ReturnType != "int" || len(add.Params) != 2 {
		t.Fatalf("add = %+v", add)
	}
	if add.Params[0].Name != "a" || add.Params[1].Name != "b" {
		t.Fatalf("add params = %+v", add.Params)
	}

	reset := ast.Inlines[1]
	if reset.Name != "reset" || reset.ReturnType != "void" || reset.Params != nil {
		t.Fatalf("reset = %+v", reset)
	}
}
