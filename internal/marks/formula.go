package marks

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
)

// Identifiers a mark criteria formula may reference.
const (
	IdentInternal = "internal"
	IdentExternal = "external"
)

// FormulaError reports a formula that cannot be compiled or evaluated. It is
// a validation failure; callers must not fall back to 0.
type FormulaError struct {
	Formula string
	Pos     int // 1-based column, 0 when unknown
	Reason  string
}

func (e *FormulaError) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("marks: formula %q: col %d: %s", e.Formula, e.Pos, e.Reason)
	}
	return fmt.Sprintf("marks: formula %q: %s", e.Formula, e.Reason)
}

// Formula is a compiled arithmetic expression over named marks. Only
// + - * / ( ), unary sign, numeric literals and the bound identifiers are
// accepted; nothing else in the text is ever executed.
type Formula struct {
	src    string
	root   node
	idents map[string]struct{}
}

type node interface {
	eval(vars map[string]float64) (float64, error)
}

type numNode float64

func (n numNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

type identNode string

func (n identNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("no value bound for %q", string(n))
	}
	return v, nil
}

type unaryNode struct {
	neg bool
	x   node
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.neg {
		return -v, nil
	}
	return v, nil
}

type binaryNode struct {
	op   token.Token
	l, r node
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.l.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.r.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case token.ADD:
		return l + r, nil
	case token.SUB:
		return l - r, nil
	case token.MUL:
		return l * r, nil
	default:
		return l / r, nil
	}
}

// Compile parses src. idents lists the names the formula may use; with none
// given the criteria pair (internal, external) is assumed.
func Compile(src string, idents ...string) (*Formula, error) {
	if len(idents) == 0 {
		idents = []string{IdentInternal, IdentExternal}
	}
	f := &Formula{src: src, idents: make(map[string]struct{}, len(idents))}
	for _, id := range idents {
		f.idents[id] = struct{}{}
	}
	if strings.TrimSpace(src) == "" {
		return nil, &FormulaError{Formula: src, Reason: "empty formula"}
	}
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, &FormulaError{Formula: src, Reason: "malformed expression: " + firstLine(err.Error())}
	}
	root, err := f.build(expr)
	if err != nil {
		return nil, err
	}
	f.root = root
	return f, nil
}

// MustCompile is Compile that panics; for formulas fixed at build time.
func MustCompile(src string, idents ...string) *Formula {
	f, err := Compile(src, idents...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Formula) String() string { return f.src }

func (f *Formula) build(e ast.Expr) (node, error) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return f.build(x.X)
	case *ast.BasicLit:
		if x.Kind != token.INT && x.Kind != token.FLOAT {
			return nil, f.errAt(x.Pos(), "unsupported literal "+x.Value)
		}
		v, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			return nil, f.errAt(x.Pos(), "bad number "+x.Value)
		}
		return numNode(v), nil
	case *ast.Ident:
		if _, ok := f.idents[x.Name]; !ok {
			return nil, f.errAt(x.Pos(), fmt.Sprintf("unknown identifier %q", x.Name))
		}
		return identNode(x.Name), nil
	case *ast.UnaryExpr:
		if x.Op != token.ADD && x.Op != token.SUB {
			return nil, f.errAt(x.OpPos, "unsupported operator "+x.Op.String())
		}
		inner, err := f.build(x.X)
		if err != nil {
			return nil, err
		}
		return unaryNode{neg: x.Op == token.SUB, x: inner}, nil
	case *ast.BinaryExpr:
		switch x.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO:
		default:
			return nil, f.errAt(x.OpPos, "unsupported operator "+x.Op.String())
		}
		l, err := f.build(x.X)
		if err != nil {
			return nil, err
		}
		r, err := f.build(x.Y)
		if err != nil {
			return nil, err
		}
		return binaryNode{op: x.Op, l: l, r: r}, nil
	default:
		return nil, f.errAt(e.Pos(), "unsupported expression")
	}
}

// ParseExpr positions are 1-based offsets into src.
func (f *Formula) errAt(pos token.Pos, reason string) *FormulaError {
	return &FormulaError{Formula: f.src, Pos: int(pos), Reason: reason}
}

// Eval applies the formula to bindings. Missing bindings and non-finite
// results (e.g. division by zero) are FormulaErrors.
func (f *Formula) Eval(bindings map[string]float64) (float64, error) {
	v, err := f.root.eval(bindings)
	if err != nil {
		return 0, &FormulaError{Formula: f.src, Reason: err.Error()}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormulaError{Formula: f.src, Reason: "result is not a finite number"}
	}
	return v, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
