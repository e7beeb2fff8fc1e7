package cprint

import (
	"fmt"
	"strings"

	"github.com/hemlock-lang/hemlock/internal/codegen"
)

// Program renders a full translation unit: a fixed preamble of runtime
// includes followed by every declaration in order.
func Program(decls []codegen.CDecl) string {
	w := NewWriter()
	w.Line("#include \"hemlock_runtime.h\"")
	w.Newline()
	for _, d := range decls {
		Decl(w, d)
		w.Newline()
	}
	return w.String()
}

func Decl(w *Writer, d codegen.CDecl) {
	switch n := d.(type) {
	case *codegen.CFuncDecl:
		printFuncDecl(w, n)
	case *codegen.CFuncProto:
		printFuncProto(w, n)
	case *codegen.CStructDecl:
		printStructDecl(w, n)
	case *codegen.CGlobalVarDecl:
		printGlobalVarDecl(w, n)
	case *codegen.CRawDecl:
		w.Line("%s", n.Text)
	default:
		w.Line("/* unknown decl */")
	}
}

func printFuncDecl(w *Writer, n *codegen.CFuncDecl) {
	params := make([]string, len(n.Params))
	for i, p := range n.Params {
		params[i] = fmt.Sprintf("%s %s", p.Type, p.Name)
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	prefix := ""
	if n.Static {
		prefix = "static "
	}
	w.Line("%s%s %s(%s) {", prefix, n.ReturnType, n.Name, strings.Join(params, ", "))
	w.Indent()
	Stmts(w, n.Body)
	w.Dedent()
	w.Line("}")
}

func printFuncProto(w *Writer, n *codegen.CFuncProto) {
	types := n.ParamTypes
	if len(types) == 0 {
		types = []string{"void"}
	}
	prefix := ""
	if n.Static {
		prefix = "static "
	}
	w.Line("%s%s %s(%s);", prefix, n.ReturnType, n.Name, strings.Join(types, ", "))
}

func printStructDecl(w *Writer, n *codegen.CStructDecl) {
	w.Line("typedef struct {")
	w.Indent()
	for _, f := range n.Fields {
		w.Line("%s %s;", f.Type, f.Name)
	}
	w.Dedent()
	w.Line("} %s;", n.Name)
}

func printGlobalVarDecl(w *Writer, n *codegen.CGlobalVarDecl) {
	prefix := ""
	if n.Static {
		prefix = "static "
	}
	if n.Init == nil {
		w.Line("%s%s %s;", prefix, n.Type, n.Name)
		return
	}
	w.Line("%s%s %s = %s;", prefix, n.Type, n.Name, Expr(n.Init))
}

func Stmts(w *Writer, stmts []codegen.CStmt) {
	for _, s := range stmts {
		Stmt(w, s)
	}
}

func Stmt(w *Writer, s codegen.CStmt) {
	switch n := s.(type) {
	case *codegen.CExprStmt:
		w.Line("%s;", Expr(n.X))
	case *codegen.CVarDecl:
		if n.Init == nil {
			w.Line("%s %s;", n.Type, n.Name)
		} else {
			w.Line("%s %s = %s;", n.Type, n.Name, Expr(n.Init))
		}
	case *codegen.CIf:
		w.Line("if (%s) {", Expr(n.Cond))
		w.Indent()
		Stmts(w, n.Then)
		w.Dedent()
		if n.Else == nil {
			w.Line("}")
		} else {
			w.Line("} else {")
			w.Indent()
			Stmts(w, n.Else)
			w.Dedent()
			w.Line("}")
		}
	case *codegen.CWhile:
		w.Line("while (%s) {", Expr(n.Cond))
		w.Indent()
		Stmts(w, n.Body)
		w.Dedent()
		w.Line("}")
	case *codegen.CFor:
		init, cond, post := "", "", ""
		if n.Init != nil {
			init = forClause(n.Init)
		}
		if n.Cond != nil {
			cond = Expr(n.Cond)
		}
		if n.Post != nil {
			post = forClause(n.Post)
		}
		w.Line("for (%s; %s; %s) {", init, cond, post)
		w.Indent()
		Stmts(w, n.Body)
		w.Dedent()
		w.Line("}")
	case *codegen.CReturn:
		if n.Value == nil {
			w.Line("return;")
		} else {
			w.Line("return %s;", Expr(n.Value))
		}
	case *codegen.CBreak:
		w.Line("break;")
	case *codegen.CContinue:
		w.Line("continue;")
	case *codegen.CBlock:
		w.Line("{")
		w.Indent()
		Stmts(w, n.Body)
		w.Dedent()
		w.Line("}")
	case *codegen.CGoto:
		w.Line("goto %s;", n.Label)
	case *codegen.CLabel:
		w.Line("%s:;", n.Name)
	case *codegen.CSwitch:
		w.Line("switch (%s) {", Expr(n.Subject))
		w.Indent()
		for _, cs := range n.Cases {
			if len(cs.Values) == 0 {
				w.Line("default:")
			} else {
				for _, v := range cs.Values {
					w.Line("case %s:", Expr(v))
				}
			}
			w.Indent()
			Stmts(w, cs.Body)
			w.Line("break;")
			w.Dedent()
		}
		w.Dedent()
		w.Line("}")
	case *codegen.CRawStmt:
		w.Line("%s", n.Text)
	default:
		w.Line("/* unknown stmt */")
	}
}

// forClause renders a CStmt as the bare clause text a C `for(...)` header
// needs (no trailing semicolon, no indentation), which is why it's
// built from Expr and fmt.Sprintf rather than reusing Stmt.
func forClause(s codegen.CStmt) string {
	switch n := s.(type) {
	case *codegen.CExprStmt:
		return Expr(n.X)
	case *codegen.CVarDecl:
		if n.Init == nil {
			return fmt.Sprintf("%s %s", n.Type, n.Name)
		}
		return fmt.Sprintf("%s %s = %s", n.Type, n.Name, Expr(n.Init))
	}
	return ""
}

// Expr renders a single expression inline; it never emits indentation or
// a trailing newline, so callers splice its result into a Line/Raw call.
func Expr(e codegen.CExpr) string {
	switch n := e.(type) {
	case *codegen.CIdent:
		return n.Name
	case *codegen.CIntLit:
		return n.Value
	case *codegen.CFloatLit:
		return n.Value
	case *codegen.CStringLit:
		return quoteCString(n.Value)
	case *codegen.CCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = Expr(a)
		}
		return fmt.Sprintf("%s(%s)", Expr(n.Func), strings.Join(args, ", "))
	case *codegen.CBinary:
		return fmt.Sprintf("(%s %s %s)", Expr(n.Left), n.Op, Expr(n.Right))
	case *codegen.CUnary:
		if n.Postfix {
			return fmt.Sprintf("(%s%s)", Expr(n.Operand), n.Op)
		}
		return fmt.Sprintf("(%s%s)", n.Op, Expr(n.Operand))
	case *codegen.CTernary:
		return fmt.Sprintf("(%s ? %s : %s)", Expr(n.Cond), Expr(n.Then), Expr(n.Else))
	case *codegen.CCast:
		return fmt.Sprintf("((%s)%s)", n.Type, Expr(n.X))
	case *codegen.CMember:
		if n.Arrow {
			return fmt.Sprintf("%s->%s", Expr(n.X), n.Name)
		}
		return fmt.Sprintf("%s.%s", Expr(n.X), n.Name)
	case *codegen.CIndexExpr:
		return fmt.Sprintf("%s[%s]", Expr(n.X), Expr(n.Index))
	case *codegen.CAddrOf:
		return fmt.Sprintf("(&%s)", Expr(n.X))
	case *codegen.CDeref:
		return fmt.Sprintf("(*%s)", Expr(n.X))
	case *codegen.CAssign:
		return fmt.Sprintf("(%s %s %s)", Expr(n.Target), n.Op, Expr(n.Value))
	case *codegen.CRawExpr:
		return n.Text
	}
	return "/* unknown expr */"
}

func quoteCString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
