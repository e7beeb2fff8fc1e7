package typecheck

import (
	"math"
	"strconv"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/types"
	"github.com/hemlock-lang/hemlock/internal/utf8util"
)

// set records e's inferred type in the Info map and returns it, so every
// inferExpr arm can end in `return c.set(e, t)`.
func (c *Checker) set(e ast.Expr, t types.CheckedType) types.CheckedType {
	c.info.ExprTypes[e] = t
	return t
}

// integerLiteralKind picks I32 or I64 for an integer literal by its actual
// magnitude: a literal fitting in signed 32 bits is I32, otherwise I64.
func integerLiteralKind(literal string) types.Kind {
	v, err := strconv.ParseInt(literal, 10, 64)
	if err != nil || v > math.MaxInt32 || v < math.MinInt32 {
		return types.I64
	}
	return types.I32
}

// --- Statements ---

func (c *Checker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		c.checkLet(st)
	case *ast.ConstStmt:
		c.checkConst(st)
	case *ast.ExprStmt:
		c.inferExpr(st.X)
	case *ast.IfStmt:
		c.checkCond(st.Cond, st.Line())
		c.env.Push()
		c.checkStmts(st.Then)
		c.env.Pop()
		if st.Else != nil {
			c.env.Push()
			c.checkStmts(st.Else)
			c.env.Pop()
		}
	case *ast.WhileStmt:
		c.checkCond(st.Cond, st.Line())
		c.env.Push()
		c.checkStmts(st.Body)
		c.env.Pop()
	case *ast.ForStmt:
		c.env.Push()
		if st.Init != nil {
			c.checkStmt(st.Init)
		}
		if st.Cond != nil {
			c.checkCond(st.Cond, st.Line())
		}
		if st.Post != nil {
			c.checkStmt(st.Post)
		}
		c.env.Push()
		c.checkStmts(st.Body)
		c.env.Pop()
		c.env.Pop()
	case *ast.ForInStmt:
		c.checkForIn(st)
	case *ast.BlockStmt:
		c.env.Push()
		c.checkStmts(st.Body)
		c.env.Pop()
	case *ast.ReturnStmt:
		c.checkReturn(st)
	case *ast.BreakStmt, *ast.ContinueStmt:
		// no semantic content to validate.
	case *ast.DefineObjectStmt:
		for _, f := range st.Fields {
			if f.Default != nil {
				c.inferExpr(f.Default)
			}
		}
	case *ast.EnumStmt:
		// registered in pass 1; variant value expressions, if present,
		// are constant integer literals with no further inference needed.
	case *ast.TryStmt:
		c.checkTry(st)
	case *ast.ThrowStmt:
		c.inferExpr(st.Value)
	case *ast.SwitchStmt:
		c.checkSwitch(st)
	case *ast.DeferStmt:
		c.inferExpr(st.Call)
	case *ast.ExportStmt:
		c.checkStmt(st.Decl)
	case *ast.ImportStmt, *ast.ImportFfiStmt, *ast.ExternFnStmt:
		// no body to check; bindings were registered in pass 1.
	case *ast.FuncDecl:
		c.checkFuncDecl(st)
	}
}

func (c *Checker) checkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.checkStmt(s)
	}
}

// checkCond infers a condition expression. Any type is accepted as truthy
// per the language's duck-typed conditionals; no diagnostic is raised here.
func (c *Checker) checkCond(e ast.Expr, _ int) {
	c.inferExpr(e)
}

func (c *Checker) checkLet(st *ast.LetStmt) {
	var declared types.CheckedType
	hasDeclared := st.Type != nil
	if hasDeclared {
		declared = resolveType(st.Type)
	}
	var valueType types.CheckedType
	if st.Value != nil {
		valueType = c.inferExpr(st.Value)
	} else {
		valueType = types.Simple(types.Unknown)
	}
	bound := declared
	if !hasDeclared {
		bound = valueType
	} else if st.Value != nil && !Assignable(declared, valueType) {
		c.sink.Errorf(st.Line(), "cannot assign value of type %s to variable %q of type %s", valueType, st.Name, declared)
	}
	if c.opts.WarnImplicitAny && !hasDeclared && bound.Kind == types.Any {
		c.sink.Warnf(st.Line(), "variable %q has implicit type any", st.Name)
	}
	c.env.Bind(st.Name, bound, false, st.Line())
}

func (c *Checker) checkConst(st *ast.ConstStmt) {
	var declared types.CheckedType
	hasDeclared := st.Type != nil
	if hasDeclared {
		declared = resolveType(st.Type)
	}
	valueType := c.inferExpr(st.Value)
	bound := declared
	if !hasDeclared {
		bound = valueType
	} else if !Assignable(declared, valueType) {
		c.sink.Errorf(st.Line(), "cannot assign value of type %s to constant %q of type %s", valueType, st.Name, declared)
	}
	c.env.Bind(st.Name, bound, true, st.Line())
}

func (c *Checker) checkForIn(st *ast.ForInStmt) {
	iterType := c.inferExpr(st.Iterable)
	c.env.Push()
	switch iterType.Kind {
	case types.Array:
		elem := types.Simple(types.Any)
		if iterType.Element != nil {
			elem = *iterType.Element
		}
		if st.ValueVar != "" {
			c.env.Bind(st.KeyVar, types.Simple(types.I32), false, st.Line())
			c.env.Bind(st.ValueVar, elem, false, st.Line())
		} else {
			c.env.Bind(st.KeyVar, elem, false, st.Line())
		}
	case types.String:
		if st.ValueVar != "" {
			c.env.Bind(st.KeyVar, types.Simple(types.I32), false, st.Line())
			c.env.Bind(st.ValueVar, types.Simple(types.Rune), false, st.Line())
		} else {
			c.env.Bind(st.KeyVar, types.Simple(types.Rune), false, st.Line())
		}
	case types.Object:
		if st.ValueVar != "" {
			c.env.Bind(st.KeyVar, types.Simple(types.String), false, st.Line())
			c.env.Bind(st.ValueVar, types.Simple(types.Any), false, st.Line())
		} else {
			c.env.Bind(st.KeyVar, types.Simple(types.String), false, st.Line())
		}
	default:
		c.env.Bind(st.KeyVar, types.Simple(types.Any), false, st.Line())
		if st.ValueVar != "" {
			c.env.Bind(st.ValueVar, types.Simple(types.Any), false, st.Line())
		}
	}
	c.checkStmts(st.Body)
	c.env.Pop()
}

func (c *Checker) checkReturn(st *ast.ReturnStmt) {
	c.sawReturn = true
	var retType types.CheckedType
	if st.Value != nil {
		retType = c.inferExpr(st.Value)
	} else {
		retType = types.Simple(types.Void)
	}
	if c.currentFunc == nil {
		return
	}
	want := c.currentFunc.Return
	if want.Kind == types.Void || want.Kind == types.Unknown {
		return
	}
	if st.Value == nil {
		c.sink.Errorf(st.Line(), "missing return value: function %q returns %s", c.currentFunc.Name, want)
		return
	}
	if !Assignable(want, retType) {
		c.sink.Errorf(st.Line(), "cannot return value of type %s from function %q returning %s", retType, c.currentFunc.Name, want)
	}
}

func (c *Checker) checkTry(st *ast.TryStmt) {
	c.env.Push()
	c.checkStmts(st.Body)
	c.env.Pop()
	if st.Catch != nil {
		c.env.Push()
		c.env.Bind(st.Catch.ErrVar, types.Simple(types.Any), false, st.Line())
		c.checkStmts(st.Catch.Body)
		c.env.Pop()
	}
	if st.Finally != nil {
		c.env.Push()
		c.checkStmts(st.Finally)
		c.env.Pop()
	}
}

func (c *Checker) checkSwitch(st *ast.SwitchStmt) {
	c.inferExpr(st.Subject)
	for _, cs := range st.Cases {
		for _, v := range cs.Values {
			c.inferExpr(v)
		}
		c.env.Push()
		c.checkStmts(cs.Body)
		c.env.Pop()
	}
}

func (c *Checker) checkFuncDecl(f *ast.FuncDecl) {
	sig, ok := c.reg.LookupFunction(f.Name)
	if !ok {
		// registration should always have preceded this, but fall back to
		// a freshly-derived signature rather than skipping the body.
		sig = &types.FuncSig{Name: f.Name, Return: resolveType(f.Return)}
	}
	prevFunc, prevSaw := c.currentFunc, c.sawReturn
	c.currentFunc, c.sawReturn = sig, false

	c.env.Push()
	for _, p := range f.Params {
		c.env.Bind(p.Name, resolveType(p.Type), false, f.Line())
		if p.Default != nil {
			c.inferExpr(p.Default)
		}
	}
	c.checkStmts(f.Body)
	if sig.Return.Kind != types.Void && sig.Return.Kind != types.Unknown && !c.sawReturn {
		c.sink.Warnf(f.Line(), "function %q may not return a value on every path", f.Name)
	}
	c.env.Pop()

	c.currentFunc, c.sawReturn = prevFunc, prevSaw
}

// --- Expressions ---

func (c *Checker) inferExpr(e ast.Expr) types.CheckedType {
	switch x := e.(type) {
	case *ast.NumberExpr:
		if x.IsFloat {
			return c.set(e, types.Simple(types.F64))
		}
		return c.set(e, types.Simple(integerLiteralKind(x.Literal)))
	case *ast.BoolExpr:
		return c.set(e, types.Simple(types.Bool))
	case *ast.StringExpr:
		if !utf8util.Valid(x.Value) {
			c.sink.Errorf(x.Line(), "invalid UTF-8 sequence in string literal")
		}
		return c.set(e, types.Simple(types.String))
	case *ast.RuneExpr:
		return c.set(e, types.Simple(types.Rune))
	case *ast.NullExpr:
		return c.set(e, types.Simple(types.Null))
	case *ast.IdentExpr:
		if _, ok := c.env.Lookup(x.Name); !ok {
			if _, ok := c.reg.LookupFunction(x.Name); !ok {
				if c.opts.WarnImplicitAny {
					c.sink.Warnf(x.Line(), "identifier %q has unknown type", x.Name)
				}
			}
		}
		if sig, ok := c.reg.LookupFunction(x.Name); ok {
			if _, bound := c.env.Lookup(x.Name); !bound {
				return c.set(e, funcSigType(sig))
			}
		}
		return c.set(e, c.env.LookupType(x.Name))
	case *ast.BinaryExpr:
		return c.inferBinary(x)
	case *ast.UnaryExpr:
		return c.inferUnary(x)
	case *ast.TernaryExpr:
		c.inferExpr(x.Cond)
		t := c.inferExpr(x.Then)
		f := c.inferExpr(x.Else)
		return c.set(e, types.Common(t, f))
	case *ast.CallExpr:
		return c.inferCall(x)
	case *ast.AssignExpr:
		return c.inferAssign(x)
	case *ast.IndexExpr:
		return c.inferIndex(x)
	case *ast.IndexAssignExpr:
		return c.inferIndexAssign(x)
	case *ast.GetPropertyExpr:
		return c.inferGetProperty(x)
	case *ast.SetPropertyExpr:
		return c.inferSetProperty(x)
	case *ast.ArrayLiteralExpr:
		return c.inferArrayLiteral(x)
	case *ast.ObjectLiteralExpr:
		return c.inferObjectLiteral(x)
	case *ast.FunctionExpr:
		return c.inferFunctionExpr(x)
	case *ast.AwaitExpr:
		c.inferExpr(x.X)
		return c.set(e, types.Simple(types.Any))
	case *ast.StringInterpolationExpr:
		for _, p := range x.Parts {
			if p.Expr != nil {
				c.inferExpr(p.Expr)
			}
		}
		return c.set(e, types.Simple(types.String))
	case *ast.OptionalChainExpr:
		c.inferExpr(x.Object)
		for _, a := range x.Call {
			c.inferExpr(a)
		}
		return c.set(e, types.NullableOf(types.Simple(types.Any)))
	case *ast.NullCoalesceExpr:
		l := c.inferExpr(x.Left)
		r := c.inferExpr(x.Right)
		l.Nullable = false
		return c.set(e, types.Common(l, r))
	case *ast.IncDecExpr:
		t := c.inferExpr(x.Operand)
		if !t.IsNumeric() && t.Kind != types.Rune {
			c.sink.Errorf(x.Line(), "operator %s requires a numeric operand, got %s", x.Op, t)
		}
		return c.set(e, t)
	}
	return types.Simple(types.Any)
}

func funcSigType(sig *types.FuncSig) types.CheckedType {
	return types.FuncType(append([]types.CheckedType(nil), sig.ParamTypes...), sig.Return, sig.HasRest)
}

func (c *Checker) inferBinary(x *ast.BinaryExpr) types.CheckedType {
	l := c.inferExpr(x.Left)
	r := c.inferExpr(x.Right)
	switch x.Op {
	case "==", "!=", "<", ">", "<=", ">=":
		return c.set(x, types.Simple(types.Bool))
	case "&&", "||":
		return c.set(x, types.Simple(types.Bool))
	case "+":
		if l.Kind == types.String || r.Kind == types.String {
			return c.set(x, types.Simple(types.String))
		}
		if l.IsNumeric() && r.IsNumeric() {
			return c.set(x, types.Common(l, r))
		}
		if l.IsPermissive() || r.IsPermissive() {
			return c.set(x, types.Simple(types.Any))
		}
		c.sink.Errorf(x.Line(), "invalid operand types for +: %s and %s", l, r)
		return c.set(x, types.Simple(types.Any))
	case "-", "*", "%":
		if l.IsNumeric() && r.IsNumeric() {
			return c.set(x, types.Common(l, r))
		}
		if l.IsPermissive() || r.IsPermissive() {
			return c.set(x, types.Simple(types.Any))
		}
		c.sink.Errorf(x.Line(), "invalid operand types for %s: %s and %s", x.Op, l, r)
		return c.set(x, types.Simple(types.Any))
	case "/":
		if !(l.IsNumeric() || l.IsPermissive()) || !(r.IsNumeric() || r.IsPermissive()) {
			c.sink.Errorf(x.Line(), "invalid operand types for /: %s and %s", l, r)
		}
		return c.set(x, types.Simple(types.F64))
	case "&", "|", "^", "<<", ">>":
		lok := l.IsInteger() || l.IsPermissive()
		rok := r.IsInteger() || r.IsPermissive()
		if !lok || !rok {
			c.sink.Errorf(x.Line(), "bitwise operator %s requires integer operands, got %s and %s", x.Op, l, r)
			return c.set(x, types.Simple(types.Any))
		}
		// Left operand's type wins when integer, then the right's, then I32;
		// bitwise ops never widen.
		if l.IsInteger() {
			return c.set(x, l)
		}
		if r.IsInteger() {
			return c.set(x, r)
		}
		return c.set(x, types.Simple(types.I32))
	}
	return c.set(x, types.Simple(types.Any))
}

func (c *Checker) inferUnary(x *ast.UnaryExpr) types.CheckedType {
	t := c.inferExpr(x.Operand)
	switch x.Op {
	case "!":
		return c.set(x, types.Simple(types.Bool))
	case "-":
		if !t.IsNumeric() && !t.IsPermissive() {
			c.sink.Errorf(x.Line(), "unary - requires a numeric operand, got %s", t)
		}
		return c.set(x, t)
	case "~":
		if !t.IsInteger() && !t.IsPermissive() {
			c.sink.Errorf(x.Line(), "unary ~ requires an integer operand, got %s", t)
		}
		return c.set(x, t)
	}
	return c.set(x, types.Simple(types.Any))
}

func (c *Checker) inferCall(x *ast.CallExpr) types.CheckedType {
	argTypes := make([]types.CheckedType, len(x.Args))
	for i, a := range x.Args {
		argTypes[i] = c.inferExpr(a)
	}

	if id, ok := x.Func.(*ast.IdentExpr); ok {
		if _, shadowed := c.env.Lookup(id.Name); !shadowed {
			if ret, ok := builtinReturn(id.Name); ok {
				return c.set(x, ret)
			}
			if sig, ok := c.reg.LookupFunction(id.Name); ok {
				c.checkArgs(x, sig, argTypes)
				return c.set(x, sig.Return)
			}
		}
	}

	if gp, ok := x.Func.(*ast.GetPropertyExpr); ok {
		recv := c.inferExpr(gp.Object)
		if ret, ok := c.checkMethodCall(x, recv, gp.Name, argTypes); ok {
			return c.set(x, ret)
		}
	}

	fnType := c.inferExpr(x.Func)
	if fnType.Kind == types.Function {
		if fnType.Return != nil {
			return c.set(x, *fnType.Return)
		}
	}
	return c.set(x, types.Simple(types.Any))
}

func (c *Checker) checkArgs(x *ast.CallExpr, sig *types.FuncSig, argTypes []types.CheckedType) {
	if len(argTypes) < sig.NumRequired || (!sig.HasRest && len(argTypes) > len(sig.ParamTypes)) {
		c.sink.Errorf(x.Line(), "function %q expects %d argument(s), got %d", sig.Name, sig.NumRequired, len(argTypes))
		return
	}
	for i, at := range argTypes {
		if i >= len(sig.ParamTypes) {
			break // extra args absorbed by a rest parameter
		}
		if !Assignable(sig.ParamTypes[i], at) {
			c.sink.Errorf(x.Line(), "argument %d to %q: cannot use value of type %s as %s", i+1, sig.Name, at, sig.ParamTypes[i])
		}
	}
}

func (c *Checker) checkMethodCall(x *ast.CallExpr, recv types.CheckedType, name string, argTypes []types.CheckedType) (types.CheckedType, bool) {
	var table map[string]MethodSig
	switch recv.Kind {
	case types.Array:
		table = arrayMethods
	case types.String:
		table = stringMethods
	default:
		return types.CheckedType{}, false
	}
	sig, ok := table[name]
	if !ok {
		return types.CheckedType{}, false
	}
	if len(argTypes) < sig.MinArgs || (sig.MaxArgs >= 0 && len(argTypes) > sig.MaxArgs) {
		switch {
		case sig.MaxArgs < 0:
			c.sink.Errorf(x.Line(), "method %q expects at least %d argument(s), got %d", name, sig.MinArgs, len(argTypes))
		case sig.MinArgs == sig.MaxArgs:
			c.sink.Errorf(x.Line(), "method %q expects %d argument(s), got %d", name, sig.MinArgs, len(argTypes))
		default:
			c.sink.Errorf(x.Line(), "method %q expects between %d and %d argument(s), got %d", name, sig.MinArgs, sig.MaxArgs, len(argTypes))
		}
		return sig.Return(recv), true
	}
	c.checkMethodArgKinds(x, recv, name, sig, argTypes)
	return sig.Return(recv), true
}

// checkMethodArgKinds validates each argument's shape against the method
// catalogue's declared kinds: "int" wants an integer, "string"
// a string, "elem" the receiving array's element type, "fn" a function,
// "array" an array, "any" anything.
func (c *Checker) checkMethodArgKinds(x *ast.CallExpr, recv types.CheckedType, name string, sig MethodSig, argTypes []types.CheckedType) {
	for i, at := range argTypes {
		if len(sig.ArgKinds) == 0 {
			break
		}
		// trailing args of a variadic method repeat the last kind
		kind := sig.ArgKinds[len(sig.ArgKinds)-1]
		if i < len(sig.ArgKinds) {
			kind = sig.ArgKinds[i]
		}
		if at.IsPermissive() {
			continue
		}
		ok := true
		switch kind {
		case "int":
			ok = at.IsInteger() || at.Kind == types.Rune
		case "string":
			ok = at.Kind == types.String
		case "elem":
			if recv.Kind == types.Array && recv.Element != nil {
				ok = Assignable(*recv.Element, at)
			}
		case "fn":
			ok = at.Kind == types.Function
		case "array":
			ok = at.Kind == types.Array
		}
		if !ok {
			c.sink.Errorf(x.Line(), "argument %d to method %q: unexpected type %s", i+1, name, at)
		}
	}
}

func (c *Checker) inferAssign(x *ast.AssignExpr) types.CheckedType {
	valType := c.inferExpr(x.Value)
	id, ok := x.Target.(*ast.IdentExpr)
	if !ok {
		return c.set(x, valType)
	}
	b, found := c.env.Lookup(id.Name)
	if !found {
		c.env.Bind(id.Name, valType, false, x.Line())
		return c.set(x, valType)
	}
	if b.IsConst {
		c.sink.Errorf(x.Line(), "cannot assign to constant %q", id.Name)
	} else if !Assignable(b.Type, valType) {
		c.sink.Errorf(x.Line(), "cannot assign value of type %s to %q of type %s", valType, id.Name, b.Type)
	}
	return c.set(x, b.Type)
}

func (c *Checker) inferIndex(x *ast.IndexExpr) types.CheckedType {
	obj := c.inferExpr(x.Object)
	c.inferExpr(x.Index)
	switch obj.Kind {
	case types.Array:
		if obj.Element != nil {
			return c.set(x, *obj.Element)
		}
		return c.set(x, types.Simple(types.Any))
	case types.String:
		return c.set(x, types.Simple(types.Rune))
	}
	return c.set(x, types.Simple(types.Any))
}

func (c *Checker) inferIndexAssign(x *ast.IndexAssignExpr) types.CheckedType {
	obj := c.inferExpr(x.Object)
	c.inferExpr(x.Index)
	val := c.inferExpr(x.Value)
	if obj.Kind == types.Array && obj.Element != nil {
		if !Assignable(*obj.Element, val) {
			c.sink.Errorf(x.Line(), "cannot assign value of type %s into array of %s", val, *obj.Element)
		}
	}
	return c.set(x, val)
}

func (c *Checker) inferGetProperty(x *ast.GetPropertyExpr) types.CheckedType {
	obj := c.inferExpr(x.Object)
	if obj.Kind == types.Custom {
		if ft, _, ok := c.reg.FieldType(obj.TypeName, x.Name); ok {
			return c.set(x, ft)
		}
		c.sink.Warnf(x.Line(), "object %q has no field %q", obj.TypeName, x.Name)
	}
	return c.set(x, types.Simple(types.Any))
}

func (c *Checker) inferSetProperty(x *ast.SetPropertyExpr) types.CheckedType {
	obj := c.inferExpr(x.Object)
	val := c.inferExpr(x.Value)
	if obj.Kind == types.Custom {
		if ft, _, ok := c.reg.FieldType(obj.TypeName, x.Name); ok {
			if !Assignable(ft, val) {
				c.sink.Errorf(x.Line(), "cannot assign value of type %s to field %q of %s (%s)", val, x.Name, obj.TypeName, ft)
			}
		} else {
			c.sink.Warnf(x.Line(), "object %q has no field %q", obj.TypeName, x.Name)
		}
	}
	return c.set(x, val)
}

// inferArrayLiteral types a literal by its FIRST element only; later
// elements are still inferred (for their own diagnostics) but do not widen
// the element type.
func (c *Checker) inferArrayLiteral(x *ast.ArrayLiteralExpr) types.CheckedType {
	if len(x.Elements) == 0 {
		return c.set(x, types.ArrayOf(nil))
	}
	elem := c.inferExpr(x.Elements[0])
	for _, el := range x.Elements[1:] {
		c.inferExpr(el)
	}
	return c.set(x, types.ArrayOf(&elem))
}

func (c *Checker) inferObjectLiteral(x *ast.ObjectLiteralExpr) types.CheckedType {
	for _, f := range x.Fields {
		valType := c.inferExpr(f.Value)
		if x.TypeName != "" {
			if ft, _, ok := c.reg.FieldType(x.TypeName, f.Name); ok && !Assignable(ft, valType) {
				c.sink.Errorf(x.Line(), "field %q of %s: cannot assign value of type %s to %s", f.Name, x.TypeName, valType, ft)
			}
		}
	}
	if x.TypeName != "" {
		return c.set(x, types.CustomNamed(x.TypeName))
	}
	return c.set(x, types.Simple(types.Object))
}

func (c *Checker) inferFunctionExpr(x *ast.FunctionExpr) types.CheckedType {
	paramTypes := make([]types.CheckedType, len(x.Params))
	for i, p := range x.Params {
		paramTypes[i] = resolveType(p.Type)
	}
	retType := resolveType(x.Return)
	fnType := types.FuncType(paramTypes, retType, x.HasRest)

	if x.Name != "" {
		c.env.Bind(x.Name, fnType, false, x.Line())
	}

	sig := &types.FuncSig{Name: x.Name, ParamTypes: paramTypes, Return: retType, HasRest: x.HasRest, IsAsync: x.IsAsync}
	prevFunc, prevSaw := c.currentFunc, c.sawReturn
	c.currentFunc, c.sawReturn = sig, false

	c.env.Push()
	for i, p := range x.Params {
		c.env.Bind(p.Name, paramTypes[i], false, x.Line())
	}
	c.checkStmts(x.Body)
	c.env.Pop()

	c.currentFunc, c.sawReturn = prevFunc, prevSaw
	return c.set(x, fnType)
}
