package codegen

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
	"github.com/hemlock-lang/hemlock/internal/types"
	"github.com/hemlock-lang/hemlock/internal/utf8util"
)

// Lowered is the result of lowering one expression: either a boxed
// HmlValue (Native == false) or a raw C scalar of the given native kind,
// produced whenever every operand on a path was itself native.
type Lowered struct {
	Expr   CExpr
	Native bool
	Kind   types.Kind
}

func boxed(e CExpr) Lowered                 { return Lowered{Expr: e} }
func native(e CExpr, k types.Kind) Lowered  { return Lowered{Expr: e, Native: true, Kind: k} }
func fnCall(name string, args ...CExpr) *CCall {
	return &CCall{Func: &CIdent{Name: name}, Args: args}
}

// Box forces l into its boxed HmlValue representation, wrapping a native
// scalar in the matching hml_val_* constructor.
func Box(l Lowered) CExpr {
	if !l.Native {
		return l.Expr
	}
	return fnCall(boxCtor(l.Kind), l.Expr)
}

func boxCtor(k types.Kind) string {
	switch k {
	case types.I64:
		return runtimeabi.FnValI64
	case types.U32:
		return runtimeabi.FnValU32
	case types.U64:
		return runtimeabi.FnValU64
	case types.F32:
		return runtimeabi.FnValF32
	case types.F64:
		return runtimeabi.FnValF64
	case types.Bool:
		return runtimeabi.FnValBool
	case types.Rune:
		return runtimeabi.FnValRune
	default:
		return runtimeabi.FnValI32
	}
}

// Unbox forces l into a native C scalar of kind want, calling the
// runtime's coercion helper if l is still boxed.
func Unbox(l Lowered, want types.Kind) CExpr {
	if l.Native && l.Kind == want {
		return l.Expr
	}
	if l.Native {
		return &CCast{Type: NativeCType(want), X: l.Expr}
	}
	switch want {
	case types.I64:
		return fnCall(runtimeabi.FnToI64, l.Expr)
	case types.F32, types.F64:
		return fnCall(runtimeabi.FnToF64, l.Expr)
	case types.Bool:
		return fnCall(runtimeabi.FnToBool, l.Expr)
	default:
		return fnCall(runtimeabi.FnToI32, l.Expr)
	}
}

// hoist guarantees a boxed expression is referenceable more than once
// without re-evaluation, binding it to a prelude temporary unless it is
// already a bare identifier.
func hoist(c *Context, e CExpr) CExpr {
	if _, ok := e.(*CIdent); ok {
		return e
	}
	t := c.NewTemp()
	c.AddPrelude(&CVarDecl{Type: ValueType, Name: t, Init: e})
	return &CIdent{Name: t}
}

// LowerExpr lowers a source expression to its output-AST form.
func LowerExpr(c *Context, e ast.Expr) Lowered {
	switch x := e.(type) {
	case *ast.NumberExpr:
		if x.IsFloat {
			return native(&CFloatLit{Value: x.Literal}, types.F64)
		}
		return native(&CIntLit{Value: x.Literal}, integerLiteralKind(x.Literal))
	case *ast.BoolExpr:
		v := "false"
		if x.Value {
			v = "true"
		}
		return native(&CIdent{Name: v}, types.Bool)
	case *ast.StringExpr:
		return boxed(fnCall(runtimeabi.FnValString, &CStringLit{Value: x.Value}))
	case *ast.RuneExpr:
		return boxed(fnCall(runtimeabi.FnValRune, &CIntLit{Value: fmt.Sprintf("%d", x.Value)}))
	case *ast.NullExpr:
		return boxed(fnCall(runtimeabi.FnValNull))
	case *ast.IdentExpr:
		return lowerIdent(c, x)
	case *ast.BinaryExpr:
		return lowerBinary(c, x)
	case *ast.UnaryExpr:
		return lowerUnary(c, x)
	case *ast.TernaryExpr:
		cond := condExpr(c, LowerExpr(c, x.Cond))
		then := LowerExpr(c, x.Then)
		els := LowerExpr(c, x.Else)
		if then.Native && els.Native && then.Kind == els.Kind {
			return native(&CTernary{Cond: cond, Then: then.Expr, Else: els.Expr}, then.Kind)
		}
		return boxed(&CTernary{Cond: cond, Then: Box(then), Else: Box(els)})
	case *ast.CallExpr:
		return lowerCall(c, x)
	case *ast.AssignExpr:
		return lowerAssign(c, x)
	case *ast.IndexExpr:
		return lowerIndex(c, x)
	case *ast.IndexAssignExpr:
		return lowerIndexAssign(c, x)
	case *ast.GetPropertyExpr:
		return lowerGetProperty(c, x)
	case *ast.SetPropertyExpr:
		obj := Box(LowerExpr(c, x.Object))
		val := Box(LowerExpr(c, x.Value))
		return boxed(fnCall(runtimeabi.FnObjectSetField, obj, &CStringLit{Value: x.Name}, val))
	case *ast.ArrayLiteralExpr:
		return boxed(lowerArrayLiteral(c, x))
	case *ast.ObjectLiteralExpr:
		return boxed(lowerObjectLiteral(c, x))
	case *ast.FunctionExpr:
		return boxed(lowerClosureLiteral(c, x))
	case *ast.AwaitExpr:
		return boxed(fnCall(runtimeabi.FnJoin, Box(LowerExpr(c, x.X))))
	case *ast.StringInterpolationExpr:
		return boxed(lowerInterpolation(c, x))
	case *ast.OptionalChainExpr:
		return lowerOptionalChain(c, x)
	case *ast.NullCoalesceExpr:
		left := hoist(c, Box(LowerExpr(c, x.Left)))
		right := Box(LowerExpr(c, x.Right))
		return boxed(&CTernary{
			Cond: fnCall(runtimeabi.FnIsNull, left),
			Then: right,
			Else: left,
		})
	case *ast.IncDecExpr:
		return lowerIncDec(c, x)
	}
	return boxed(fnCall(runtimeabi.FnValNull))
}

func lowerIdent(c *Context, x *ast.IdentExpr) Lowered {
	if k, ok := c.UnboxedKind(x.Name); ok {
		return native(&CIdent{Name: sanitizeCName(x.Name)}, k)
	}
	if _, local := c.localScope[x.Name]; !local || c.atTopLevel {
		if mangled, ok := c.importAliases[x.Name]; ok {
			return boxed(&CIdent{Name: mangled})
		}
		if c.globalVars[x.Name] {
			return boxed(&CIdent{Name: c.Mangle(x.Name)})
		}
		// A bare reference to a top-level function is a function value.
		if sig, ok := lookupFunc(c, x.Name); ok {
			return boxed(functionValue(c, x.Name, sig))
		}
	}
	return boxed(&CIdent{Name: sanitizeCName(x.Name)})
}

func lookupFunc(c *Context, name string) (*types.FuncSig, bool) {
	if c.Info == nil {
		return nil, false
	}
	return c.Info.LookupFunction(name)
}

// functionValue wraps a top-level function in the runtime's closure value
// representation: no captures means a plain function-pointer value
// carrying the arity metadata.
func functionValue(c *Context, name string, sig *types.FuncSig) CExpr {
	ctor := runtimeabi.FnValFunction
	if sig.HasRest {
		ctor = runtimeabi.FnValFunctionRest
	}
	return fnCall(ctor,
		&CIdent{Name: c.Mangle(name)},
		&CIntLit{Value: fmt.Sprintf("%d", len(sig.ParamTypes))},
		&CIntLit{Value: fmt.Sprintf("%d", sig.NumRequired)},
	)
}

// condExpr renders a Lowered as a C truth value: native bools pass
// through, boxed values go through the runtime's truthiness coercion.
func condExpr(c *Context, l Lowered) CExpr {
	if l.Native {
		return l.Expr
	}
	return fnCall(runtimeabi.FnToBool, l.Expr)
}

// truthy wraps an already-boxed condition in the runtime truthiness test.
func truthy(e CExpr) CExpr {
	return fnCall(runtimeabi.FnToBool, e)
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

// lowerBinary lowers one binary expression, applying (in order) the
// string-concat chain fuse, integer constant folding, the statically-typed
// native fast path, then the runtime's typed-intrinsic cascade
// (hml_both_i32 ? i32 op : hml_both_i64 ? i64 op : hml_binary_op).
func lowerBinary(c *Context, x *ast.BinaryExpr) Lowered {
	if c.Optimize && x.Op == "+" {
		if chain := flattenAddChain(x); len(chain) >= 3 && len(chain) <= 5 && chainHasStringLiteral(chain) {
			return boxed(lowerConcatChain(c, chain))
		}
	}
	if c.Optimize {
		if folded, ok := foldConstantBinary(x); ok {
			return folded
		}
	}

	switch x.Op {
	case "&&", "||":
		return lowerShortCircuit(c, x)
	}

	l := LowerExpr(c, x.Left)

	// String `+`: either side statically a string takes the concat path.
	if x.Op == "+" && (c.TypeOf(x.Left).Kind == types.String || c.TypeOf(x.Right).Kind == types.String) {
		r := LowerExpr(c, x.Right)
		return boxed(fnCall(runtimeabi.FnStringConcat, Box(l), Box(r)))
	}

	r := LowerExpr(c, x.Right)

	// Both operands already live in native slots: plain C operator.
	if l.Native && r.Native && l.Kind == r.Kind && isFastPathOp(x.Op) {
		return native(&CBinary{Op: x.Op, Left: l.Expr, Right: r.Expr}, resultKind(x.Op, l.Kind))
	}

	// Statically-known matching integer widths call the width's intrinsic
	// directly, no runtime tag test.
	lk, rk := c.TypeOf(x.Left).Kind, c.TypeOf(x.Right).Kind
	if fn, ok := runtimeabi.I32Intrinsics[x.Op]; ok && lk == types.I32 && rk == types.I32 {
		return boxed(fnCall(fn, Box(l), Box(r)))
	}
	if fn, ok := runtimeabi.I64Intrinsics[x.Op]; ok && lk == types.I64 && rk == types.I64 {
		return boxed(fnCall(fn, Box(l), Box(r)))
	}

	opName, generic := runtimeabi.BinaryOpName[x.Op]
	if !generic {
		return boxed(fnCall(runtimeabi.FnValNull))
	}

	// Division is always F64 and has no typed intrinsic.
	i32fn, hasI32 := runtimeabi.I32Intrinsics[x.Op]
	if !hasI32 {
		return boxed(fnCall(runtimeabi.FnBinaryOp, &CIdent{Name: opName}, Box(l), Box(r)))
	}
	i64fn := runtimeabi.I64Intrinsics[x.Op]

	a := hoist(c, Box(l))
	b := hoist(c, Box(r))
	return boxed(&CTernary{
		Cond: fnCall(runtimeabi.FnBothI32, a, b),
		Then: fnCall(i32fn, a, b),
		Else: &CTernary{
			Cond: fnCall(runtimeabi.FnBothI64, a, b),
			Then: fnCall(i64fn, a, b),
			Else: fnCall(runtimeabi.FnBinaryOp, &CIdent{Name: opName}, a, b),
		},
	})
}

// lowerShortCircuit lowers && and || as a branch, not eager evaluation:
// the right operand (and any setup it needs) only runs when the left
// didn't already decide the result.
func lowerShortCircuit(c *Context, x *ast.BinaryExpr) Lowered {
	l := LowerExpr(c, x.Left)

	c.PushPrelude()
	r := LowerExpr(c, x.Right)
	rPre := c.PopPrelude()

	t := c.NewTemp()
	c.AddPrelude(&CVarDecl{Type: "bool", Name: t})
	evalRight := append(rPre, &CExprStmt{X: &CAssign{Target: &CIdent{Name: t}, Value: condExpr(c, r), Op: "="}})
	shortOut := func(v string) []CStmt {
		return []CStmt{&CExprStmt{X: &CAssign{Target: &CIdent{Name: t}, Value: &CIdent{Name: v}, Op: "="}}}
	}
	if x.Op == "&&" {
		c.AddPrelude(&CIf{Cond: condExpr(c, l), Then: evalRight, Else: shortOut("false")})
	} else {
		c.AddPrelude(&CIf{Cond: condExpr(c, l), Then: shortOut("true"), Else: evalRight})
	}
	return native(&CIdent{Name: t}, types.Bool)
}

func isFastPathOp(op string) bool {
	switch op {
	case "+", "-", "*", "%", "<", ">", "<=", ">=", "==", "!=", "&", "|", "^", "<<", ">>":
		return true
	}
	return false
}

func resultKind(op string, operandKind types.Kind) types.Kind {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=":
		return types.Bool
	}
	return operandKind
}

func lowerUnary(c *Context, x *ast.UnaryExpr) Lowered {
	if c.Optimize {
		if folded, ok := foldConstantUnary(x); ok {
			return folded
		}
	}
	operand := LowerExpr(c, x.Operand)
	switch x.Op {
	case "!":
		return native(&CUnary{Op: "!", Operand: condExpr(c, operand)}, types.Bool)
	case "-":
		if operand.Native {
			return native(&CUnary{Op: "-", Operand: operand.Expr}, operand.Kind)
		}
		return boxed(fnCall(runtimeabi.FnUnaryOp, &CIdent{Name: runtimeabi.OpNeg}, operand.Expr))
	case "~":
		if operand.Native && types.IsIntegerKind(operand.Kind) {
			return native(&CUnary{Op: "~", Operand: operand.Expr}, operand.Kind)
		}
		return boxed(fnCall(runtimeabi.FnUnaryOp, &CIdent{Name: runtimeabi.OpBitNot}, Box(operand)))
	}
	return boxed(fnCall(runtimeabi.FnValNull))
}

// lowerIncDec: postfix copies the old value out before mutating, prefix
// mutates first. Boxed
// identifier targets go through the i32 intrinsic with a generic fallback;
// indexed and property targets read-modify-write through the container
// accessors.
func lowerIncDec(c *Context, x *ast.IncDecExpr) Lowered {
	addOp, i32fn := runtimeabi.OpAdd, runtimeabi.I32Intrinsics["+"]
	if x.Op == "--" {
		addOp, i32fn = runtimeabi.OpSub, runtimeabi.I32Intrinsics["-"]
	}
	one := fnCall(runtimeabi.FnValI32, &CIntLit{Value: "1"})
	step := func(cur CExpr) CExpr {
		return &CTernary{
			Cond: fnCall(runtimeabi.FnBothI32, cur, one),
			Then: fnCall(i32fn, cur, one),
			Else: fnCall(runtimeabi.FnBinaryOp, &CIdent{Name: addOp}, cur, one),
		}
	}

	switch target := x.Operand.(type) {
	case *ast.IdentExpr:
		operand := LowerExpr(c, target)
		if operand.Native {
			return native(&CUnary{Op: x.Op, Operand: operand.Expr, Postfix: !x.Prefix}, operand.Kind)
		}
		name := operand.Expr
		var old CExpr
		if !x.Prefix {
			t := c.NewTemp()
			c.AddPrelude(&CVarDecl{Type: ValueType, Name: t, Init: name})
			old = &CIdent{Name: t}
		}
		c.AddPrelude(&CExprStmt{X: &CAssign{Target: name, Value: step(name), Op: "="}})
		if envVar, slot, captured := capturedSlotForIdent(c, target.Name); captured {
			c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnClosureEnvSet,
				&CIdent{Name: envVar}, &CIntLit{Value: fmt.Sprintf("%d", slot)}, name)})
		}
		if x.Prefix {
			return boxed(name)
		}
		return boxed(old)
	case *ast.IndexExpr:
		obj := hoist(c, Box(LowerExpr(c, target.Object)))
		idx := Unbox(LowerExpr(c, target.Index), types.I32)
		idxT := c.NewTemp()
		c.AddPrelude(&CVarDecl{Type: "int32_t", Name: idxT, Init: idx})
		idxRef := &CIdent{Name: idxT}
		oldT := c.NewTemp()
		c.AddPrelude(&CVarDecl{Type: ValueType, Name: oldT, Init: fnCall(runtimeabi.FnArrayGet, obj, idxRef)})
		newT := c.NewTemp()
		c.AddPrelude(&CVarDecl{Type: ValueType, Name: newT, Init: step(&CIdent{Name: oldT})})
		c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnArraySet, obj, idxRef, &CIdent{Name: newT})})
		if x.Prefix {
			return boxed(&CIdent{Name: newT})
		}
		return boxed(&CIdent{Name: oldT})
	case *ast.GetPropertyExpr:
		obj := hoist(c, Box(LowerExpr(c, target.Object)))
		name := &CStringLit{Value: target.Name}
		oldT := c.NewTemp()
		c.AddPrelude(&CVarDecl{Type: ValueType, Name: oldT, Init: fnCall(runtimeabi.FnObjectGetFieldRequired, obj, name)})
		newT := c.NewTemp()
		c.AddPrelude(&CVarDecl{Type: ValueType, Name: newT, Init: step(&CIdent{Name: oldT})})
		c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnObjectSetField, obj, name, &CIdent{Name: newT})})
		if x.Prefix {
			return boxed(&CIdent{Name: newT})
		}
		return boxed(&CIdent{Name: oldT})
	}
	// The checker has already rejected any other operand shape.
	return boxed(fnCall(runtimeabi.FnRuntimeError, &CStringLit{Value: "Invalid operand for ++"}))
}

func capturedSlotForIdent(c *Context, name string) (string, int, bool) {
	return c.CapturedSlot(name)
}

func lowerAssign(c *Context, x *ast.AssignExpr) Lowered {
	id, isIdent := x.Target.(*ast.IdentExpr)
	// In-place string append: `x = x + "literal"` promotes to a single
	// hml_string_append_inplace call, which the runtime fast-paths to a
	// mutating append when x's refcount is 1 instead of allocating a fresh
	// concatenated string.
	if isIdent && c.Optimize {
		if bin, ok := x.Value.(*ast.BinaryExpr); ok && bin.Op == "+" {
			if lhsID, ok := bin.Left.(*ast.IdentExpr); ok && lhsID.Name == id.Name {
				if _, isLit := bin.Right.(*ast.StringExpr); isLit {
					if _, unboxedTarget := c.UnboxedKind(id.Name); !unboxedTarget {
						rhs := Box(LowerExpr(c, bin.Right))
						target := Box(lowerIdent(c, id))
						return boxed(fnCall(runtimeabi.FnStringAppendInplace, &CAddrOf{X: target}, rhs))
					}
				}
			}
		}
	}

	val := LowerExpr(c, x.Value)
	if !isIdent {
		return boxed(Box(val))
	}
	if k, ok := c.UnboxedKind(id.Name); ok {
		return native(&CAssign{Target: &CIdent{Name: sanitizeCName(id.Name)}, Value: Unbox(val, k), Op: "="}, k)
	}

	target := Box(lowerIdent(c, id))
	t := c.NewTemp()
	c.AddPrelude(&CVarDecl{Type: ValueType, Name: t, Init: Box(val)})
	c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnRetainIfNeeded, &CIdent{Name: t})})
	c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, target)})
	c.AddPrelude(&CExprStmt{X: &CAssign{Target: target, Value: &CIdent{Name: t}, Op: "="}})
	if envVar, slot, captured := c.CapturedSlot(id.Name); captured {
		c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnClosureEnvSet,
			&CIdent{Name: envVar}, &CIntLit{Value: fmt.Sprintf("%d", slot)}, target)})
	}
	return boxed(target)
}

func lowerIndex(c *Context, x *ast.IndexExpr) Lowered {
	objL := LowerExpr(c, x.Object)
	idxL := LowerExpr(c, x.Index)
	objType := c.TypeOf(x.Object).Kind
	idx := Unbox(idxL, types.I32)

	switch objType {
	case types.Array:
		// Fast path: an array indexed by a native i32 key skips the generic
		// dispatch-on-.type path.
		if c.Optimize && idxL.Native && (idxL.Kind == types.I32 || idxL.Kind == types.Integer) {
			return boxed(fnCall(runtimeabi.FnArrayGetI32Fast, Box(objL), idx))
		}
		return boxed(fnCall(runtimeabi.FnArrayGet, Box(objL), idx))
	case types.String:
		return boxed(fnCall(runtimeabi.FnStringIndex, Box(objL), idx))
	case types.Buffer:
		return boxed(fnCall(runtimeabi.FnBufferGet, Box(objL), idx))
	case types.Ptr:
		return boxed(fnCall(runtimeabi.FnPtrIndex, Box(objL), idx))
	}

	obj := hoist(c, Box(objL))
	return boxed(indexDispatch(obj, idx))
}

// indexDispatch is the runtime-tag dispatch an index expression falls back
// to when the container's static type is unknown.
func indexDispatch(obj CExpr, idx CExpr) CExpr {
	tag := func(t string) CExpr {
		return &CBinary{Op: "==", Left: &CMember{X: obj, Name: "type"}, Right: &CIdent{Name: t}}
	}
	return &CTernary{
		Cond: tag(runtimeabi.TagArray),
		Then: fnCall(runtimeabi.FnArrayGet, obj, idx),
		Else: &CTernary{
			Cond: tag(runtimeabi.TagString),
			Then: fnCall(runtimeabi.FnStringIndex, obj, idx),
			Else: &CTernary{
				Cond: tag(runtimeabi.TagBuffer),
				Then: fnCall(runtimeabi.FnBufferGet, obj, idx),
				Else: fnCall(runtimeabi.FnPtrIndex, obj, idx),
			},
		},
	}
}

func lowerIndexAssign(c *Context, x *ast.IndexAssignExpr) Lowered {
	objL := LowerExpr(c, x.Object)
	idxL := LowerExpr(c, x.Index)
	idx := Unbox(idxL, types.I32)
	val := Box(LowerExpr(c, x.Value))

	switch c.TypeOf(x.Object).Kind {
	case types.Array:
		if c.Optimize && idxL.Native && (idxL.Kind == types.I32 || idxL.Kind == types.Integer) {
			return boxed(fnCall(runtimeabi.FnArraySetI32Fast, Box(objL), idx, val))
		}
		return boxed(fnCall(runtimeabi.FnArraySet, Box(objL), idx, val))
	case types.Buffer:
		return boxed(fnCall(runtimeabi.FnBufferSet, Box(objL), idx, val))
	}
	return boxed(fnCall(runtimeabi.FnArraySet, Box(objL), idx, val))
}

// builtinProperty maps a built-in property name to its typed accessor and
// the runtime tag it applies to.
type builtinProperty struct {
	Tag    string
	Fn     string
	BoxI32 bool // accessor returns a raw int32 that must be re-boxed
}

var builtinProperties = map[string][]builtinProperty{
	"length": {
		{Tag: runtimeabi.TagString, Fn: runtimeabi.FnStringLength, BoxI32: true},
		{Tag: runtimeabi.TagArray, Fn: runtimeabi.FnArrayLength, BoxI32: true},
	},
	"byte_length": {{Tag: runtimeabi.TagString, Fn: runtimeabi.FnStringByteLength, BoxI32: true}},
	"capacity":    {{Tag: runtimeabi.TagBuffer, Fn: runtimeabi.FnBufferCapacity, BoxI32: true}},
	"fd":          {{Tag: runtimeabi.TagSocket, Fn: runtimeabi.FnSocketFd, BoxI32: true}},
	"address":     {{Tag: runtimeabi.TagSocket, Fn: runtimeabi.FnSocketAddress}},
	"port":        {{Tag: runtimeabi.TagSocket, Fn: runtimeabi.FnSocketPort, BoxI32: true}},
	"closed":      {{Tag: runtimeabi.TagSocket, Fn: runtimeabi.FnSocketClosed}},
}

func lowerGetProperty(c *Context, x *ast.GetPropertyExpr) Lowered {
	objL := LowerExpr(c, x.Object)
	objKind := c.TypeOf(x.Object).Kind

	// Statically-typed receivers skip the tag dispatch entirely.
	switch {
	case objKind == types.String && x.Name == "length":
		return native(fnCall(runtimeabi.FnStringLength, Box(objL)), types.I32)
	case objKind == types.String && x.Name == "byte_length":
		return native(fnCall(runtimeabi.FnStringByteLength, Box(objL)), types.I32)
	case objKind == types.Array && x.Name == "length":
		return native(fnCall(runtimeabi.FnArrayLength, Box(objL)), types.I32)
	case objKind == types.Buffer && x.Name == "capacity":
		return native(fnCall(runtimeabi.FnBufferCapacity, Box(objL)), types.I32)
	}

	if variants, ok := builtinProperties[x.Name]; ok && objKind != types.Custom && objKind != types.Object {
		obj := hoist(c, Box(objL))
		// Fallback: an ordinary object may still carry a same-named field,
		// required-get throws if it does not (interpreter parity).
		result := fnCall(runtimeabi.FnObjectGetFieldRequired, obj, &CStringLit{Value: x.Name})
		var out CExpr = result
		for i := len(variants) - 1; i >= 0; i-- {
			v := variants[i]
			var accessor CExpr = fnCall(v.Fn, obj)
			if v.BoxI32 {
				accessor = fnCall(runtimeabi.FnValI32, accessor)
			}
			out = &CTernary{
				Cond: &CBinary{Op: "==", Left: &CMember{X: obj, Name: "type"}, Right: &CIdent{Name: v.Tag}},
				Then: accessor,
				Else: out,
			}
		}
		return boxed(out)
	}

	return boxed(fnCall(runtimeabi.FnObjectGetFieldRequired, Box(objL), &CStringLit{Value: x.Name}))
}

func lowerOptionalChain(c *Context, x *ast.OptionalChainExpr) Lowered {
	obj := hoist(c, Box(LowerExpr(c, x.Object)))
	nullCheck := fnCall(runtimeabi.FnIsNull, obj)
	if x.Call != nil {
		args := []CExpr{obj, &CIntLit{Value: fmt.Sprintf("%d", len(x.Call))}}
		for _, a := range x.Call {
			args = append(args, Box(LowerExpr(c, a)))
		}
		return boxed(&CTernary{
			Cond: nullCheck,
			Then: fnCall(runtimeabi.FnValNull),
			Else: &CCall{Func: &CIdent{Name: runtimeabi.FnCallFunction}, Args: args},
		})
	}
	return boxed(&CTernary{
		Cond: nullCheck,
		Then: fnCall(runtimeabi.FnValNull),
		Else: fnCall(runtimeabi.FnObjectGetField, obj, &CStringLit{Value: x.Name}),
	})
}

// arrayMethodFns / stringMethodFns name the built-in methods that have a
// dedicated runtime symbol; everything else in the catalogue goes through
// the generic hml_call_method lookup.
var arrayMethodFns = map[string]string{
	"push": runtimeabi.FnArrayPush,
}

var stringMethodFns = map[string]string{
	"char_at": runtimeabi.FnStringRuneAt,
}

func lowerCall(c *Context, x *ast.CallExpr) Lowered {
	if id, ok := x.Func.(*ast.IdentExpr); ok {
		if _, local := c.localScope[id.Name]; !local || c.atTopLevel {
			if l, ok := lowerBuiltinCall(c, id.Name, x.Args); ok {
				return l
			}
			if _, isImport := c.importAliases[id.Name]; !isImport && !c.globalVars[id.Name] {
				if sig, ok := lookupFunc(c, id.Name); ok {
					return boxed(lowerDirectCall(c, id.Name, sig, x.Args))
				}
			}
		}
	}

	if gp, ok := x.Func.(*ast.GetPropertyExpr); ok {
		if l, ok := lowerMethodCall(c, gp, x.Args); ok {
			return l
		}
	}

	fn := Box(LowerExpr(c, x.Func))
	args := []CExpr{fn, &CIntLit{Value: fmt.Sprintf("%d", len(x.Args))}}
	for _, a := range x.Args {
		args = append(args, Box(LowerExpr(c, a)))
	}
	return boxed(&CCall{Func: &CIdent{Name: runtimeabi.FnCallFunction}, Args: args})
}

// lowerDirectCall emits a plain C call to a registered top-level function,
// padding omitted optional trailing arguments with null so the callee's
// parameter list is always fully populated.
func lowerDirectCall(c *Context, name string, sig *types.FuncSig, args []ast.Expr) CExpr {
	out := make([]CExpr, 0, len(sig.ParamTypes))
	for i := 0; i < len(sig.ParamTypes); i++ {
		if i < len(args) {
			out = append(out, Box(LowerExpr(c, args[i])))
		} else {
			out = append(out, fnCall(runtimeabi.FnValNull))
		}
	}
	// Rest arguments beyond the declared parameters pass through verbatim.
	for i := len(sig.ParamTypes); i < len(args); i++ {
		out = append(out, Box(LowerExpr(c, args[i])))
	}
	return &CCall{Func: &CIdent{Name: c.Mangle(name)}, Args: out}
}

func lowerBuiltinCall(c *Context, name string, args []ast.Expr) (Lowered, bool) {
	switch name {
	case "print", "puts":
		if len(args) == 1 {
			return boxed(fnCall(runtimeabi.FnPrint, Box(LowerExpr(c, args[0])))), true
		}
	case "typeof":
		if len(args) == 1 {
			return boxed(fnCall(runtimeabi.FnTypeOf, Box(LowerExpr(c, args[0])))), true
		}
	case "len":
		if len(args) == 1 {
			return lowerLen(c, args[0]), true
		}
	case "i8", "i16", "i32":
		if len(args) == 1 {
			return native(fnCall(runtimeabi.FnToI32, Box(LowerExpr(c, args[0]))), types.I32), true
		}
	case "i64":
		if len(args) == 1 {
			return native(fnCall(runtimeabi.FnToI64, Box(LowerExpr(c, args[0]))), types.I64), true
		}
	case "f32", "f64":
		if len(args) == 1 {
			return native(fnCall(runtimeabi.FnToF64, Box(LowerExpr(c, args[0]))), types.F64), true
		}
	case "spawn":
		if len(args) >= 1 {
			out := []CExpr{Box(LowerExpr(c, args[0])), &CIntLit{Value: fmt.Sprintf("%d", len(args)-1)}}
			for _, a := range args[1:] {
				out = append(out, Box(LowerExpr(c, a)))
			}
			return boxed(&CCall{Func: &CIdent{Name: runtimeabi.FnSpawn}, Args: out}), true
		}
	}
	return Lowered{}, false
}

// lowerLen folds len over a string literal at compile time (codepoints,
// not bytes) and otherwise picks the statically-typed accessor, falling
// back to a runtime tag test.
func lowerLen(c *Context, arg ast.Expr) Lowered {
	if lit, ok := arg.(*ast.StringExpr); ok && c.Optimize {
		return native(&CIntLit{Value: fmt.Sprintf("%d", utf8util.CodepointCount(lit.Value))}, types.I32)
	}
	l := LowerExpr(c, arg)
	switch c.TypeOf(arg).Kind {
	case types.String:
		return native(fnCall(runtimeabi.FnStringLength, Box(l)), types.I32)
	case types.Array:
		return native(fnCall(runtimeabi.FnArrayLength, Box(l)), types.I32)
	}
	obj := hoist(c, Box(l))
	return boxed(&CTernary{
		Cond: &CBinary{Op: "==", Left: &CMember{X: obj, Name: "type"}, Right: &CIdent{Name: runtimeabi.TagString}},
		Then: fnCall(runtimeabi.FnValI32, fnCall(runtimeabi.FnStringLength, obj)),
		Else: fnCall(runtimeabi.FnValI32, fnCall(runtimeabi.FnArrayLength, obj)),
	})
}

// lowerMethodCall dispatches a built-in Array/String method to its
// dedicated runtime symbol when one exists, otherwise to the generic
// by-name method lookup. Unknown receivers always use the generic path.
func lowerMethodCall(c *Context, gp *ast.GetPropertyExpr, args []ast.Expr) (Lowered, bool) {
	recvKind := c.TypeOf(gp.Object).Kind
	if recvKind == types.Custom || recvKind == types.Object {
		return Lowered{}, false // a user object's field may hold a closure; generic call path
	}

	var table map[string]string
	switch recvKind {
	case types.Array:
		table = arrayMethodFns
	case types.String:
		table = stringMethodFns
	default:
		table = nil
	}
	if fn, ok := table[gp.Name]; ok {
		obj := hoist(c, Box(LowerExpr(c, gp.Object)))
		if recvKind == types.Array && gp.Name == "push" {
			// push is variadic; each element is one runtime append.
			for i := 0; i < len(args)-1; i++ {
				c.AddPrelude(&CExprStmt{X: fnCall(runtimeabi.FnArrayPush, obj, Box(LowerExpr(c, args[i])))})
			}
			last := Box(LowerExpr(c, args[len(args)-1]))
			return boxed(fnCall(runtimeabi.FnArrayPush, obj, last)), true
		}
		out := []CExpr{obj}
		for _, a := range args {
			out = append(out, Unbox(LowerExpr(c, a), types.I32))
		}
		return boxed(&CCall{Func: &CIdent{Name: fn}, Args: out}), true
	}
	if recvKind == types.Array || recvKind == types.String {
		out := []CExpr{Box(LowerExpr(c, gp.Object)), &CStringLit{Value: gp.Name}, &CIntLit{Value: fmt.Sprintf("%d", len(args))}}
		for _, a := range args {
			out = append(out, Box(LowerExpr(c, a)))
		}
		return boxed(&CCall{Func: &CIdent{Name: runtimeabi.FnCallMethod}, Args: out}), true
	}
	return Lowered{}, false
}

func lowerArrayLiteral(c *Context, x *ast.ArrayLiteralExpr) CExpr {
	args := make([]CExpr, len(x.Elements)+1)
	args[0] = &CIntLit{Value: fmt.Sprintf("%d", len(x.Elements))}
	for i, el := range x.Elements {
		args[i+1] = Box(LowerExpr(c, el))
	}
	return &CCall{Func: &CIdent{Name: runtimeabi.FnValArray}, Args: args}
}

func lowerObjectLiteral(c *Context, x *ast.ObjectLiteralExpr) CExpr {
	args := make([]CExpr, 0, len(x.Fields)*2+2)
	args = append(args, &CStringLit{Value: x.TypeName}, &CIntLit{Value: fmt.Sprintf("%d", len(x.Fields))})
	for _, f := range x.Fields {
		args = append(args, &CStringLit{Value: f.Name}, Box(LowerExpr(c, f.Value)))
	}
	return &CCall{Func: &CIdent{Name: runtimeabi.FnValObject}, Args: args}
}

func lowerInterpolation(c *Context, x *ast.StringInterpolationExpr) CExpr {
	var result CExpr
	for _, p := range x.Parts {
		var piece CExpr
		if p.Expr != nil {
			piece = fnCall(runtimeabi.FnToString, Box(LowerExpr(c, p.Expr)))
		} else {
			piece = fnCall(runtimeabi.FnValString, &CStringLit{Value: p.Literal})
		}
		if result == nil {
			result = piece
			continue
		}
		result = fnCall(runtimeabi.FnStringConcat, result, piece)
	}
	if result == nil {
		return fnCall(runtimeabi.FnValString, &CStringLit{Value: ""})
	}
	return result
}

// flattenAddChain unwraps a left-associative `+` chain ((a+b)+c)+d into its
// leaf operands in source order, stopping as soon as the left side is no
// longer itself a `+` BinaryExpr. Non-`+` operators (e.g. an inner `a-b`)
// are treated as an opaque leaf rather than folding across mixed ops.
func flattenAddChain(x *ast.BinaryExpr) []ast.Expr {
	var leaves []ast.Expr
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		if b, ok := e.(*ast.BinaryExpr); ok && b.Op == "+" {
			walk(b.Left)
			leaves = append(leaves, b.Right)
			return
		}
		leaves = append(leaves, e)
	}
	walk(x)
	return leaves
}

func chainHasStringLiteral(chain []ast.Expr) bool {
	for _, e := range chain {
		if _, ok := e.(*ast.StringExpr); ok {
			return true
		}
	}
	return false
}

// lowerConcatChain fuses a 3-5 operand `+` chain into a single
// hml_string_concat{3,4,5} call instead of pairwise hml_string_concat
// calls, avoiding the O(n^2) intermediate allocations of pairwise
// concatenation.
func lowerConcatChain(c *Context, chain []ast.Expr) CExpr {
	fn := runtimeabi.FnStringConcat3
	switch len(chain) {
	case 4:
		fn = runtimeabi.FnStringConcat4
	case 5:
		fn = runtimeabi.FnStringConcat5
	}
	args := make([]CExpr, len(chain))
	for i, leaf := range chain {
		args[i] = Box(LowerExpr(c, leaf))
	}
	return &CCall{Func: &CIdent{Name: fn}, Args: args}
}

// foldConstantBinary computes the result of an integer-literal binary
// operation at compile time. Division always produces an F64 literal,
// except division by the literal zero, which falls through to
// the generic runtime path so the runtime's own divide-by-zero exception
// fires. Non-integer-literal operands, and operators this rewrite does
// not cover, return ok=false so the caller falls back to normal lowering.
func foldConstantBinary(x *ast.BinaryExpr) (Lowered, bool) {
	ln, lok := x.Left.(*ast.NumberExpr)
	rn, rok := x.Right.(*ast.NumberExpr)
	if !lok || !rok || ln.IsFloat || rn.IsFloat {
		return Lowered{}, false
	}
	lv, err := strconv.ParseInt(ln.Literal, 10, 64)
	if err != nil {
		return Lowered{}, false
	}
	rv, err := strconv.ParseInt(rn.Literal, 10, 64)
	if err != nil {
		return Lowered{}, false
	}

	kind := types.I32
	if lv > math.MaxInt32 || lv < math.MinInt32 || rv > math.MaxInt32 || rv < math.MinInt32 {
		kind = types.I64
	}

	switch x.Op {
	case "+":
		return native(&CIntLit{Value: strconv.FormatInt(lv+rv, 10)}, kind), true
	case "-":
		return native(&CIntLit{Value: strconv.FormatInt(lv-rv, 10)}, kind), true
	case "*":
		return native(&CIntLit{Value: strconv.FormatInt(lv*rv, 10)}, kind), true
	case "%":
		if rv == 0 {
			return Lowered{}, false
		}
		return native(&CIntLit{Value: strconv.FormatInt(lv%rv, 10)}, kind), true
	case "/":
		if rv == 0 {
			return Lowered{}, false
		}
		return native(&CFloatLit{Value: strconv.FormatFloat(float64(lv)/float64(rv), 'g', -1, 64)}, types.F64), true
	case "&":
		return native(&CIntLit{Value: strconv.FormatInt(lv&rv, 10)}, kind), true
	case "|":
		return native(&CIntLit{Value: strconv.FormatInt(lv|rv, 10)}, kind), true
	case "^":
		return native(&CIntLit{Value: strconv.FormatInt(lv^rv, 10)}, kind), true
	case "<<":
		if rv < 0 || rv >= 64 {
			return Lowered{}, false
		}
		return native(&CIntLit{Value: strconv.FormatInt(lv<<uint(rv), 10)}, kind), true
	case ">>":
		if rv < 0 || rv >= 64 {
			return Lowered{}, false
		}
		return native(&CIntLit{Value: strconv.FormatInt(lv>>uint(rv), 10)}, kind), true
	case "<":
		return native(&CIdent{Name: strconv.FormatBool(lv < rv)}, types.Bool), true
	case ">":
		return native(&CIdent{Name: strconv.FormatBool(lv > rv)}, types.Bool), true
	case "<=":
		return native(&CIdent{Name: strconv.FormatBool(lv <= rv)}, types.Bool), true
	case ">=":
		return native(&CIdent{Name: strconv.FormatBool(lv >= rv)}, types.Bool), true
	case "==":
		return native(&CIdent{Name: strconv.FormatBool(lv == rv)}, types.Bool), true
	case "!=":
		return native(&CIdent{Name: strconv.FormatBool(lv != rv)}, types.Bool), true
	}
	return Lowered{}, false
}

// foldConstantUnary folds unary `-`/`~` over integer literals and `!` over
// bool literals.
func foldConstantUnary(x *ast.UnaryExpr) (Lowered, bool) {
	switch x.Op {
	case "-", "~":
		lit, ok := x.Operand.(*ast.NumberExpr)
		if !ok || lit.IsFloat {
			return Lowered{}, false
		}
		v, err := strconv.ParseInt(lit.Literal, 10, 64)
		if err != nil {
			return Lowered{}, false
		}
		if x.Op == "-" {
			v = -v
		} else {
			v = ^v
		}
		kind := types.I32
		if v > math.MaxInt32 || v < math.MinInt32 {
			kind = types.I64
		}
		return native(&CIntLit{Value: strconv.FormatInt(v, 10)}, kind), true
	case "!":
		lit, ok := x.Operand.(*ast.BoolExpr)
		if !ok {
			return Lowered{}, false
		}
		return native(&CIdent{Name: strconv.FormatBool(!lit.Value)}, types.Bool), true
	}
	return Lowered{}, false
}
