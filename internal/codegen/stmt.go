package codegen

import (
	"fmt"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/escape"
	"github.com/hemlock-lang/hemlock/internal/runtimeabi"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// LowerBlock lowers a statement list, stopping after the first terminator
// (return/break/continue/throw) so unreachable code after it is dropped.
func LowerBlock(c *Context, stmts []ast.Stmt) []CStmt {
	var out []CStmt
	for _, s := range stmts {
		out = append(out, LowerStmt(c, s)...)
		if isTerminator(s) {
			break
		}
	}
	return out
}

func isTerminator(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.ReturnStmt, *ast.BreakStmt, *ast.ContinueStmt, *ast.ThrowStmt:
		return true
	}
	return false
}

// LowerStmt lowers one source statement, possibly to more than one C
// statement (e.g. a for-in loop expands to an index variable plus a loop).
// It wraps lowerStmtInner with a prelude frame so an expression nested
// inside this statement (a closure literal needing to allocate and
// populate its environment, a hoisted operand temporary) can emit setup
// statements that land just before this statement rather than nowhere.
func LowerStmt(c *Context, s ast.Stmt) []CStmt {
	c.PushPrelude()
	result := lowerStmtInner(c, s)
	prelude := c.PopPrelude()
	if len(prelude) == 0 {
		return result
	}
	return append(prelude, result...)
}

func lowerStmtInner(c *Context, s ast.Stmt) []CStmt {
	switch st := s.(type) {
	case *ast.LetStmt:
		return lowerLet(c, st)
	case *ast.ConstStmt:
		return lowerConst(c, st)
	case *ast.ExprStmt:
		return lowerExprStmt(c, st)
	case *ast.IfStmt:
		return lowerIf(c, st)
	case *ast.WhileStmt:
		return lowerWhile(c, st)
	case *ast.ForStmt:
		return lowerFor(c, st)
	case *ast.ForInStmt:
		return lowerForIn(c, st)
	case *ast.BlockStmt:
		return []CStmt{&CBlock{Body: LowerBlock(c, st.Body)}}
	case *ast.ReturnStmt:
		return lowerReturn(c, st)
	case *ast.BreakStmt:
		if label, isSwitch := c.BreakTarget(); isSwitch {
			return []CStmt{&CGoto{Label: label}}
		}
		return []CStmt{&CBreak{}}
	case *ast.ContinueStmt:
		if label := c.ContinueTarget(); label != "" {
			return []CStmt{&CGoto{Label: label}}
		}
		return []CStmt{&CContinue{}}
	case *ast.TryStmt:
		return lowerTry(c, st)
	case *ast.ThrowStmt:
		return lowerThrow(c, st)
	case *ast.SwitchStmt:
		return lowerSwitch(c, st)
	case *ast.DeferStmt:
		return lowerDefer(c, st)
	case *ast.DefineObjectStmt, *ast.EnumStmt, *ast.ExportStmt, *ast.ImportStmt, *ast.ImportFfiStmt, *ast.ExternFnStmt, *ast.FuncDecl:
		// handled at module level (module.go/object.go/enum.go), not inline
		// in a statement stream.
		return nil
	}
	return nil
}

// lowerExprStmt lowers an expression evaluated for effect. A boxed call
// result the statement discards is bound to a temporary and released, so
// the fresh value the runtime handed back does not leak.
func lowerExprStmt(c *Context, st *ast.ExprStmt) []CStmt {
	l := LowerExpr(c, st.X)
	if _, isIdent := l.Expr.(*CIdent); isIdent {
		// Assignment lowering already did its work in the prelude and left
		// only the variable itself behind; nothing remains to execute.
		return nil
	}
	if call, isCall := l.Expr.(*CCall); isCall && !l.Native {
		if fn, ok := call.Func.(*CIdent); ok && voidRuntimeFns[fn.Name] {
			return []CStmt{&CExprStmt{X: l.Expr}}
		}
		t := c.NewTemp()
		return []CStmt{
			&CVarDecl{Type: ValueType, Name: t, Init: l.Expr},
			&CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, &CIdent{Name: t})},
		}
	}
	return []CStmt{&CExprStmt{X: l.Expr}}
}

// voidRuntimeFns lists the runtime calls that return no value, so the
// discarded-result release wrapper must not apply to them.
var voidRuntimeFns = map[string]bool{
	runtimeabi.FnStringAppendInplace: true,
	runtimeabi.FnObjectSetField:      true,
	runtimeabi.FnClosureEnvSet:       true,
	runtimeabi.FnRetainIfNeeded:      true,
	runtimeabi.FnReleaseIfNeeded:     true,
	runtimeabi.FnRetain:              true,
	runtimeabi.FnRelease:             true,
	runtimeabi.FnPrint:               true,
	runtimeabi.FnThrow:               true,
	runtimeabi.FnDeferPushCall:       true,
	runtimeabi.FnDeferPushCallWithArgs: true,
	runtimeabi.FnDeferExecuteAll:     true,
	runtimeabi.FnRegisterObjectType:  true,
	runtimeabi.FnRuntimeError:        true,
}

func lowerLet(c *Context, st *ast.LetStmt) []CStmt {
	// Only a directly top-level let maps onto a pre-declared module
	// global; a let nested under top-level control flow is still a C local.
	if c.atTopLevel && c.IsGlobal(st.Name) {
		return lowerTopLevelVar(c, st.Name, st.Type, st.Value)
	}
	if k, ok := c.UnboxedKind(st.Name); ok {
		var init CExpr
		if st.Value != nil {
			init = Unbox(LowerExpr(c, st.Value), k)
		} else {
			init = zeroValue(k)
		}
		return []CStmt{&CVarDecl{Type: NativeCType(k), Name: sanitizeCName(st.Name), Init: init}}
	}
	var init CExpr
	if st.Value != nil {
		init = Box(LowerExpr(c, st.Value))
	} else {
		init = fnCall(runtimeabi.FnValNull)
	}
	if st.Type != nil {
		init = declaredTypeGuard(st.Type, init)
	}
	decl := []CStmt{&CVarDecl{Type: ValueType, Name: sanitizeCName(st.Name), Init: init}}
	return append(decl, selfPatchStmts(c, st.Name)...)
}

// selfPatchStmts emits the environment-slot fix-up for a self-referential
// closure binding, right after the binding statement that gives the
// closure its name.
func selfPatchStmts(c *Context, boundName string) []CStmt {
	p := c.TakeSelfPatch()
	if p == nil || p.LetName != boundName {
		return nil
	}
	return []CStmt{&CExprStmt{X: fnCall(runtimeabi.FnClosureEnvSet,
		&CIdent{Name: p.EnvVar},
		&CIntLit{Value: fmt.Sprintf("%d", p.Slot)},
		&CIdent{Name: c.ResolveName(boundName)},
	)}}
}

// lowerTopLevelVar assigns a module-level let/const into its mangled C
// global from inside the module's init function.
func lowerTopLevelVar(c *Context, name string, declared ast.Type, value ast.Expr) []CStmt {
	var init CExpr
	if value != nil {
		init = Box(LowerExpr(c, value))
	} else {
		init = fnCall(runtimeabi.FnValNull)
	}
	if declared != nil {
		init = declaredTypeGuard(declared, init)
	}
	out := []CStmt{&CExprStmt{X: &CAssign{Target: &CIdent{Name: c.Mangle(name)}, Value: init, Op: "="}}}
	return append(out, selfPatchStmts(c, name)...)
}

// declaredTypeGuard wraps an initializer in the runtime conversion or
// validation call its declared type demands: scalars range-convert,
// custom objects shape-check, typed arrays element-check.
func declaredTypeGuard(t ast.Type, init CExpr) CExpr {
	ct := resolveDeclaredType(t)
	switch ct.Kind {
	case types.Custom:
		return fnCall(runtimeabi.FnValidateObjectType, init, &CStringLit{Value: ct.TypeName})
	case types.Array:
		if ct.Element != nil && ct.Element.Kind != types.Any && ct.Element.Kind != types.Unknown {
			return fnCall(runtimeabi.FnValidateTypedArray, init, &CIdent{Name: runtimeabi.ValTag(ct.Element.Kind)})
		}
		return init
	case types.I8, types.I16, types.I32, types.I64,
		types.U8, types.U16, types.U32, types.U64,
		types.F32, types.F64, types.Bool, types.String, types.Rune:
		return fnCall(runtimeabi.FnConvertToType, init, &CIdent{Name: runtimeabi.ValTag(ct.Kind)})
	}
	return init
}

func lowerConst(c *Context, st *ast.ConstStmt) []CStmt {
	c.MarkConst(st.Name)
	if c.atTopLevel && c.IsGlobal(st.Name) {
		return lowerTopLevelVar(c, st.Name, st.Type, st.Value)
	}
	if k, ok := c.UnboxedKind(st.Name); ok {
		return []CStmt{&CVarDecl{Type: "const " + NativeCType(k), Name: sanitizeCName(st.Name), Init: Unbox(LowerExpr(c, st.Value), k)}}
	}
	init := Box(LowerExpr(c, st.Value))
	if st.Type != nil {
		init = declaredTypeGuard(st.Type, init)
	}
	return []CStmt{&CVarDecl{Type: "const " + ValueType, Name: sanitizeCName(st.Name), Init: init}}
}

func zeroValue(k types.Kind) CExpr {
	if k == types.Bool {
		return &CIdent{Name: "false"}
	}
	if k == types.F32 || k == types.F64 {
		return &CFloatLit{Value: "0.0"}
	}
	return &CIntLit{Value: "0"}
}

// lowerIf eliminates the untaken branch outright when the condition is a
// literal; otherwise the boxed
// condition is evaluated into a temporary, coerced, and released before
// the branch so neither path leaks it.
func lowerIf(c *Context, st *ast.IfStmt) []CStmt {
	if c.Optimize {
		if taken, known := constantTruth(st.Cond); known {
			if taken {
				return LowerBlock(c, st.Then)
			}
			if st.Else != nil {
				return LowerBlock(c, st.Else)
			}
			return nil
		}
	}

	condL := LowerExpr(c, st.Cond)
	var pre []CStmt
	var cond CExpr
	if condL.Native {
		cond = condL.Expr
	} else {
		t, b := c.NewTemp(), c.NewTemp()
		pre = []CStmt{
			&CVarDecl{Type: ValueType, Name: t, Init: condL.Expr},
			&CVarDecl{Type: "int", Name: b, Init: fnCall(runtimeabi.FnToBool, &CIdent{Name: t})},
			&CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, &CIdent{Name: t})},
		}
		cond = &CIdent{Name: b}
	}
	then := LowerBlock(c, st.Then)
	var els []CStmt
	if st.Else != nil {
		els = LowerBlock(c, st.Else)
	}
	return append(pre, &CIf{Cond: cond, Then: then, Else: els})
}

// constantTruth evaluates a literal condition at compile time.
func constantTruth(e ast.Expr) (value, known bool) {
	switch x := e.(type) {
	case *ast.BoolExpr:
		return x.Value, true
	case *ast.NullExpr:
		return false, true
	case *ast.NumberExpr:
		return x.Literal != "0" && x.Literal != "0.0", true
	}
	return false, false
}

// lowerWhile emits `while (1) { if (!cond) break; body }`, with the boxed condition temporary released on both the
// continue and the break path (it is released before the branch decides).
func lowerWhile(c *Context, st *ast.WhileStmt) []CStmt {
	c.PushLoop("")
	defer c.PopBreakable()

	c.PushPrelude()
	condL := LowerExpr(c, st.Cond)
	condPre := c.PopPrelude()

	body := condPre
	if condL.Native {
		body = append(body, &CIf{Cond: &CUnary{Op: "!", Operand: condL.Expr}, Then: []CStmt{&CBreak{}}})
	} else {
		t, b := c.NewTemp(), c.NewTemp()
		body = append(body,
			&CVarDecl{Type: ValueType, Name: t, Init: condL.Expr},
			&CVarDecl{Type: "int", Name: b, Init: fnCall(runtimeabi.FnToBool, &CIdent{Name: t})},
			&CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, &CIdent{Name: t})},
			&CIf{Cond: &CUnary{Op: "!", Operand: &CIdent{Name: b}}, Then: []CStmt{&CBreak{}}},
		)
	}
	body = append(body, LowerBlock(c, st.Body)...)
	return []CStmt{&CWhile{Cond: &CIntLit{Value: "1"}, Body: body}}
}

// lowerFor takes the unboxed-counter fast path when the
// escape analyzer's table proves it safe, emitting a native C loop with no
// per-iteration boxing and the bound hoisted to a local evaluated once
// (unless it is a literal, which folds in place). Otherwise it emits the
// boxed shape: init, `while (1)` with the condition re-tested at the top,
// and a continue label placed before the increment so `continue` still
// increments.
func lowerFor(c *Context, st *ast.ForStmt) []CStmt {
	if c.Optimize {
		if fp, ok := escape.ClassifyForLoop(st, c.unbox); ok {
			return lowerNativeFor(c, st, fp)
		}
	}

	var pre []CStmt
	if st.Init != nil {
		pre = LowerStmt(c, st.Init)
	}

	contLabel := c.NewLabel()
	c.PushLoop(contLabel)
	defer c.PopBreakable()

	var body []CStmt
	if st.Cond != nil {
		c.PushPrelude()
		condL := LowerExpr(c, st.Cond)
		condPre := c.PopPrelude()
		body = append(body, condPre...)
		if condL.Native {
			body = append(body, &CIf{Cond: &CUnary{Op: "!", Operand: condL.Expr}, Then: []CStmt{&CBreak{}}})
		} else {
			t, b := c.NewTemp(), c.NewTemp()
			body = append(body,
				&CVarDecl{Type: ValueType, Name: t, Init: condL.Expr},
				&CVarDecl{Type: "int", Name: b, Init: fnCall(runtimeabi.FnToBool, &CIdent{Name: t})},
				&CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, &CIdent{Name: t})},
				&CIf{Cond: &CUnary{Op: "!", Operand: &CIdent{Name: b}}, Then: []CStmt{&CBreak{}}},
			)
		}
	}
	body = append(body, LowerBlock(c, st.Body)...)
	body = append(body, &CLabel{Name: contLabel})
	if st.Post != nil {
		body = append(body, LowerStmt(c, st.Post)...)
	}
	return append(pre, &CWhile{Cond: &CIntLit{Value: "1"}, Body: body})
}

func lowerNativeFor(c *Context, st *ast.ForStmt, fp escape.LoopFastPath) []CStmt {
	c.PushLoop("")
	defer c.PopBreakable()

	let := st.Init.(*ast.LetStmt)
	initExpr := Unbox(LowerExpr(c, let.Value), fp.Native)

	bound := st.Cond.(*ast.BinaryExpr)
	var pre []CStmt
	var boundExpr CExpr
	if _, isLit := bound.Right.(*ast.NumberExpr); isLit {
		boundExpr = Unbox(LowerExpr(c, bound.Right), fp.Native)
	} else {
		bt := c.NewTemp()
		pre = append(pre, &CVarDecl{Type: NativeCType(fp.Native), Name: bt, Init: Unbox(LowerExpr(c, bound.Right), fp.Native)})
		boundExpr = &CIdent{Name: bt}
	}

	step := "++"
	if !fp.Ascending {
		step = "--"
	}
	counter := sanitizeCName(fp.Counter)
	init := &CVarDecl{Type: NativeCType(fp.Native), Name: counter, Init: initExpr}
	cond := &CBinary{Op: bound.Op, Left: &CIdent{Name: counter}, Right: boundExpr}
	post := &CExprStmt{X: &CUnary{Op: step, Operand: &CIdent{Name: counter}, Postfix: true}}
	return append(pre, &CFor{Init: init, Cond: cond, Post: post, Body: LowerBlock(c, st.Body)})
}

// lowerForIn dispatches on the iterable's checked kind:
// arrays iterate by index, objects by field slot via key_at/value_at, and
// strings by codepoint via char_count/rune_at. The collection is evaluated
// once into a temporary and released after the loop.
func lowerForIn(c *Context, st *ast.ForInStmt) []CStmt {
	iterTemp := c.NewTemp()
	idxTemp := c.NewTemp()
	decl := &CVarDecl{Type: ValueType, Name: iterTemp, Init: Box(LowerExpr(c, st.Iterable))}
	iter := &CIdent{Name: iterTemp}
	idx := &CIdent{Name: idxTemp}

	var lenCall CExpr
	var keyInit, valInit CExpr
	switch c.TypeOf(st.Iterable).Kind {
	case types.Object:
		lenCall = fnCall(runtimeabi.FnObjectNumFields, iter)
		keyInit = fnCall(runtimeabi.FnObjectKeyAt, iter, idx)
		valInit = fnCall(runtimeabi.FnObjectValueAt, iter, idx)
	case types.String:
		lenCall = fnCall(runtimeabi.FnStringCharCount, iter)
		keyInit = fnCall(runtimeabi.FnStringRuneAt, iter, idx)
		valInit = keyInit
	default:
		lenCall = fnCall(runtimeabi.FnArrayLength, iter)
		keyInit = fnCall(runtimeabi.FnArrayGet, iter, idx)
		valInit = keyInit
	}

	c.PushLoop("")
	defer c.PopBreakable()

	var body []CStmt
	if st.ValueVar != "" {
		switch c.TypeOf(st.Iterable).Kind {
		case types.Object:
			body = append(body, &CVarDecl{Type: ValueType, Name: sanitizeCName(st.KeyVar), Init: keyInit})
		default:
			// key is the index for arrays and strings
			body = append(body, &CVarDecl{Type: "int32_t", Name: sanitizeCName(st.KeyVar), Init: idx})
		}
		body = append(body, &CVarDecl{Type: ValueType, Name: sanitizeCName(st.ValueVar), Init: valInit})
	} else {
		body = append(body, &CVarDecl{Type: ValueType, Name: sanitizeCName(st.KeyVar), Init: keyInit})
	}
	body = append(body, LowerBlock(c, st.Body)...)

	idxDecl := &CVarDecl{Type: "int32_t", Name: idxTemp, Init: &CIntLit{Value: "0"}}
	cond := &CBinary{Op: "<", Left: idx, Right: lenCall}
	post := &CExprStmt{X: &CUnary{Op: "++", Operand: idx, Postfix: true}}
	return []CStmt{
		decl,
		idxDecl,
		&CFor{Cond: cond, Post: post, Body: body},
		&CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, iter)},
	}
}

// lowerReturn emits the tail-call-to-loop rewrite when the
// current function is being lowered as a loop: a self-recursive tail call
// becomes a parameter reassignment followed by a goto to the entry label,
// instead of a real C call.
func lowerReturn(c *Context, st *ast.ReturnStmt) []CStmt {
	if c.tailCallFuncName != "" && st.Value != nil {
		if call, ok := st.Value.(*ast.CallExpr); ok {
			if id, ok := call.Func.(*ast.IdentExpr); ok && id.Name == c.tailCallFuncName && len(call.Args) == len(c.tailCallParams) {
				return lowerTailCallReturn(c, call)
			}
		}
	}
	var val CExpr
	if st.Value != nil {
		val = Box(LowerExpr(c, st.Value))
	}
	return emitReturn(c, val)
}

// emitReturn routes a computed return value through whatever exit protocol
// is active: the finally-slot protocol when a finally clause encloses the
// return, otherwise pending defers, exception-context pops for enclosing
// try bodies, and the plain C return.
func emitReturn(c *Context, val CExpr) []CStmt {
	if c.finallyLabel != "" {
		return lowerFinallyReturn(c, val)
	}
	var out []CStmt
	if c.funcHasDefers {
		out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnDeferExecuteAll)})
	}
	for i := 0; i < c.tryDepth; i++ {
		out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnExceptionPop)})
	}
	if val == nil {
		if c.currentFuncIsVoid {
			return append(out, &CReturn{})
		}
		return append(out, &CReturn{Value: fnCall(runtimeabi.FnValNull)})
	}
	return append(out, &CReturn{Value: val})
}

// lowerFinallyReturn implements the try/finally-with-return protocol: a `return` reached inside a try body (or its catch) that has a
// finally clause must not exit the function directly, since the finally
// block — emitted after the try/catch, unconditionally — would never run.
// Instead it stores the value in the finally-return slot, sets the
// has-return flag, pops the exception context, and jumps to the finally
// label; the label's trailing code runs the finally block and only then
// actually returns.
func lowerFinallyReturn(c *Context, val CExpr) []CStmt {
	var out []CStmt
	if c.funcHasDefers {
		out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnDeferExecuteAll)})
	}
	if val == nil {
		val = fnCall(runtimeabi.FnValNull)
	}
	out = append(out, &CExprStmt{X: &CAssign{Target: &CIdent{Name: c.finallyReturnVar}, Value: val, Op: "="}})
	out = append(out, &CExprStmt{X: &CAssign{Target: &CIdent{Name: c.finallyHasReturnVar}, Value: &CIntLit{Value: "1"}, Op: "="}})
	// Pop every context pushed since this finally's try was entered: one
	// for its own body plus any nested try the return sits inside. From the
	// catch arm the count is zero, since catch entry already popped.
	for i := c.finallyTryDepth; i < c.tryDepth; i++ {
		out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnExceptionPop)})
	}
	out = append(out, &CGoto{Label: c.finallyLabel})
	return out
}

// lowerTailCallReturn evaluates every argument into a fresh temporary
// BEFORE reassigning any parameter, so `return fact(n-1, acc*n)` doesn't
// let an updated n leak into the acc*n evaluation (parallel-assignment
// semantics, the same hazard a literal sequential rewrite would introduce).
// Old boxed parameter values are released before the new ones move in.
func lowerTailCallReturn(c *Context, call *ast.CallExpr) []CStmt {
	var out []CStmt
	temps := make([]string, len(call.Args))
	for i, arg := range call.Args {
		t := c.NewTemp()
		temps[i] = t
		paramName := c.tailCallParams[i]
		if k, ok := c.UnboxedKind(paramName); ok {
			out = append(out, &CVarDecl{Type: NativeCType(k), Name: t, Init: Unbox(LowerExpr(c, arg), k)})
		} else {
			out = append(out, &CVarDecl{Type: ValueType, Name: t, Init: Box(LowerExpr(c, arg))})
		}
	}
	for i, paramName := range c.tailCallParams {
		pn := sanitizeCName(paramName)
		if _, unboxed := c.UnboxedKind(paramName); !unboxed {
			out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, &CIdent{Name: pn})})
		}
		out = append(out, &CExprStmt{X: &CAssign{Target: &CIdent{Name: pn}, Value: &CIdent{Name: temps[i]}, Op: "="}})
	}
	out = append(out, &CGoto{Label: c.tailCallLabel})
	return out
}

func lowerThrow(c *Context, st *ast.ThrowStmt) []CStmt {
	val := Box(LowerExpr(c, st.Value))
	var out []CStmt
	if c.funcHasDefers {
		out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnDeferExecuteAll)})
	}
	return append(out, &CExprStmt{X: fnCall(runtimeabi.FnThrow, val)})
}

// lowerTry emits the setjmp-based exception protocol. The exception
// context is popped exactly once on every exit of the try body: at the end
// of a normal run, at catch entry, and inside the finally-return jump. The
// pop always precedes the finally body. When no catch arm exists and a
// finally does, a threw-flag re-raises the exception after the finally.
func lowerTry(c *Context, st *ast.TryStmt) []CStmt {
	var preDecls []CStmt
	var restore func()
	var retVar, hasRetVar, label, threwVar string
	if st.Finally != nil {
		retVar, hasRetVar, label = c.NewTemp(), c.NewTemp(), c.NewLabel()
		preDecls = []CStmt{
			&CVarDecl{Type: ValueType, Name: retVar},
			&CVarDecl{Type: "int", Name: hasRetVar, Init: &CIntLit{Value: "0"}},
		}
		if st.Catch == nil {
			threwVar = c.NewTemp()
			preDecls = append(preDecls, &CVarDecl{Type: "int", Name: threwVar, Init: &CIntLit{Value: "0"}})
		}
		restore = c.EnterFinally(retVar, hasRetVar, label)
	}

	var out []CStmt
	out = append(out, &CRawStmt{Text: fmt.Sprintf("if (setjmp(*%s()) == 0) {", runtimeabi.FnExceptionPush)})
	c.tryDepth++
	bodyStmts := LowerBlock(c, st.Body)
	c.tryDepth--
	if !endsWithJump(st.Body) {
		bodyStmts = append(bodyStmts, &CExprStmt{X: fnCall(runtimeabi.FnExceptionPop)})
	}
	out = append(out, &CBlock{Body: bodyStmts})
	out = append(out, &CRawStmt{Text: "} else {"})

	var elseBody []CStmt
	if st.Catch != nil {
		elseBody = append(elseBody, &CVarDecl{Type: ValueType, Name: sanitizeCName(st.Catch.ErrVar), Init: fnCall(runtimeabi.FnExceptionGetValue)})
		elseBody = append(elseBody, &CExprStmt{X: fnCall(runtimeabi.FnExceptionPop)})
		elseBody = append(elseBody, LowerBlock(c, st.Catch.Body)...)
	} else {
		elseBody = append(elseBody, &CExprStmt{X: fnCall(runtimeabi.FnExceptionPop)})
		if threwVar != "" {
			elseBody = append(elseBody, &CExprStmt{X: &CAssign{Target: &CIdent{Name: threwVar}, Value: &CIntLit{Value: "1"}, Op: "="}})
		}
	}
	out = append(out, &CBlock{Body: elseBody})
	out = append(out, &CRawStmt{Text: "}"})

	if st.Finally != nil {
		restore()
		out = append(out, &CLabel{Name: label})
		out = append(out, LowerBlock(c, st.Finally)...)
		if threwVar != "" {
			out = append(out, &CIf{
				Cond: &CIdent{Name: threwVar},
				Then: []CStmt{&CExprStmt{X: fnCall(runtimeabi.FnThrow, fnCall(runtimeabi.FnExceptionGetValue))}},
			})
		}
		out = append(out, &CIf{
			Cond: &CIdent{Name: hasRetVar},
			Then: emitReturn(c, &CIdent{Name: retVar}),
		})
	}
	return append(preDecls, out...)
}

// endsWithJump reports whether a statement list's last reachable statement
// transfers control (so the fall-through exception pop after it would be
// unreachable C).
func endsWithJump(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	return isTerminator(stmts[len(stmts)-1])
}

// lowerDefer captures the callee and every argument at defer time and
// pushes them onto the runtime defer stack — never inlined, so a defer in
// a conditional or loop body still runs exactly when its dynamic push ran.
func lowerDefer(c *Context, st *ast.DeferStmt) []CStmt {
	var fnVal CExpr
	if id, ok := st.Call.Func.(*ast.IdentExpr); ok {
		if _, local := c.localScope[id.Name]; !local {
			if sig, found := lookupFunc(c, id.Name); found {
				fnVal = functionValue(c, id.Name, sig)
			}
		}
	}
	if fnVal == nil {
		fnVal = Box(LowerExpr(c, st.Call.Func))
	}
	if len(st.Call.Args) == 0 {
		return []CStmt{&CExprStmt{X: fnCall(runtimeabi.FnDeferPushCall, fnVal)}}
	}
	args := []CExpr{fnVal, &CIntLit{Value: fmt.Sprintf("%d", len(st.Call.Args))}}
	for _, a := range st.Call.Args {
		args = append(args, Box(LowerExpr(c, a)))
	}
	return []CStmt{&CExprStmt{X: &CCall{Func: &CIdent{Name: runtimeabi.FnDeferPushCallWithArgs}, Args: args}}}
}

// lowerSwitch compiles to a label chain rather than a C switch: case
// values are compared with the runtime's value equality, matched cases
// jump to their body label, and bodies fall through to the next body
// exactly as the interpreter does. `break` becomes a goto to the end
// label; loop continue/break semantics are preserved through the separate
// switch frame on the breakable stack.
func lowerSwitch(c *Context, st *ast.SwitchStmt) []CStmt {
	subjTmp := c.NewTemp()
	out := []CStmt{&CVarDecl{Type: ValueType, Name: subjTmp, Init: Box(LowerExpr(c, st.Subject))}}
	subj := &CIdent{Name: subjTmp}

	endLabel := c.NewLabel()
	labels := make([]string, len(st.Cases))
	defaultIdx := -1
	for i, cs := range st.Cases {
		labels[i] = c.NewLabel()
		if len(cs.Values) == 0 {
			defaultIdx = i
		}
	}

	// Dispatch: first matching case value wins.
	for i, cs := range st.Cases {
		for _, v := range cs.Values {
			match := truthy(fnCall(runtimeabi.FnBinaryOp, &CIdent{Name: runtimeabi.OpEq}, subj, Box(LowerExpr(c, v))))
			out = append(out, &CIf{Cond: match, Then: []CStmt{&CGoto{Label: labels[i]}}})
		}
	}
	if defaultIdx >= 0 {
		out = append(out, &CGoto{Label: labels[defaultIdx]})
	} else {
		out = append(out, &CGoto{Label: endLabel})
	}

	c.PushSwitch(endLabel)
	for i, cs := range st.Cases {
		out = append(out, &CLabel{Name: labels[i]})
		out = append(out, LowerBlock(c, cs.Body)...)
		// no jump: fall through into the next case body, as the
		// interpreter does.
	}
	c.PopBreakable()

	out = append(out, &CLabel{Name: endLabel})
	out = append(out, &CExprStmt{X: fnCall(runtimeabi.FnReleaseIfNeeded, subj)})
	return out
}
