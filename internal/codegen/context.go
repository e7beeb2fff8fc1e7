package codegen

import (
	"fmt"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/types"
)

// ClosureCapture is one free variable a closure needs lifted into its
// indexed heap environment.
type ClosureCapture struct {
	Name string
	Type types.CheckedType
}

// closureInfo describes the closure whose body is currently being
// lowered: the name of its env parameter and the index each captured
// variable occupies in the environment, so an assignment to a captured
// variable can also write the slot back for sibling closures to observe.
type closureInfo struct {
	EnvParam string
	Index    map[string]int
}

// selfPatch records the one pending environment-slot fix-up a
// self-referential closure literal (`let f = fn(){...f...}`) needs once its
// enclosing `let` has bound the closure's final value: the closure can't capture a pointer to itself before it exists, so its
// env slot is populated with null and patched right after binding.
type selfPatch struct {
	EnvVar  string
	Slot    int
	LetName string
}

// breakFrame is one entry of the break/continue target stack. A switch
// frame redirects `break` to its end label; a loop frame may carry a
// continue label when the loop's increment lives after the body (the boxed
// for-loop shape), in which case `continue` becomes a goto to it.
type breakFrame struct {
	IsSwitch      bool
	EndLabel      string
	ContinueLabel string
}

// Context carries all per-compilation-unit state the lowering passes
// thread through: naming counters, the current module's mangling prefix,
// the unbox/tail-call facts produced by the escape analyzer, and the
// closure-literal support declarations collected as they're encountered.
type Context struct {
	Info         *types.Registry
	ModulePrefix string

	// Optimize gates constant folding, constant-condition branch
	// elimination, concat fusion, and the typed fast paths. Generation is
	// still correct with it off.
	Optimize bool

	tempCounter  int
	anonCounter  int
	labelCounter int

	// currentFunc names the C function currently being emitted, used to
	// build globally-unique temp/label names even across nested closures.
	currentFunc string

	// outerEnv is the module's top-level function signatures, and
	// localScope the current function's params/locals (declared types
	// where known); together they tell closure-literal lowering which
	// identifiers referenced in a function body are free variables that
	// must be captured.
	outerEnv   map[string]types.CheckedType
	localScope map[string]types.CheckedType

	// globalVars holds the module's top-level variable names, emitted as
	// mangled C globals ("_main_x" for the main unit); identifier lowering
	// consults it whenever a name is not function-local.
	globalVars map[string]bool

	// importAliases maps a locally-visible imported name to the exporting
	// module's already-mangled global symbol.
	importAliases map[string]string

	// closureDecls accumulates the function declarations each closure
	// literal generates, in encounter order, for LowerModule to append
	// after the top-level functions.
	closureDecls []CDecl

	currentClosure *closureInfo

	pendingSelfPatch *selfPatch

	// preludeStack holds, per statement currently being lowered, any C
	// statements (e.g. a closure's environment allocation) an expression
	// nested inside it needed to emit before the statement itself. Each
	// LowerStmt call pushes its own frame so a nested statement's prelude
	// never leaks into its enclosing statement's.
	preludeStack [][]CStmt

	constVars map[string]bool

	// breakables is the combined loop/switch target stack consulted by
	// break/continue lowering.
	breakables []breakFrame

	// atTopLevel is set while lowering the module's top-level statement
	// stream into its init function, where `let` declares a global rather
	// than a C local.
	atTopLevel bool

	// tailCallFuncName/tailCallLabel mark that the function currently
	// being lowered is being rewritten into a loop because every
	// self-call in it is in tail position; lowerReturn consults these to
	// emit a parameter-reassignment-and-goto for each such self-call
	// instead of a real call.
	tailCallFuncName string
	tailCallLabel    string
	tailCallParams   []string

	// finallyReturnVar/finallyHasReturnVar/finallyLabel are set while
	// lowering a try body (and its catch) that has a finally clause:
	// lowerReturn stores into the slot and flag and jumps to the label
	// instead of returning directly, so the finally block still runs.
	finallyReturnVar    string
	finallyHasReturnVar string
	finallyLabel        string

	// finallyTryDepth is the try nesting depth recorded when the active
	// finally's try was entered; a finally-routed return pops exactly the
	// contexts pushed since then (its own try's, plus any nested ones),
	// and none at all from inside the catch arm, which popped on entry.
	finallyTryDepth int

	// tryDepth counts the try bodies (without an intervening function
	// boundary) enclosing the statement being lowered, so a return emits
	// one hml_exception_pop per un-exited context.
	tryDepth int

	// funcHasDefers is set while lowering a function whose body pushes
	// runtime defers, so exit paths run hml_defer_execute_all.
	funcHasDefers bool

	// currentFuncIsVoid distinguishes a bare `return` in a void function
	// from one that must produce hml_val_null().
	currentFuncIsVoid bool

	// unbox is the current function's unboxable-variable table, produced
	// by the escape analyzer and consulted by expression lowering to pick
	// the native-slot fast path over boxed HmlValue arithmetic.
	unbox *types.UnboxTable

	// exprTypes is the current function's inferred expression-type map
	// from the type checker, consulted so lowering knows which runtime
	// fast-path function a given operator site resolves to.
	exprTypes map[ast.Expr]types.CheckedType
}

func NewContext(reg *types.Registry, modulePrefix string) *Context {
	return &Context{
		Info:          reg,
		ModulePrefix:  modulePrefix,
		Optimize:      true,
		constVars:     make(map[string]bool),
		globalVars:    make(map[string]bool),
		importAliases: make(map[string]string),
	}
}

// SetUnboxTable installs the unbox table for the function currently being
// lowered.
func (c *Context) SetUnboxTable(t *types.UnboxTable) { c.unbox = t }

// SetExprTypes installs the type checker's per-expression type map.
func (c *Context) SetExprTypes(m map[ast.Expr]types.CheckedType) { c.exprTypes = m }

// TypeOf returns e's inferred type, or Any if untracked.
func (c *Context) TypeOf(e ast.Expr) types.CheckedType {
	if t, ok := c.exprTypes[e]; ok {
		return t
	}
	return types.Simple(types.Any)
}

// UnboxedKind reports the native kind a variable was promoted to, if any.
func (c *Context) UnboxedKind(name string) (types.Kind, bool) {
	if c.unbox == nil {
		return 0, false
	}
	info, ok := c.unbox.Lookup(name)
	if !ok {
		return 0, false
	}
	return info.Native, true
}

// NewTemp returns a fresh, unit-unique C identifier for a compiler
// temporary.
func (c *Context) NewTemp() string {
	c.tempCounter++
	return fmt.Sprintf("_hml_t%d", c.tempCounter)
}

// NewAnonName returns a fresh C function name for an anonymous closure.
func (c *Context) NewAnonName() string {
	c.anonCounter++
	return fmt.Sprintf("%s_anon%d", c.ModulePrefix, c.anonCounter)
}

// NewLabel returns a fresh C goto label, used by switch fall-through, the
// boxed loop's continue point, and the tail-call-to-loop rewrite.
func (c *Context) NewLabel() string {
	c.labelCounter++
	return fmt.Sprintf("_hml_L%d", c.labelCounter)
}

// Mangle prefixes a surface-level name with the current module's prefix so
// two modules may declare same-named symbols without a C collision.
func (c *Context) Mangle(name string) string {
	return c.ModulePrefix + sanitizeCName(name)
}

// ResolveName maps a surface identifier to the C name it is emitted as:
// function-locals stay bare, imported names resolve to the exporting
// module's mangled global, and module-level variables get this module's
// prefix.
func (c *Context) ResolveName(name string) string {
	if _, local := c.localScope[name]; local && !c.atTopLevel {
		return sanitizeCName(name)
	}
	if mangled, ok := c.importAliases[name]; ok {
		return mangled
	}
	if c.globalVars[name] {
		return c.Mangle(name)
	}
	return sanitizeCName(name)
}

// cKeywords is the set of C identifiers a Hemlock local may legally
// collide with; such names are suffixed rather than rejected.
var cKeywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true,
}

func sanitizeCName(name string) string {
	if cKeywords[name] {
		return name + "_"
	}
	return name
}

// MarkGlobal records a module-level variable so identifier lowering
// resolves it to its mangled global name.
func (c *Context) MarkGlobal(name string) { c.globalVars[name] = true }

// IsGlobal reports whether name is a module-level variable.
func (c *Context) IsGlobal(name string) bool { return c.globalVars[name] }

// BindImport maps a local imported name to the exporting module's mangled
// symbol.
func (c *Context) BindImport(local, mangled string) { c.importAliases[local] = mangled }

// EnterTopLevel marks that the module's top-level statement stream is being
// lowered (into the init function); returns a restore function.
func (c *Context) EnterTopLevel() func() {
	prev := c.atTopLevel
	c.atTopLevel = true
	return func() { c.atTopLevel = prev }
}

// SetOuterEnv installs the module's top-level function signatures, consulted
// by closure-literal lowering when deciding what a closure body captures.
func (c *Context) SetOuterEnv(env map[string]types.CheckedType) { c.outerEnv = env }

// SetLocalScope installs the current function's param/local declared-type
// table (see collectLocalDeclaredTypes), the other half of the environment
// closure-literal lowering treats as "already in scope, not a module call".
func (c *Context) SetLocalScope(scope map[string]types.CheckedType) (prev map[string]types.CheckedType) {
	prev = c.localScope
	c.localScope = scope
	return prev
}

// CaptureEnv returns every identifier visible to a closure literal at its
// point of lowering: the current function's own params/locals plus every
// top-level function name.
func (c *Context) CaptureEnv() map[string]types.CheckedType {
	env := make(map[string]types.CheckedType, len(c.outerEnv)+len(c.localScope))
	for k, v := range c.outerEnv {
		env[k] = v
	}
	for k, v := range c.localScope {
		env[k] = v
	}
	return env
}

// AddClosureDecl appends a closure literal's generated function body to the
// module's running list.
func (c *Context) AddClosureDecl(d CDecl) { c.closureDecls = append(c.closureDecls, d) }

// TakeClosureDecls returns every closure declaration collected so far and
// clears the list, called once per module after all its statements are
// lowered.
func (c *Context) TakeClosureDecls() []CDecl {
	d := c.closureDecls
	c.closureDecls = nil
	return d
}

// EnterClosure installs the capture-index table for the closure body about
// to be lowered and returns a restore function.
func (c *Context) EnterClosure(envParam string, index map[string]int) func() {
	prev := c.currentClosure
	c.currentClosure = &closureInfo{EnvParam: envParam, Index: index}
	return func() { c.currentClosure = prev }
}

// CapturedSlot reports the environment index of name in the closure
// currently being lowered, if any.
func (c *Context) CapturedSlot(name string) (string, int, bool) {
	if c.currentClosure == nil {
		return "", 0, false
	}
	i, ok := c.currentClosure.Index[name]
	if !ok {
		return "", 0, false
	}
	return c.currentClosure.EnvParam, i, true
}

// SetSelfPatch records the pending self-reference patch-up a closure
// literal just emitted; lowerLet consults and clears it once the enclosing
// let statement it belongs to has been lowered.
func (c *Context) SetSelfPatch(envVar string, slot int, letName string) {
	c.pendingSelfPatch = &selfPatch{EnvVar: envVar, Slot: slot, LetName: letName}
}

// TakeSelfPatch returns and clears the pending self-patch record, if any.
func (c *Context) TakeSelfPatch() *selfPatch {
	p := c.pendingSelfPatch
	c.pendingSelfPatch = nil
	return p
}

// PushPrelude opens a new prelude frame for the statement about to be
// lowered.
func (c *Context) PushPrelude() { c.preludeStack = append(c.preludeStack, nil) }

// PopPrelude closes the current prelude frame and returns whatever was
// added to it.
func (c *Context) PopPrelude() []CStmt {
	n := len(c.preludeStack)
	top := c.preludeStack[n-1]
	c.preludeStack = c.preludeStack[:n-1]
	return top
}

// AddPrelude appends a statement to the innermost open prelude frame, if
// one is open (it is, for every statement lowered through LowerStmt).
func (c *Context) AddPrelude(s CStmt) {
	if n := len(c.preludeStack); n > 0 {
		c.preludeStack[n-1] = append(c.preludeStack[n-1], s)
	}
}

// PushLoop enters a loop scope for break/continue lowering. continueLabel
// is empty when the loop's C form supports a plain `continue` (native for,
// while whose re-test is at the top); it is a label placed before the
// increment for the boxed for-loop shape.
func (c *Context) PushLoop(continueLabel string) {
	c.breakables = append(c.breakables, breakFrame{ContinueLabel: continueLabel})
}

// PushSwitch enters a switch scope: `break` inside it becomes a goto to
// endLabel rather than a C break (the lowered form is a label chain, not a
// C switch).
func (c *Context) PushSwitch(endLabel string) {
	c.breakables = append(c.breakables, breakFrame{IsSwitch: true, EndLabel: endLabel})
}

// PopBreakable leaves the innermost loop/switch scope.
func (c *Context) PopBreakable() {
	c.breakables = c.breakables[:len(c.breakables)-1]
}

// BreakTarget resolves what a `break` statement lowers to: the innermost
// frame decides (a switch redirects to its end label).
func (c *Context) BreakTarget() (label string, isSwitch bool) {
	if n := len(c.breakables); n > 0 {
		f := c.breakables[n-1]
		return f.EndLabel, f.IsSwitch
	}
	return "", false
}

// ContinueTarget resolves what a `continue` statement lowers to: the
// innermost LOOP frame decides, skipping any switch frames in between
// (continue always belongs to the loop, per the switch context rules).
func (c *Context) ContinueTarget() string {
	for i := len(c.breakables) - 1; i >= 0; i-- {
		if !c.breakables[i].IsSwitch {
			return c.breakables[i].ContinueLabel
		}
	}
	return ""
}

// EnterFinally marks that the try body/catch currently being lowered has a
// finally clause, and returns a restore function the caller defers.
func (c *Context) EnterFinally(retVar, hasRetVar, label string) func() {
	prevRet, prevHas, prevLabel, prevDepth := c.finallyReturnVar, c.finallyHasReturnVar, c.finallyLabel, c.finallyTryDepth
	c.finallyReturnVar, c.finallyHasReturnVar, c.finallyLabel, c.finallyTryDepth = retVar, hasRetVar, label, c.tryDepth
	return func() {
		c.finallyReturnVar, c.finallyHasReturnVar, c.finallyLabel, c.finallyTryDepth = prevRet, prevHas, prevLabel, prevDepth
	}
}

// EnterFuncFrame installs the per-function exit-path facts (defer usage,
// void return) and resets the try depth for a fresh function body; the
// returned closure restores the enclosing function's frame.
func (c *Context) EnterFuncFrame(hasDefers, isVoid bool) func() {
	prevDefers, prevVoid, prevDepth, prevTop := c.funcHasDefers, c.currentFuncIsVoid, c.tryDepth, c.atTopLevel
	c.funcHasDefers, c.currentFuncIsVoid, c.tryDepth, c.atTopLevel = hasDefers, isVoid, 0, false
	return func() {
		c.funcHasDefers, c.currentFuncIsVoid, c.tryDepth, c.atTopLevel = prevDefers, prevVoid, prevDepth, prevTop
	}
}

func (c *Context) EnterFunc(name string) (prev string) {
	prev = c.currentFunc
	c.currentFunc = name
	return prev
}

func (c *Context) ExitFunc(prev string) { c.currentFunc = prev }

func (c *Context) MarkConst(name string)    { c.constVars[name] = true }
func (c *Context) IsConst(name string) bool { return c.constVars[name] }

// EnterTailLoop marks that funcName's body is being lowered as a loop
// rather than a function body with real recursive calls, and returns a
// restore function the caller defers.
func (c *Context) EnterTailLoop(funcName, label string, params []string) func() {
	prevName, prevLabel, prevParams := c.tailCallFuncName, c.tailCallLabel, c.tailCallParams
	c.tailCallFuncName, c.tailCallLabel, c.tailCallParams = funcName, label, params
	return func() {
		c.tailCallFuncName, c.tailCallLabel, c.tailCallParams = prevName, prevLabel, prevParams
	}
}
