package types

// Binding records one name's semantic type and declaration metadata in a
// scope. Shadowing is permitted: a later bind of the same
// name in the same scope simply appends a new binding, which Lookup finds
// before the old one.
type Binding struct {
	Name    string
	Type    CheckedType
	IsConst bool
	Line    int
}

// scope is one frame of the environment stack. Bindings are stored in a
// slice (not a map) so that shadowing within one scope is observable in
// declaration order: a rebind appends, lookup walks back to front.
type scope struct {
	bindings []Binding
}

// Env is a stack of scopes. Every push on entry to a block or function
// body must be matched by exactly one pop on every exit path, including
// error paths.
type Env struct {
	scopes []*scope
}

// NewEnv returns an environment with a single top-level scope already pushed.
func NewEnv() *Env {
	e := &Env{}
	e.Push()
	return e
}

// Push starts a new, innermost scope.
func (e *Env) Push() {
	e.scopes = append(e.scopes, &scope{})
}

// Pop discards the innermost scope and all bindings made since its Push.
// Popping an empty environment is a programming error in the caller and
// panics rather than silently corrupting the stack discipline.
func (e *Env) Pop() {
	if len(e.scopes) == 0 {
		panic("types: Pop called with no scope pushed")
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// Depth reports the number of scopes currently pushed, for balance assertions.
func (e *Env) Depth() int { return len(e.scopes) }

// Bind introduces name into the innermost scope.
func (e *Env) Bind(name string, t CheckedType, isConst bool, line int) {
	cur := e.scopes[len(e.scopes)-1]
	cur.bindings = append(cur.bindings, Binding{Name: name, Type: t, IsConst: isConst, Line: line})
}

// Lookup walks from innermost to outermost scope and returns the nearest
// binding for name, or (zero, false) if undeclared.
func (e *Env) Lookup(name string) (Binding, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		bindings := e.scopes[i].bindings
		for j := len(bindings) - 1; j >= 0; j-- {
			if bindings[j].Name == name {
				return bindings[j], true
			}
		}
	}
	return Binding{}, false
}

// LookupType is a convenience wrapper returning Any for an undeclared name,
// the fallback inference for an identifier that was never declared.
func (e *Env) LookupType(name string) CheckedType {
	if b, ok := e.Lookup(name); ok {
		return b.Type
	}
	return Simple(Any)
}
