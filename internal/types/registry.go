package types

// FuncSig is a registered function signature. Built during pass 1 so
// forward references resolve before any body is checked.
type FuncSig struct {
	Name         string
	ParamNames   []string
	ParamTypes   []CheckedType
	Optional     []bool
	NumRequired  int
	Return       CheckedType
	HasRest      bool
	IsAsync      bool
	DeclaredLine int
}

// ObjectField is one field of a registered object definition.
type ObjectField struct {
	Name     string
	Type     CheckedType
	Optional bool
}

// ObjectDef is a registered `define object` declaration.
type ObjectDef struct {
	Name   string
	Fields []ObjectField
}

// EnumDef is a registered enum declaration with its ordered variant names.
type EnumDef struct {
	Name     string
	Variants []string
}

// UnboxKind distinguishes the three unboxing promotion patterns.
type UnboxKind int

const (
	NotUnboxed UnboxKind = iota
	TypedVar
	LoopCounter
	Accumulator
)

// UnboxInfo is one entry of the unboxable-variable table produced by the
// escape analyzer and consumed by the code generator.
type UnboxInfo struct {
	Name   string
	Native Kind // concrete native kind, e.g. I32, F64, Bool
	Kind   UnboxKind
}

// Registry holds the single, global-per-compilation-unit declaration
// tables. Registration is last-writer-wins on name
// collision — the registry itself never errors; diagnostics about
// redeclaration, if wanted, are a validation-pass concern.
type Registry struct {
	Functions map[string]*FuncSig
	Objects   map[string]*ObjectDef
	Enums     map[string]*EnumDef
}

func NewRegistry() *Registry {
	return &Registry{
		Functions: make(map[string]*FuncSig),
		Objects:   make(map[string]*ObjectDef),
		Enums:     make(map[string]*EnumDef),
	}
}

func (r *Registry) RegisterFunction(sig *FuncSig) { r.Functions[sig.Name] = sig }
func (r *Registry) RegisterObject(def *ObjectDef) { r.Objects[def.Name] = def }
func (r *Registry) RegisterEnum(def *EnumDef)      { r.Enums[def.Name] = def }

func (r *Registry) LookupFunction(name string) (*FuncSig, bool) {
	sig, ok := r.Functions[name]
	return sig, ok
}

func (r *Registry) LookupObject(name string) (*ObjectDef, bool) {
	def, ok := r.Objects[name]
	return def, ok
}

func (r *Registry) LookupEnum(name string) (*EnumDef, bool) {
	def, ok := r.Enums[name]
	return def, ok
}

// FieldType returns the declared type and optional-flag of a field on a
// registered object, or (zero, false, false) if the object or field is unknown.
func (r *Registry) FieldType(objName, field string) (CheckedType, bool, bool) {
	def, ok := r.Objects[objName]
	if !ok {
		return CheckedType{}, false, false
	}
	for _, f := range def.Fields {
		if f.Name == field {
			return f.Type, f.Optional, true
		}
	}
	return CheckedType{}, false, false
}

// UnboxTable maps variable name -> its unboxing classification. Variable
// names are scoped informally by the caller (the escape analyzer runs one
// table per function body and merges results keyed by a qualified name
// when needed); within one function scope names are unique by construction
// of the parser (re-declaration shadows).
type UnboxTable struct {
	entries map[string]UnboxInfo
}

func NewUnboxTable() *UnboxTable {
	return &UnboxTable{entries: make(map[string]UnboxInfo)}
}

func (t *UnboxTable) Mark(name string, native Kind, kind UnboxKind) {
	t.entries[name] = UnboxInfo{Name: name, Native: native, Kind: kind}
}

// Lookup is nil-safe: module-level statement lowering runs with no unbox
// table at all (globals are always boxed), and a nil table simply reports
// nothing unboxed.
func (t *UnboxTable) Lookup(name string) (UnboxInfo, bool) {
	if t == nil {
		return UnboxInfo{}, false
	}
	info, ok := t.entries[name]
	return info, ok
}

func (t *UnboxTable) IsUnboxed(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}
