// Package module defines the module system's data shapes and its
// resolution contract. Locating, reading, and compiling a module's source
// text from a filesystem or remote path is an external collaborator's
// concern (the lexer/parser/driver layer), so Cache here is declared only
// as an interface: the core depends on it without implementing it.
package module

import "github.com/hemlock-lang/hemlock/internal/types"

// ExportedSymbol is one name a module makes visible to its importers,
// tagged with its semantic type so importing code can type-check uses of
// it without re-checking the exporting module's body.
type ExportedSymbol struct {
	Name string
	Type types.CheckedType
	// IsType marks an exported object/enum definition rather than a value,
	// so imports can distinguish `import {Point} from "geom"` binding a
	// constructor-shaped name from one binding a plain function/constant.
	IsType bool
}

// CompiledModule is the result of compiling one source unit: its mangling
// prefix (used to namespace every emitted C symbol so two modules can
// declare a function of the same surface name) and its export table.
type CompiledModule struct {
	Path    string
	Prefix  string // e.g. "m0_", "m1_", ...
	Exports []ExportedSymbol
	Objects map[string]*types.ObjectDef
	Enums   map[string]*types.EnumDef
}

// ImportBinding records how one imported name is locally bound, mirroring
// the three surface import forms: a namespace alias, a
// star-import merging every export into scope, or an explicit named list
// with optional per-name aliasing.
type ImportBinding struct {
	LocalName  string
	ModulePath string
	SourceName string // empty for a namespace import
}

// Cache resolves an import path to its compiled module, memoizing so a
// module imported from multiple call sites is only compiled once. A real
// implementation backs this with the filesystem or a remote registry;
// that lookup strategy is out of this package's scope; this package only
// fixes the shape callers depend on.
type Cache interface {
	Resolve(path string) (*CompiledModule, error)
}
