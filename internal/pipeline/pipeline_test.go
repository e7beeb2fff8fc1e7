package pipeline_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hemlock-lang/hemlock/ast"
	"github.com/hemlock-lang/hemlock/internal/module"
	"github.com/hemlock-lang/hemlock/internal/pipeline"
)

// scenario is one end-to-end fixture entry: a named hand-built program
// (built in Go, since no lexer/parser lives in this module) paired with
// the outcome the pipeline should produce for it.
type scenario struct {
	Name              string   `yaml:"name"`
	ExpectFail        bool     `yaml:"expectFail"`
	ExpectContains    []string `yaml:"expectContains"`
	ExpectNotContains []string `yaml:"expectNotContains"`
}

type fixtureFile struct {
	Scenarios []scenario `yaml:"scenarios"`
}

func loadFixtures(t *testing.T) []scenario {
	t.Helper()
	raw, err := os.ReadFile("fixtures_test.yaml")
	require.NoError(t, err)
	var f fixtureFile
	require.NoError(t, yaml.Unmarshal(raw, &f))
	require.NotEmpty(t, f.Scenarios)
	return f.Scenarios
}

// buildProgram constructs the AST for one named scenario.
func buildProgram(name string) *ast.Program {
	i32 := ast.PrimitiveType{Name: "i32"}

	switch name {
	case "const_reassignment_fails":
		return &ast.Program{
			File: "t.hml",
			Statements: []ast.Stmt{
				&ast.ConstStmt{Name: "x", Value: &ast.NumberExpr{Literal: "1"}},
				&ast.ExprStmt{X: &ast.AssignExpr{Target: &ast.IdentExpr{Name: "x"}, Value: &ast.NumberExpr{Literal: "2"}}},
			},
		}

	case "tail_recursion_becomes_loop":
		return &ast.Program{
			File: "t.hml",
			Statements: []ast.Stmt{
				&ast.FuncDecl{
					Name:   "factorial",
					Params: []ast.Param{{Name: "n", Type: i32}, {Name: "acc", Type: i32}},
					Return: i32,
					Body: []ast.Stmt{
						&ast.IfStmt{
							Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
							Then: []ast.Stmt{&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "acc"}}},
						},
						&ast.ReturnStmt{Value: &ast.CallExpr{
							Func: &ast.IdentExpr{Name: "factorial"},
							Args: []ast.Expr{
								&ast.BinaryExpr{Op: "-", Left: &ast.IdentExpr{Name: "n"}, Right: &ast.NumberExpr{Literal: "1"}},
								&ast.BinaryExpr{Op: "*", Left: &ast.IdentExpr{Name: "acc"}, Right: &ast.IdentExpr{Name: "n"}},
							},
						}},
					},
				},
			},
		}

	case "for_loop_counter_unboxes":
		return &ast.Program{
			File: "t.hml",
			Statements: []ast.Stmt{
				&ast.FuncDecl{
					Name:   "sumTo",
					Params: []ast.Param{{Name: "n", Type: i32}},
					Return: i32,
					Body: []ast.Stmt{
						&ast.LetStmt{Name: "total", Type: i32, Value: &ast.NumberExpr{Literal: "0"}},
						&ast.ForStmt{
							Init: &ast.LetStmt{Name: "i", Type: i32, Value: &ast.NumberExpr{Literal: "0"}},
							Cond: &ast.BinaryExpr{Op: "<", Left: &ast.IdentExpr{Name: "i"}, Right: &ast.IdentExpr{Name: "n"}},
							Post: &ast.ExprStmt{X: &ast.IncDecExpr{Op: "++", Operand: &ast.IdentExpr{Name: "i"}}},
							Body: []ast.Stmt{
								&ast.ExprStmt{X: &ast.AssignExpr{
									Target: &ast.IdentExpr{Name: "total"},
									Value:  &ast.BinaryExpr{Op: "+", Left: &ast.IdentExpr{Name: "total"}, Right: &ast.IdentExpr{Name: "i"}},
								}},
							},
						},
						&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "total"}},
					},
				},
			},
		}

	case "try_finally_with_return_in_try":
		return &ast.Program{
			File: "t.hml",
			Statements: []ast.Stmt{
				&ast.FuncDecl{
					Name:   "safeDiv",
					Params: []ast.Param{{Name: "a", Type: i32}, {Name: "b", Type: i32}},
					Return: i32,
					Body: []ast.Stmt{
						&ast.TryStmt{
							Body: []ast.Stmt{
								&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "/", Left: &ast.IdentExpr{Name: "a"}, Right: &ast.IdentExpr{Name: "b"}}},
							},
							Catch: &ast.CatchClause{
								ErrVar: "e",
								Body:   []ast.Stmt{&ast.ReturnStmt{Value: &ast.NumberExpr{Literal: "0"}}},
							},
							Finally: []ast.Stmt{
								&ast.ExprStmt{X: &ast.CallExpr{Func: &ast.IdentExpr{Name: "noop"}}},
							},
						},
						&ast.ReturnStmt{Value: &ast.NumberExpr{Literal: "0"}},
					},
				},
				&ast.ExternFnStmt{Name: "noop", Return: i32},
			},
		}

	case "closure_capture_with_self_reference":
		return &ast.Program{
			File: "t.hml",
			Statements: []ast.Stmt{
				&ast.FuncDecl{
					Name:   "makeAdder",
					Params: []ast.Param{{Name: "base", Type: i32}},
					Return: ast.PrimitiveType{Name: "any"},
					Body: []ast.Stmt{
						&ast.LetStmt{Name: "adder", Value: &ast.FunctionExpr{
							Params: []ast.Param{{Name: "x", Type: i32}},
							Body: []ast.Stmt{
								&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.IdentExpr{Name: "x"}, Right: &ast.IdentExpr{Name: "base"}}},
							},
						}},
						&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "adder"}},
					},
				},
			},
		}
	case "string_concat_chain_fuses":
		return &ast.Program{
			File: "t.hml",
			Statements: []ast.Stmt{
				&ast.FuncDecl{
					Name:   "greet",
					Params: []ast.Param{{Name: "b", Type: ast.PrimitiveType{Name: "string"}}, {Name: "d", Type: ast.PrimitiveType{Name: "string"}}},
					Return: ast.PrimitiveType{Name: "string"},
					Body: []ast.Stmt{
						&ast.LetStmt{Name: "s", Value: &ast.BinaryExpr{
							Op: "+",
							Left: &ast.BinaryExpr{
								Op:   "+",
								Left: &ast.BinaryExpr{Op: "+", Left: &ast.StringExpr{Value: "a"}, Right: &ast.IdentExpr{Name: "b"}},
								Right: &ast.StringExpr{Value: "c"},
							},
							Right: &ast.IdentExpr{Name: "d"},
						}},
						&ast.ReturnStmt{Value: &ast.IdentExpr{Name: "s"}},
					},
				},
			},
		}
	}
	panic("unknown scenario: " + name)
}

// fakeCache serves a single pre-compiled module for import-binding tests;
// real path resolution is the driver's concern.
type fakeCache struct {
	mod *module.CompiledModule
}

func (f *fakeCache) Resolve(path string) (*module.CompiledModule, error) { return f.mod, nil }

func TestTopLevelLetBecomesMangledGlobal(t *testing.T) {
	prog := &ast.Program{
		File: "t.hml",
		Statements: []ast.Stmt{
			&ast.LetStmt{Name: "greeting", Value: &ast.StringExpr{Value: "hi"}},
		},
	}
	out := pipeline.Compile(prog, pipeline.Options{})
	require.False(t, out.Diagnostics.Failed())
	assert.Contains(t, out.CSource, "HmlValue _main_greeting;")
	assert.Contains(t, out.CSource, `(_main_greeting = hml_val_string("hi"))`)
	assert.Contains(t, out.CSource, "void _main_init(void) {")
}

func TestNamespaceImportBindsExportObject(t *testing.T) {
	cache := &fakeCache{mod: &module.CompiledModule{
		Path:    "dep.hml",
		Prefix:  "_mod7_",
		Exports: []module.ExportedSymbol{{Name: "foo"}},
	}}
	prog := &ast.Program{
		File: "t.hml",
		Statements: []ast.Stmt{
			&ast.ImportStmt{Kind: ast.ImportNamespace, Path: "dep", Alias: "dep"},
		},
	}
	out := pipeline.Compile(prog, pipeline.Options{Modules: cache})
	require.False(t, out.Diagnostics.Failed())
	assert.Contains(t, out.CSource, "_mod7_init()")
	assert.Contains(t, out.CSource, `hml_object_set_field(_main_dep, "foo", _mod7_foo)`)
}

func TestNamedImportAliasResolvesToMangledSymbol(t *testing.T) {
	cache := &fakeCache{mod: &module.CompiledModule{
		Path:    "dep.hml",
		Prefix:  "_mod7_",
		Exports: []module.ExportedSymbol{{Name: "foo"}},
	}}
	prog := &ast.Program{
		File: "t.hml",
		Statements: []ast.Stmt{
			&ast.ImportStmt{Kind: ast.ImportNamed, Path: "dep", Names: []ast.ImportName{{Name: "foo", Alias: "bar"}}},
			&ast.LetStmt{Name: "y", Value: &ast.IdentExpr{Name: "bar"}},
		},
	}
	out := pipeline.Compile(prog, pipeline.Options{Modules: cache})
	require.False(t, out.Diagnostics.Failed())
	assert.Contains(t, out.CSource, "(_main_y = _mod7_foo)")
}

func TestEnumVariantNumberingResumesAfterExplicitValue(t *testing.T) {
	prog := &ast.Program{
		File: "t.hml",
		Statements: []ast.Stmt{
			&ast.EnumStmt{Name: "Color", Variants: []ast.EnumVariant{
				{Name: "Red"},
				{Name: "Green", Value: &ast.NumberExpr{Literal: "5"}},
				{Name: "Blue"},
			}},
		},
	}
	out := pipeline.Compile(prog, pipeline.Options{})
	require.False(t, out.Diagnostics.Failed())
	assert.Contains(t, out.CSource, `"Red", hml_val_i32(0)`)
	assert.Contains(t, out.CSource, `"Green", hml_val_i32(5)`)
	assert.Contains(t, out.CSource, `"Blue", hml_val_i32(6)`)
}

func TestExportedLetAssignsMangledGlobal(t *testing.T) {
	prog := &ast.Program{
		File: "t.hml",
		Statements: []ast.Stmt{
			&ast.ExportStmt{Decl: &ast.LetStmt{Name: "answer", Value: &ast.NumberExpr{Literal: "42"}}},
		},
	}
	out := pipeline.Compile(prog, pipeline.Options{ModulePrefix: "_mod3_"})
	require.False(t, out.Diagnostics.Failed())
	assert.Contains(t, out.CSource, "HmlValue _mod3_answer;")
	assert.Contains(t, out.CSource, "(_mod3_answer = hml_val_i32(42))")
}

func TestObjectDefinitionRegistersFieldKinds(t *testing.T) {
	prog := &ast.Program{
		File: "t.hml",
		Statements: []ast.Stmt{
			&ast.DefineObjectStmt{Name: "Point", Fields: []ast.Field{
				{Name: "x", Type: ast.PrimitiveType{Name: "i32"}},
				{Name: "label", Type: ast.PrimitiveType{Name: "string"}, Optional: true},
			}},
		},
	}
	out := pipeline.Compile(prog, pipeline.Options{})
	require.False(t, out.Diagnostics.Failed())
	assert.Contains(t, out.CSource, `hml_register_object_type("Point", 2, "x", HML_VAL_I32, 0, hml_val_null(), "label", HML_VAL_STRING, 1, hml_val_null())`)
}

func TestEndToEndScenarios(t *testing.T) {
	for _, sc := range loadFixtures(t) {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			prog := buildProgram(sc.Name)
			out := pipeline.Compile(prog, pipeline.Options{ModulePrefix: "t_"})

			assert.Equal(t, sc.ExpectFail, out.Diagnostics.Failed(), "diagnostics: %+v", out.Diagnostics.Diagnostics)
			if sc.ExpectFail {
				return
			}
			for _, want := range sc.ExpectContains {
				assert.Contains(t, out.CSource, want)
			}
			for _, notWant := range sc.ExpectNotContains {
				assert.NotContains(t, out.CSource, notWant)
			}
		})
	}
}
