package typecheck

import "github.com/hemlock-lang/hemlock/internal/types"

// Assignable decides `to ← from`, most permissive rule first.
func Assignable(to, from types.CheckedType) bool {
	// 1. Either side Any/Unknown.
	if to.IsPermissive() || from.IsPermissive() {
		return true
	}
	// 2. Null source.
	if from.Kind == types.Null {
		return to.Nullable || to.Kind == types.Null
	}
	// 3. Structural equality.
	if types.Equals(to, from) {
		return true
	}
	// 4. Nullable destination, otherwise-equal non-nullable source.
	if to.Nullable {
		loosened := to
		loosened.Nullable = false
		if types.Equals(loosened, from) {
			return true
		}
	}
	// 5. Both numeric.
	if to.IsNumeric() && from.IsNumeric() {
		return true
	}
	// 6. Rune->integer, numeric/Rune->Bool, any scalar->String.
	if to.IsInteger() && from.Kind == types.Rune {
		return true
	}
	if to.Kind == types.Bool && (from.IsNumeric() || from.Kind == types.Rune) {
		return true
	}
	if to.Kind == types.String && isScalar(from) {
		return true
	}
	// 7. Array<->Array.
	if to.Kind == types.Array && from.Kind == types.Array {
		if to.Element == nil || from.Element == nil {
			return true
		}
		return Assignable(*to.Element, *from.Element)
	}
	// 8. Object -> Custom (duck-typed).
	if to.Kind == types.Custom && from.Kind == types.Object {
		return true
	}
	// 9. Custom -> Custom by name.
	if to.Kind == types.Custom && from.Kind == types.Custom {
		return to.TypeName == from.TypeName
	}
	// 10. Otherwise.
	return false
}

func isScalar(t types.CheckedType) bool {
	return t.IsNumeric() || t.Kind == types.Bool || t.Kind == types.Rune || t.Kind == types.String || t.Kind == types.Null
}
