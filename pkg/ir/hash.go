package ir

import "strconv"

// Hash implements the value hashing rule of §3: primitives hash to
// "<tag>:<literal>", options hash structurally through their inner value,
// and everything else — lists, sets, maps, refs, closures, errors,
// futures, channels, tasks, select-results — hashes by a fresh identity
// token assigned once at construction. This means two structurally
// identical complex values (e.g. two freshly built lists with the same
// elements) are never equal under Hash; set/map membership for such
// values is therefore identity-based, as spec.md's DATA MODEL section
// states explicitly.
func Hash(v *Value) string {
	if v == nil {
		return "nil"
	}
	switch v.Kind {
	case VBool:
		return "bool:" + strconv.FormatBool(v.Bool)
	case VInt:
		return "int:" + strconv.FormatInt(v.Int, 10)
	case VFloat:
		return "float:" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case VString:
		return "string:" + v.Str
	case VVoid:
		return "void:"
	case VOption:
		if v.IsNone() {
			return "o:none"
		}
		return "o:some:" + Hash(v.Option)
	default:
		return v.identity
	}
}
