package classfile

import "fmt"

// ParseFieldType parses a single field descriptor: one of B C D F I J S Z,
// or L<binary-class-name>;. Arrays ([) are rejected — the data model has
// no array type.
func ParseFieldType(desc string) (JvmType, error) {
	t, rest, err := parseFieldType(desc)
	if err != nil {
		return Void, err
	}
	if rest != "" {
		return Void, fmt.Errorf("field descriptor %q has trailing data %q", desc, rest)
	}
	return t, nil
}

func parseFieldType(desc string) (JvmType, string, error) {
	if desc == "" {
		return Void, "", fmt.Errorf("empty type descriptor")
	}
	switch desc[0] {
	case 'B':
		return Byte, desc[1:], nil
	case 'C':
		return Char, desc[1:], nil
	case 'D':
		return Double, desc[1:], nil
	case 'F':
		return Float, desc[1:], nil
	case 'I':
		return Int, desc[1:], nil
	case 'J':
		return Long, desc[1:], nil
	case 'S':
		return Short, desc[1:], nil
	case 'Z':
		return Boolean, desc[1:], nil
	case 'L':
		end := 1
		for end < len(desc) && desc[end] != ';' {
			end++
		}
		if end >= len(desc) {
			return Void, "", fmt.Errorf("unterminated class type in descriptor %q", desc)
		}
		return Reference, desc[end+1:], nil
	case '[':
		return Void, "", fmt.Errorf("array descriptor %q: arrays are unsupported", desc)
	default:
		return Void, "", fmt.Errorf("unrecognized type descriptor byte %q in %q", desc[0], desc)
	}
}

// ParseMethodDescriptor parses a "(Params)Return" method descriptor into
// the parameter types, return type, and the argument slot count a caller
// must reserve (which for a non-static method additionally requires the
// receiver slot — callers account for that themselves).
func ParseMethodDescriptor(desc string) (params []JvmType, ret JvmType, argSlots int, err error) {
	if len(desc) < 2 || desc[0] != '(' {
		return nil, Void, 0, fmt.Errorf("malformed method descriptor %q: missing '('", desc)
	}
	rest := desc[1:]
	for len(rest) > 0 && rest[0] != ')' {
		var t JvmType
		t, rest, err = parseFieldType(rest)
		if err != nil {
			return nil, Void, 0, fmt.Errorf("parsing method descriptor %q: %w", desc, err)
		}
		params = append(params, t)
		argSlots += t.Slots()
	}
	if len(rest) == 0 || rest[0] != ')' {
		return nil, Void, 0, fmt.Errorf("malformed method descriptor %q: missing ')'", desc)
	}
	rest = rest[1:]
	if rest == "V" {
		return params, Void, argSlots, nil
	}
	ret, rest, err = parseFieldType(rest)
	if err != nil {
		return nil, Void, 0, fmt.Errorf("parsing return type of %q: %w", desc, err)
	}
	if rest != "" {
		return nil, Void, 0, fmt.Errorf("method descriptor %q has trailing data %q", desc, rest)
	}
	return params, ret, argSlots, nil
}
