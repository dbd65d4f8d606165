package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Type classifies a schema argument or return.
type Type uint8

// Schema types.
const (
	TypeTensor Type = iota
	TypeOptionalTensor
	TypeTensorList
	TypeOptionalTensorList
	TypeInt
	TypeIntList
	TypeFloat
	TypeBool
	TypeScalar
	TypeString
)

var typeNames = map[Type]string{
	TypeTensor:             "Tensor",
	TypeOptionalTensor:     "Tensor?",
	TypeTensorList:         "Tensor[]",
	TypeOptionalTensorList: "Tensor?[]",
	TypeInt:                "int",
	TypeIntList:            "int[]",
	TypeFloat:              "float",
	TypeBool:               "bool",
	TypeScalar:             "Scalar",
	TypeString:             "str",
}

// String returns the schema spelling of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsTensor reports whether the type is a single (possibly optional) tensor.
func (t Type) IsTensor() bool {
	return t == TypeTensor || t == TypeOptionalTensor
}

// IsTensorList reports whether the type is a list of (possibly optional) tensors.
func (t Type) IsTensorList() bool {
	return t == TypeTensorList || t == TypeOptionalTensorList
}

// AliasInfo is an alias annotation such as "(a)" or "(a!)".
type AliasInfo struct {
	Set     string
	IsWrite bool
}

// Argument describes one argument or return of an operator.
type Argument struct {
	Name       string
	Type       Type
	Alias      *AliasInfo
	Default    string
	HasDefault bool
	KwargOnly  bool
}

// Schema is the static signature of an operator.
type Schema struct {
	Name      string
	Overload  string
	Arguments []Argument
	Returns   []Argument
}

// OperatorName returns "name" or "name.overload".
func (s *Schema) OperatorName() string {
	if s.Overload == "" {
		return s.Name
	}
	return s.Name + "." + s.Overload
}

// IsMutable reports whether any argument is written to.
func (s *Schema) IsMutable() bool {
	for _, arg := range s.Arguments {
		if arg.Alias != nil && arg.Alias.IsWrite {
			return true
		}
	}
	return false
}

// HasAnyAliasInfo reports whether any argument or return carries an alias annotation.
func (s *Schema) HasAnyAliasInfo() bool {
	for _, arg := range s.Arguments {
		if arg.Alias != nil {
			return true
		}
	}
	for _, ret := range s.Returns {
		if ret.Alias != nil {
			return true
		}
	}
	return false
}

// IsInplace reports whether the operator mutates its first argument in place and
// returns it: a mutable schema with a single written return, a written first
// argument and no other aliased argument.
func (s *Schema) IsInplace() bool {
	if !s.IsMutable() || len(s.Returns) != 1 || len(s.Arguments) == 0 {
		return false
	}
	first := s.Arguments[0].Alias
	if first == nil || !first.IsWrite {
		return false
	}
	for _, arg := range s.Arguments[1:] {
		if arg.Alias != nil {
			return false
		}
	}
	ret := s.Returns[0].Alias
	return ret != nil && ret.IsWrite
}

// String formats the schema in the same syntax ParseSchema accepts.
func (s *Schema) String() string {
	args := make([]string, 0, len(s.Arguments)+1)
	kwargs := false
	for _, arg := range s.Arguments {
		if arg.KwargOnly && !kwargs {
			args = append(args, "*")
			kwargs = true
		}
		args = append(args, arg.String())
	}
	rets := make([]string, len(s.Returns))
	for i, ret := range s.Returns {
		rets[i] = ret.String()
	}
	out := fmt.Sprintf("%s(%s) -> ", s.OperatorName(), strings.Join(args, ", "))
	if len(rets) == 1 {
		return out + rets[0]
	}
	return out + "(" + strings.Join(rets, ", ") + ")"
}

// String formats a single argument.
func (a Argument) String() string {
	typ := a.Type.String()
	if a.Alias != nil {
		base, suffix := typ, ""
		if i := strings.IndexAny(typ, "?["); i >= 0 {
			base, suffix = typ[:i], typ[i:]
		}
		bang := ""
		if a.Alias.IsWrite {
			bang = "!"
		}
		typ = fmt.Sprintf("%s(%s%s)%s", base, a.Alias.Set, bang, suffix)
	}
	if a.Name != "" {
		typ += " " + a.Name
	}
	if a.HasDefault {
		typ += "=" + a.Default
	}
	return typ
}

var argPattern = regexp.MustCompile(`^([A-Za-z]+)(?:\(([a-z]+)(!?)\))?(\?)?(\[\])?(?:\s+([A-Za-z_][A-Za-z0-9_]*))?(?:\s*=\s*(.+))?$`)

// ParseSchema parses an operator signature such as
//
//	add_(Tensor(a!) self, Tensor other, *, Scalar alpha=1) -> Tensor(a!)
//	aminmax(Tensor self) -> (Tensor min, Tensor max)
func ParseSchema(text string) (*Schema, error) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open <= 0 {
		return nil, errors.Wrapf(ErrBadSchema, "%q: missing argument list", text)
	}
	closing := matchingParen(text, open)
	if closing < 0 {
		return nil, errors.Wrapf(ErrBadSchema, "%q: unbalanced parentheses", text)
	}

	s := &Schema{}
	s.Name, s.Overload, _ = strings.Cut(strings.TrimSpace(text[:open]), ".")
	if s.Name == "" {
		return nil, errors.Wrapf(ErrBadSchema, "%q: empty operator name", text)
	}

	kwargs := false
	for _, field := range splitTopLevel(text[open+1 : closing]) {
		if field == "*" {
			kwargs = true
			continue
		}
		arg, err := parseArgument(field)
		if err != nil {
			return nil, errors.WithMessagef(err, "schema %q", text)
		}
		arg.KwargOnly = kwargs
		s.Arguments = append(s.Arguments, arg)
	}

	rest := strings.TrimSpace(text[closing+1:])
	if !strings.HasPrefix(rest, "->") {
		return nil, errors.Wrapf(ErrBadSchema, "%q: missing '->'", text)
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "->"))
	var retFields []string
	if strings.HasPrefix(rest, "(") && matchingParen(rest, 0) == len(rest)-1 && !argPattern.MatchString(rest) {
		retFields = splitTopLevel(rest[1 : len(rest)-1])
	} else {
		retFields = []string{rest}
	}
	for _, field := range retFields {
		ret, err := parseArgument(field)
		if err != nil {
			return nil, errors.WithMessagef(err, "schema %q returns", text)
		}
		s.Returns = append(s.Returns, ret)
	}
	return s, nil
}

// MustParseSchema is ParseSchema for static signatures; it panics on error.
func MustParseSchema(text string) *Schema {
	s, err := ParseSchema(text)
	if err != nil {
		panic(err)
	}
	return s
}

func parseArgument(field string) (Argument, error) {
	m := argPattern.FindStringSubmatch(strings.TrimSpace(field))
	if m == nil {
		return Argument{}, errors.Wrapf(ErrBadSchema, "cannot parse argument %q", field)
	}
	base, aliasSet, bang, optional, list, name, def := m[1], m[2], m[3], m[4], m[5], m[6], m[7]
	var typ Type
	switch base {
	case "Tensor":
		switch {
		case list != "" && optional != "":
			typ = TypeOptionalTensorList
		case list != "":
			typ = TypeTensorList
		case optional != "":
			typ = TypeOptionalTensor
		default:
			typ = TypeTensor
		}
	case "int":
		typ = TypeInt
		if list != "" {
			typ = TypeIntList
		}
	case "float":
		typ = TypeFloat
	case "bool":
		typ = TypeBool
	case "Scalar":
		typ = TypeScalar
	case "str":
		typ = TypeString
	default:
		return Argument{}, errors.Wrapf(ErrBadSchema, "unknown type %q in %q", base, field)
	}
	if list != "" && base != "Tensor" && base != "int" {
		return Argument{}, errors.Wrapf(ErrBadSchema, "unsupported list type %q in %q", base, field)
	}
	arg := Argument{Name: name, Type: typ, Default: strings.TrimSpace(def), HasDefault: def != ""}
	if aliasSet != "" {
		arg.Alias = &AliasInfo{Set: aliasSet, IsWrite: bang == "!"}
	}
	return arg, nil
}

// matchingParen returns the index of the parenthesis closing the one at open, or -1.
func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on commas that are not nested inside parentheses or brackets.
func splitTopLevel(s string) []string {
	var fields []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		fields = append(fields, last)
	}
	return fields
}
