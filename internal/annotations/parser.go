package annotations

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Directive is one parsed source directive of the form
//
//	//vessel::<type> [target] [-attr=value] [-flag]
//
// The target, when present and the annotation type declares a positional
// attribute, is also stored under that attribute name.
type Directive struct {
	Instance Instance
	Target   string
	Line     int
	Raw      string
}

// directive is the participle grammar root.
type directive struct {
	Type   string      `parser:"Comment Marker Separator @Ident"`
	Target *string     `parser:"@(Ident | String | Bare)?"`
	Items  []paramItem `parser:"@@*"`
}

type paramItem struct {
	Name  string    `parser:"Dash @Ident"`
	Value *rawValue `parser:"(Equals @@)?"`
}

// rawValue is one attribute value. Comma-joined lists lex as a leading
// token plus Bare continuations (",cache" and the like), so the value
// swallows the whole run.
type rawValue struct {
	Str   *string  `parser:"@String"`
	Parts []string `parser:"| @(Number | Ident | Bare) @Bare*"`
}

func (v *rawValue) text() string {
	if v.Str != nil {
		return unquote(*v.Str)
	}
	return strings.Join(v.Parts, "")
}

// Parser parses vessel directives and validates them against a registry.
type Parser struct {
	registry *Registry
	parser   *participle.Parser[directive]
}

// NewParser builds the directive parser bound to an annotation registry.
func NewParser(registry *Registry) *Parser {
	lex := lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `//`},
		{Name: "Marker", Pattern: `vessel`},
		{Name: "Separator", Pattern: `::`},
		{Name: "String", Pattern: `"(\\"|[^"])*"`},
		{Name: "Number", Pattern: `-?[0-9]+`},
		{Name: "Dash", Pattern: `-`},
		{Name: "Equals", Pattern: `=`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Bare", Pattern: `[^\s=]+`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	return &Parser{
		registry: registry,
		parser: participle.MustBuild[directive](
			participle.Lexer(lex),
			participle.Elide("Whitespace"),
			participle.UseLookahead(2),
		),
	}
}

// Parse parses a single directive line.
func (p *Parser) Parse(line string) (*Directive, error) {
	trimmed := strings.TrimSpace(line)

	ast, err := p.parser.ParseString("", trimmed)
	if err != nil {
		return nil, &ParseError{Directive: trimmed, Cause: err}
	}

	typ, ok := p.registry.Lookup(ast.Type)
	if !ok {
		return nil, &ParseError{
			Directive: trimmed,
			Cause:     fmt.Errorf("%w: %q", ErrTypeNotRegistered, ast.Type),
		}
	}

	d := &Directive{
		Instance: Instance{
			TypeName: typ.Name,
			Values:   make(map[string]any),
		},
		Raw: trimmed,
	}

	if ast.Target != nil {
		d.Target = unquote(*ast.Target)
		if typ.Positional != "" {
			value, err := p.convert(typ, typ.Positional, d.Target, true)
			if err != nil {
				return nil, &ParseError{Directive: trimmed, Cause: err}
			}
			d.Instance.Values[typ.Positional] = value
		}
	}

	for _, item := range ast.Items {
		attr, ok := typ.Attributes[item.Name]
		if !ok {
			return nil, &ParseError{
				Directive: trimmed,
				Cause: &AttributeError{
					Annotation: typ.Name,
					Attribute:  item.Name,
					Cause:      fmt.Errorf("unknown attribute"),
				},
			}
		}

		if item.Value == nil {
			// A bare flag is true for bool attributes, and the declared
			// default for anything else that has one.
			switch {
			case attr.Kind == BoolKind:
				d.Instance.Values[item.Name] = true
			case attr.Default != nil:
				d.Instance.Values[item.Name] = attr.Default
			default:
				return nil, &ParseError{
					Directive: trimmed,
					Cause: &AttributeError{
						Annotation: typ.Name,
						Attribute:  item.Name,
						Cause:      fmt.Errorf("%s attribute requires a value", attr.Kind),
					},
				}
			}
			continue
		}

		value, err := p.convert(typ, item.Name, item.Value.text(), false)
		if err != nil {
			return nil, &ParseError{Directive: trimmed, Cause: err}
		}
		d.Instance.Values[item.Name] = value
	}

	return d, nil
}

// ParseSource scans source text and parses every vessel directive in it.
// Non-directive lines are ignored. The first parse failure aborts the scan.
func (p *Parser) ParseSource(source string) ([]*Directive, error) {
	var directives []*Directive

	for i, line := range strings.Split(source, "\n") {
		if !IsDirective(line) {
			continue
		}

		d, err := p.Parse(line)
		if err != nil {
			return nil, err
		}
		d.Line = i + 1
		directives = append(directives, d)
	}

	return directives, nil
}

// IsDirective reports whether a source line carries a vessel directive.
func IsDirective(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))
	return strings.HasPrefix(rest, "vessel::")
}

// convert coerces a raw token to the attribute's declared kind.
func (p *Parser) convert(typ *Type, attrName, raw string, positional bool) (any, error) {
	attr := typ.Attributes[attrName]

	switch attr.Kind {
	case StringKind:
		return raw, nil

	case IntKind:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &AttributeError{
				Annotation: typ.Name,
				Attribute:  attrName,
				Cause:      fmt.Errorf("%q is not an int", raw),
			}
		}
		return n, nil

	case BoolKind:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &AttributeError{
				Annotation: typ.Name,
				Attribute:  attrName,
				Cause:      fmt.Errorf("%q is not a bool", raw),
			}
		}
		return b, nil

	case StringSliceKind:
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil
	}

	if positional {
		return raw, nil
	}
	return nil, &AttributeError{
		Annotation: typ.Name,
		Attribute:  attrName,
		Cause:      fmt.Errorf("unsupported attribute kind"),
	}
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\"`, `"`)
	}
	return s
}
