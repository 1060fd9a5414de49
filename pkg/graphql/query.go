package graphql

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Field is a node of a selection set, optionally with arguments.
type Field struct {
	Name   string
	Args   map[string]any
	Fields []Field
}

// F builds a field with a sub-selection.
func F(name string, fields ...Field) Field {
	return Field{Name: name, Fields: fields}
}

// Names builds leaf fields.
func Names(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n}
	}
	return out
}

// WithArgs returns a copy of f carrying args.
func (f Field) WithArgs(args map[string]any) Field {
	f.Args = args
	return f
}

func (f Field) write(b *strings.Builder) error {
	b.WriteString(f.Name)
	if len(f.Args) > 0 {
		b.WriteByte('(')
		keys := sortedKeys(f.Args)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			lit, err := Literal(f.Args[k])
			if err != nil {
				return eris.Wrapf(err, "graphql: argument %s.%s", f.Name, k)
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(lit)
		}
		b.WriteByte(')')
	}
	if len(f.Fields) > 0 {
		b.WriteString(" { ")
		for i, sub := range f.Fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			if err := sub.write(b); err != nil {
				return err
			}
		}
		b.WriteString(" }")
	}
	return nil
}

// Query renders a named query operation around root.
func Query(name string, root Field) (Request, error) {
	return operation("query", name, root)
}

// Mutation renders a named mutation operation around root.
func Mutation(name string, root Field) (Request, error) {
	return operation("mutation", name, root)
}

func operation(kind, name string, root Field) (Request, error) {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(" { ")
	if err := root.write(&b); err != nil {
		return Request{}, err
	}
	b.WriteString(" }")
	return Request{Query: b.String(), OperationName: name}, nil
}

// Literal renders v as a GraphQL input value. Objects are rendered with
// sorted keys so identical inputs produce identical queries.
func Literal(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(t), nil
	case json.Number:
		return t.String(), nil
	case Enum:
		return string(t), nil
	case time.Time:
		return quote(t.UTC().Format(time.RFC3339)), nil
	case fmt.Stringer:
		return quote(t.String()), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case map[string]any:
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range sortedKeys(t) {
			if i > 0 {
				b.WriteString(", ")
			}
			lit, err := Literal(t[k])
			if err != nil {
				return "", err
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(lit)
		}
		b.WriteByte('}')
		return b.String(), nil
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			lit, err := Literal(e)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		// Structs, typed slices and maps go through their JSON form.
		raw, err := json.Marshal(v)
		if err != nil {
			return "", eris.Wrapf(err, "graphql: literal for %T", v)
		}
		var generic any
		dec := json.NewDecoder(strings.NewReader(string(raw)))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return "", eris.Wrapf(err, "graphql: literal for %T", v)
		}
		return Literal(generic)
	}
}

// Enum is rendered unquoted.
type Enum string

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
