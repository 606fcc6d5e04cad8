package recorddb

import (
	"fmt"
	"io"
	"strings"
)

// Write round-trips obj to w in canonical form (§4.3: "Writer round-trips
// values into canonical form"). Records that are objects or lists of more
// than one element are indented one tab per depth and end with a newline;
// scalar records are single-line, space-separated; every record ends
// with ';'.
//
// Errors from the underlying writer propagate out immediately — no
// setjmp/longjmp equivalent is needed since Go already unwinds the call
// stack via normal returns (§5 "replace with... ?-style propagation").
func Write(w io.Writer, obj *Object) error {
	ctx := &writer{w: w}
	return ctx.writeObjectBody(obj, 0)
}

// WriteString renders obj to its canonical text form.
func WriteString(obj *Object) (string, error) {
	var b strings.Builder
	if err := Write(&b, obj); err != nil {
		return "", err
	}
	return b.String(), nil
}

type writer struct {
	w io.Writer
}

func (c *writer) writeObjectBody(obj *Object, depth int) error {
	for _, name := range obj.Names() {
		v, _ := obj.Get(name)
		if err := c.writeRecord(name, v, depth); err != nil {
			return err
		}
	}
	return nil
}

func (c *writer) writeRecord(name string, v *Value, depth int) error {
	complex := v.Kind == KindObject || (v.Kind == KindList && len(v.List) > 1)
	if complex {
		if err := c.indent(depth); err != nil {
			return err
		}
	}
	if err := c.writeQString(name); err != nil {
		return err
	}
	if _, err := io.WriteString(c.w, " "); err != nil {
		return err
	}
	switch v.Kind {
	case KindString:
		if err := c.writeQString(v.Str); err != nil {
			return err
		}
		if _, err := io.WriteString(c.w, ";\n"); err != nil {
			return err
		}
	case KindList:
		if err := c.writeList(v.List, depth, complex); err != nil {
			return err
		}
	case KindObject:
		if _, err := io.WriteString(c.w, "{\n"); err != nil {
			return err
		}
		if err := c.writeObjectBody(v.Object, depth+1); err != nil {
			return err
		}
		if err := c.indent(depth); err != nil {
			return err
		}
		if _, err := io.WriteString(c.w, "};\n"); err != nil {
			return err
		}
	}
	return nil
}

func (c *writer) writeList(items []string, depth int, complex bool) error {
	if _, err := io.WriteString(c.w, "("); err != nil {
		return err
	}
	for i, s := range items {
		if i > 0 {
			if _, err := io.WriteString(c.w, ", "); err != nil {
				return err
			}
		}
		if err := c.writeQString(s); err != nil {
			return err
		}
	}
	suffix := ");\n"
	if !complex {
		suffix = ");\n"
	}
	_, err := io.WriteString(c.w, suffix)
	return err
}

func (c *writer) indent(depth int) error {
	_, err := io.WriteString(c.w, strings.Repeat("\t", depth))
	return err
}

func (c *writer) writeQString(s string) error {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if ch < 0x20 || ch == 0x7f {
				// Only bytes that would otherwise be ambiguous are escaped
				// (§8): arbitrary control bytes use \xhh.
				fmt.Fprintf(&b, `\x%02x`, ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte('"')
	_, err := io.WriteString(c.w, b.String())
	return err
}
