package dom

import (
	"fmt"
	"strings"
)

// Selector is a compound CSS selector restricted to the subset the
// message predicates need: tag, #id, any number of .class and any number
// of [attr] / [attr=val] conditions. Combinators are not supported.
type Selector struct {
	Tag     string
	ID      string
	Classes []string
	Attrs   []AttrCond
}

// AttrCond is one [name] or [name=value] condition.
type AttrCond struct {
	Name  string
	Value string
	HasEq bool
}

// ParseSelector parses a compound selector such as
// `div[data-testid="conversation-turn"][data-is-user="true"]` or
// `.text-base[data-role=user]`.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	src := strings.TrimSpace(s)
	if src == "" {
		return sel, fmt.Errorf("dom: empty selector")
	}
	if strings.ContainsAny(src, " >+~,") && !insideBrackets(src) {
		return sel, fmt.Errorf("dom: selector %q: combinators are not supported", s)
	}

	i := 0
	readIdent := func() string {
		start := i
		for i < len(src) && isIdentByte(src[i]) {
			i++
		}
		return src[start:i]
	}

	sel.Tag = strings.ToLower(readIdent())
	for i < len(src) {
		switch src[i] {
		case '#':
			i++
			sel.ID = readIdent()
			if sel.ID == "" {
				return sel, fmt.Errorf("dom: selector %q: empty id", s)
			}
		case '.':
			i++
			c := readIdent()
			if c == "" {
				return sel, fmt.Errorf("dom: selector %q: empty class", s)
			}
			sel.Classes = append(sel.Classes, c)
		case '[':
			end := strings.IndexByte(src[i:], ']')
			if end < 0 {
				return sel, fmt.Errorf("dom: selector %q: unterminated attribute", s)
			}
			body := src[i+1 : i+end]
			i += end + 1
			cond := AttrCond{Name: strings.TrimSpace(body)}
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				cond.Name = strings.TrimSpace(body[:eq])
				cond.Value = strings.Trim(strings.TrimSpace(body[eq+1:]), `"'`)
				cond.HasEq = true
			}
			if cond.Name == "" {
				return sel, fmt.Errorf("dom: selector %q: empty attribute name", s)
			}
			sel.Attrs = append(sel.Attrs, cond)
		default:
			return sel, fmt.Errorf("dom: selector %q: unexpected %q at %d", s, src[i], i)
		}
	}
	return sel, nil
}

// MustParseSelector is ParseSelector that panics on error. For constants.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// ParseSelectors parses every entry of list.
func ParseSelectors(list []string) ([]Selector, error) {
	out := make([]Selector, 0, len(list))
	for _, s := range list {
		sel, err := ParseSelector(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// String renders the selector back to CSS, quoting attribute values.
func (s Selector) String() string {
	var b strings.Builder
	b.WriteString(s.Tag)
	if s.ID != "" {
		b.WriteByte('#')
		b.WriteString(s.ID)
	}
	for _, c := range s.Classes {
		b.WriteByte('.')
		b.WriteString(c)
	}
	for _, a := range s.Attrs {
		b.WriteByte('[')
		b.WriteString(a.Name)
		if a.HasEq {
			b.WriteString(`="`)
			b.WriteString(EscapeString(a.Value))
			b.WriteByte('"')
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Match reports whether an element with the given tag and attribute
// lookup satisfies the selector. Implementations adapt their node type to
// this signature.
func (s Selector) Match(tag string, attr func(string) (string, bool)) bool {
	if s.Tag != "" && !strings.EqualFold(s.Tag, tag) {
		return false
	}
	if s.ID != "" {
		if v, _ := attr("id"); v != s.ID {
			return false
		}
	}
	if len(s.Classes) > 0 {
		v, _ := attr("class")
		have := strings.Fields(v)
		for _, want := range s.Classes {
			if !containsString(have, want) {
				return false
			}
		}
	}
	for _, a := range s.Attrs {
		v, ok := attr(a.Name)
		if !ok {
			return false
		}
		if a.HasEq && v != a.Value {
			return false
		}
	}
	return true
}

// AttrSelector builds [name="value"].
func AttrSelector(name, value string) Selector {
	return Selector{Attrs: []AttrCond{{Name: name, Value: value, HasEq: true}}}
}

// EscapeString escapes a value for use inside a double-quoted CSS string.
func EscapeString(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\a `)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\%x `, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}

// insideBrackets reports whether every space, comma or combinator in s
// sits inside an attribute condition.
func insideBrackets(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ' ', '>', '+', '~', ',':
			if depth == 0 {
				return false
			}
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
