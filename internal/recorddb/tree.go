// Package recorddb implements the text database format from §4.3: a
// grammar of quoted strings, objects, and string lists, with C-style block
// comments, line comments, backslash escapes, and numeric escapes. It is
// grounded on original_source/src/recdb.c, reimplemented without the
// setjmp/longjmp error style (a typed error return takes its place, per
// §5 "replace with a result-type return").
package recorddb

// Kind identifies which of the three node shapes a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindObject
	KindList
)

// Value is one node of a parsed RecordDB tree: a quoted string, an ordered
// object (named child records), or a list of strings.
type Value struct {
	Kind   Kind
	Str    string
	Object *Object
	List   []string
}

// String constructs a scalar string value.
func String(s string) *Value { return &Value{Kind: KindString, Str: s} }

// List constructs a string-list value.
func List(items ...string) *Value {
	return &Value{Kind: KindList, List: append([]string(nil), items...)}
}

// NewObjectValue constructs an object value from an existing Object.
func NewObjectValue(o *Object) *Value { return &Value{Kind: KindObject, Object: o} }

// Object is an ordered, case-sensitive map from record name to Value. Unlike
// the case-folded maps used by ChanServ's channel/account lookups, RecordDB
// record names are compared byte-for-byte — srvx's dict_t for recdb objects
// does not casemap.
type Object struct {
	order  []string
	values map[string]*Value
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

// Set inserts or replaces the child named name, preserving original
// insertion order on first insert.
func (o *Object) Set(name string, v *Value) {
	if _, ok := o.values[name]; !ok {
		o.order = append(o.order, name)
	}
	o.values[name] = v
}

// SetString is shorthand for Set(name, String(s)).
func (o *Object) SetString(name, s string) { o.Set(name, String(s)) }

// SetObject is shorthand for Set(name, NewObjectValue(child)).
func (o *Object) SetObject(name string, child *Object) { o.Set(name, NewObjectValue(child)) }

// SetList is shorthand for Set(name, List(items...)).
func (o *Object) SetList(name string, items ...string) { o.Set(name, List(items...)) }

// Get returns the child named name.
func (o *Object) Get(name string) (*Value, bool) {
	v, ok := o.values[name]
	return v, ok
}

// GetString returns the string value of a scalar child, or def if absent or
// not a string.
func (o *Object) GetString(name, def string) string {
	v, ok := o.values[name]
	if !ok || v.Kind != KindString {
		return def
	}
	return v.Str
}

// GetObject returns the object value of a child, or nil if absent or not an
// object.
func (o *Object) GetObject(name string) *Object {
	v, ok := o.values[name]
	if !ok || v.Kind != KindObject {
		return nil
	}
	return v.Object
}

// GetList returns the list value of a child, or nil if absent or not a list.
func (o *Object) GetList(name string) []string {
	v, ok := o.values[name]
	if !ok || v.Kind != KindList {
		return nil
	}
	return v.List
}

// Delete removes a child by name.
func (o *Object) Delete(name string) {
	if _, ok := o.values[name]; ok {
		delete(o.values, name)
		for i, n := range o.order {
			if n == name {
				o.order = append(o.order[:i], o.order[i+1:]...)
				break
			}
		}
	}
}

// Names returns the children in insertion order. The returned slice is a
// copy, so callers may delete the entry they're iterating over (the
// "save next pointer first" idiom from §5).
func (o *Object) Names() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Len returns the number of children.
func (o *Object) Len() int { return len(o.order) }
