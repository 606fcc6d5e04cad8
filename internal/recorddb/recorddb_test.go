package recorddb

import "testing"

func TestParseScalarRecord(t *testing.T) {
	obj, err := Parse(`"name" "Bob";`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := obj.GetString("name", ""); got != "Bob" {
		t.Fatalf("GetString(name) = %q, want Bob", got)
	}
}

func TestParseObjectAndList(t *testing.T) {
	src := `"channels" {
		"#foo" {
			"registered" "12345";
			"bans" ("*!*@a.b", "*!*@c.d");
		};
	};`
	obj, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	chans := obj.GetObject("channels")
	if chans == nil {
		t.Fatal("missing channels object")
	}
	foo := chans.GetObject("#foo")
	if foo == nil {
		t.Fatal("missing #foo object")
	}
	if got := foo.GetString("registered", ""); got != "12345" {
		t.Fatalf("registered = %q", got)
	}
	bans := foo.GetList("bans")
	if len(bans) != 2 || bans[0] != "*!*@a.b" || bans[1] != "*!*@c.d" {
		t.Fatalf("bans = %v", bans)
	}
}

func TestEscapes(t *testing.T) {
	cases := map[string]string{
		`"a" "line1\nline2";`: "line1\nline2",
		`"a" "tab\there";`:    "tab\there",
		`"a" "quote\"here";`:  `quote"here`,
		`"a" "back\\slash";`:  `back\slash`,
		`"a" "\101\102";`:     "AB",     // octal
		`"a" "\x41\x42";`:     "AB",     // hex
	}
	for src, want := range cases {
		obj, err := Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", src, err)
		}
		if got := obj.GetString("a", ""); got != want {
			t.Fatalf("Parse(%q) = %q, want %q", src, got, want)
		}
	}
}

func TestComments(t *testing.T) {
	src := `
	// line comment
	"a" /* block
	comment */ "1";
	`
	obj, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := obj.GetString("a", ""); got != "1" {
		t.Fatalf("a = %q", got)
	}
}

func TestParseErrorHasLineCol(t *testing.T) {
	_, err := Parse("\"a\" \"unterminated;")
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Line == 0 {
		t.Fatalf("expected nonzero line, got %+v", pe)
	}
}

func TestRoundTrip(t *testing.T) {
	obj := NewObject()
	obj.SetString("topic", "welcome to \"the\" channel\nline two")
	inner := NewObject()
	inner.SetString("level", "500")
	obj.SetObject("owner", inner)
	obj.SetList("bans", "*!*@a.b", "*!*@c.d")

	text, err := WriteString(obj)
	if err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	reparsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(written): %v\n%s", err, text)
	}
	if got := reparsed.GetString("topic", ""); got != "welcome to \"the\" channel\nline two" {
		t.Fatalf("topic round-trip mismatch: %q", got)
	}
	if got := reparsed.GetObject("owner").GetString("level", ""); got != "500" {
		t.Fatalf("owner/level round-trip mismatch: %q", got)
	}
	bans := reparsed.GetList("bans")
	if len(bans) != 2 || bans[0] != "*!*@a.b" {
		t.Fatalf("bans round-trip mismatch: %v", bans)
	}
}

func TestParseRecordSingle(t *testing.T) {
	name, v, err := ParseRecord(`"max" "42";`)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if name != "max" || v.Kind != KindString || v.Str != "42" {
		t.Fatalf("ParseRecord result = %q %+v", name, v)
	}
}
