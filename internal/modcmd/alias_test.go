package modcmd

import (
	"reflect"
	"testing"
)

func TestExpandAliasEmpty(t *testing.T) {
	got, err := ExpandAlias(nil, []string{"cmd", "a"})
	if err != nil {
		t.Fatalf("ExpandAlias: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestExpandAliasLiteralDollar(t *testing.T) {
	got, err := ExpandAlias([]string{"$$"}, []string{"cmd"})
	if err != nil {
		t.Fatalf("ExpandAlias: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"$"}) {
		t.Fatalf("got %v, want [$]", got)
	}
}

func TestExpandAliasOpenRange(t *testing.T) {
	got, err := ExpandAlias([]string{"$1-"}, []string{"cmd", "a", "b", "c"})
	if err != nil {
		t.Fatalf("ExpandAlias: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandAliasClosedRange(t *testing.T) {
	got, err := ExpandAlias([]string{"$1-2"}, []string{"cmd", "a", "b", "c"})
	if err != nil {
		t.Fatalf("ExpandAlias: %v", err)
	}
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandAliasSingleIndex(t *testing.T) {
	got, err := ExpandAlias([]string{"adduser", "$1", "owner"}, []string{"addowner", "Bob"})
	if err != nil {
		t.Fatalf("ExpandAlias: %v", err)
	}
	want := []string{"adduser", "Bob", "owner"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandAliasOutOfRange(t *testing.T) {
	got, err := ExpandAlias([]string{"$5"}, []string{"cmd", "a"})
	if err != nil {
		t.Fatalf("ExpandAlias: %v", err)
	}
	if !reflect.DeepEqual(got, []string{""}) {
		t.Fatalf("got %v, want ['']", got)
	}
}

func TestExpandAliasInvalidToken(t *testing.T) {
	if _, err := ExpandAlias([]string{"$foo"}, []string{"cmd"}); err == nil {
		t.Fatal("expected error for malformed alias token")
	}
}
