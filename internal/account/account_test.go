package account

import "testing"

func TestRegisterAndAuthenticate(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Register("Fred", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h, err := s.Authenticate("Fred", "hunter2", "fred!fred@example.com")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if h.Name != "Fred" {
		t.Fatalf("Name = %q, want Fred", h.Name)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	s := NewMemoryStore()
	s.Register("Fred", "hunter2")
	if _, err := s.Authenticate("Fred", "wrong", "sess"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestAuthedHandleAfterAuthenticate(t *testing.T) {
	s := NewMemoryStore()
	s.Register("Fred", "hunter2")
	s.Authenticate("Fred", "hunter2", "sess1")
	h, ok := s.AuthedHandle("sess1")
	if !ok || h.Name != "Fred" {
		t.Fatalf("AuthedHandle = %v, %v, want Fred handle", h, ok)
	}
	if _, ok := s.AuthedHandle("unknown-session"); ok {
		t.Fatal("expected no handle for unbound session")
	}
}

func TestHandleFlags(t *testing.T) {
	h := &Handle{Flags: FlagHelping | FlagBot}
	if !h.Has(FlagHelping) || !h.Has(FlagBot) {
		t.Fatal("expected both flags set")
	}
	if h.Has(FlagSuspended) {
		t.Fatal("did not expect FlagSuspended")
	}
}
