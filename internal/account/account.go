// Package account models the account/nickname store's handle abstraction
// that ChanServ consumes (§3.1). The store itself — authentication,
// nickname binding, password policy — is an external collaborator per §1;
// this package defines only the interface the core needs plus a minimal
// in-memory implementation so the core can be exercised without a real
// account service wired up.
package account

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"

	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// Flag bits on a Handle, named identically to §3.1.
type Flag uint32

const (
	FlagHelping Flag = 1 << iota
	FlagSuspended
	FlagFrozen
	FlagBot
	FlagNetworkHelper
	FlagSupportHelper
)

// Handle is the subset of an account record ChanServ reads (§3.1): display
// name, oper access level and flag bits. The account's channel access list
// is not stored here, so this package does not need to import chanserv and
// create a cycle; chanserv keeps its own UserReg list per account, keyed by
// the case-folded handle name.
type Handle struct {
	Name        string
	OperLevel   int // 0..1000
	Flags       Flag
	passwdHash  string
}

func (h *Handle) Has(f Flag) bool { return h.Flags&f != 0 }

// Store is the interface ChanServ (and modcmd's REQUIRE_AUTHED /
// REQUIRE_HELPING / REQUIRE_OPER gates) consume. A real implementation
// would be backed by NickServ's persistent store; the in-memory Store below
// is the stand-in used by tests and by a from-scratch deployment with no
// external account service configured yet.
type Store interface {
	Lookup(name string) (*Handle, bool)
	AuthedHandle(sessionKey string) (*Handle, bool)
}

// MemoryStore is a minimal in-memory Store, also offering password
// verification so higher layers (e.g. an eventual SASL/NickServ bridge)
// have something concrete to call. Grounded on the teacher's
// internal/security/security.go, which used the same argon2id recipe for
// local credential storage.
type MemoryStore struct {
	mu       sync.RWMutex
	handles  map[string]*Handle
	sessions map[string]string // sessionKey -> handle name
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		handles:  make(map[string]*Handle),
		sessions: make(map[string]string),
	}
}

// Register creates a new handle with the given password, hashed with
// argon2id exactly as the teacher's GenerateHash did.
func (s *MemoryStore) Register(name, password string) (*Handle, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &Handle{Name: name, passwdHash: hash}
	s.handles[name] = h
	return h, nil
}

func (s *MemoryStore) Lookup(name string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[name]
	return h, ok
}

// Authenticate verifies password against the stored hash and, on success,
// binds sessionKey (e.g. "nick!user@host") to this handle for subsequent
// AuthedHandle lookups.
func (s *MemoryStore) Authenticate(name, password, sessionKey string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[name]
	if !ok {
		return nil, fmt.Errorf("account: no such handle %q", name)
	}
	ok, err := verifyPassword(password, h.passwdHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("account: incorrect password")
	}
	s.sessions[sessionKey] = name
	return h, nil
}

func (s *MemoryStore) AuthedHandle(sessionKey string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.sessions[sessionKey]
	if !ok {
		return nil, false
	}
	h, ok := s.handles[name]
	return h, ok
}

const (
	argonMemory      = 64 * 1024
	argonIterations  = 3
	argonParallelism = 2
	argonKeyLength   = 32
	argonSaltLength  = 16
)

func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encodedHash string) (bool, error) {
	var version int
	var mem, iter uint32
	var par uint32
	var saltB64, hashB64 string
	_, err := fmt.Sscanf(encodedHash, "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		&version, &mem, &iter, &par, &saltB64, &hashB64)
	if err != nil {
		return false, fmt.Errorf("failed to parse hash: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, err
	}
	want, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, iter, mem, uint8(par), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
