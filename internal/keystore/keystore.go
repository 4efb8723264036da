// Package keystore implements the encrypted-at-rest API-key store: a
// 256-bit key derived from DECANT_MASTER_KEY via scrypt, encrypting
// values with AES-GCM (SPEC_FULL.md §6). AES-GCM is standard library
// here because nothing in the example pack ships an AEAD implementation
// distinct from crypto/aes — see DESIGN.md.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/scrypt"

	"github.com/RBarbieri13/decant/internal/core"
)

const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

var errNoMasterKey = errors.New("DECANT_MASTER_KEY not configured")

// Store holds API keys encrypted at rest in memory (backed by an
// optional file path for persistence across restarts). Every value is
// sealed with AES-GCM under a key derived once at construction time.
type Store struct {
	mu     sync.RWMutex
	gcm    cipher.AEAD
	salt   []byte
	values map[string]sealed
	path   string
	logger core.Logger
}

type sealed struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type persistedFile struct {
	Salt   string            `json:"salt"`
	Values map[string]sealed `json:"values"`
}

// Open derives the AES key from DECANT_MASTER_KEY (or masterKeyOverride
// if non-empty, for tests) and loads any existing values from path, if
// it exists. A fresh random salt is generated and persisted on first run.
func Open(path, masterKeyOverride string, logger core.Logger) (*Store, error) {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	masterKey := masterKeyOverride
	if masterKey == "" {
		masterKey = os.Getenv("DECANT_MASTER_KEY")
	}
	if masterKey == "" {
		return nil, core.NewError("keystore.Open", core.KindAPIKeyMissing, errNoMasterKey.Error(), errNoMasterKey)
	}

	s := &Store{values: make(map[string]sealed), path: path, logger: logger}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var pf persistedFile
			if err := json.Unmarshal(data, &pf); err == nil {
				if salt, err := base64.StdEncoding.DecodeString(pf.Salt); err == nil {
					s.salt = salt
					s.values = pf.Values
				}
			}
		}
	}
	if len(s.salt) == 0 {
		salt := make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, core.NewError("keystore.Open", core.KindInternal, "generate salt", err)
		}
		s.salt = salt
	}

	key, err := scrypt.Key([]byte(masterKey), s.salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, core.NewError("keystore.Open", core.KindInternal, "derive key", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, core.NewError("keystore.Open", core.KindInternal, "construct cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, core.NewError("keystore.Open", core.KindInternal, "construct gcm", err)
	}
	s.gcm = gcm

	return s, nil
}

// Set encrypts value under name and persists the store if a path was
// configured.
func (s *Store) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return core.NewError("keystore.Set", core.KindInternal, "generate nonce", err)
	}
	ciphertext := s.gcm.Seal(nil, nonce, []byte(value), nil)

	s.values[name] = sealed{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return s.persistLocked()
}

// Get decrypts and returns the value stored under name.
func (s *Store) Get(name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.values[name]
	if !ok {
		return "", false, nil
	}
	nonce, err := base64.StdEncoding.DecodeString(sv.Nonce)
	if err != nil {
		return "", false, core.NewError("keystore.Get", core.KindInternal, "decode nonce", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sv.Ciphertext)
	if err != nil {
		return "", false, core.NewError("keystore.Get", core.KindInternal, "decode ciphertext", err)
	}
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", false, core.NewError("keystore.Get", core.KindInternal, "decrypt value", err)
	}
	return string(plaintext), true, nil
}

// Delete removes name from the store.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
	return s.persistLocked()
}

// Names returns every configured key name, without values, for settings
// surfaces that list "which providers are configured" without exposing
// secrets.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for name := range s.values {
		out = append(out, name)
	}
	return out
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	pf := persistedFile{Salt: base64.StdEncoding.EncodeToString(s.salt), Values: s.values}
	data, err := json.Marshal(pf)
	if err != nil {
		return core.NewError("keystore.persistLocked", core.KindInternal, "marshal keystore file", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return core.NewError("keystore.persistLocked", core.KindInternal, "write keystore file", err)
	}
	return nil
}
