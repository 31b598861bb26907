package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"sneakernet/internal/model"
	"sneakernet/internal/repository"
)

// FileName is the default document name inside the data directory.
const FileName = "sneakernet.json"

var ErrPassphraseRequired = errors.New("stored identity is sealed, passphrase required")

type (
	// Store keeps identity and contacts in one JSON document. With a
	// passphrase the secret key is sealed at rest.
	Store struct {
		path       string
		passphrase string
		mu         sync.Mutex
	}

	document struct {
		Keys       *model.StoredKeys `json:"nostr_keys,omitempty"`
		SealedKeys *sealedKeys       `json:"sealed_nostr_keys,omitempty"`
		Contacts   []model.Contact   `json:"contacts"`
	}

	sealedKeys struct {
		PublicKeyHex string  `json:"public_key_hex"`
		Secret       *sealed `json:"secret"`
	}
)

var _ repository.Store = (*Store)(nil)

func New(path, passphrase string) *Store {
	return &Store{path: path, passphrase: passphrase}
}

func (s *Store) LoadKeys(context.Context) (*model.StoredKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	switch {
	case doc.SealedKeys != nil:
		if s.passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		secret, err := open(s.passphrase, doc.SealedKeys.Secret)
		if err != nil {
			return nil, err
		}
		return &model.StoredKeys{SecretKeyHex: string(secret), PublicKeyHex: doc.SealedKeys.PublicKeyHex}, nil
	case doc.Keys != nil:
		return doc.Keys, nil
	default:
		return nil, nil
	}
}

func (s *Store) SaveKeys(_ context.Context, keys model.StoredKeys) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	doc.Keys, doc.SealedKeys = nil, nil
	if s.passphrase == "" {
		doc.Keys = &keys
	} else {
		secret, err := seal(s.passphrase, []byte(keys.SecretKeyHex))
		if err != nil {
			return err
		}
		doc.SealedKeys = &sealedKeys{PublicKeyHex: keys.PublicKeyHex, Secret: secret}
	}
	return s.write(doc)
}

func (s *Store) LoadContacts(context.Context) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if doc.Contacts == nil {
		return []model.Contact{}, nil
	}
	return doc.Contacts, nil
}

func (s *Store) SaveContacts(_ context.Context, contacts []model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Contacts = contacts
	return s.write(doc)
}

func (s *Store) Close(context.Context) error { return nil }

// read loads the document; a missing file is an empty document.
func (s *Store) read() (*document, error) {
	var doc document
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &doc, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// write replaces the document through a temp file and rename.
func (s *Store) write(doc *document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
