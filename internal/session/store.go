package session

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rubikalib/client-go/internal/apierrors"
	"github.com/rubikalib/client-go/internal/crypto"
)

// Credentials is the key material a request needs, read at call time.
type Credentials struct {
	TmpKey     string
	AuthKey    string
	PrivateKey *rsa.PrivateKey
	UserAgent  string
}

// Authenticated reports whether a long-lived key is present.
func (c Credentials) Authenticated() bool {
	return c.AuthKey != ""
}

// Store owns one identity's session record.
type Store struct {
	repo     Repository
	identity Identity
	logger   logrus.FieldLogger
	now      func() time.Time

	mu     sync.Mutex
	record Record
	// parsed form of record.PrivateKey
	privPEM string
	privKey *rsa.PrivateKey
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open loads the record for identity, or creates and persists a fresh one.
func Open(ctx context.Context, repo Repository, identity Identity, opts ...Option) (*Store, error) {
	s := &Store{
		repo:     repo,
		identity: identity,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	log := s.logger.WithFields(logrus.Fields{
		"function": "Open",
		"identity": identity.Hash,
	})

	blob, err := repo.Load(ctx, identity.Hash)
	if err != nil {
		return nil, err
	}

	if blob == nil {
		rec, err := s.freshRecord()
		if err != nil {
			return nil, err
		}
		if err := s.persist(ctx, rec); err != nil {
			return nil, err
		}
		s.record = rec
		log.Debug("Created new session record")
		return s, nil
	}

	rec, err := s.decode(blob)
	if err != nil {
		return nil, err
	}
	s.record = rec
	log.WithField("login_step", rec.LoginStep.String()).Debug("Loaded session record")

	if s.record.UserAgent == "" {
		if err := s.Update(ctx, func(r *Record) { r.UserAgent = NewUserAgent() }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Identity returns the identity the store is bound to.
func (s *Store) Identity() Identity {
	return s.identity
}

// Record returns a copy of the current record.
func (s *Store) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.clone()
}

// Update applies fn to a copy of the record and persists it. The in-memory
// record only changes once the write succeeded.
func (s *Store) Update(ctx context.Context, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.record.clone()
	fn(&next)
	next.Phone = s.identity.Phone

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.record = next
	return nil
}

// Regenerate starts the record over for a new login handshake. The phone
// number and user agent survive. Everything else is reset and a new tmp key
// is generated.
func (s *Store) Regenerate(ctx context.Context) error {
	tmpKey, err := crypto.NewTmpKey()
	if err != nil {
		return err
	}

	return s.Update(ctx, func(r *Record) {
		*r = Record{
			Phone:     r.Phone,
			UserAgent: r.UserAgent,
			LoginStep: StepNone,
			LoginDate: s.now().UTC(),
			TmpKey:    tmpKey,
		}
	})
}

// Terminate deletes the stored record. The in-memory record is replaced with
// a fresh, unsaved one so a later login can start over. Terminating twice is
// not an error.
func (s *Store) Terminate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, s.identity.Hash); err != nil {
		return err
	}

	rec, err := s.freshRecord()
	if err != nil {
		return err
	}
	rec.UserAgent = s.record.UserAgent
	s.record = rec
	s.privPEM, s.privKey = "", nil

	s.logger.WithFields(logrus.Fields{
		"function": "Terminate",
		"identity": s.identity.Hash,
	}).Info("Session terminated")
	return nil
}

// Credentials returns the current key material.
func (s *Store) Credentials() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := Credentials{
		TmpKey:    s.record.TmpKey,
		AuthKey:   s.record.AuthKey,
		UserAgent: s.record.UserAgent,
	}

	if s.record.PrivateKey != "" {
		if s.record.PrivateKey != s.privPEM {
			key, err := crypto.ParsePrivateKey(s.record.PrivateKey)
			if err != nil {
				return Credentials{}, err
			}
			s.privPEM, s.privKey = s.record.PrivateKey, key
		}
		creds.PrivateKey = s.privKey
	}
	return creds, nil
}

func (s *Store) freshRecord() (Record, error) {
	tmpKey, err := crypto.NewTmpKey()
	if err != nil {
		return Record{}, err
	}
	return Record{
		Phone:     s.identity.Phone,
		LoginStep: StepNone,
		TmpKey:    tmpKey,
		UserAgent: NewUserAgent(),
	}, nil
}

func (s *Store) persist(ctx context.Context, rec Record) error {
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	ciphertext, err := crypto.Encrypt(plaintext, s.identity.Hash)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, s.identity.Hash, []byte(ciphertext))
}

func (s *Store) decode(blob []byte) (Record, error) {
	plaintext, err := crypto.Decrypt(string(blob), s.identity.Hash)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return Record{}, &apierrors.CryptoError{Op: "decode session record", Err: err}
	}
	return rec, nil
}
