// Package creds is the device-local credential store. Each joined room keeps
// one record: who this device is in that room and the bearer token the relay
// issued. Tokens are sealed at rest under a key derived from a per-device
// secret, so a copied database file is useless on another machine.
package creds

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoCredentials is returned when no record exists for a server.
var ErrNoCredentials = errors.New("no credentials for server")

// Credentials identify this device inside one room.
type Credentials struct {
	UserID   string
	Username string
	Token    string
}

type record struct {
	ServerID    string `gorm:"primaryKey;column:server_id"`
	UserID      string `gorm:"column:user_id"`
	Username    string `gorm:"column:username"`
	SealedToken []byte `gorm:"column:sealed_token"`
	UpdatedAt   time.Time
}

func (record) TableName() string { return "credentials" }

type Store struct {
	db   *gorm.DB
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// Open opens (creating if needed) the credential database at path and the
// device secret at secretPath.
func Open(path, secretPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("migrate credential db: %w", err)
	}

	key, err := sealingKey(secretPath)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init token cipher: %w", err)
	}

	return &Store{db: db, aead: aead}, nil
}

// Get returns the credentials stored for serverID, or ErrNoCredentials.
func (s *Store) Get(serverID string) (Credentials, error) {
	var rec record
	if err := s.db.First(&rec, "server_id = ?", serverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}

	token, err := s.open(rec.SealedToken)
	if err != nil {
		return Credentials{}, fmt.Errorf("unseal token: %w", err)
	}
	return Credentials{UserID: rec.UserID, Username: rec.Username, Token: token}, nil
}

// Put stores or replaces the credentials for serverID.
func (s *Store) Put(serverID string, c Credentials) error {
	sealed, err := s.seal(c.Token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	rec := record{
		ServerID:    serverID,
		UserID:      c.UserID,
		Username:    c.Username,
		SealedToken: sealed,
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

// Delete removes the record for serverID. Absent records are not an error;
// the room is gone either way.
func (s *Store) Delete(serverID string) error {
	if err := s.db.Delete(&record{}, "server_id = ?", serverID).Error; err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) seal(token string) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, []byte(token), nil), nil
}

func (s *Store) open(sealed []byte) (string, error) {
	if len(sealed) < chacha20poly1305.NonceSize {
		return "", errors.New("sealed token too short")
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSize], sealed[chacha20poly1305.NonceSize:]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// sealingKey derives the token-sealing key from the device secret, creating
// the secret on first use.
func sealingKey(secretPath string) ([]byte, error) {
	secret, err := os.ReadFile(secretPath)
	if errors.Is(err, os.ErrNotExist) {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate device secret: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(secretPath), 0o700); err != nil {
			return nil, fmt.Errorf("create secret dir: %w", err)
		}
		if err := os.WriteFile(secretPath, secret, 0o600); err != nil {
			return nil, fmt.Errorf("write device secret: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read device secret: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("credential token sealing"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return key, nil
}
