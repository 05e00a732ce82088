package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
)

// encPrefix marks a field value as ciphertext. Values without it pass
// through unchanged, so encryption can be enabled on an existing store.
const encPrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.RunStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts the free-text
// fields of run and node records with AES-GCM. Prompts, model outputs and
// error strings routinely carry user data; ids, statuses and timestamps stay
// plain so listing and lookups keep working.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.RunStore) ports.RunStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) SaveRun(ctx context.Context, run domain.RunRecord) error {
	var err error
	if run.Input, err = m.seal(run.Input); err != nil {
		return fmt.Errorf("encrypt run %s: %w", run.ID, err)
	}
	if run.FinalOutput, err = m.seal(run.FinalOutput); err != nil {
		return fmt.Errorf("encrypt run %s: %w", run.ID, err)
	}
	if run.Error, err = m.seal(run.Error); err != nil {
		return fmt.Errorf("encrypt run %s: %w", run.ID, err)
	}
	return m.next.SaveRun(ctx, run)
}

func (m *encryptionMiddleware) LoadRun(ctx context.Context, runID string) (domain.RunRecord, error) {
	run, err := m.next.LoadRun(ctx, runID)
	if err != nil {
		return domain.RunRecord{}, err
	}
	if err := m.openRun(&run); err != nil {
		return domain.RunRecord{}, fmt.Errorf("decrypt run %s: %w", runID, err)
	}
	return run, nil
}

func (m *encryptionMiddleware) ListRuns(ctx context.Context) ([]domain.RunRecord, error) {
	listed, err := m.next.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for i := range listed {
		if err := m.openRun(&listed[i]); err != nil {
			return nil, fmt.Errorf("decrypt run %s: %w", listed[i].ID, err)
		}
	}
	return listed, nil
}

func (m *encryptionMiddleware) SaveNodeRecord(ctx context.Context, rec domain.NodeRecord) error {
	var err error
	if rec.Output, err = m.seal(rec.Output); err != nil {
		return fmt.Errorf("encrypt node record %s/%s: %w", rec.RunID, rec.NodeID, err)
	}
	if rec.Error, err = m.seal(rec.Error); err != nil {
		return fmt.Errorf("encrypt node record %s/%s: %w", rec.RunID, rec.NodeID, err)
	}
	return m.next.SaveNodeRecord(ctx, rec)
}

func (m *encryptionMiddleware) LoadNodeRecords(ctx context.Context, runID string) ([]domain.NodeRecord, error) {
	records, err := m.next.LoadNodeRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Output, err = m.open(records[i].Output); err != nil {
			return nil, fmt.Errorf("decrypt node record %s/%s: %w", runID, records[i].NodeID, err)
		}
		if records[i].Error, err = m.open(records[i].Error); err != nil {
			return nil, fmt.Errorf("decrypt node record %s/%s: %w", runID, records[i].NodeID, err)
		}
	}
	return records, nil
}

func (m *encryptionMiddleware) DeleteRun(ctx context.Context, runID string) error {
	return m.next.DeleteRun(ctx, runID)
}

func (m *encryptionMiddleware) openRun(run *domain.RunRecord) error {
	var err error
	if run.Input, err = m.open(run.Input); err != nil {
		return err
	}
	if run.FinalOutput, err = m.open(run.FinalOutput); err != nil {
		return err
	}
	if run.Error, err = m.open(run.Error); err != nil {
		return err
	}
	return nil
}

// seal encrypts a single field. Empty values stay empty.
func (m *encryptionMiddleware) seal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	ciphertext, err := encrypt([]byte(value), m.config.ActiveKey)
	if err != nil {
		return "", err
	}
	return encPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// open decrypts a single field, trying the active key first and then each
// fallback key in order.
func (m *encryptionMiddleware) open(value string) (string, error) {
	if !strings.HasPrefix(value, encPrefix) {
		return value, nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encPrefix))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext base64: %w", err)
	}

	if plain, err := decrypt(ciphertext, m.config.ActiveKey); err == nil {
		return string(plain), nil
	}
	for _, key := range m.config.FallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return string(plain), nil
		}
	}
	return "", errors.New("decryption failed with all available keys")
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
