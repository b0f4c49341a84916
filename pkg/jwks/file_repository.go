package jwks

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileKeyRepository stores one PKCS#8 PEM file per key id under a data
// directory. Keys are read at startup and generated on first use, so the
// repository is idempotent across restarts.
type FileKeyRepository struct {
	dataDir string
}

// NewFileKeyRepository creates the data directory if needed.
func NewFileKeyRepository(dataDir string) (*FileKeyRepository, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	return &FileKeyRepository{dataDir: dataDir}, nil
}

// LoadOrCreate returns a key pair for every configured kid, reading
// existing key files and generating missing ones.
func (r *FileKeyRepository) LoadOrCreate(kids []uuid.UUID) (map[uuid.UUID]KeyPair, error) {
	keys := make(map[uuid.UUID]KeyPair, len(kids))
	for _, kid := range kids {
		keyPair, err := r.loadOrCreateKey(kid)
		if err != nil {
			return nil, err
		}
		keys[kid] = keyPair
	}
	return keys, nil
}

func (r *FileKeyRepository) keyPath(kid uuid.UUID) string {
	return filepath.Join(r.dataDir, kid.String()+".pem")
}

func (r *FileKeyRepository) loadOrCreateKey(kid uuid.UUID) (KeyPair, error) {
	keyPair, found, err := r.readKey(kid)
	if err != nil {
		return KeyPair{}, err
	}
	if found {
		return keyPair, nil
	}
	return r.generateKey(kid)
}

// readKey reads a key file if present. A missing file is not an error.
func (r *FileKeyRepository) readKey(kid uuid.UUID) (KeyPair, bool, error) {
	pemData, err := os.ReadFile(r.keyPath(kid))
	if os.IsNotExist(err) {
		return KeyPair{}, false, nil
	}
	if err != nil {
		return KeyPair{}, false, fmt.Errorf("failed to read key file for kid %s: %w", kid, err)
	}

	privateKey, err := DecodePrivateKeyFromPEM(pemData)
	if err != nil {
		return KeyPair{}, false, fmt.Errorf("invalid key file for kid %s: %w", kid, err)
	}

	return newKeyPair(kid, privateKey), true, nil
}

// generateKey creates a fresh key pair and persists it. The PEM is fully
// written to a temp file first, then claimed under the final name with an
// atomic link, so a crash mid-write never leaves a readable partial file
// and two starting instances cannot both generate the same kid: the loser
// reads back the winner's file.
func (r *FileKeyRepository) generateKey(kid uuid.UUID) (KeyPair, error) {
	privateKey, err := GenerateEd25519Key()
	if err != nil {
		return KeyPair{}, err
	}

	pemData, err := EncodePrivateKeyToPEM(privateKey)
	if err != nil {
		return KeyPair{}, err
	}

	tempFile, err := os.CreateTemp(r.dataDir, kid.String()+".pem.tmp.*")
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to create temp key file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(pemData); err != nil {
		tempFile.Close()
		return KeyPair{}, fmt.Errorf("failed to write key file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return KeyPair{}, fmt.Errorf("failed to close key file: %w", err)
	}

	if err := os.Link(tempPath, r.keyPath(kid)); err != nil {
		if os.IsExist(err) {
			// Another instance won the generation race.
			slog.Info("Key file appeared during generation, reading existing key", "kid", kid)
			keyPair, found, readErr := r.readKey(kid)
			if readErr != nil {
				return KeyPair{}, readErr
			}
			if !found {
				return KeyPair{}, fmt.Errorf("key file for kid %s vanished after creation race", kid)
			}
			return keyPair, nil
		}
		return KeyPair{}, fmt.Errorf("failed to persist key file for kid %s: %w", kid, err)
	}

	slog.Info("Generated new Ed25519 signing key", "kid", kid)
	return newKeyPair(kid, privateKey), nil
}

func newKeyPair(kid uuid.UUID, privateKey ed25519.PrivateKey) KeyPair {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	return KeyPair{
		Kid:        kid,
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		X:          EncodePublicKeyX(publicKey),
	}
}
