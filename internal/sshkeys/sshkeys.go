package sshkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// EnsureKeyPair makes sure the SSH key pair exists at path and returns the public key.
func EnsureKeyPair(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := generateKeyPair(path); err != nil {
			return "", err
		}
	}
	return readPublicKey(path)
}

// RegenerateKeyPair recreates the SSH key pair and returns the new public key.
func RegenerateKeyPair(path string) (string, error) {
	_ = os.Remove(path)
	_ = os.Remove(path + ".pub")
	if err := generateKeyPair(path); err != nil {
		return "", err
	}
	return readPublicKey(path)
}

func readPublicKey(path string) (string, error) {
	pub, err := os.ReadFile(path + ".pub")
	if err != nil {
		return "", fmt.Errorf("reading public key: %w", err)
	}
	return strings.TrimSpace(string(pub)), nil
}

// generateKeyPair writes an OpenSSH ed25519 key pair at path and path.pub.
func generateKeyPair(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir ssh dir: %w", err)
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate ed25519 key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "modpack-installer")
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}
	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " modpack-installer\n"
	if err := os.WriteFile(path+".pub", []byte(authorized), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}
