package cryptox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile = "pepper"
)

// SetPepperPath sets where the password pepper lives. The pepper is created
// on first use if the file does not exist.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepperFile = file
	pepper = ""
}

// GetPepper returns the process wide pepper, loading it lazily. A pepper that
// cannot be loaded or created is fatal: hashing without it would silently
// produce hashes nobody can verify later.
func GetPepper() string {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper
	}

	raw, err := LoadOrCreateSecret(pepperFile, keyLength)
	if err != nil {
		slog.Error("failed to load or generate pepper", slog.Any("err", err))
		os.Exit(1)
	}

	pepper = string(raw)
	return pepper
}

// LoadOrCreateSecret reads a base64url secret from path. When the file does
// not exist a new random secret of size bytes is generated and written with
// 0600 permissions. The encoded form is returned in both cases.
func LoadOrCreateSecret(path string, size int) ([]byte, error) {
	if path == "" {
		return nil, errors.New("cryptox: secret path is empty")
	}
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return nil, fmt.Errorf("cryptox: secret file %s is empty", path)
		}
		return []byte(secret), nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	secret, err := GenerateToken(size)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return nil, err
	}
	return []byte(secret), nil
}
