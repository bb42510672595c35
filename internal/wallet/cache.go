package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrCacheExists is returned when writing over an existing cache file.
var ErrCacheExists = errors.New("identity cache already exists")

// Identity is the record persisted in the cache file.
type Identity struct {
	SmartAccountAddress common.Address `json:"scwAddress"`
	OwnerAddress        common.Address `json:"address"`
	PrivateKey          hexutil.Bytes  `json:"pk"`
}

// writeContent writes the encoded cache, tests replace it to simulate a failing disk.
var writeContent = func(w io.Writer, content []byte) error {
	_, err := w.Write(content)
	return err
}

// Cache is either Absent or Present.
type Cache interface {
	isCache()
}

// Absent means no cache file exists yet.
type Absent struct{}

// Present holds the identity read from the cache file.
type Present struct {
	Identity Identity
}

func (Absent) isCache()  {}
func (Present) isCache() {}

// LoadCache reads the identity cache at path.
func LoadCache(path string) (Cache, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Absent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s fail: %w", path, err)
	}

	var id Identity
	if err := json.Unmarshal(content, &id); err != nil {
		return nil, fmt.Errorf("parse cache %s fail: %w", path, err)
	}
	if err := id.validate(); err != nil {
		return nil, fmt.Errorf("invalid cache %s: %w", path, err)
	}
	return Present{Identity: id}, nil
}

// WriteCache creates the cache file. It never overwrites, an existing file gives ErrCacheExists.
func WriteCache(path string, id Identity) error {
	content, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrCacheExists, path)
	}
	if err != nil {
		return fmt.Errorf("create cache %s fail: %w", path, err)
	}
	// a partial file would make every later LoadCache fail, remove it
	if err := writeContent(f, append(content, '\n')); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write cache %s fail: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close cache %s fail: %w", path, err)
	}
	return nil
}

// validate checks the private key and that it controls the owner address.
func (id Identity) validate() error {
	key, err := crypto.ToECDSA(id.PrivateKey)
	if err != nil {
		return fmt.Errorf("bad pk: %w", err)
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey); addr != id.OwnerAddress {
		return fmt.Errorf("pk controls %s, not %s", addr, id.OwnerAddress)
	}
	return nil
}
