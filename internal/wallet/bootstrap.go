// Package wallet obtains the owner key and the smart account address, and caches them between runs.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

// AddressDeriver resolves the smart account address of an owner. *smartaccount.Factory implements it.
type AddressDeriver interface {
	GetAccountAddress(ctx context.Context, owner common.Address) (common.Address, error)
}

// Options tells Bootstrap where the cache lives and how to source a key when there is none.
type Options struct {
	CacheFile string
	// Mnemonic seeds the key of a new identity, a fresh key is generated when empty.
	Mnemonic string
}

// Wallet is the owner key and its smart account.
type Wallet struct {
	Key                 *ecdsa.PrivateKey
	Owner               common.Address
	SmartAccountAddress common.Address
	// Created is true when this run created the cache file.
	Created bool
}

// Bootstrap reuses the cached key or creates one, derives the smart account address and
// writes the cache on first run. An existing cache is never rewritten.
func Bootstrap(ctx context.Context, opts Options, deriver AddressDeriver) (*Wallet, error) {
	cache, err := LoadCache(opts.CacheFile)
	if err != nil {
		return nil, err
	}

	var key *ecdsa.PrivateKey
	switch c := cache.(type) {
	case Present:
		if key, err = crypto.ToECDSA(c.Identity.PrivateKey); err != nil {
			return nil, err
		}
	case Absent:
		if key, err = newKey(opts.Mnemonic); err != nil {
			return nil, err
		}
	}

	owner := crypto.PubkeyToAddress(key.PublicKey)
	saAddress, err := deriver.GetAccountAddress(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("derive smart account address fail: %w", err)
	}
	log.Printf("SA Address %s", saAddress.Hex())

	w := &Wallet{Key: key, Owner: owner, SmartAccountAddress: saAddress}
	switch c := cache.(type) {
	case Present:
		if c.Identity.SmartAccountAddress != saAddress {
			log.Warnf("cached smart account %s differs from derived %s, cache is kept",
				c.Identity.SmartAccountAddress.Hex(), saAddress.Hex())
		}
	case Absent:
		err = WriteCache(opts.CacheFile, Identity{
			SmartAccountAddress: saAddress,
			OwnerAddress:        owner,
			PrivateKey:          crypto.FromECDSA(key),
		})
		if err != nil {
			return nil, err
		}
		w.Created = true
		log.Printf("identity cached in %s", opts.CacheFile)
	}
	return w, nil
}

func newKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	if mnemonic != "" {
		key, err := KeyFromMnemonic(mnemonic)
		if err != nil {
			return nil, fmt.Errorf("key from mnemonic fail: %w", err)
		}
		return key, nil
	}
	return crypto.GenerateKey()
}
