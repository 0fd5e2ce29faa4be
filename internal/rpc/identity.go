package rpc

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Reserved store keys for the two identity seeds. They share the
// namespace with observation keys and are distinguished by carrying no
// key-codec separator.
const (
	SeedKeyNetwork = "net-seed"
	SeedKeyRPC     = "rpc-seed"
)

// SeedSize is the length of each persisted identity seed.
const SeedSize = ed25519.SeedSize

// SeedStore persists the identity seeds. *store.Store satisfies it.
type SeedStore interface {
	GetSeed(key string) ([]byte, error)
	PutSeed(key string, value []byte) error
}

// Identity is the server's long-lived keyed credential. Both keypairs
// are derived from random seeds generated on first run and read back
// from the store on every subsequent start.
type Identity struct {
	networkKey ed25519.PrivateKey
	rpcKey     ed25519.PrivateKey
}

// LoadIdentity loads both seeds from the store, generating and
// persisting any that is absent.
func LoadIdentity(seeds SeedStore) (*Identity, error) {
	networkSeed, err := loadOrCreateSeed(seeds, SeedKeyNetwork)
	if err != nil {
		return nil, err
	}
	rpcSeed, err := loadOrCreateSeed(seeds, SeedKeyRPC)
	if err != nil {
		return nil, err
	}
	return &Identity{
		networkKey: ed25519.NewKeyFromSeed(networkSeed),
		rpcKey:     ed25519.NewKeyFromSeed(rpcSeed),
	}, nil
}

func loadOrCreateSeed(seeds SeedStore, key string) ([]byte, error) {
	seed, err := seeds.GetSeed(key)
	if err != nil {
		return nil, fmt.Errorf("load seed %s: %w", key, err)
	}
	if seed != nil {
		if len(seed) != SeedSize {
			return nil, fmt.Errorf("seed %s has length %d, want %d", key, len(seed), SeedSize)
		}
		return seed, nil
	}

	seed = make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed %s: %w", key, err)
	}
	if err := seeds.PutSeed(key, seed); err != nil {
		return nil, fmt.Errorf("persist seed %s: %w", key, err)
	}
	return seed, nil
}

// PublicKeyHex is the hex form of the RPC public key. It is printed at
// startup and is the credential remote callers pin.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.rpcKey.Public().(ed25519.PublicKey))
}

// NodeIDHex identifies the transport endpoint, derived from the
// network seed.
func (id *Identity) NodeIDHex() string {
	return hex.EncodeToString(id.networkKey.Public().(ed25519.PublicKey))
}

// Sign signs msg with the RPC key.
func (id *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(id.rpcKey, msg)
}
