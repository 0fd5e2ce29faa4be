package rpc

import (
	"errors"
	"testing"
)

type memSeedStore struct {
	seeds map[string][]byte
	err   error
}

func newMemSeedStore() *memSeedStore {
	return &memSeedStore{seeds: map[string][]byte{}}
}

func (m *memSeedStore) GetSeed(key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.seeds[key], nil
}

func (m *memSeedStore) PutSeed(key string, value []byte) error {
	if m.err != nil {
		return m.err
	}
	m.seeds[key] = value
	return nil
}

func TestLoadIdentityGeneratesAndPersistsSeeds(t *testing.T) {
	seeds := newMemSeedStore()

	id, err := LoadIdentity(seeds)
	if err != nil {
		t.Fatalf("LoadIdentity failed: %v", err)
	}

	for _, key := range []string{SeedKeyNetwork, SeedKeyRPC} {
		if len(seeds.seeds[key]) != SeedSize {
			t.Errorf("seed %s: expected %d bytes persisted, got %d", key, SeedSize, len(seeds.seeds[key]))
		}
	}
	if len(id.PublicKeyHex()) != 64 {
		t.Errorf("expected 64 hex chars of public key, got %q", id.PublicKeyHex())
	}
	if id.PublicKeyHex() == id.NodeIDHex() {
		t.Error("rpc and network identities must come from distinct seeds")
	}
}

func TestLoadIdentityIsStableAcrossRestarts(t *testing.T) {
	seeds := newMemSeedStore()

	first, err := LoadIdentity(seeds)
	if err != nil {
		t.Fatalf("first LoadIdentity failed: %v", err)
	}
	second, err := LoadIdentity(seeds)
	if err != nil {
		t.Fatalf("second LoadIdentity failed: %v", err)
	}

	if first.PublicKeyHex() != second.PublicKeyHex() {
		t.Errorf("public key changed across restarts: %s vs %s",
			first.PublicKeyHex(), second.PublicKeyHex())
	}
	if first.NodeIDHex() != second.NodeIDHex() {
		t.Errorf("node ID changed across restarts: %s vs %s",
			first.NodeIDHex(), second.NodeIDHex())
	}
}

func TestLoadIdentityRejectsTruncatedSeed(t *testing.T) {
	seeds := newMemSeedStore()
	seeds.seeds[SeedKeyRPC] = []byte{1, 2, 3}

	if _, err := LoadIdentity(seeds); err == nil {
		t.Error("expected error for truncated seed, got nil")
	}
}

func TestLoadIdentityPropagatesStoreFailure(t *testing.T) {
	seeds := newMemSeedStore()
	seeds.err = errors.New("store unavailable")

	if _, err := LoadIdentity(seeds); err == nil {
		t.Error("expected store failure to propagate, got nil")
	}
}
