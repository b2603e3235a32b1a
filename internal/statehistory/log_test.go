package statehistory

import (
	"encoding/binary"
	"testing"

	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

func blockIDFor(n uint32, tag byte) xcrypto.Id {
	var id xcrypto.Id
	binary.BigEndian.PutUint32(id[0:4], n)
	id[31] = tag
	return id
}

func TestAppendAndReadBlockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, "trace")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	for i := uint32(1); i <= 3; i++ {
		if err := log.Append(blockIDFor(i, byte(i)), []byte{byte(i), byte(i), byte(i)}); err != nil {
			t.Fatalf("Append block %d: %v", i, err)
		}
	}

	payload, err := log.ReadBlock(2)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if len(payload) != 3 || payload[0] != 2 {
		t.Fatalf("unexpected payload for block 2: %v", payload)
	}

	first, last, ok := log.Range()
	if !ok || first != 1 || last != 3 {
		t.Fatalf("unexpected range: first=%d last=%d ok=%v", first, last, ok)
	}

	id, err := log.GetBlockID(3)
	if err != nil {
		t.Fatalf("GetBlockID: %v", err)
	}
	if id != blockIDFor(3, 3) {
		t.Fatalf("block id mismatch for block 3")
	}
}

func TestAppendRejectsOutOfSequenceBlock(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, "trace")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	if err := log.Append(blockIDFor(1, 1), []byte("a")); err != nil {
		t.Fatalf("Append block 1: %v", err)
	}
	if err := log.Append(blockIDFor(3, 3), []byte("b")); err == nil {
		t.Fatalf("expected error appending out-of-sequence block")
	}
}

func TestReadRangeStreamsInOrder(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, "chain_state")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	for i := uint32(1); i <= 5; i++ {
		if err := log.Append(blockIDFor(i, byte(i)), []byte{byte(i)}); err != nil {
			t.Fatalf("Append block %d: %v", i, err)
		}
	}

	var seen []uint32
	err = log.ReadRange(2, 4, func(block uint32, payload []byte) error {
		seen = append(seen, block)
		if len(payload) != 1 || payload[0] != byte(block) {
			t.Fatalf("unexpected payload for block %d: %v", block, payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	want := []uint32{2, 3, 4}
	if len(seen) != len(want) {
		t.Fatalf("expected %d blocks, got %d", len(want), len(seen))
	}
	for i, b := range want {
		if seen[i] != b {
			t.Fatalf("expected block %d at position %d, got %d", b, i, seen[i])
		}
	}
}

func TestReopenRebuildsIndexFromExistingLog(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, "trace")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := uint32(1); i <= 2; i++ {
		if err := log.Append(blockIDFor(i, byte(i)), []byte{byte(i), byte(i)}); err != nil {
			t.Fatalf("Append block %d: %v", i, err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, "trace")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	payload, err := reopened.ReadBlock(1)
	if err != nil {
		t.Fatalf("ReadBlock after reopen: %v", err)
	}
	if len(payload) != 2 || payload[0] != 1 {
		t.Fatalf("unexpected payload after reopen: %v", payload)
	}
	if err := reopened.Append(blockIDFor(3, 3), []byte{3}); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
}
