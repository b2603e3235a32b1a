package transaction

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pulsevm/pulsevm/internal/action"
	"github.com/pulsevm/pulsevm/internal/authority"
	"github.com/pulsevm/pulsevm/internal/blocktime"
	"github.com/pulsevm/pulsevm/internal/codec"
	"github.com/pulsevm/pulsevm/internal/name"
	"github.com/pulsevm/pulsevm/internal/xcrypto"
)

func sampleTransaction() Transaction {
	pulse := name.MustParse("pulse")
	return Transaction{
		Header: Header{
			Expiration:       1893456000,
			RefBlockNum:      1,
			RefBlockPrefix:   2,
			MaxNetUsageWords: 0,
			MaxCPUUsageMS:    0,
			DelaySec:         0,
		},
		Actions: []action.Action{
			{
				Account:       pulse,
				Name:          name.MustParse("newaccount"),
				Authorization: []authority.PermissionLevel{{Actor: pulse, Permission: name.MustParse("active")}},
				Data:          []byte("payload"),
			},
		},
	}
}

func TestTransactionPackDecodeRoundTrip(t *testing.T) {
	trx := sampleTransaction()
	packed := trx.Pack()

	decoded, err := Read(codec.NewDecoder(packed))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if decoded.Header != trx.Header {
		t.Fatalf("header mismatch: got %+v want %+v", decoded.Header, trx.Header)
	}
	if len(decoded.Actions) != 1 || decoded.Actions[0].Name != trx.Actions[0].Name {
		t.Fatalf("actions mismatch: got %+v", decoded.Actions)
	}
}

func TestTransactionIDDeterministic(t *testing.T) {
	trx := sampleTransaction()
	id1 := trx.ID()
	id2 := trx.ID()
	if id1 != id2 {
		t.Fatalf("transaction id must be deterministic")
	}

	other := sampleTransaction()
	other.Header.Expiration++
	if other.ID() == id1 {
		t.Fatalf("transactions with different headers must not collide")
	}
}

func TestTransactionValidateRejectsDelayed(t *testing.T) {
	trx := sampleTransaction()
	trx.Header.DelaySec = 1
	if err := trx.Validate(blocktime.Now()); err == nil {
		t.Fatalf("expected error validating a delayed transaction")
	}
}

func TestTransactionValidateRejectsExpired(t *testing.T) {
	trx := sampleTransaction()
	trx.Header.Expiration = 1
	if err := trx.Validate(blocktime.Now()); err == nil {
		t.Fatalf("expected error validating an expired transaction")
	}
}

func TestPackedTransactionUnpackRoundTrip(t *testing.T) {
	trx := sampleTransaction()
	packed, err := FromTransaction(trx, [][]byte{[]byte("cfd one"), []byte("cfd two")})
	if err != nil {
		t.Fatalf("FromTransaction: %v", err)
	}

	gotTrx, gotCfd, err := packed.Unpack()
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if gotTrx.Header != trx.Header {
		t.Fatalf("unpacked header mismatch")
	}
	if len(gotCfd) != 2 || string(gotCfd[0]) != "cfd one" || string(gotCfd[1]) != "cfd two" {
		t.Fatalf("unpacked context free data mismatch: %v", gotCfd)
	}

	id, err := packed.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if id != trx.ID() {
		t.Fatalf("packed id must match the underlying transaction id")
	}
}

func TestPackedTransactionSigningDigestMatchesSigner(t *testing.T) {
	trx := sampleTransaction()
	packed, err := FromTransaction(trx, nil)
	if err != nil {
		t.Fatalf("FromTransaction: %v", err)
	}

	chainID := xcrypto.Sha256([]byte("chain"))
	digest, err := packed.SigningDigest(chainID)
	if err != nil {
		t.Fatalf("SigningDigest: %v", err)
	}
	cfdBytes, err := packContextFreeData(nil)
	if err != nil {
		t.Fatalf("packContextFreeData: %v", err)
	}
	if digest != trx.SigningDigest(chainID, cfdBytes) {
		t.Fatalf("packed signing digest must match the transaction's own")
	}

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	sig := xcrypto.Sign(priv, digest)
	recovered, err := xcrypto.Recover(sig, digest)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	want, err := xcrypto.PublicKeyFromCompressed(priv.PubKey().SerializeCompressed())
	if err != nil {
		t.Fatalf("PublicKeyFromCompressed: %v", err)
	}
	if recovered != want {
		t.Fatalf("recovered signer mismatch")
	}
}

func TestPackedTransactionEncodeDecodeRoundTrip(t *testing.T) {
	trx := sampleTransaction()
	packed, err := FromTransaction(trx, [][]byte{[]byte("cfd")})
	if err != nil {
		t.Fatalf("FromTransaction: %v", err)
	}
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	digest, err := packed.SigningDigest(xcrypto.Sha256([]byte("chain")))
	if err != nil {
		t.Fatalf("SigningDigest: %v", err)
	}
	packed.Signatures = []xcrypto.Signature{xcrypto.Sign(priv, digest)}

	e := codec.NewEncoder(packed.NumBytes())
	packed.MarshalCodec(e)
	decoded, err := ReadPackedTransaction(codec.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("ReadPackedTransaction: %v", err)
	}
	if len(decoded.Signatures) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(decoded.Signatures))
	}
	if decoded.Signatures[0] != packed.Signatures[0] {
		t.Fatalf("signature mismatch across encode/decode")
	}
	if string(decoded.PackedTrx) != string(packed.PackedTrx) {
		t.Fatalf("packed trx bytes mismatch across encode/decode")
	}
}

func TestReceiptDigestDeterministic(t *testing.T) {
	trxID := xcrypto.Sha256([]byte("some transaction"))
	r1 := NewReceipt(StatusExecuted, 100, 8, trxID)
	r2 := NewReceipt(StatusExecuted, 100, 8, trxID)
	if r1.Digest() != r2.Digest() {
		t.Fatalf("receipt digest must be deterministic")
	}

	r3 := NewReceipt(StatusHardFail, 100, 8, trxID)
	if r3.Digest() == r1.Digest() {
		t.Fatalf("receipts with different status must not collide")
	}
}

func TestReceiptEncodeDecodeRoundTrip(t *testing.T) {
	trxID := xcrypto.Sha256([]byte("another transaction"))
	r := NewReceipt(StatusExecuted, 42, 7, trxID)

	e := codec.NewEncoder(r.NumBytes())
	r.MarshalCodec(e)
	decoded, err := ReadReceipt(codec.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("ReadReceipt: %v", err)
	}
	if decoded != r {
		t.Fatalf("receipt round trip mismatch: got %+v want %+v", decoded, r)
	}
}

func TestSignedBlockIDEncodesHeight(t *testing.T) {
	genesisID := xcrypto.Id{}
	first := NewSignedBlock(genesisID, blocktime.Now(), []Receipt{NewReceipt(StatusExecuted, 1, 1, xcrypto.Id{})}, xcrypto.Id{})
	if first.BlockNum() != 1 {
		t.Fatalf("expected block number 1, got %d", first.BlockNum())
	}
	firstID := first.ID()
	if NumFromID(firstID) != 1 {
		t.Fatalf("block id must encode its own height in its leading bytes")
	}

	second := NewSignedBlock(firstID, blocktime.Now(), []Receipt{NewReceipt(StatusExecuted, 1, 1, xcrypto.Id{})}, xcrypto.Id{})
	if second.BlockNum() != 2 {
		t.Fatalf("expected block number 2, got %d", second.BlockNum())
	}
	if second.PreviousID() != firstID {
		t.Fatalf("previous id mismatch")
	}
}

func TestSignedBlockEncodeDecodeRoundTrip(t *testing.T) {
	block := NewSignedBlock(xcrypto.Id{}, blocktime.Now(), []Receipt{NewReceipt(StatusExecuted, 5, 2, xcrypto.Sha256([]byte("trx")))}, xcrypto.Sha256([]byte("mroot")))
	block.Signature = xcrypto.Signature{}

	e := codec.NewEncoder(block.NumBytes())
	block.MarshalCodec(e)
	decoded, err := ReadSignedBlock(codec.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("ReadSignedBlock: %v", err)
	}
	if decoded.Header != block.Header {
		t.Fatalf("header mismatch across encode/decode")
	}
	if len(decoded.Transactions) != 1 || decoded.Transactions[0] != block.Transactions[0] {
		t.Fatalf("transactions mismatch across encode/decode")
	}
}

func TestBlockValidateRejectsEmptyAndFutureBlocks(t *testing.T) {
	now := blocktime.Now()
	empty := NewSignedBlock(xcrypto.Id{}, now, nil, xcrypto.Id{})
	if err := empty.Validate(now); err == nil {
		t.Fatalf("expected error validating a block with no transactions")
	}

	future := NewSignedBlock(xcrypto.Id{}, now.Next().Next(), []Receipt{NewReceipt(StatusExecuted, 1, 1, xcrypto.Id{})}, xcrypto.Id{})
	if err := future.Validate(now); err == nil {
		t.Fatalf("expected error validating a block stamped in the future")
	}
}
