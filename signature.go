package ethcore

import (
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

/*
A recoverable secp256k1 signature. "V" carries the recovery id in one of the
forms used on the wire:

	0, 1          raw recovery id
	27, 28        message signatures and pre-EIP-155 transactions
	>= 35         EIP-155 transactions: recoveryId + chainId*2 + 35

Values 2..26 and 29..34 are invalid.
*/
type Signature struct {
	R U256
	S U256
	V uint64
}

// Length of the "r || s || v" form.
const SignatureLen = 65

/*
Parses the 65-byte "r || s || v" form used by wallets for message signatures,
hex-encoded with an optional "0x" prefix.
*/
func ParseSignature(input string) (Signature, error) {
	input = strings.TrimSpace(input)
	if !has0x(stringToBytesUnsafe(input)) {
		input = "0x" + input
	}
	buf, err := HexDecode(stringToBytesUnsafe(input))
	if err != nil {
		return Signature{}, signingErrorf("malformed signature: %v", err)
	}
	return DecodeSignature(buf)
}

// Decodes the 65-byte "r || s || v" form. The recovery byte must be valid.
func DecodeSignature(input []byte) (Signature, error) {
	if len(input) != SignatureLen {
		return Signature{}, signingErrorf("signature must have %v bytes, got %v", SignatureLen, len(input))
	}

	var out Signature
	out.R, _ = U256FromBytes(input[:32])
	out.S, _ = U256FromBytes(input[32:64])
	out.V = uint64(input[64])

	_, _, err := normalizeRecoveryId(out.V)
	if err != nil {
		return Signature{}, err
	}
	return out, nil
}

/*
Encodes the signature as 65 bytes "r || s || v" with v in the 27/28 form, which
is what message signature verifiers expect. EIP-155 chain ids don't fit into
this form and are dropped. Fails with a "SigningError" for an invalid "V".
*/
func (self Signature) Bytes() ([]byte, error) {
	recid, _, err := normalizeRecoveryId(self.V)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, SignatureLen)
	r, s := self.R.Word(), self.S.Word()
	out = append(out, r[:]...)
	out = append(out, s[:]...)
	return append(out, 27+recid), nil
}

// "0x"-prefixed hex of "Bytes", or a placeholder mentioning "V" when it's invalid.
func (self Signature) String() string {
	bytes, err := self.Bytes()
	if err != nil {
		return "<invalid signature: v=" + strconv.FormatUint(self.V, 10) + ">"
	}
	return bytesToMutableString(HexEncode(bytes))
}

// The recovery id, 0 or 1. Zero for invalid "V"; see "normalizeRecoveryId".
func (self Signature) RecoveryId() byte {
	recid, _, _ := normalizeRecoveryId(self.V)
	return recid
}

// The chain id encoded in an EIP-155 "V", or zero for other forms.
func (self Signature) ChainId() uint64 {
	_, chainId, _ := normalizeRecoveryId(self.V)
	return chainId
}

// True if "S" is at most half the curve order, as required for transactions.
func (self Signature) IsLowS() bool {
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(self.S.Bytes())
	return !overflow && !scalar.IsOverHalfOrder()
}

/*
Recovers the address that produced this signature over the hash. Rejects
"R" or "S" outside [1, n), high "S" and invalid recovery ids.
*/
func (self Signature) Recover(hash Hash) (Address, error) {
	recid, _, err := normalizeRecoveryId(self.V)
	if err != nil {
		return Address{}, err
	}
	if self.R.IsZero() || self.S.IsZero() {
		return Address{}, signingErrorf("signature has zero r or s")
	}

	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(self.R.Bytes()) || s.SetByteSlice(self.S.Bytes()) {
		return Address{}, signingErrorf("signature r or s exceeds the curve order")
	}
	if s.IsOverHalfOrder() {
		return Address{}, signingErrorf("signature s is not canonical (above half order)")
	}

	compact := make([]byte, 0, SignatureLen)
	compact = append(compact, 27+recid)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	compact = append(compact, rBytes[:]...)
	compact = append(compact, sBytes[:]...)

	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return Address{}, signingErrorf("failed to recover public key: %v", err)
	}
	return pubkeyToAddress(pub), nil
}

// Checks that the signature over the hash was produced by the given address.
func (self Signature) Verify(hash Hash, addr Address) error {
	actual, err := self.Recover(hash)
	if err != nil {
		return err
	}
	if actual != addr {
		return signingErrorf("signature was produced by %v, expected %v", actual.Checksum(), addr.Checksum())
	}
	return nil
}

// Recovers the signer of an EIP-191 personal message. See "HashMessage".
func (self Signature) RecoverMessage(msg []byte) (Address, error) {
	return self.Recover(HashMessage(msg))
}

// Checks that the EIP-191 personal message was signed by the given address.
func (self Signature) VerifyMessage(msg []byte, addr Address) error {
	return self.Verify(HashMessage(msg), addr)
}

/*
EIP-191 hash of a personal message, as produced by "personal_sign" and
"eth_sign": keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
*/
func HashMessage(msg []byte) Hash {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return Keccak256([]byte(prefix), msg)
}

/*
Splits "V" into the recovery id and the EIP-155 chain id, which is zero for
the other forms.
*/
func normalizeRecoveryId(v uint64) (recid byte, chainId uint64, err error) {
	switch {
	case v == 0 || v == 1:
		return byte(v), 0, nil
	case v == 27 || v == 28:
		return byte(v - 27), 0, nil
	case v >= 35:
		return byte((v - 35) % 2), (v - 35) / 2, nil
	default:
		return 0, 0, signingErrorf("invalid signature recovery value %v", v)
	}
}

// Address = last 20 bytes of keccak256 of the uncompressed key without its 0x04 prefix.
func pubkeyToAddress(pub *secp256k1.PublicKey) Address {
	hash := Keccak256(pub.SerializeUncompressed()[1:])
	var out Address
	copy(out[:], hash[12:])
	return out
}
