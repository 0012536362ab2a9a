package ethcore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// Derivation path of the first account of a standard Ethereum HD wallet.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

/*
Holds a secp256k1 private key and signs with it. The key never leaves the
signer: it's not exported, printed or marshaled. Printing a signer with any fmt
verb shows only its address.

Signing is deterministic (RFC 6979) and always produces a low "S". Safe for
concurrent use, except for "Zero", which must not race with signing.
*/
type Signer struct {
	key  *secp256k1.PrivateKey
	addr Address
}

/*
Creates a signer from a 32-byte big-endian private key. The input is copied;
the caller remains responsible for its own copy. Fails unless 0 < key < n.
*/
func NewSigner(key []byte) (*Signer, error) {
	if len(key) != 32 {
		return nil, signingErrorf("private key must have 32 bytes, got %v", len(key))
	}

	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(key)
	defer scalar.Zero()
	if overflow || scalar.IsZero() {
		return nil, signingErrorf("private key is out of range")
	}

	return newSigner(secp256k1.NewPrivateKey(&scalar)), nil
}

func newSigner(key *secp256k1.PrivateKey) *Signer {
	return &Signer{key: key, addr: pubkeyToAddress(key.PubKey())}
}

// Parses a hex-encoded private key with an optional "0x" prefix.
func ParseSigner(input string) (*Signer, error) {
	input = strings.TrimSpace(input)
	if !has0x(stringToBytesUnsafe(input)) {
		input = "0x" + input
	}

	key, err := HexDecode([]byte(input))
	if err != nil {
		return nil, signingErrorf("malformed private key")
	}
	defer zeroBytes(key)
	return NewSigner(key)
}

// Creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, signingErrorf("failed to generate private key: %v", err)
	}
	return newSigner(key), nil
}

/*
Derives a signer from a BIP-39 mnemonic and passphrase along a BIP-32 path such
as "m/44'/60'/0'/0/0". An empty path means "DefaultDerivationPath".
*/
func SignerFromMnemonic(mnemonic, passphrase, path string) (*Signer, error) {
	if path == "" {
		path = DefaultDerivationPath
	}
	indexes, err := ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, signingErrorf("invalid mnemonic: %v", err)
	}
	defer zeroBytes(seed)

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, signingErrorf("failed to derive master key: %v", err)
	}
	for _, index := range indexes {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, signingErrorf("failed to derive key at %v: %v", path, err)
		}
	}

	var buf [32]byte
	defer zeroBytes(buf[:])
	if len(key.Key) > len(buf) {
		return nil, signingErrorf("derived key has %v bytes", len(key.Key))
	}
	copy(buf[len(buf)-len(key.Key):], key.Key)
	return NewSigner(buf[:])
}

/*
Parses a BIP-32 path such as "m/44'/60'/0'/0/0" into child indexes. Hardened
components are marked with "'" or "h".
*/
func ParseDerivationPath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, signingErrorf("derivation path %q must start with \"m\"", path)
	}

	out := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		var offset uint32
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			offset = bip32.FirstHardenedChild
			part = part[:len(part)-1]
		}

		index, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, signingErrorf("invalid component %q in derivation path %q", part, path)
		}
		out = append(out, uint32(index)+offset)
	}
	return out, nil
}

// Address controlled by this signer.
func (self *Signer) Address() Address { return self.addr }

/*
Creates an independent owner of the same key. Zeroing either signer doesn't
affect the other.
*/
func (self *Signer) Clone() *Signer {
	if self.key == nil {
		return &Signer{addr: self.addr}
	}
	key := self.key.Key
	defer key.Zero()
	return &Signer{key: secp256k1.NewPrivateKey(&key), addr: self.addr}
}

// Overwrites the key in memory. Signing afterwards fails with a SigningError.
func (self *Signer) Zero() {
	if self.key != nil {
		self.key.Zero()
		self.key = nil
	}
}

/*
Signs a 32-byte hash. The result has "V" in the 27/28 form. The signature is
recovered and checked against the signer's address before being returned.
*/
func (self *Signer) SignHash(hash Hash) (Signature, error) {
	if self.key == nil {
		return Signature{}, signingErrorf("signer key was zeroed")
	}

	compact := ecdsa.SignCompact(self.key, hash[:], false)

	var out Signature
	out.V = uint64(compact[0])
	out.R, _ = U256FromBytes(compact[1:33])
	out.S, _ = U256FromBytes(compact[33:65])

	err := out.Verify(hash, self.addr)
	if err != nil {
		return Signature{}, signingErrorf("produced signature doesn't verify: %v", err)
	}
	return out, nil
}

// Signs an EIP-191 personal message. See "HashMessage".
func (self *Signer) SignMessage(msg []byte) (Signature, error) {
	return self.SignHash(HashMessage(msg))
}

/*
Signs a transaction with EIP-155 replay protection. The transaction must pass
"UnsignedTx.Validate". The returned transaction owns a copy of the payload.
*/
func (self *Signer) SignTx(tx UnsignedTx) (SignedTx, error) {
	err := tx.Validate()
	if err != nil {
		return SignedTx{}, err
	}
	tx.Data = append(HexBytes(nil), tx.Data...)

	sig, err := self.SignHash(tx.SigningHash())
	if err != nil {
		return SignedTx{}, err
	}

	chainId, _ := tx.ChainId.Uint64()
	sig.V = uint64(sig.RecoveryId()) + chainId*2 + 35
	return SignedTx{Tx: tx, Sig: sig}, nil
}

// Implements "fmt.Stringer". Shows only the address.
func (self *Signer) String() string {
	if self == nil {
		return "Signer(nil)"
	}
	return "Signer(" + self.addr.Checksum() + ")"
}

// Implements "fmt.GoStringer". Shows only the address.
func (self *Signer) GoString() string {
	if self == nil {
		return "(*ethcore.Signer)(nil)"
	}
	return "ethcore.Signer{" + self.addr.Checksum() + "}"
}

// Implements "fmt.Formatter" so that no verb, including "%#v" and "%x", reaches the key.
func (self *Signer) Format(state fmt.State, verb rune) {
	if verb == 'v' && state.Flag('#') {
		fmt.Fprint(state, self.GoString())
		return
	}
	fmt.Fprint(state, self.String())
}

func zeroBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
