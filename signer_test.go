package ethcore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMnemonic = `abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about`

func TestSignerFromMnemonic(t *testing.T) {
	signer, err := SignerFromMnemonic(testMnemonic, "", DefaultDerivationPath)
	require.NoError(t, err)
	defer signer.Zero()
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", signer.Address().Checksum())

	implicit, err := SignerFromMnemonic(testMnemonic, "", "")
	require.NoError(t, err)
	require.Equal(t, signer.Address(), implicit.Address())

	second, err := SignerFromMnemonic(testMnemonic, "", "m/44'/60'/0'/0/1")
	require.NoError(t, err)
	require.NotEqual(t, signer.Address(), second.Address())

	salted, err := SignerFromMnemonic(testMnemonic, "passphrase", "")
	require.NoError(t, err)
	require.NotEqual(t, signer.Address(), salted.Address())

	_, err = SignerFromMnemonic(strings.Repeat("abandon ", 11)+"abandon", "", "")
	requireSigningError(t, err)

	_, err = SignerFromMnemonic(testMnemonic, "", "44'/60'")
	requireSigningError(t, err)
}

func TestParseDerivationPath(t *testing.T) {
	path, err := ParseDerivationPath(DefaultDerivationPath)
	require.NoError(t, err)
	require.Equal(t, []uint32{0x8000002c, 0x8000003c, 0x80000000, 0, 0}, path)

	path, err = ParseDerivationPath("m/44h/60h/1")
	require.NoError(t, err)
	require.Equal(t, []uint32{0x8000002c, 0x8000003c, 1}, path)

	path, err = ParseDerivationPath("m")
	require.NoError(t, err)
	require.Empty(t, path)

	for _, input := range []string{"", "44'/60'", "m/x", "m/-1", "m/2147483648", "m//0", "m/0''"} {
		_, err := ParseDerivationPath(input)
		requireSigningError(t, err)
	}
}

func TestNewSignerValidation(t *testing.T) {
	_, err := NewSigner(make([]byte, 31))
	requireSigningError(t, err)

	_, err = NewSigner(make([]byte, 32))
	requireSigningError(t, err)

	order := curveOrder.Word()
	_, err = NewSigner(order[:])
	requireSigningError(t, err)

	_, err = ParseSigner("0xnothex")
	requireSigningError(t, err)

	key := MustHexParse(web3Key)
	signer, err := NewSigner(key)
	require.NoError(t, err)
	require.Equal(t, MustHexParse(web3Key), key)
	require.Equal(t, web3Address, signer.Address().Checksum())
}

func TestSignerNeverPrintsKey(t *testing.T) {
	signer, err := ParseSigner(web3Key)
	require.NoError(t, err)
	defer signer.Zero()

	keyDigits := strings.TrimPrefix(web3Key, "0x")
	wrapped := struct{ Signer *Signer }{signer}

	for _, format := range []string{"%v", "%+v", "%#v", "%s", "%x", "%X", "%d", "%q"} {
		for _, val := range []interface{}{signer, wrapped} {
			out := fmt.Sprintf(format, val)
			require.NotContains(t, strings.ToLower(out), keyDigits, format)
			require.Contains(t, out, web3Address, format)
		}
	}

	require.Equal(t, "Signer("+web3Address+")", signer.String())
	require.Equal(t, "ethcore.Signer{"+web3Address+"}", fmt.Sprintf("%#v", signer))
}

func TestSignerCloneAndZero(t *testing.T) {
	signer, err := ParseSigner(web3Key)
	require.NoError(t, err)

	clone := signer.Clone()
	signer.Zero()
	signer.Zero()

	_, err = signer.SignMessage([]byte("Some data"))
	requireSigningError(t, err)
	_, err = signer.SignTx(eip155Tx())
	requireSigningError(t, err)
	require.Equal(t, web3Address, signer.Address().Checksum())

	sig, err := clone.SignMessage([]byte("Some data"))
	require.NoError(t, err)
	require.Equal(t, web3Signature, sig.String())

	zeroed := signer.Clone()
	_, err = zeroed.SignMessage([]byte("Some data"))
	requireSigningError(t, err)
}

func TestGenerateSigner(t *testing.T) {
	signer, err := GenerateSigner()
	require.NoError(t, err)
	defer signer.Zero()

	other, err := GenerateSigner()
	require.NoError(t, err)
	require.NotEqual(t, signer.Address(), other.Address())

	hash := Keccak256([]byte("payload"))
	sig, err := signer.SignHash(hash)
	require.NoError(t, err)
	require.True(t, sig.IsLowS())
	require.NoError(t, sig.Verify(hash, signer.Address()))
}

func TestSignaturesAreLowS(t *testing.T) {
	halfOrder := MustParseU256("0x7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0")

	for keyIndex := range 4 {
		signer, err := GenerateSigner()
		require.NoError(t, err)

		for i := range 100 {
			hash := Keccak256([]byte(fmt.Sprintf("payload %v %v", keyIndex, i)))
			sig, err := signer.SignHash(hash)
			require.NoError(t, err)

			require.True(t, sig.IsLowS(), "key %v, hash %v", keyIndex, hash)
			require.LessOrEqual(t, sig.S.Cmp(halfOrder), 0)

			addr, err := sig.Recover(hash)
			require.NoError(t, err)
			require.Equal(t, signer.Address(), addr)
		}

		tx := eip155Tx()
		tx.Nonce = U256FromUint64(uint64(keyIndex))
		signed, err := signer.SignTx(tx)
		require.NoError(t, err)
		require.True(t, signed.Sig.IsLowS())

		sender, err := signed.RecoverSender()
		require.NoError(t, err)
		require.Equal(t, signer.Address(), sender)

		signer.Zero()
	}
}
