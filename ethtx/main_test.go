package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/purelabio/ethcore"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

var (
	testKey     = "0x" + strings.Repeat("46", 32)
	testAddress = ethcore.MustParseAddress("0x9d8a62f656a8d1615c1294fd71e9cfb3e4855a4f")
)

const testRawTx = `0xf86c098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a76400008025a028ef61340bd939bc2195fe537567866003e1a15d3c71ff63e1590620aa636276a067cbe9d8997f761aecb703304b3800ccf555c9f3dc64214b297fb1966a3b6d83`

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

type testSummary struct {
	Hash ethcore.Hash    `json:"hash"`
	From ethcore.Address `json:"from"`
	Raw  string          `json:"raw"`
}

func decodeSummary(t *testing.T, input string) testSummary {
	var out testSummary
	require.NoError(t, json.Unmarshal([]byte(input), &out))
	return out
}

func TestAddressCommand(t *testing.T) {
	out, err := execute(t, "address", "--key", testKey)
	require.NoError(t, err)
	require.Equal(t, testAddress.Checksum()+"\n", out)

	t.Setenv("ETHTX_KEY", "")
	t.Setenv("ETHTX_MNEMONIC", "")
	_, err = execute(t, "address")
	require.Error(t, err)
}

func TestSignCommand(t *testing.T) {
	out, err := execute(t, "sign",
		"--key", testKey,
		"--to", "0x3535353535353535353535353535353535353535",
		"--value", "1",
		"--nonce", "9",
		"--gas-price", "20",
		"--gas", "21000",
		"--chain-id", "1",
	)
	require.NoError(t, err)

	summary := decodeSummary(t, out)
	require.Equal(t, testRawTx, summary.Raw)
	require.Equal(t, testAddress, summary.From)
	require.Equal(t, ethcore.Keccak256(ethcore.MustHexParse(testRawTx)), summary.Hash)
	require.NotContains(t, out, strings.Repeat("46", 32))
}

func TestSignCommandRequiresAllFields(t *testing.T) {
	_, err := execute(t, "sign", "--key", testKey, "--nonce", "9", "--gas", "21000", "--chain-id", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--gas-price")

	_, err = execute(t, "sign", "--key", testKey, "--value", "abc",
		"--nonce", "9", "--gas-price", "20", "--gas", "21000", "--chain-id", "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid --value")
}

func TestRecoverCommand(t *testing.T) {
	out, err := execute(t, "recover", testRawTx)
	require.NoError(t, err)

	summary := decodeSummary(t, out)
	require.Equal(t, testAddress, summary.From)
	require.Equal(t, testRawTx, summary.Raw)

	_, err = execute(t, "recover", "0x1234")
	require.Error(t, err)
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConfigFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadConfigDefaults(t *testing.T) {
	conf, err := loadConfig(testFlags(t))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", conf.Rpc)
	require.Equal(t, ethcore.DefaultDerivationPath, conf.Path)
	require.Equal(t, uint64(1), conf.Confirmations)
	require.Equal(t, "info", conf.LogLevel)
	require.Equal(t, 0, conf.MaxReorgs)
}

func TestLoadConfigPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ethtx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc: http://file:8545\nconfirmations: 7\nmax_reorgs: 2\n"), 0600))
	t.Setenv("ETHTX_CONFIRMATIONS", "5")

	conf, err := loadConfig(testFlags(t, "--config", path, "--max-reorgs", "3"))
	require.NoError(t, err)
	require.Equal(t, "http://file:8545", conf.Rpc)
	require.Equal(t, uint64(5), conf.Confirmations)
	require.Equal(t, 3, conf.MaxReorgs)

	_, err = loadConfig(testFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}

func TestConfigSigner(t *testing.T) {
	signer, err := config{Key: testKey}.signer()
	require.NoError(t, err)
	require.Equal(t, testAddress, signer.Address())

	_, err = config{Key: testKey, Mnemonic: "abandon"}.signer()
	require.Error(t, err)

	_, err = config{}.signer()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config{LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = newLogger(config{LogLevel: "loud"})
	require.Error(t, err)
}

func TestTxFlagsParams(t *testing.T) {
	params, err := txFlags{value: "0.5", gasPrice: "1.5"}.params(config{})
	require.NoError(t, err)
	require.Nil(t, params.To)
	require.Nil(t, params.Nonce)
	require.Nil(t, params.ChainId)
	require.Equal(t, ethcore.MustParseU256("500000000000000000"), params.Value)
	require.Equal(t, ethcore.MustParseU256("1500000000"), *params.GasPrice)

	_, err = txFlags{value: "0", to: "0x12"}.params(config{})
	require.Error(t, err)

	_, err = txFlags{value: "0", data: "zz"}.params(config{})
	require.Error(t, err)
}
