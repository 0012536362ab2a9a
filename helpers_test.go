package ethcore

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Decodes hex without a "0x" prefix, ignoring whitespace. Panics on failure.
func unhex(input string) []byte {
	return MustHexParse("0x" + strings.Join(strings.Fields(input), ""))
}

// Concatenates hex-encoded 32-byte words.
func words(input ...string) []byte {
	return unhex(strings.Join(input, ""))
}

// Left-pads a short hex number to a full word.
func word(num string) string {
	return strings.Repeat("0", 64-len(num)) + num
}

// Right-pads hex-encoded bytes to a full word.
func rword(data string) string {
	return data + strings.Repeat("0", 64-len(data))
}

func requireEncodingError(t *testing.T, err error) {
	t.Helper()
	var target EncodingError
	require.Truef(t, errors.As(err, &target), "expected EncodingError, got %+v", err)
}

func requireSigningError(t *testing.T, err error) {
	t.Helper()
	var target SigningError
	require.Truef(t, errors.As(err, &target), "expected SigningError, got %+v", err)
}

func requireEqualDump(t *testing.T, expected, actual interface{}) {
	t.Helper()
	require.Equalf(t, expected, actual, "expected:\n%v\nactual:\n%v", spew.Sdump(expected), spew.Sdump(actual))
}
