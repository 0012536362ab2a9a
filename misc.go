package ethcore

import (
	"math/big"
	"time"
	"unsafe"

	"github.com/shopspring/decimal"
)

// Conversion ratios, measured in wei.
const (
	Wei   = 1
	Gwei  = 1e9
	Ether = 1e18
)

// Decimal places of common denominations, for "ParseUnits" and "FormatUnits".
const (
	GweiDecimals  = 9
	EtherDecimals = 18
)

// "Magic" words understood by RPC methods that expect a block number.
const (
	BlockNumberEarliest = "earliest"
	BlockNumberLatest   = "latest"
	BlockNumberPending  = "pending"
)

// Zero-initialized arrays for equality comparisons.
var (
	ZeroAddress Address
	ZeroWord    Word
	ZeroHash    Hash
)

var (
	// Determines the default reconnect interval of long-lived RPC transports,
	// such as WsTrans. Configurable on per-transport basis.
	defaultReconnectInterval = time.Second

	// Default interval between polls of a transaction watch.
	defaultPollInterval = 4 * time.Second
)

/*
Parses a decimal amount such as "1.5" into base units with the given number of
decimal places: "ParseUnits("1.5", EtherDecimals)" is 1.5 ether in wei. Exact:
fails if the amount has more fractional digits than "decimals", is negative, or
overflows 256 bits.
*/
func ParseUnits(input string, decimals int32) (U256, error) {
	num, err := decimal.NewFromString(input)
	if err != nil {
		return U256{}, encodingErrorf("malformed amount %q: %v", input, err)
	}
	if num.IsNegative() {
		return U256{}, encodingErrorf("amount %q is negative", input)
	}
	num = num.Shift(decimals)
	if !num.IsInteger() {
		return U256{}, encodingErrorf("amount %q has more than %v decimal places", input, decimals)
	}
	return U256FromBig(num.BigInt())
}

/*
Formats base units as a decimal amount with the given number of decimal places,
without trailing zeros: "FormatUnits(wei, EtherDecimals)" prints ethers.
*/
func FormatUnits(num U256, decimals int32) string {
	return decimal.NewFromBigInt(num.Big(), -decimals).String()
}

/*
Converts ethers to wei, rounding to the nearest wei. Beware: floats should not
be used for financial calculations. Conversion functions are provided only for
display purposes and for handling user input; prefer "ParseUnits".
*/
func EthToWei(eth float64) *big.Int {
	return decimal.NewFromFloat(eth).Shift(EtherDecimals).Round(0).BigInt()
}

/*
Converts wei to ethers. Beware: floats should not be used for financial
calculations. Conversion functions are provided only for display purposes;
prefer "FormatUnits".
*/
func WeiToEth(wei *big.Int) float64 {
	out, _ := decimal.NewFromBigInt(wei, -EtherDecimals).Float64()
	return out
}

/*
Reinterprets a byte slice as a string, saving an allocation.
Borrowed from the standard library. Reasonably safe.
*/
func bytesToMutableString(bytes []byte) string {
	return *(*string)(unsafe.Pointer(&bytes))
}

/*
Returns a byte slice backed by the provided string. Must be treated as
read-only.
*/
func stringToBytesUnsafe(str string) []byte {
	return unsafe.Slice(unsafe.StringData(str), len(str))
}

// Launches a goroutine, returning a channel that will close on completion,
// transmitting its error or panic, if any.
func gogo(fun func() error) chan error {
	out := make(chan error, 1)

	go func() {
		defer func() {
			err, _ := recover().(error)
			if err != nil {
				select {
				case out <- err:
				default:
				}
			}
			close(out)
		}()

		err := fun()
		if err != nil {
			out <- err
		}
	}()

	return out
}
