// Package keycodec builds the sortable store keys for price observations.
//
// A key is the uppercase symbol, a separator, and a fixed-width UTC
// timestamp. Because the timestamp encoding is fixed width, byte order
// of keys equals chronological order within a symbol, and every symbol
// owns one contiguous key range.
package keycodec

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Separator splits the symbol from the timestamp. It never appears in a
// valid symbol and sorts below every printable symbol character, so the
// ranges of distinct symbols cannot interleave.
const Separator = '!'

// timeLayout is fixed width: millisecond precision, zero padded, UTC.
// Variable-width formatting here would silently break key ordering.
const timeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in the fixed-width encoding used inside keys.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Encode builds the store key for (symbol, ts). The symbol is
// normalized to uppercase first; it must be non-empty and must not
// contain the separator.
func Encode(symbol string, ts time.Time) ([]byte, error) {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if upper == "" {
		return nil, fmt.Errorf("encode key: empty symbol")
	}
	if strings.ContainsRune(upper, Separator) {
		return nil, fmt.Errorf("encode key: symbol %q contains separator", upper)
	}

	var b bytes.Buffer
	b.Grow(len(upper) + 1 + len(timeLayout))
	b.WriteString(upper)
	b.WriteByte(Separator)
	b.WriteString(FormatTime(ts))
	return b.Bytes(), nil
}

// SymbolPrefix returns the prefix shared by every key of symbol,
// including the trailing separator.
func SymbolPrefix(symbol string) ([]byte, error) {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	if upper == "" {
		return nil, fmt.Errorf("symbol prefix: empty symbol")
	}
	if strings.ContainsRune(upper, Separator) {
		return nil, fmt.Errorf("symbol prefix: symbol %q contains separator", upper)
	}
	return append([]byte(upper), Separator), nil
}

// DecodeSymbol recovers the symbol from a key by splitting on the first
// separator. Keys without a separator are not observation keys.
func DecodeSymbol(key []byte) (string, error) {
	i := bytes.IndexByte(key, Separator)
	if i <= 0 {
		return "", fmt.Errorf("decode key %q: no symbol separator", key)
	}
	return string(key[:i]), nil
}
