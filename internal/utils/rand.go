package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const base34Table = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// RandBase34 generates a random base34 string of the given length
func RandBase34(length int) (string, error) {
	return randFromTable(base34Table, length)
}

// RandDigits generates a random decimal string of the given length
func RandDigits(length int) (string, error) {
	return randFromTable("0123456789", length)
}

func randFromTable(table string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid length: %d", length)
	}

	max := big.NewInt(int64(len(table)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = table[n.Int64()]
	}
	return string(out), nil
}

// TokenHex returns n random bytes hex encoded
func TokenHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
