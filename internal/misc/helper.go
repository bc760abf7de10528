package misc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// StrContains returns true if "str" is in "values"
// e.g "a" in "a,b,c" => true
func StrContains(str string, values []string) bool {
	for _, next := range values {
		if str == next {
			return true
		}
	}
	return false
}

// FormatSize renders a byte count with one decimal, e.g 1536 => "1.5 KB"
func FormatSize(size int64) string {
	value := float64(size)
	for _, unit := range sizeUnits[:len(sizeUnits)-1] {
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[len(sizeUnits)-1])
}

// RandomHex returns n random bytes hex encoded
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FileChecksum returns the hex encoded SHA-256 digest and the size of the file at path
func FileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
