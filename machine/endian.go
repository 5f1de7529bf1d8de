package machine

import (
	"fmt"
	"unsafe"
)

// CheckEndian makes sure that the host stores the bytes of an integer the way
// the machine was configured to expect. The bytes 1, 2, 3, 4 read as one word
// must give 0x01020304 on a big-endian host and 0x04030201 on a little-endian
// one.
func CheckEndian(hostIsBigEndian bool) error {
	check := [4]byte{1, 2, 3, 4}
	word := *(*uint32)(unsafe.Pointer(&check))

	expected := uint32(0x04030201)
	if hostIsBigEndian {
		expected = 0x01020304
	}

	if word != expected {
		return fmt.Errorf(
			"host byte order mismatch: read 0x%08x, expected 0x%08x",
			word, expected)
	}

	return nil
}
