package lib

import "fmt"

const serialRemainderBase = 10000

// SerializedID turns a sequence id into a short code like A0007 or AB0150.
// The letters encode id/10000 in bijective base 26, the digits hold id%10000.
func SerializedID(id uint64) string {
	return fmt.Sprintf("%s%04d", baseAlphabet(id/serialRemainderBase), id%serialRemainderBase)
}

func baseAlphabet(n uint64) string {
	last := string(rune('A' + n%26))
	if div := n / 26; div > 0 {
		return baseAlphabet(div-1) + last
	}
	return last
}
