package totp

// base32Alphabet is the RFC 4648 Base32 alphabet used for shared secrets.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var base32Values = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(base32Alphabet); i++ {
		table[base32Alphabet[i]] = int8(i)
		table[base32Alphabet[i]|0x20] = int8(i) // lowercase
	}
	return table
}()

// decodeBase32 decodes a Base32 secret tolerantly: characters outside the
// alphabet (padding, spaces, separators) are skipped and case is ignored.
// Each symbol contributes 5 bits; trailing bits that do not fill a whole
// byte are discarded.
func decodeBase32(s string) []byte {
	out := make([]byte, 0, len(s)*5/8)

	var buf uint16
	var bits uint
	for i := 0; i < len(s); i++ {
		v := base32Values[s[i]]
		if v < 0 {
			continue
		}

		buf = buf<<5 | uint16(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
		}
	}

	return out
}
