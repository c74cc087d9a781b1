package crypto

import "fmt"

// Portable base64 codec for the legacy scheme. Old clients ran in
// environments where the host encoder was not guaranteed to exist, so the
// legacy wire format is defined in terms of this self-contained RFC 4648
// implementation rather than any runtime primitive.

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var b64Reverse [256]int8

func init() {
	for i := range b64Reverse {
		b64Reverse[i] = -1
	}
	for i := 0; i < len(b64Alphabet); i++ {
		b64Reverse[b64Alphabet[i]] = int8(i)
	}
}

func portableB64Encode(src []byte) string {
	out := make([]byte, 0, (len(src)+2)/3*4)
	for i := 0; i < len(src); i += 3 {
		var chunk uint32
		n := 0
		for j := 0; j < 3 && i+j < len(src); j++ {
			chunk |= uint32(src[i+j]) << (16 - 8*j)
			n++
		}
		for j := 0; j <= n; j++ {
			out = append(out, b64Alphabet[(chunk>>(18-6*j))&0x3f])
		}
		for j := n; j < 3; j++ {
			out = append(out, '=')
		}
	}
	return string(out)
}

func portableB64Decode(src string) ([]byte, error) {
	if len(src)%4 != 0 {
		return nil, fmt.Errorf("base64 length %d not a multiple of 4", len(src))
	}
	out := make([]byte, 0, len(src)/4*3)
	for i := 0; i < len(src); i += 4 {
		var chunk uint32
		pad := 0
		for j := 0; j < 4; j++ {
			ch := src[i+j]
			if ch == '=' {
				pad++
				continue
			}
			if pad > 0 {
				return nil, fmt.Errorf("base64 padding before character %q", ch)
			}
			v := b64Reverse[ch]
			if v < 0 {
				return nil, fmt.Errorf("invalid base64 character %q", ch)
			}
			chunk |= uint32(v) << (18 - 6*j)
		}
		if pad > 2 {
			return nil, fmt.Errorf("invalid base64 padding")
		}
		for j := 0; j < 3-pad; j++ {
			out = append(out, byte(chunk>>(16-8*j)))
		}
	}
	return out, nil
}
