package mal

import (
	"bytes"
	"strings"
)

// wordBits is the width of one control-store word: a 9-bit NEXT_ADDRESS
// field followed by the 27-bit control field.
const wordBits = 9 + 27

// controlStoreWords builds the fully populated control store: one 36-bit
// value per address, packed as NEXT_ADDRESS (MSB-first) then control bits
// 26..0 (MSB-first). Unreached addresses, and addresses whose instruction
// never resolved a next-address, are emitted as zero words.
func controlStoreWords(prog *Program) []uint64 {
	words := make([]uint64, controlStoreSize)
	for _, instr := range prog.Instructions {
		if instr.Address == undetermined || instr.NextAddress == undetermined {
			continue
		}
		words[instr.Address] = packWord(uint32(instr.NextAddress), instr.Control)
	}
	return words
}

func packWord(nextAddr uint32, control ControlWord) uint64 {
	return (uint64(nextAddr&0x1FF) << 27) | uint64(control&0x7FFFFFF)
}

func unpackWord(w uint64) (nextAddr uint32, control ControlWord) {
	nextAddr = uint32((w >> 27) & 0x1FF)
	control = ControlWord(w & 0x7FFFFFF)
	return
}

// EmitText renders the control store as a text listing: one line per word,
// each line exactly 36 characters of '0'/'1', newline-terminated.
func EmitText(prog *Program) []byte {
	words := controlStoreWords(prog)
	var buf bytes.Buffer
	buf.Grow(len(words) * (wordBits + 1))
	for _, w := range words {
		writeBitsASCII(&buf, w, wordBits)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeBitsASCII(buf *bytes.Buffer, w uint64, bits int) {
	for i := bits - 1; i >= 0; i-- {
		if w&(1<<uint(i)) != 0 {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
	}
}

// EmitBinary renders the control store as a packed binary image: the
// 36-bit words concatenated MSB-first into one bit stream, packed into
// bytes MSB-first, the final byte zero-padded on the right if 36*N is not
// a multiple of 8.
func EmitBinary(prog *Program) []byte {
	words := controlStoreWords(prog)

	totalBits := len(words) * wordBits
	out := make([]byte, (totalBits+7)/8)

	bitPos := 0
	for _, w := range words {
		for i := wordBits - 1; i >= 0; i-- {
			if w&(1<<uint(i)) != 0 {
				out[bitPos/8] |= 1 << uint(7-bitPos%8)
			}
			bitPos++
		}
	}
	return out
}

// ParseText parses the text listing format back into 36-bit words: parsing
// a text emission yields a bit-identical stream to the in-memory snapshot
// it was rendered from.
func ParseText(data []byte) ([]uint64, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	words := make([]uint64, 0, len(lines))
	for lineNo, line := range lines {
		if line == "" {
			continue
		}
		if len(line) != wordBits {
			return nil, newError(ParseError, "text word at line %d has length %d, want %d", lineNo+1, len(line), wordBits)
		}
		var w uint64
		for _, r := range line {
			w <<= 1
			switch r {
			case '0':
			case '1':
				w |= 1
			default:
				return nil, newError(ParseError, "text word at line %d has non-binary character %q", lineNo+1, r)
			}
		}
		words = append(words, w)
	}
	return words, nil
}
