package mal

import (
	"fmt"
	"strings"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func assemble(t *testing.T, source string) *Program {
	t.Helper()
	lines := strings.Split(source, "\n")
	parsed, err := Parse(lines)
	assert(t, err == nil, "parse failed: %v", err)

	prog, err := Build(parsed)
	assert(t, err == nil, "build failed: %v", err)

	err = Allocate(prog)
	assert(t, err == nil, "allocate failed: %v", err)
	return prog
}

func wordAt(prog *Program, addr int) uint64 {
	words := controlStoreWords(prog)
	return words[addr]
}

// A single pinned instruction reading MDR encodes the expected B-bus
// selector, ALU control bits, and C-bus write enable, and leaves the rest
// of the control store zeroed.
func TestScenarioPinnedStraightLine(t *testing.T) {
	prog := assemble(t, `main = 0x000: MDR = MDR + 1; wr`)

	next, ctrl := unpackWord(wordAt(prog, 0))
	assert(t, next == 1, "got next_address %d, want 1", next)

	assert(t, ctrl&(1<<bitRead) == 0, "READ bit set, want clear")
	assert(t, ctrl&(1<<bitWrite) != 0, "WRITE bit clear, want set")
	assert(t, ctrl&(1<<bitCMdr) != 0, "C_MDR bit clear, want set")
	assert(t, ctrl&(1<<bitF0) != 0, "F_0 bit clear, want set")
	assert(t, ctrl&(1<<bitF1) != 0, "F_1 bit clear, want set")
	assert(t, ctrl&(1<<bitEnB) != 0, "EN_B bit clear, want set")
	assert(t, ctrl&(1<<bitInc) != 0, "INC bit clear, want set")

	bField := uint32(ctrl) & 0b1111
	assert(t, bField == 0b0010, "B-field = %04b, want 0010", bField)

	for a := 1; a < controlStoreSize; a++ {
		assert(t, wordAt(prog, a) == 0, "address %d not zero", a)
	}
}

// An unconditional goto to a label declared later in the source resolves
// to that label's allocated address, including the label's own self-loop.
func TestScenarioGotoForwardReference(t *testing.T) {
	prog := assemble(t, "main = 0x000: goto loop\nloop: H = H + 1; goto loop")

	loopAddr, ok := prog.AddressForLabel["loop"]
	assert(t, ok, "loop label never resolved an address")
	assert(t, loopAddr == 1, "loop allocated at %d, want 1", loopAddr)

	next0, _ := unpackWord(wordAt(prog, 0))
	assert(t, int(next0) == loopAddr, "address 0 next_address = %d, want %d", next0, loopAddr)

	next1, _ := unpackWord(wordAt(prog, loopAddr))
	assert(t, int(next1) == loopAddr, "loop next_address = %d, want self-loop %d", next1, loopAddr)
}

// An if/else pair is allocated with its if-arm and else-arm addresses
// exactly elseIfDisplacement apart and sharing the same low 8 bits, with
// JAMZ set and next_address pointing at the else target.
func TestScenarioIfElseCoupling(t *testing.T) {
	prog := assemble(t, strings.Join([]string{
		"start = 0x000: Z = TOS; if (Z) goto isz; else goto nnz",
		"nnz: H = H; goto start",
		"isz: MDR = 0; goto start",
	}, "\n"))

	nnzAddr, ok := prog.AddressForLabel["nnz"]
	assert(t, ok, "nnz never allocated")
	iszAddr, ok := prog.AddressForLabel["isz"]
	assert(t, ok, "isz never allocated")

	assert(t, iszAddr-nnzAddr == elseIfDisplacement, "isz-nnz = %d, want %d", iszAddr-nnzAddr, elseIfDisplacement)
	assert(t, nnzAddr%256 == iszAddr%256, "nnz/isz do not share low 8 bits")

	next0, ctrl0 := unpackWord(wordAt(prog, 0))
	assert(t, ctrl0&(1<<bitJamz) != 0, "JAMZ not set on the if/else instruction")
	assert(t, int(next0) == nnzAddr, "address 0 next_address = %d, want else target %d", next0, nnzAddr)

	startAddr, ok := prog.AddressForLabel["start"]
	assert(t, ok, "start never allocated")

	nextNnz, _ := unpackWord(wordAt(prog, nnzAddr))
	assert(t, int(nextNnz) == startAddr, "nnz next_address = %d, want %d", nextNnz, startAddr)

	nextIsz, _ := unpackWord(wordAt(prog, iszAddr))
	assert(t, int(nextIsz) == startAddr, "isz next_address = %d, want %d", nextIsz, startAddr)
}

// A halt instruction's next_address loops back to its own address.
func TestScenarioHaltSelfLoop(t *testing.T) {
	prog := assemble(t, `main = 0x000: halt`)

	next, ctrl := unpackWord(wordAt(prog, 0))
	assert(t, next == 0, "halt next_address = %d, want 0", next)
	assert(t, ctrl == 0x0000009, "halt control = 0x%07X, want 0x0000009", ctrl)
}

// Two pinned blocks whose contiguous extents overlap fail allocation with
// ErrorKind InfeasibleLayout.
func TestScenarioInfeasiblePinning(t *testing.T) {
	_, err := parseBuildAllocate(t, strings.Join([]string{
		"a = 0x010: H = H; goto a",
		"b = 0x010: H = H + 1; goto b",
	}, "\n"))
	assert(t, err != nil, "expected InfeasibleLayout, got success")

	kind, ok := KindOf(err)
	assert(t, ok, "error has no ErrorKind")
	assert(t, kind == InfeasibleLayout, "got ErrorKind %s, want InfeasibleLayout", kind)
}

// Unpinned labelled blocks pack into the addresses left free around a
// pinned block of size 3 at 0x010, in source order.
func TestScenarioPackedUnpinnedBlocks(t *testing.T) {
	prog := assemble(t, strings.Join([]string{
		"entry: goto two",
		"two: H = H",
		"H = H + 1; goto four",
		"four: H = H",
		"H = H",
		"H = H",
		"H = H + 1; goto pinned",
		"pinned = 0x010: H = H",
		"H = H",
		"H = H + 1; goto pinned",
	}, "\n"))

	twoAddr, ok := prog.AddressForLabel["two"]
	assert(t, ok, "two never allocated")
	fourAddr, ok := prog.AddressForLabel["four"]
	assert(t, ok, "four never allocated")

	assert(t, twoAddr == 1, "two allocated at %d, want 1", twoAddr)
	assert(t, fourAddr == 3, "four allocated at %d, want 3", fourAddr)

	for _, instr := range prog.Instructions {
		assert(t, instr.Address != undetermined, "instruction for label %q never got an address", instr.Label)
		assert(t, instr.NextAddress != undetermined, "instruction for label %q never resolved next_address", instr.Label)
	}
}

func parseBuildAllocate(t *testing.T, source string) (*Program, error) {
	t.Helper()
	parsed, err := Parse(strings.Split(source, "\n"))
	if err != nil {
		return nil, err
	}
	prog, err := Build(parsed)
	if err != nil {
		return nil, err
	}
	if err := Allocate(prog); err != nil {
		return prog, err
	}
	return prog, nil
}

// After successful allocation, every reachable instruction has a finite
// address and next_address within the control store's bounds.
func TestPropertyAllocatedAddressesInRange(t *testing.T) {
	prog := assemble(t, strings.Join([]string{
		"main = 0x000: goto loop",
		"loop: H = H + 1; goto loop",
	}, "\n"))

	for _, instr := range prog.Instructions {
		assert(t, instr.Address >= 0 && instr.Address < controlStoreSize, "address %d out of range", instr.Address)
		assert(t, instr.NextAddress >= 0 && instr.NextAddress < controlStoreSize, "next_address %d out of range", instr.NextAddress)
	}
}

// A block-internal instruction with no explicit next-address or target
// falls through with next_address == address + 1.
func TestPropertyFallthroughIncrementsAddress(t *testing.T) {
	prog := assemble(t, `main = 0x000: H = H + 1; wr`)
	instr := prog.Instructions[0]
	assert(t, instr.NextAddress == instr.Address+1, "next_address %d, want address+1 = %d", instr.NextAddress, instr.Address+1)
}

// Encoding the same parsed instruction twice is deterministic.
func TestPropertyEncodeIsPure(t *testing.T) {
	parsed, err := Parse([]string{"main = 0x000: MDR = MDR + 1; wr"})
	assert(t, err == nil, "parse failed: %v", err)

	w1, _, err1 := Encode(parsed[0])
	w2, _, err2 := Encode(parsed[0])
	assert(t, err1 == nil && err2 == nil, "encode failed: %v / %v", err1, err2)
	assert(t, w1 == w2, "Encode is not deterministic: %v != %v", w1, w2)
}

// Reclaiming disjoint intervals from a FreeChunkChain leaves the same
// resulting chunks regardless of the order they're reclaimed in.
func TestFreeChunkChainReclaimOrderIndependent(t *testing.T) {
	a := NewFreeChunkChain(16)
	assert(t, a.Reclaim(0, 3) == nil, "reclaim [0,3] failed")
	assert(t, a.Reclaim(8, 10) == nil, "reclaim [8,10] failed")

	b := NewFreeChunkChain(16)
	assert(t, b.Reclaim(8, 10) == nil, "reclaim [8,10] failed")
	assert(t, b.Reclaim(0, 3) == nil, "reclaim [0,3] failed")

	assert(t, fmt.Sprint(a.Chunks()) == fmt.Sprint(b.Chunks()), "chain state depends on reclaim order: %v != %v", a.Chunks(), b.Chunks())
}

func TestFreeChunkChainReclaimStraddlingFails(t *testing.T) {
	c := NewFreeChunkChain(16)
	assert(t, c.Reclaim(4, 7) == nil, "reclaim [4,7] failed")
	err := c.Reclaim(6, 9)
	assert(t, err != nil, "expected reclaim straddling two chunks to fail")

	kind, ok := KindOf(err)
	assert(t, ok && kind == InfeasibleLayout, "expected InfeasibleLayout, got %v", err)
}

// Parsing a text emission back yields a bit-identical stream to the
// in-memory control store snapshot it was rendered from.
func TestRoundTripTextEmitter(t *testing.T) {
	prog := assemble(t, strings.Join([]string{
		"start = 0x000: Z = TOS; if (Z) goto isz; else goto nnz",
		"nnz: H = H; goto start",
		"isz: MDR = 0; goto start",
	}, "\n"))

	want := controlStoreWords(prog)
	text := EmitText(prog)

	got, err := ParseText(text)
	assert(t, err == nil, "ParseText failed: %v", err)
	assert(t, len(got) == len(want), "got %d words, want %d", len(got), len(want))
	for i := range want {
		assert(t, got[i] == want[i], "word %d = %036b, want %036b", i, got[i], want[i])
	}
}

func TestDuplicateLabelRejected(t *testing.T) {
	_, err := parseBuildAllocate(t, strings.Join([]string{
		"main = 0x000: goto loop",
		"loop: H = H; goto loop",
		"loop: H = H + 1; goto loop",
	}, "\n"))
	assert(t, err != nil, "expected duplicate label to be rejected")

	kind, ok := KindOf(err)
	assert(t, ok && kind == ParseError, "expected ParseError, got %v", err)
}
