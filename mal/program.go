package mal

import "fmt"

// undetermined is the conventional sentinel for an address or next-address
// that has not yet been assigned.
const undetermined = -1

// Instruction is the per-source-line record the builder produces. Address
// and NextAddress are undetermined (-1) until the allocator resolves them;
// every reachable instruction ends the pipeline with both set to a value in
// [0, controlStoreSize).
type Instruction struct {
	Address     int
	NextAddress int
	Control     ControlWord
	IsHalt      bool
	Label       string
	TargetLabel string

	// IfLabel/ElseLabel are populated only on the instruction that carries
	// an if/else control statement; the builder uses them to register the
	// pair with the Program and then they play no further role.
	IfLabel   string
	ElseLabel string
}

// Interval is an inclusive range [Start, End] of control-store addresses,
// used both for reclaim promises and free chunks.
type Interval struct {
	Start, End int
}

// Size returns the number of addresses the interval spans.
func (iv Interval) Size() int { return iv.End - iv.Start + 1 }

// Program is the aggregate data model populated by the builder
// (mal/builder.go) and mutated in place by the allocator (mal/allocate.go).
type Program struct {
	Instructions []*Instruction

	AddressForLabel map[string]int
	CountForLabel   map[string]int

	// IfElsePairs is the bidirectional pairing map: if (a,b) is present,
	// both IfElsePairs[a]==b and IfElsePairs[b]==a hold. ElseSet records
	// which side of each pair is the else-target.
	IfElsePairs map[string]string
	ElseSet     map[string]bool

	ReclaimPromises []Interval

	// BlockAnnotations maps a source-order instruction index (the block's
	// first instruction) to its size, one entry per unpinned labelled
	// block and the entry-point block.
	BlockAnnotations map[int]int
}

// NewProgram returns an empty Program ready for the builder to populate.
func NewProgram() *Program {
	return &Program{
		AddressForLabel:  make(map[string]int),
		CountForLabel:    make(map[string]int),
		IfElsePairs:      make(map[string]string),
		ElseSet:          make(map[string]bool),
		BlockAnnotations: make(map[int]int),
	}
}

// DeclareLabel records a label's first appearance: if the name is not yet
// in address_for_label, inserts it; if not yet in count_for_label, inserts
// the current instruction index. Re-declaration is rejected rather than
// silently accepted, per the Open Question decision in DESIGN.md.
func (p *Program) DeclareLabel(name string, addr int, instrIndex int) error {
	if _, ok := p.CountForLabel[name]; ok {
		return newError(ParseError, "label %q redeclared at instruction %d", name, instrIndex)
	}
	p.AddressForLabel[name] = addr
	p.CountForLabel[name] = instrIndex
	return nil
}

// AddIfElseTarget registers the bidirectional if/else pairing between
// ifLabel and elseLabel. Adding a pair that conflicts with an existing
// binding for either name is an error; adding the same pair again is
// idempotent.
func (p *Program) AddIfElseTarget(ifLabel, elseLabel string) error {
	if existing, ok := p.IfElsePairs[ifLabel]; ok {
		if existing == elseLabel {
			return nil // idempotent re-registration
		}
		return newError(InvalidIfElsePairing, "label %q already paired with %q, cannot pair with %q", ifLabel, existing, elseLabel)
	}
	if existing, ok := p.IfElsePairs[elseLabel]; ok {
		if existing == ifLabel {
			return nil
		}
		return newError(InvalidIfElsePairing, "label %q already paired with %q, cannot pair with %q", elseLabel, existing, ifLabel)
	}

	p.IfElsePairs[ifLabel] = elseLabel
	p.IfElsePairs[elseLabel] = ifLabel
	p.ElseSet[elseLabel] = true
	return nil
}

// PartnerOf returns the paired label and whether name participates in an
// if/else pair.
func (p *Program) PartnerOf(name string) (string, bool) {
	partner, ok := p.IfElsePairs[name]
	return partner, ok
}

// IsElse reports whether name is registered as the else-side of a pair.
func (p *Program) IsElse(name string) bool { return p.ElseSet[name] }

func (iv Interval) String() string { return fmt.Sprintf("[%d,%d]", iv.Start, iv.End) }
