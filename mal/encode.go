package mal

// operationBits enumerates the MIC-1 ALU/operand-source encoding table.
// Each entry is keyed by a canonical operation string (commutative
// orderings the parser reports, e.g. "B AND A", are mapped onto the
// "A AND B" key by canonicalOperation), and names the bits that must be SET
// in addition to the default control word.
var operationBits = map[string][]int{
	"A AND B": {bitEnA, bitEnB},
	"A OR B":  {bitF1, bitEnA, bitEnB},
	"NOT A":   {bitF1, bitEnA, bitInvA},
	"NOT B":   {bitF0, bitEnA, bitEnB},
	"A + B":   {bitF0, bitF1, bitEnA, bitEnB},
	"A + 1":   {bitF0, bitF1, bitEnA, bitInc},
	"B + 1":   {bitF0, bitF1, bitEnB, bitInc},
	"B - A":   {bitF0, bitF1, bitEnA, bitEnB, bitInvA, bitInc},
	"-A":      {bitF0, bitF1, bitEnA, bitInvA, bitInc},
	"B - 1":   {bitF0, bitF1, bitEnB, bitInvA},
	"A + B + 1": {bitF0, bitF1, bitEnA, bitEnB, bitInc},
	"A":       {bitF1, bitEnA},
	"B":       {bitF1, bitEnB},
	"-1":      {bitF0, bitF1, bitInvA},
	"0":       {bitF1},
	"1":       {bitF0, bitF1, bitInc},
}

// operationSynonyms maps commutative-operand orderings the grammar accepts
// ("B AND A", "B OR A", "B + A") onto the canonical keys above.
var operationSynonyms = map[string]string{
	"B AND A": "A AND B",
	"B OR A":  "A OR B",
	"B + A":   "A + B",
}

// canonicalOperation resolves a parsed operation token to its
// operationBits key, applying the commutative synonyms.
func canonicalOperation(op string) (string, bool) {
	if canon, ok := operationSynonyms[op]; ok {
		op = canon
	}
	if _, ok := operationBits[op]; ok {
		return op, true
	}
	return "", false
}

// Encode maps one parsed instruction to its 27-bit control field and the
// metadata carried alongside it. It is a pure function of its input: the
// same ParsedInstruction always yields the same ControlWord.
func Encode(p *ParsedInstruction) (ControlWord, *Instruction, error) {
	instr := &Instruction{
		Address:     undetermined,
		NextAddress: undetermined,
	}
	if p.Label != nil {
		instr.Label = p.Label.Name
	}

	switch p.Kind {
	case StmtEmpty:
		return defaultControlWord(), instr, nil
	case StmtHalt:
		instr.IsHalt = true
		return defaultControlWord(), instr, nil
	}

	word := defaultControlWord()

	if a := p.Assignment; a != nil {
		canon, ok := canonicalOperation(a.Expr.Operation)
		if !ok {
			return 0, nil, newError(ParseError, "unknown operation %q at line %d", a.Expr.Operation, p.Line)
		}
		for _, bit := range operationBits[canon] {
			word = word.set(bit)
		}
		if a.Expr.BReg != "" {
			code, ok := bRegisterCode[a.Expr.BReg]
			if !ok {
				return 0, nil, newError(ParseError, "unknown B-bus register %q at line %d", a.Expr.BReg, p.Line)
			}
			word = word.setBBus(code)
		}
		if a.Expr.ShiftLeft8 {
			word = word.set(bitSll8)
		}
		if a.Expr.ShiftRight1 {
			word = word.set(bitSra1)
		}

		for _, dest := range a.Destinations {
			switch dest {
			case "N":
				word = word.set(bitJamn)
			case "Z":
				word = word.set(bitJamz)
			default:
				bit, ok := cRegisterBit[dest]
				if !ok {
					return 0, nil, newError(ParseError, "unknown assignment destination %q at line %d", dest, p.Line)
				}
				word = word.set(bit)
			}
		}
	}

	if m := p.Memory; m != nil {
		if m.Read {
			word = word.set(bitRead)
		}
		if m.Write {
			word = word.set(bitWrite)
		}
		if m.Fetch {
			word = word.set(bitFetch)
		}
	}

	if c := p.Control; c != nil {
		switch c.Form {
		case ControlGoto:
			instr.TargetLabel = c.Target
		case ControlGotoMBR:
			word = word.set(bitJmpc)
			addr := uint32(0)
			if c.HasAddr {
				addr = c.Addr
			}
			instr.NextAddress = int(addr)
		case ControlIfElse:
			switch c.Cond {
			case "N":
				word = word.set(bitJamn)
			case "Z":
				word = word.set(bitJamz)
			default:
				return 0, nil, newError(ParseError, "unknown condition %q at line %d", c.Cond, p.Line)
			}
			instr.TargetLabel = c.ElseTarget
			instr.IfLabel = c.IfTarget
			instr.ElseLabel = c.ElseTarget
		}
	}

	return word, instr, nil
}
