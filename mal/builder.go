package mal

// buildMode makes the translator's two mutually exclusive state machines
// explicit: a pinned run being laid out contiguously from a fixed address,
// or an unpinned run whose size is only known once it closes.
type buildMode int

const (
	modeNone buildMode = iota
	modeContiguous
	modeAnnotating
)

type builderState struct {
	mode buildMode

	// valid when mode == modeContiguous
	pin    int
	cursor int

	// valid when mode == modeAnnotating
	annotateStart int
	annotateSize  int
}

// isTerminal reports whether a parsed instruction closes whichever mode is
// currently active: goto, goto(MBR...), if/else, or halt.
func isTerminal(p *ParsedInstruction, instr *Instruction) bool {
	return instr.IsHalt || p.Control != nil
}

// Build runs the translator: a single left-to-right walk over the parsed
// source producing a populated Program. It drives the contiguous-allocation
// and block-annotation state machines, populates the label tables, and
// registers if/else target pairs.
func Build(parsed []*ParsedInstruction) (*Program, error) {
	prog := NewProgram()
	var st builderState

	for i, p := range parsed {
		word, instr, err := Encode(p)
		if err != nil {
			return nil, err
		}
		instr.Control = word
		prog.Instructions = append(prog.Instructions, instr)

		if instr.IfLabel != "" && instr.ElseLabel != "" {
			if err := prog.AddIfElseTarget(instr.IfLabel, instr.ElseLabel); err != nil {
				return nil, err
			}
		}

		if err := transitionForLabel(prog, &st, p, i); err != nil {
			return nil, err
		}

		terminal := isTerminal(p, instr)

		switch st.mode {
		case modeContiguous:
			instr.Address = st.cursor
			if terminal {
				prog.ReclaimPromises = append(prog.ReclaimPromises, Interval{Start: st.pin, End: st.cursor})
				trace.Printf("contiguous block %s committed", Interval{st.pin, st.cursor})
				st.mode = modeNone
			} else {
				instr.NextAddress = st.cursor + 1
				st.cursor++
			}
		case modeAnnotating:
			st.annotateSize++
			if terminal {
				prog.BlockAnnotations[st.annotateStart] = st.annotateSize
				trace.Printf("annotated block starting at instruction %d committed, size %d", st.annotateStart, st.annotateSize)
				st.mode = modeNone
			}
		}
	}

	commitOpenMode(prog, &st)

	return prog, nil
}

// transitionForLabel applies the label-event rules: a pinned label always
// enters contiguous-allocation (cancelling any ongoing annotation, which
// becomes unreachable); an unpinned label, or instruction 0, enters
// block-annotation.
func transitionForLabel(prog *Program, st *builderState, p *ParsedInstruction, i int) error {
	if p.Label != nil {
		name := p.Label.Name
		if p.Label.Pinned {
			if st.mode == modeAnnotating {
				warn.Printf("pinned label %q shadows open annotation starting at instruction %d; block dropped", name, st.annotateStart)
			}
			st.mode = modeContiguous
			st.pin = int(p.Label.Addr)
			st.cursor = int(p.Label.Addr)
			return prog.DeclareLabel(name, st.pin, i)
		}

		if st.mode == modeNone {
			st.mode = modeAnnotating
			st.annotateStart = i
			st.annotateSize = 0
		}
		return prog.DeclareLabel(name, undetermined, i)
	}

	if st.mode == modeNone {
		// Either the entry-point block (instruction 0) or an unlabelled
		// run immediately following a closed block; both are annotated
		// blocks with no associated label name.
		st.mode = modeAnnotating
		st.annotateStart = i
		st.annotateSize = 0
	}
	return nil
}

// commitOpenMode implements "End-of-program commits any open mode."
func commitOpenMode(prog *Program, st *builderState) {
	switch st.mode {
	case modeContiguous:
		// The last instruction left st.cursor one past its own address
		// (it was non-terminal, see the increment above); the reclaimed
		// interval ends at that address.
		end := st.cursor - 1
		prog.ReclaimPromises = append(prog.ReclaimPromises, Interval{Start: st.pin, End: end})
		trace.Printf("contiguous block %s committed at end of program", Interval{st.pin, end})
	case modeAnnotating:
		prog.BlockAnnotations[st.annotateStart] = st.annotateSize
		trace.Printf("annotated block starting at instruction %d committed at end of program, size %d", st.annotateStart, st.annotateSize)
	}
}
