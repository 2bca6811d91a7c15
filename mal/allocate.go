package mal

import "sort"

// Allocate runs the three allocator phases over a fresh free-chunk chain
// of size controlStoreSize: apply reclaim promises, place block-annotated
// blocks (coupling if/else pairs at the required 256-word displacement),
// then resolve remaining symbolic next-addresses.
func Allocate(prog *Program) error {
	chain := NewFreeChunkChain(controlStoreSize)

	if err := applyReclaimPromises(prog, chain); err != nil {
		return err
	}
	if err := placeBlocks(prog, chain); err != nil {
		return err
	}
	resolveNextAddresses(prog)

	return nil
}

func applyReclaimPromises(prog *Program, chain *FreeChunkChain) error {
	for _, promise := range prog.ReclaimPromises {
		if err := chain.Reclaim(promise.Start, promise.End); err != nil {
			return wrapError(InfeasibleLayout, err, "pinned block %s conflicts with another pinned block", promise)
		}
		trace.Printf("reclaimed pinned interval %s", promise)
	}
	return nil
}

func placeBlocks(prog *Program, chain *FreeChunkChain) error {
	starts := make([]int, 0, len(prog.BlockAnnotations))
	for ic := range prog.BlockAnnotations {
		starts = append(starts, ic)
	}
	sort.Ints(starts)

	handled := make(map[int]bool, len(starts))

	for _, ic := range starts {
		if handled[ic] {
			continue
		}
		size := prog.BlockAnnotations[ic]
		label := prog.Instructions[ic].Label

		partner, isPaired := "", false
		if label != "" {
			partner, isPaired = prog.PartnerOf(label)
		}

		if isPaired {
			partnerIc, ok := prog.CountForLabel[partner]
			if !ok {
				return newError(InfeasibleLayout, "if/else partner %q of %q has no recorded instruction", partner, label)
			}
			partnerSize, ok := prog.BlockAnnotations[partnerIc]
			if !ok {
				return newError(InfeasibleLayout, "if/else partner %q of %q is not an unpinned annotated block", partner, label)
			}

			ifLabel, ifIc, ifSize := label, ic, size
			elseLabel, elseIc, elseSize := partner, partnerIc, partnerSize
			if prog.IsElse(label) {
				ifLabel, ifIc, ifSize = partner, partnerIc, partnerSize
				elseLabel, elseIc, elseSize = label, ic, size
			}

			elseStart, ifStart, err := chain.DisplacedPair(elseSize, ifSize, elseIfDisplacement)
			if err != nil {
				return wrapError(InfeasibleLayout, err, "no displaced pair for if-arm %q (size %d) / else-arm %q (size %d)", ifLabel, ifSize, elseLabel, elseSize)
			}

			if err := allocateRegion(prog, chain, elseLabel, elseIc, elseSize, elseStart); err != nil {
				return err
			}
			if err := allocateRegion(prog, chain, ifLabel, ifIc, ifSize, ifStart); err != nil {
				return err
			}
			trace.Printf("placed if/else pair: else %q at %d, if %q at %d", elseLabel, elseStart, ifLabel, ifStart)

			handled[ic] = true
			handled[partnerIc] = true
			continue
		}

		addr, err := chain.FirstChunkGE(size)
		if err != nil {
			return wrapError(InfeasibleLayout, err, "block %q (size %d) starting at instruction %d does not fit", label, size, ic)
		}
		if err := allocateRegion(prog, chain, label, ic, size, addr); err != nil {
			return err
		}
		trace.Printf("placed block %q at %d, size %d", label, addr, size)
		handled[ic] = true
	}

	return nil
}

// allocateRegion places a block of size k starting at program instruction
// index ic at control-store address a: reclaims [a, a+k-1], records
// address_for_label if label is non-empty, assigns each instruction's
// address, and chains next_address for all but the last instruction in the
// block (which is resolved by resolveNextAddresses).
func allocateRegion(prog *Program, chain *FreeChunkChain, label string, ic, k, a int) error {
	if err := chain.Reclaim(a, a+k-1); err != nil {
		return wrapError(InfeasibleLayout, err, "block %q could not reclaim [%d,%d]", label, a, a+k-1)
	}
	if label != "" {
		prog.AddressForLabel[label] = a
	}
	for j := 0; j < k; j++ {
		instr := prog.Instructions[ic+j]
		instr.Address = a + j
		if j < k-1 {
			instr.NextAddress = a + j + 1
		}
	}
	return nil
}

// resolveNextAddresses is the allocator's final phase: any instruction
// whose next_address is still undetermined is resolved via its target
// label, or given a self-loop if it is a halt. Anything left unresolved
// belongs to unreachable code.
func resolveNextAddresses(prog *Program) {
	for _, instr := range prog.Instructions {
		if instr.NextAddress != undetermined {
			continue
		}
		if instr.TargetLabel != "" {
			if addr, ok := prog.AddressForLabel[instr.TargetLabel]; ok {
				instr.NextAddress = addr
				continue
			}
		}
		if instr.IsHalt {
			instr.NextAddress = instr.Address
		}
	}
}
