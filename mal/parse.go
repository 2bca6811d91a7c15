package mal

import "strings"

// Parse lexes and parses MAL source (§6.1) into the ParsedInstruction tree
// the builder and encoder consume.
func Parse(lines []string) ([]*ParsedInstruction, error) {
	var instrs []*ParsedInstruction
	for lineNo, raw := range lines {
		line := comment.ReplaceAllString(raw, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var label *ParsedLabel
		if m := labelPrefix.FindStringSubmatch(line); m != nil {
			label = &ParsedLabel{Name: m[1]}
			if m[2] != "" {
				addr, err := parseAddress(m[2])
				if err != nil {
					return nil, err
				}
				label.Pinned = true
				label.Addr = addr
			}
			line = m[3]
		}

		tokens, err := tokenize(line)
		if err != nil {
			return nil, wrapError(ParseError, err, "line %d", lineNo+1)
		}
		if len(tokens) == 0 {
			return nil, newError(ParseError, "line %d: label with no statement", lineNo+1)
		}

		instr, err := parseStatement(tokens)
		if err != nil {
			return nil, wrapError(ParseError, err, "line %d", lineNo+1)
		}
		instr.Line = lineNo + 1
		instr.Label = label
		instrs = append(instrs, instr)
	}
	if len(instrs) == 0 {
		return nil, newError(ParseError, "no source instructions given")
	}
	return instrs, nil
}

func parseStatement(tokens []string) (*ParsedInstruction, error) {
	if len(tokens) == 1 && tokens[0] == "empty" {
		return &ParsedInstruction{Kind: StmtEmpty}, nil
	}
	if len(tokens) == 1 && tokens[0] == "halt" {
		return &ParsedInstruction{Kind: StmtHalt}, nil
	}

	segments, control := splitSegments(tokens)

	instr := &ParsedInstruction{Kind: StmtNormal}

	if len(segments) > 0 && containsToken(segments[0], "=") {
		a, err := parseAssignment(segments[0])
		if err != nil {
			return nil, err
		}
		instr.Assignment = a
		segments = segments[1:]
	}

	if len(segments) > 0 {
		mem := &ParsedMemory{}
		for _, seg := range segments {
			if err := applyMemorySegment(mem, seg); err != nil {
				return nil, err
			}
		}
		instr.Memory = mem
	}

	if control != nil {
		c, err := parseControl(control)
		if err != nil {
			return nil, err
		}
		instr.Control = c
	}

	if instr.Assignment == nil && instr.Memory == nil && instr.Control == nil {
		return nil, newError(ParseError, "empty statement")
	}

	return instr, nil
}

// splitSegments splits a token stream on top-level ';' into the
// assignment/memory segments that precede any control clause. A 'goto' or
// 'if' token always starts the control clause and consumes every token to
// the end of the statement (including its own internal ';' in the if/else
// form), since control is always last.
func splitSegments(tokens []string) (segments [][]string, control []string) {
	var cur []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "goto" || tok == "if" {
			if len(cur) > 0 {
				segments = append(segments, cur)
			}
			return segments, tokens[i:]
		}
		if tok == ";" {
			segments = append(segments, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments, nil
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func isDestinationToken(tok string) bool {
	if tok == "N" || tok == "Z" {
		return true
	}
	_, ok := cRegisterBit[tok]
	return ok
}

func parseAssignment(tokens []string) (*ParsedAssignment, error) {
	var dests []string
	i := 0
	for i+1 < len(tokens) && tokens[i+1] == "=" && isDestinationToken(tokens[i]) {
		dests = append(dests, tokens[i])
		i += 2
	}
	if len(dests) == 0 {
		return nil, newError(ParseError, "no destination before '=' in assignment")
	}
	exprTokens := tokens[i:]
	if len(exprTokens) == 0 {
		return nil, newError(ParseError, "missing expression after '='")
	}

	expr, err := parseExpression(exprTokens)
	if err != nil {
		return nil, err
	}
	return &ParsedAssignment{Destinations: dests, Expr: expr}, nil
}

func parseExpression(tokens []string) (ParsedExpression, error) {
	var expr ParsedExpression
	n := len(tokens)
	if n >= 2 && tokens[n-2] == "<<" && tokens[n-1] == "8" {
		expr.ShiftLeft8 = true
		tokens = tokens[:n-2]
	} else if n >= 2 && tokens[n-2] == ">>" && tokens[n-1] == "1" {
		expr.ShiftRight1 = true
		tokens = tokens[:n-2]
	}

	op, bReg, err := parseOperation(tokens)
	if err != nil {
		return expr, err
	}
	expr.Operation = op
	expr.BReg = bReg
	return expr, nil
}

// classifyOperand identifies whether a token names the MIC-1 A-bus
// register (H) or a B-bus source register.
func classifyOperand(tok string) (string, bool) {
	if tok == "H" {
		return "A", true
	}
	if _, ok := bRegisterCode[tok]; ok {
		return "B", true
	}
	return "", false
}

// parseOperation matches one of the sixteen ALU/operand-source operation
// forms and returns its canonical key (resolved further by
// canonicalOperation in mal/encode.go for the commutative synonyms) plus
// the concrete B-bus register token the expression reads, if any (the
// A-bus operand is always H, so only the B side needs to carry its
// specific register name through to the encoder's B-bus selector bits).
func parseOperation(tokens []string) (string, string, error) {
	switch len(tokens) {
	case 1:
		switch tokens[0] {
		case "0":
			return "0", "", nil
		case "1":
			return "1", "", nil
		}
		if op, ok := classifyOperand(tokens[0]); ok {
			if op == "B" {
				return op, tokens[0], nil
			}
			return op, "", nil
		}
	case 2:
		if tokens[0] == "NOT" {
			op, ok := classifyOperand(tokens[1])
			if !ok {
				break
			}
			if op == "B" {
				return "NOT " + op, tokens[1], nil
			}
			return "NOT " + op, "", nil
		}
		if tokens[0] == "-" {
			if tokens[1] == "1" {
				return "-1", "", nil
			}
			if op, ok := classifyOperand(tokens[1]); ok && op == "A" {
				return "-A", "", nil
			}
		}
	case 3:
		left, lok := classifyOperand(tokens[0])
		op := tokens[1]
		if tokens[2] == "1" && op == "+" {
			switch left {
			case "A":
				return "A + 1", "", nil
			case "B":
				return "B + 1", tokens[0], nil
			}
		}
		if tokens[2] == "1" && op == "-" && left == "B" {
			return "B - 1", tokens[0], nil
		}
		right, rok := classifyOperand(tokens[2])
		if lok && rok {
			switch op {
			case "AND":
				if left == "A" && right == "B" {
					return "A AND B", tokens[2], nil
				}
				if left == "B" && right == "A" {
					return "B AND A", tokens[0], nil
				}
			case "OR":
				if left == "A" && right == "B" {
					return "A OR B", tokens[2], nil
				}
				if left == "B" && right == "A" {
					return "B OR A", tokens[0], nil
				}
			case "+":
				if left == "A" && right == "B" {
					return "A + B", tokens[2], nil
				}
				if left == "B" && right == "A" {
					return "B + A", tokens[0], nil
				}
			case "-":
				if left == "B" && right == "A" {
					return "B - A", tokens[0], nil
				}
			}
		}
	case 5:
		if tokens[1] == "+" && tokens[3] == "+" && tokens[4] == "1" {
			left, lok := classifyOperand(tokens[0])
			right, rok := classifyOperand(tokens[2])
			if lok && rok && left == "A" && right == "B" {
				return "A + B + 1", tokens[2], nil
			}
			if lok && rok && left == "B" && right == "A" {
				return "A + B + 1", tokens[0], nil
			}
		}
	}
	return "", "", newError(ParseError, "unrecognized operation expression %v", tokens)
}

func applyMemorySegment(mem *ParsedMemory, tokens []string) error {
	for _, tok := range tokens {
		switch tok {
		case "rd":
			mem.Read = true
		case "wr":
			mem.Write = true
		case "fetch":
			mem.Fetch = true
		default:
			return newError(ParseError, "unrecognized memory token %q", tok)
		}
	}
	return nil
}

func parseControl(tokens []string) (*ParsedControl, error) {
	if tokens[0] == "goto" {
		if len(tokens) >= 2 && tokens[1] == "(" {
			return parseGotoMBR(tokens)
		}
		if len(tokens) != 2 {
			return nil, newError(ParseError, "malformed goto statement")
		}
		return &ParsedControl{Form: ControlGoto, Target: tokens[1]}, nil
	}
	if tokens[0] == "if" {
		return parseIfElse(tokens)
	}
	return nil, newError(ParseError, "unrecognized control statement")
}

func parseGotoMBR(tokens []string) (*ParsedControl, error) {
	// goto ( MBR ) | goto ( MBR OR ADDRESS )
	if len(tokens) < 4 || tokens[2] != "MBR" {
		return nil, newError(ParseError, "malformed goto(MBR...) statement")
	}
	if tokens[3] == ")" && len(tokens) == 4 {
		return &ParsedControl{Form: ControlGotoMBR}, nil
	}
	if len(tokens) == 6 && tokens[3] == "OR" && tokens[5] == ")" {
		addr, err := parseAddress(tokens[4])
		if err != nil {
			return nil, err
		}
		return &ParsedControl{Form: ControlGotoMBR, HasAddr: true, Addr: addr}, nil
	}
	return nil, newError(ParseError, "malformed goto(MBR...) statement")
}

func parseIfElse(tokens []string) (*ParsedControl, error) {
	// if ( N|Z ) goto NAME ; else goto NAME
	if len(tokens) != 10 ||
		tokens[1] != "(" || tokens[3] != ")" ||
		tokens[4] != "goto" || tokens[6] != ";" ||
		tokens[7] != "else" || tokens[8] != "goto" {
		return nil, newError(ParseError, "malformed if/else statement")
	}
	cond := tokens[2]
	if cond != "N" && cond != "Z" {
		return nil, newError(ParseError, "unrecognized condition %q", cond)
	}
	return &ParsedControl{
		Form:       ControlIfElse,
		Cond:       cond,
		IfTarget:   tokens[5],
		ElseTarget: tokens[9],
	}, nil
}
