package pysource

// stmt is a node of the statement tree. Simple statements carry their
// tokens; compound clauses carry their header tokens and body. A try
// statement groups its try/except/else/finally clauses under clauses.
type stmt struct {
	keyword string
	tokens  []token
	start   int
	end     int
	body    []*stmt
	clauses []*stmt
	star    bool
}

var compoundKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "while": true, "for": true,
	"try": true, "except": true, "finally": true, "with": true,
	"def": true, "class": true, "async": true,
}

type stmtParser struct {
	lines []logicalLine
	pos   int
}

func parseStatements(lines []logicalLine) ([]*stmt, error) {
	p := &stmtParser{lines: lines}
	body, err := p.block(0)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		return nil, syntaxErr(ln.start, "unindent does not match any outer indentation level")
	}
	return body, nil
}

func (p *stmtParser) block(indent int) ([]*stmt, error) {
	var out []*stmt
	for p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		if ln.indent < indent {
			break
		}
		if ln.indent > indent {
			return nil, syntaxErr(ln.start, "unexpected indent")
		}
		p.pos++

		stmts, err := p.statement(ln, indent)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return groupClauses(out)
}

func (p *stmtParser) statement(ln logicalLine, indent int) ([]*stmt, error) {
	kw, ok := compoundKeyword(ln.tokens)
	if !ok {
		return splitSimple(ln.tokens)
	}

	colon := headerColon(ln.tokens)
	if colon < 0 {
		return nil, syntaxErr(ln.start, "expected ':'")
	}

	if kw != "match" && kw != "case" {
		if err := checkAdjacent(ln.tokens[:colon]); err != nil {
			return nil, err
		}
	}

	s := &stmt{keyword: kw, tokens: ln.tokens[:colon], start: ln.start, end: ln.end}
	if kw == "except" && len(ln.tokens) > 1 && ln.tokens[1].is(tokOp, "*") {
		s.star = true
	}

	if rest := ln.tokens[colon+1:]; len(rest) > 0 {
		if _, nested := compoundKeyword(rest); nested {
			return nil, syntaxErr(rest[0].line, "invalid syntax")
		}
		body, err := splitSimple(rest)
		if err != nil {
			return nil, err
		}
		s.body = body
		return []*stmt{s}, nil
	}

	if p.pos >= len(p.lines) || p.lines[p.pos].indent <= indent {
		return nil, syntaxErr(ln.start, "expected an indented block after '%s' statement", kw)
	}
	body, err := p.block(p.lines[p.pos].indent)
	if err != nil {
		return nil, err
	}
	s.body = body
	if last := body[len(body)-1]; last.end > s.end {
		s.end = last.end
	}

	if p.pos < len(p.lines) {
		if next := p.lines[p.pos].indent; next > indent {
			return nil, syntaxErr(p.lines[p.pos].start, "unindent does not match any outer indentation level")
		}
	}
	return []*stmt{s}, nil
}

// compoundKeyword reports whether toks open a compound statement. match and
// case are soft keywords and only count when a header colon follows.
func compoundKeyword(toks []token) (string, bool) {
	if len(toks) == 0 || toks[0].kind != tokName {
		return "", false
	}
	first := toks[0].text
	if compoundKeywords[first] {
		return first, true
	}
	if first != "match" && first != "case" {
		return "", false
	}
	if len(toks) < 3 || headerColon(toks) < 0 {
		return "", false
	}
	if toks[1].kind == tokOp {
		switch toks[1].text {
		case ":", "=", ".", ",", ";", ")", "]", "}":
			return "", false
		}
	}
	return first, true
}

// headerColon returns the index of the colon ending a compound header, or -1.
func headerColon(toks []token) int {
	depth, lambdas := 0, 0
	for i, t := range toks {
		if t.kind == tokName && t.text == "lambda" && depth == 0 {
			lambdas++
			continue
		}
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ":":
			if depth != 0 {
				continue
			}
			if lambdas > 0 {
				lambdas--
				continue
			}
			return i
		}
	}
	return -1
}

// splitSimple splits a logical line on top-level semicolons.
func splitSimple(toks []token) ([]*stmt, error) {
	var out []*stmt
	depth, from := 0, 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) {
			t := toks[i]
			if t.kind == tokOp {
				switch t.text {
				case "(", "[", "{":
					depth++
				case ")", "]", "}":
					depth--
				}
			}
			if !(t.is(tokOp, ";") && depth == 0) {
				continue
			}
		}

		part := toks[from:i]
		from = i + 1
		if len(part) == 0 {
			if i == len(toks) && len(out) > 0 {
				break
			}
			line := 0
			if i < len(toks) {
				line = toks[i].line
			}
			return nil, syntaxErr(line, "invalid syntax")
		}
		if _, ok := compoundKeyword(part); ok && len(out) > 0 {
			return nil, syntaxErr(part[0].line, "invalid syntax")
		}
		if err := checkAdjacent(part); err != nil {
			return nil, err
		}
		out = append(out, &stmt{
			tokens: part,
			start:  part[0].line,
			end:    part[len(part)-1].endLine,
		})
	}
	return out, nil
}

var keywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// isOperand reports whether t can stand alone as an atom. True, False and
// None are atoms, not operators.
func isOperand(t token) bool {
	switch t.kind {
	case tokNumber, tokString:
		return true
	case tokName:
		return !keywords[t.text]
	}
	return false
}

// checkAdjacent rejects two atoms in a row outside brackets, as in
// `print "x"`, and a doubled assignment such as `x = = 1`. Adjacent string
// literals concatenate and stay legal.
func checkAdjacent(toks []token) error {
	// type X = ... is a soft-keyword statement.
	if len(toks) > 2 && toks[0].is(tokName, "type") && toks[1].kind == tokName &&
		(toks[2].is(tokOp, "=") || toks[2].is(tokOp, "[")) {
		return nil
	}

	depth := 0
	var prevOperand, prevString, prevAssign bool
	for _, t := range toks {
		if t.kind == tokOp {
			switch t.text {
			case "(", "[", "{":
				depth++
				prevOperand, prevString, prevAssign = false, false, false
				continue
			case ")", "]", "}":
				depth--
				if depth == 0 {
					prevOperand, prevString, prevAssign = true, false, false
				}
				continue
			}
		}
		if depth > 0 {
			continue
		}

		operand := isOperand(t)
		str := t.kind == tokString
		if operand && prevOperand && !(str && prevString) {
			return syntaxErr(t.line, "invalid syntax")
		}
		assign := t.is(tokOp, "=")
		if assign && prevAssign {
			return syntaxErr(t.line, "invalid syntax")
		}
		prevOperand, prevString, prevAssign = operand, str, assign
	}
	return nil
}

// groupClauses folds try/except/else/finally siblings into one try node and
// rejects clauses that have nothing to attach to.
func groupClauses(stmts []*stmt) ([]*stmt, error) {
	var out []*stmt
	prev := ""
	for i := 0; i < len(stmts); i++ {
		s := stmts[i]
		switch s.keyword {
		case "try":
			t, n, err := groupTry(stmts[i:])
			if err != nil {
				return nil, err
			}
			out = append(out, t)
			i += n - 1
			prev = "try"
			continue
		case "except", "finally":
			return nil, syntaxErr(s.start, "invalid syntax")
		case "elif":
			if prev != "if" && prev != "elif" {
				return nil, syntaxErr(s.start, "invalid syntax")
			}
		case "else":
			if prev != "if" && prev != "elif" && prev != "for" && prev != "while" && prev != "async" {
				return nil, syntaxErr(s.start, "invalid syntax")
			}
			prev = ""
			out = append(out, s)
			continue
		}
		prev = s.keyword
		out = append(out, s)
	}
	return out, nil
}

// groupTry consumes a try clause and its handlers from stmts and returns the
// grouped node and the number of clauses used.
func groupTry(stmts []*stmt) (*stmt, int, error) {
	head := stmts[0]
	t := &stmt{keyword: "try", tokens: head.tokens, start: head.start, end: head.end, clauses: []*stmt{head}}

	handlers, star, plain := 0, false, false
	seenElse, seenFinally := false, false
	n := 1
clauses:
	for ; n < len(stmts); n++ {
		s := stmts[n]
		switch s.keyword {
		case "except":
			if seenElse || seenFinally {
				return nil, 0, syntaxErr(s.start, "invalid syntax")
			}
			handlers++
			if s.star {
				star = true
			} else {
				plain = true
			}
		case "else":
			if handlers == 0 || seenElse || seenFinally {
				return nil, 0, syntaxErr(s.start, "invalid syntax")
			}
			seenElse = true
		case "finally":
			if seenFinally {
				return nil, 0, syntaxErr(s.start, "invalid syntax")
			}
			seenFinally = true
		default:
			break clauses
		}
		t.clauses = append(t.clauses, s)
		t.end = s.end
	}
	if handlers == 0 && !seenFinally {
		return nil, 0, syntaxErr(head.start, "expected 'except' or 'finally' block")
	}
	if star && plain {
		return nil, 0, syntaxErr(head.start, "cannot have both 'except' and 'except*' on the same 'try'")
	}
	t.star = star
	return t, n, nil
}
