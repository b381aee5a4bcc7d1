package pysource

const importError = "ImportError"

// anyHandlerCatchesImportError reports whether one of the except clauses of
// a grouped try statement would catch ImportError: a bare handler, the name
// ImportError, or a tuple with ImportError among its names. Subclasses such
// as ModuleNotFoundError and dotted names do not count.
func anyHandlerCatchesImportError(clauses []*stmt) bool {
	for _, cl := range clauses {
		if cl.keyword != "except" {
			continue
		}
		if handlerCatches(cl.tokens[1:]) {
			return true
		}
	}
	return false
}

func handlerCatches(expr []token) bool {
	if as := topLevelIndex(expr, func(t token) bool { return t.is(tokName, "as") }, true); as >= 0 {
		expr = expr[:as]
	}
	if len(expr) == 0 {
		return true
	}
	return exprNamesImportError(expr)
}

func exprNamesImportError(expr []token) bool {
	if elems, ok := tupleElements(expr); ok {
		for _, el := range elems {
			if isImportErrorName(el) {
				return true
			}
		}
		return false
	}
	if inner, ok := unwrapParens(expr); ok {
		return exprNamesImportError(inner)
	}
	return isImportErrorName(expr)
}

// isImportErrorName reports whether expr is the bare name ImportError,
// possibly parenthesized.
func isImportErrorName(expr []token) bool {
	for {
		inner, ok := unwrapParens(expr)
		if !ok {
			break
		}
		if _, tuple := tupleElements(inner); tuple {
			return false
		}
		expr = inner
	}
	return len(expr) == 1 && expr[0].is(tokName, importError)
}

// tupleElements splits expr on top-level commas. It reports false when expr
// has no top-level comma.
func tupleElements(expr []token) ([][]token, bool) {
	isComma := func(t token) bool { return t.is(tokOp, ",") }
	if topLevelIndex(expr, isComma, false) < 0 {
		return nil, false
	}

	var elems [][]token
	depth, from := 0, 0
	for i, t := range expr {
		switch {
		case t.kind == tokOp && (t.text == "(" || t.text == "[" || t.text == "{"):
			depth++
		case t.kind == tokOp && (t.text == ")" || t.text == "]" || t.text == "}"):
			depth--
		case depth == 0 && isComma(t):
			elems = append(elems, expr[from:i])
			from = i + 1
		}
	}
	if from < len(expr) {
		elems = append(elems, expr[from:])
	}
	return elems, true
}

// unwrapParens strips one pair of parentheses enclosing all of expr.
func unwrapParens(expr []token) ([]token, bool) {
	if len(expr) < 2 || !expr[0].is(tokOp, "(") || !expr[len(expr)-1].is(tokOp, ")") {
		return nil, false
	}
	depth := 0
	for i, t := range expr {
		if t.kind != tokOp {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 && i != len(expr)-1 {
				return nil, false
			}
		}
	}
	return expr[1 : len(expr)-1], true
}

// topLevelIndex returns the index of the first (or last) token at bracket
// depth zero that matches, or -1.
func topLevelIndex(expr []token, match func(token) bool, last bool) int {
	found := -1
	depth := 0
	for i, t := range expr {
		if t.kind == tokOp {
			switch t.text {
			case "(", "[", "{":
				depth++
				continue
			case ")", "]", "}":
				depth--
				continue
			}
		}
		if depth == 0 && match(t) {
			if !last {
				return i
			}
			found = i
		}
	}
	return found
}
