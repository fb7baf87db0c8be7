package backend

import (
	"fmt"

	"github.com/gogpu/swgl/reactor"
)

// VerifyError is one defect found by the verifier.
type VerifyError struct {
	Message string
	Node    *reactor.Node
}

// Error implements the error interface.
func (e VerifyError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("v%d (%s): %s", e.Node.ID, e.Node.Op, e.Message)
	}
	return e.Message
}

// Verify checks a reactor function: every value must carry a valid
// type, every block must end in exactly one terminator, and every
// operand must be defined in the same block before its use or in a
// dominating block.
func Verify(f *reactor.Function) []VerifyError {
	var errs []VerifyError
	report := func(n *reactor.Node, format string, args ...interface{}) {
		errs = append(errs, VerifyError{Message: fmt.Sprintf(format, args...), Node: n})
	}

	dom := dominators(f)

	defined := make(map[*reactor.Node]*reactor.Block)
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			defined[n] = b
		}
	}

	dominates := func(a, b *reactor.Block) bool {
		for d := b; d != nil; d = dom[d] {
			if d == a {
				return true
			}
			if dom[d] == d {
				break
			}
		}
		return false
	}

	for _, b := range f.Blocks {
		seen := make(map[*reactor.Node]bool)
		for i, n := range b.Nodes {
			if n.Type.Kind != reactor.KindVoid && !n.Type.Valid() {
				report(n, "invalid type %s", n.Type)
			}
			for _, a := range n.Args {
				db, ok := defined[a]
				if !ok {
					report(n, "operand v%d is not defined in the function", a.ID)
					continue
				}
				if db == b {
					if !seen[a] {
						report(n, "operand v%d used before definition", a.ID)
					}
				} else if !dominates(db, b) {
					report(n, "operand v%d defined in b%d does not dominate b%d", a.ID, db.ID, b.ID)
				}
			}
			if n.Op.Terminator() && i != len(b.Nodes)-1 {
				report(n, "terminator in the middle of b%d", b.ID)
			}
			seen[n] = true
		}
		if len(b.Nodes) > 0 && !b.Terminated() && b != f.Current() {
			report(nil, "b%d has no terminator", b.ID)
		}
	}
	return errs
}

// dominators computes the immediate dominator of every reachable
// block with the standard iterative algorithm over a reverse
// postorder.
func dominators(f *reactor.Function) map[*reactor.Block]*reactor.Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	entry := f.Blocks[0]

	// Reverse postorder over successor edges.
	var order []*reactor.Block
	index := make(map[*reactor.Block]int)
	visited := make(map[*reactor.Block]bool)
	var walk func(*reactor.Block)
	walk = func(b *reactor.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		if t := b.Terminator(); t != nil {
			if t.Target != nil {
				walk(t.Target)
			}
			if t.AltTarget != nil {
				walk(t.AltTarget)
			}
		}
		order = append(order, b)
	}
	walk(entry)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for i, b := range order {
		index[b] = i
	}

	idom := make(map[*reactor.Block]*reactor.Block)
	idom[entry] = entry

	intersect := func(a, b *reactor.Block) *reactor.Block {
		for a != b {
			for index[a] > index[b] {
				a = idom[a]
			}
			for index[b] > index[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == entry {
				continue
			}
			var newIdom *reactor.Block
			for _, p := range b.Preds {
				if _, ok := idom[p]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}
