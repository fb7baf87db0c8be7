package backend

import (
	"fmt"
	"math"

	"github.com/gogpu/swgl/reactor"
)

// Optimize runs the configured pass list over a function in place.
func Optimize(f *reactor.Function, passes []Pass) {
	for _, p := range passes {
		switch p {
		case SROA:
			sroa(f)
		case InstructionCombining:
			instCombine(f)
		case CFGSimplification:
			simplifyCFG(f)
		case LICM:
			licm(f)
		case AggressiveDCE:
			deadCodeElimination(f)
		case GVN, EarlyCSE:
			valueNumbering(f)
		case Reassociate:
			reassociate(f)
		case DeadStoreElimination:
			deadStoreElimination(f)
		case SCCP:
			instCombine(f) // constant propagation
			simplifyCFG(f) // fold constant branches
		}
	}
}

// useCounts returns the number of uses of every node.
func useCounts(f *reactor.Function) map[*reactor.Node]int {
	uses := make(map[*reactor.Node]int)
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			for _, a := range n.Args {
				uses[a]++
			}
		}
	}
	return uses
}

// replaceUses rewrites every use of old to new.
func replaceUses(f *reactor.Function, old, new *reactor.Node) {
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			for i, a := range n.Args {
				if a == old {
					n.Args[i] = new
				}
			}
		}
	}
}

func removeNode(b *reactor.Block, target *reactor.Node) {
	for i, n := range b.Nodes {
		if n == target {
			b.Nodes = append(b.Nodes[:i], b.Nodes[i+1:]...)
			return
		}
	}
}

// hasSideEffects reports ops that must not be removed even when
// unused.
func hasSideEffects(n *reactor.Node) bool {
	switch n.Op {
	case reactor.OpStore, reactor.OpAtomicStore, reactor.OpAtomicLoad,
		reactor.OpCallExternal, reactor.OpBranch, reactor.OpCondBranch,
		reactor.OpReturn, reactor.OpParam, reactor.OpAlloca:
		return true
	}
	return false
}

// sroa marks promotable allocas: slots only accessed by direct loads
// and stores. Promoted slots become register moves in the emitted
// program instead of memory traffic.
func sroa(f *reactor.Function) {
	escaped := make(map[*reactor.Node]bool)
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			for i, a := range n.Args {
				if a.Op != reactor.OpAlloca {
					continue
				}
				direct := (n.Op == reactor.OpLoad && i == 0) ||
					(n.Op == reactor.OpStore && i == 0)
				if !direct {
					escaped[a] = true
				}
			}
		}
	}
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			if n.Op == reactor.OpAlloca && !escaped[n] {
				// Imm[1] flags the promoted slot for the emitter.
				if len(n.Imm) == 1 {
					n.Imm = append(n.Imm, 1)
				}
			}
		}
	}
}

func isConst(n *reactor.Node) bool {
	return n.Op == reactor.OpConst
}

// constFloatLane reads one lane of a constant as a float32.
func constFloatLane(n *reactor.Node, lane int) float32 {
	return math.Float32frombits(uint32(n.Imm[lane]))
}

func allLanesEqual(n *reactor.Node, bits uint64) bool {
	for _, l := range n.Imm {
		if l != bits {
			return false
		}
	}
	return true
}

// instCombine folds constant expressions and applies algebraic
// identities.
func instCombine(f *reactor.Function) {
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			simplifyNode(f, n)
		}
	}
}

func simplifyNode(f *reactor.Function, n *reactor.Node) {
	identityToConst := func(src *reactor.Node) {
		n.Op = reactor.OpNop
		replaceUses(f, n, src)
	}

	switch n.Op {
	case reactor.OpAdd, reactor.OpSub:
		if len(n.Args) == 2 && isConst(n.Args[1]) && allLanesEqual(n.Args[1], zeroBits(n.Type)) {
			identityToConst(n.Args[0])
			return
		}
		if n.Op == reactor.OpAdd && isConst(n.Args[0]) && allLanesEqual(n.Args[0], zeroBits(n.Type)) {
			identityToConst(n.Args[1])
			return
		}
	case reactor.OpMul:
		one := oneBits(n.Type)
		if isConst(n.Args[1]) && allLanesEqual(n.Args[1], one) {
			identityToConst(n.Args[0])
			return
		}
		if isConst(n.Args[0]) && allLanesEqual(n.Args[0], one) {
			identityToConst(n.Args[1])
			return
		}
	case reactor.OpAnd:
		if n.Args[0] == n.Args[1] {
			identityToConst(n.Args[0])
			return
		}
	case reactor.OpOr:
		if n.Args[0] == n.Args[1] {
			identityToConst(n.Args[0])
			return
		}
	case reactor.OpBitCast:
		if n.Args[0].Op == reactor.OpBitCast {
			n.Args[0] = n.Args[0].Args[0]
		}
		if n.Args[0].Type == n.Type {
			identityToConst(n.Args[0])
			return
		}
	}

	// Binary constant folding on same-shape constants.
	if len(n.Args) == 2 && isConst(n.Args[0]) && isConst(n.Args[1]) &&
		n.Type.Kind != reactor.KindVoid && len(n.Args[0].Imm) == len(n.Args[1].Imm) {
		if folded, ok := foldConstBinary(n); ok {
			n.Op = reactor.OpConst
			n.Imm = folded
			n.Args = nil
		}
	}
}

func zeroBits(t reactor.Type) uint64 {
	return 0
}

func oneBits(t reactor.Type) uint64 {
	if t.Kind == reactor.KindFloat {
		return uint64(math.Float32bits(1))
	}
	return 1
}

// foldConstBinary folds the common arithmetic ops over constants.
func foldConstBinary(n *reactor.Node) ([]uint64, bool) {
	a, b := n.Args[0], n.Args[1]
	out := make([]uint64, len(a.Imm))
	for i := range out {
		if n.Type.Kind == reactor.KindFloat {
			x := math.Float32frombits(uint32(a.Imm[i]))
			y := math.Float32frombits(uint32(b.Imm[i]))
			var v float32
			switch n.Op {
			case reactor.OpAdd:
				v = x + y
			case reactor.OpSub:
				v = x - y
			case reactor.OpMul:
				v = x * y
			case reactor.OpDiv:
				v = x / y
			case reactor.OpMin:
				v = float32(math.Min(float64(x), float64(y)))
			case reactor.OpMax:
				v = float32(math.Max(float64(x), float64(y)))
			default:
				return nil, false
			}
			out[i] = uint64(math.Float32bits(v))
			continue
		}
		x, y := int64(int32(a.Imm[i])), int64(int32(b.Imm[i]))
		var v int64
		switch n.Op {
		case reactor.OpAdd:
			v = x + y
		case reactor.OpSub:
			v = x - y
		case reactor.OpMul:
			v = x * y
		case reactor.OpAnd:
			v = x & y
		case reactor.OpOr:
			v = x | y
		case reactor.OpXor:
			v = x ^ y
		default:
			return nil, false
		}
		out[i] = uint64(uint32(v))
	}
	return out, true
}

// simplifyCFG removes unreachable blocks, folds constant conditional
// branches, and merges straight-line block chains.
func simplifyCFG(f *reactor.Function) {
	// Fold constant conditions.
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil || t.Op != reactor.OpCondBranch || !isConst(t.Args[0]) {
			continue
		}
		target := t.Target
		if t.Args[0].Imm[0] == 0 {
			target = t.AltTarget
		}
		t.Op = reactor.OpBranch
		t.Args = nil
		t.Target = target
		t.AltTarget = nil
	}

	// Drop unreachable blocks.
	reachable := make(map[*reactor.Block]bool)
	var walk func(*reactor.Block)
	walk = func(b *reactor.Block) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		if t := b.Terminator(); t != nil {
			if t.Target != nil {
				walk(t.Target)
			}
			if t.AltTarget != nil {
				walk(t.AltTarget)
			}
		}
	}
	if len(f.Blocks) > 0 {
		walk(f.Blocks[0])
	}
	kept := f.Blocks[:0]
	for _, b := range f.Blocks {
		if reachable[b] {
			kept = append(kept, b)
		}
	}
	f.Blocks = kept

	// Merge b → c when b ends in an unconditional jump to c and c
	// has no other predecessors.
	predCount := make(map[*reactor.Block]int)
	for _, b := range f.Blocks {
		if t := b.Terminator(); t != nil {
			if t.Target != nil {
				predCount[t.Target]++
			}
			if t.AltTarget != nil {
				predCount[t.AltTarget]++
			}
		}
	}
	for _, b := range f.Blocks {
		for {
			t := b.Terminator()
			if t == nil || t.Op != reactor.OpBranch || t.Target == nil {
				break
			}
			c := t.Target
			if c == b || predCount[c] != 1 {
				break
			}
			b.Nodes = b.Nodes[:len(b.Nodes)-1] // drop the jump
			b.Nodes = append(b.Nodes, c.Nodes...)
			c.Nodes = nil
		}
	}
	kept = f.Blocks[:0]
	for _, b := range f.Blocks {
		if len(b.Nodes) > 0 || b == f.Blocks[0] {
			kept = append(kept, b)
		}
	}
	f.Blocks = kept
}

// deadCodeElimination removes pure nodes whose results are unused,
// iterating to a fixed point.
func deadCodeElimination(f *reactor.Function) {
	for {
		uses := useCounts(f)
		removed := false
		for _, b := range f.Blocks {
			for i := len(b.Nodes) - 1; i >= 0; i-- {
				n := b.Nodes[i]
				if hasSideEffects(n) || n.Op.Terminator() {
					continue
				}
				if uses[n] == 0 {
					b.Nodes = append(b.Nodes[:i], b.Nodes[i+1:]...)
					removed = true
				}
			}
		}
		if !removed {
			return
		}
	}
}

// valueNumbering deduplicates pure expressions with identical
// operation, type, operands, and immediates within each block.
func valueNumbering(f *reactor.Function) {
	for _, b := range f.Blocks {
		seen := make(map[string]*reactor.Node)
		for i := 0; i < len(b.Nodes); i++ {
			n := b.Nodes[i]
			if hasSideEffects(n) || n.Op.Terminator() || n.Op == reactor.OpLoad {
				continue
			}
			key := valueKey(n)
			if prev, ok := seen[key]; ok {
				replaceUses(f, n, prev)
				b.Nodes = append(b.Nodes[:i], b.Nodes[i+1:]...)
				i--
				continue
			}
			seen[key] = n
		}
	}
}

func valueKey(n *reactor.Node) string {
	key := fmt.Sprintf("%d|%s", n.Op, n.Type)
	for _, a := range n.Args {
		key += fmt.Sprintf("|v%d", a.ID)
	}
	for _, imm := range n.Imm {
		key += fmt.Sprintf("|#%d", imm)
	}
	return key
}

// reassociate canonicalizes commutative operations so constants land
// on the right, enabling further combining.
func reassociate(f *reactor.Function) {
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			switch n.Op {
			case reactor.OpAdd, reactor.OpMul, reactor.OpAnd, reactor.OpOr, reactor.OpXor,
				reactor.OpMin, reactor.OpMax, reactor.OpEq, reactor.OpNe:
				if len(n.Args) == 2 && isConst(n.Args[0]) && !isConst(n.Args[1]) {
					n.Args[0], n.Args[1] = n.Args[1], n.Args[0]
				}
			}
		}
	}
}

// deadStoreElimination drops a store to a promotable alloca that is
// overwritten later in the same block with no intervening load.
func deadStoreElimination(f *reactor.Function) {
	for _, b := range f.Blocks {
		lastStore := make(map[*reactor.Node]*reactor.Node)
		var dead []*reactor.Node
		for _, n := range b.Nodes {
			switch n.Op {
			case reactor.OpStore:
				slot := n.Args[0]
				if slot.Op != reactor.OpAlloca {
					lastStore = make(map[*reactor.Node]*reactor.Node)
					continue
				}
				if prev, ok := lastStore[slot]; ok {
					dead = append(dead, prev)
				}
				lastStore[slot] = n
			case reactor.OpLoad:
				delete(lastStore, n.Args[0])
			case reactor.OpCallExternal, reactor.OpAtomicLoad, reactor.OpAtomicStore:
				lastStore = make(map[*reactor.Node]*reactor.Node)
			}
		}
		for _, d := range dead {
			removeNode(b, d)
		}
	}
}

// licm hoists loop-invariant pure nodes out of natural loops found
// through back edges.
func licm(f *reactor.Function) {
	// A back edge b → h exists when h appears before b and b is
	// reachable from h. The loop body is approximated by the block
	// range [h, b].
	blockIndex := make(map[*reactor.Block]int)
	for i, b := range f.Blocks {
		blockIndex[b] = i
	}
	for _, b := range f.Blocks {
		t := b.Terminator()
		if t == nil {
			continue
		}
		for _, succ := range []*reactor.Block{t.Target, t.AltTarget} {
			if succ == nil || blockIndex[succ] >= blockIndex[b] {
				continue
			}
			hoistInvariant(f, blockIndex, succ, b)
		}
	}
}

func hoistInvariant(f *reactor.Function, index map[*reactor.Block]int, header, latch *reactor.Block) {
	lo, hi := index[header], index[latch]
	inLoop := func(b *reactor.Block) bool {
		i := index[b]
		return i >= lo && i <= hi
	}
	// Preheader: the block before the header in layout order, if it
	// jumps straight to the header.
	if lo == 0 {
		return
	}
	pre := f.Blocks[lo-1]
	t := pre.Terminator()
	if t == nil || t.Op != reactor.OpBranch || t.Target != header {
		return
	}

	defBlock := make(map[*reactor.Node]*reactor.Block)
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			defBlock[n] = b
		}
	}

	for bi := lo; bi <= hi && bi < len(f.Blocks); bi++ {
		b := f.Blocks[bi]
		for i := 0; i < len(b.Nodes); i++ {
			n := b.Nodes[i]
			if hasSideEffects(n) || n.Op.Terminator() || n.Op == reactor.OpLoad {
				continue
			}
			invariant := true
			for _, a := range n.Args {
				if d, ok := defBlock[a]; ok && inLoop(d) {
					invariant = false
					break
				}
			}
			if !invariant {
				continue
			}
			// Move the node into the preheader, before its jump.
			b.Nodes = append(b.Nodes[:i], b.Nodes[i+1:]...)
			i--
			jump := pre.Nodes[len(pre.Nodes)-1]
			pre.Nodes[len(pre.Nodes)-1] = n
			pre.Nodes = append(pre.Nodes, jump)
			n.Block = pre
			defBlock[n] = pre
		}
	}
}
