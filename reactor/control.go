package reactor

// branchTo terminates the current block with a jump.
func (f *Function) branchTo(target *Block) {
	if f.current.Terminated() {
		return
	}
	f.append(&Node{Op: OpBranch, Type: Void, Target: target})
	target.Preds = append(target.Preds, f.current)
}

// condBranch terminates the current block with a conditional jump.
func (f *Function) condBranch(cond Value, then, els *Block) {
	if f.current.Terminated() {
		return
	}
	if cond.Type() != Bool {
		f.fail("branch condition is %s, not bool", cond.Type())
		return
	}
	f.append(&Node{Op: OpCondBranch, Type: Void, Args: []*Node{cond.node}, Target: then, AltTarget: els})
	then.Preds = append(then.Preds, f.current)
	els.Preds = append(els.Preds, f.current)
}

// If emits a conditional with an optional else arm (pass nil).
// Variables live across the construct are materialized so both arms
// share their storage.
func (f *Function) If(cond Value, then func(), els func()) {
	f.materializeAll()

	thenBlock := f.newBlock()
	var elseBlock *Block
	end := f.newBlock()

	if els != nil {
		elseBlock = f.newBlock()
		f.condBranch(cond, thenBlock, elseBlock)
	} else {
		f.condBranch(cond, thenBlock, end)
	}

	f.current = thenBlock
	then()
	f.materializeAll()
	f.branchTo(end)

	if els != nil {
		f.current = elseBlock
		els()
		f.materializeAll()
		f.branchTo(end)
	}

	f.current = end
}

// While emits a loop testing cond before every iteration. The
// condition closure runs in the loop header, so variables it reads
// are re-evaluated each pass.
func (f *Function) While(cond func() Value, body func()) {
	f.materializeAll()

	header := f.newBlock()
	bodyBlock := f.newBlock()
	end := f.newBlock()

	f.branchTo(header)
	f.current = header
	c := cond()
	f.materializeAll()
	f.condBranch(c, bodyBlock, end)

	f.current = bodyBlock
	body()
	f.materializeAll()
	f.branchTo(header)

	f.current = end
}

// For emits a for loop: init once, cond in the header, step after
// the body.
func (f *Function) For(init func(), cond func() Value, step func(), body func()) {
	if init != nil {
		init()
	}
	f.While(cond, func() {
		body()
		if step != nil {
			step()
		}
	})
}

// Do emits a do/until loop: the body always runs once, and the loop
// exits when until yields true.
func (f *Function) Do(body func(), until func() Value) {
	f.materializeAll()

	bodyBlock := f.newBlock()
	end := f.newBlock()

	f.branchTo(bodyBlock)
	f.current = bodyBlock
	body()
	c := until()
	f.materializeAll()
	f.condBranch(c, end, bodyBlock)

	f.current = end
}
