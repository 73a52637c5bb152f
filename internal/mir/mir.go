// Package mir builds the SSA/CFG mid-level representation that the
// (out-of-scope) code generator would consume: one Function per behavior,
// a linear list of BasicBlocks each ending in exactly one terminator, and
// a fixed set of value-producing instructions. Values are numbered once
// per function and assigned once, in the usual static-single-assignment
// sense, with one exception: branching is expressed with an explicit
// three-block expansion for "if", and the join block's merged value is
// written by an Assign in each predecessor rather than by a dedicated phi
// instruction.
package mir

import (
	"github.com/jimd-den/onu-prog/internal/hir"
	"github.com/jimd-den/onu-prog/internal/onutype"
)

// ValueID names an SSA value within a Function.
type ValueID int

// BlockID names a BasicBlock within a Function.
type BlockID int

// BinOp is the fixed set of binary verbs the builder recognizes by name.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Eq
	Gt
	Lt
)

var verbToBinOp = map[string]BinOp{
	"added-to":        Add,
	"decreased-by":    Sub,
	"scales-by":       Mul,
	"partitions-by":   Div,
	"matches":         Eq,
	"exceeds":         Gt,
	"falls-short-of":  Lt,
}

// Constant is a compile-time-known value.
type Constant struct {
	Kind  onutype.Kind
	Int   int64
	Float float64
	Bool  bool
	Text  string
}

// Operand is either a reference to a previously-defined SSA value or an
// inline constant.
type Operand struct {
	IsConst bool
	Const   Constant
	Ref     ValueID
}

func constOp(c Constant) Operand     { return Operand{IsConst: true, Const: c} }
func refOp(id ValueID) Operand       { return Operand{Ref: id} }
func nothingConst() Operand          { return constOp(Constant{Kind: onutype.KindNothing}) }

// Instruction is one value-producing (or effectful) step in a block.
type Instruction interface{ instruction() }

type Assign struct {
	Dst ValueID
	Src Operand
}

func (Assign) instruction() {}

type BinaryOp struct {
	Dst      ValueID
	Op       BinOp
	Lhs, Rhs Operand
}

func (BinaryOp) instruction() {}

type Call struct {
	Dst  ValueID
	Name string
	Args []Operand
}

func (Call) instruction() {}

type Tuple struct {
	Dst   ValueID
	Elems []Operand
}

func (Tuple) instruction() {}

type Index struct {
	Dst     ValueID
	Subject Operand
	Const   int
}

func (Index) instruction() {}

type Emit struct {
	Value Operand
}

func (Emit) instruction() {}

// Terminator ends a BasicBlock; every block has exactly one.
type Terminator interface{ terminator() }

type Return struct{ Value Operand }

func (Return) terminator() {}

type Branch struct{ Target BlockID }

func (Branch) terminator() {}

type CondBranch struct {
	Cond       Operand
	Then, Else BlockID
}

func (CondBranch) terminator() {}

type Unreachable struct{}

func (Unreachable) terminator() {}

// BasicBlock is a straight-line instruction sequence ending in one
// terminator.
type BasicBlock struct {
	ID           BlockID
	Instructions []Instruction
	Terminator   Terminator
}

// Function is one lowered behavior.
type Function struct {
	Name   string
	Params []hir.Param
	Blocks []*BasicBlock
}

// Build lowers every behavior in units into a Function. Shapes and
// modules carry no runtime code and are skipped.
func Build(units []hir.Discourse) ([]*Function, error) {
	var fns []*Function
	for _, u := range units {
		b, ok := u.(*hir.Behavior)
		if !ok {
			continue
		}
		fn, err := buildFunction(b)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

type builder struct {
	fn        *Function
	nextValue ValueID
	current   *BasicBlock
	scopes    []map[string]Operand
}

func buildFunction(b *hir.Behavior) (*Function, error) {
	fn := &Function{Name: b.Header.Name, Params: b.Header.Params}
	bd := &builder{fn: fn, scopes: []map[string]Operand{{}}}
	entry := bd.newBlock()
	bd.current = entry

	for i, p := range b.Header.Params {
		id := bd.newValue()
		bd.emit(Assign{Dst: id, Src: refOp(ValueID(i))})
		bd.bind(p.Name, refOp(id))
	}

	result, err := bd.lower(b.Body)
	if err != nil {
		return nil, err
	}
	if bd.current.Terminator == nil {
		if b.Header.Return.Kind == onutype.KindNothing {
			bd.current.Terminator = Return{Value: nothingConst()}
		} else {
			bd.current.Terminator = Return{Value: result}
		}
	}
	return fn, nil
}

func (b *builder) newValue() ValueID {
	id := b.nextValue
	b.nextValue++
	return id
}

func (b *builder) newBlock() *BasicBlock {
	blk := &BasicBlock{ID: BlockID(len(b.fn.Blocks))}
	b.fn.Blocks = append(b.fn.Blocks, blk)
	return blk
}

func (b *builder) emit(instr Instruction) {
	b.current.Instructions = append(b.current.Instructions, instr)
}

func (b *builder) pushScope()           { b.scopes = append(b.scopes, map[string]Operand{}) }
func (b *builder) popScope()            { b.scopes = b.scopes[:len(b.scopes)-1] }
func (b *builder) bind(name string, op Operand) {
	b.scopes[len(b.scopes)-1][name] = op
}

func (b *builder) lookup(name string) (Operand, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if op, ok := b.scopes[i][name]; ok {
			return op, true
		}
	}
	return Operand{}, false
}

func (b *builder) lower(e hir.Expression) (Operand, error) {
	switch v := e.(type) {
	case *hir.IntLit:
		return constOp(Constant{Kind: onutype.KindInt, Int: v.Value}), nil
	case *hir.FloatLit:
		return constOp(Constant{Kind: onutype.KindFloat, Float: v.Value}), nil
	case *hir.TextLit:
		return constOp(Constant{Kind: onutype.KindText, Text: v.Value}), nil
	case *hir.BoolLit:
		return constOp(Constant{Kind: onutype.KindBool, Bool: v.Value}), nil
	case *hir.NothingLit:
		return nothingConst(), nil
	case *hir.Identifier:
		if op, ok := b.lookup(v.Name); ok {
			return op, nil
		}
		return nothingConst(), nil
	case *hir.TupleLit:
		return b.lowerAggregate(v.Elems)
	case *hir.ArrayLit:
		return b.lowerAggregate(v.Elems)
	case *hir.MatrixLit:
		// Matrices are lowered as an opaque constant that carries only its
		// kind; the literal's rows, columns and row-major data are not
		// carried into MIR.
		return constOp(Constant{Kind: onutype.KindMatrix}), nil
	case *hir.Emit:
		val, err := b.lower(v.Value)
		if err != nil {
			return Operand{}, err
		}
		b.emit(Emit{Value: val})
		return nothingConst(), nil
	case *hir.Derivation:
		val, err := b.lower(v.Value)
		if err != nil {
			return Operand{}, err
		}
		b.pushScope()
		b.bind(v.Name, val)
		result, err := b.lower(v.Body)
		b.popScope()
		return result, err
	case *hir.If:
		return b.lowerIf(v)
	case *hir.Block:
		var result Operand = nothingConst()
		for _, sub := range v.Exprs {
			r, err := b.lower(sub)
			if err != nil {
				return Operand{}, err
			}
			result = r
		}
		return result, nil
	case *hir.Call:
		return b.lowerCall(v)
	case *hir.ActsAs:
		return b.lower(v.Subject)
	case *hir.Index:
		subj, err := b.lower(v.Subject)
		if err != nil {
			return Operand{}, err
		}
		dst := b.newValue()
		b.emit(Index{Dst: dst, Subject: subj, Const: v.Const})
		return refOp(dst), nil
	default:
		return nothingConst(), nil
	}
}

func (b *builder) lowerAggregate(elems []hir.Expression) (Operand, error) {
	ops := make([]Operand, len(elems))
	for i, sub := range elems {
		op, err := b.lower(sub)
		if err != nil {
			return Operand{}, err
		}
		ops[i] = op
	}
	dst := b.newValue()
	b.emit(Tuple{Dst: dst, Elems: ops})
	return refOp(dst), nil
}

func (b *builder) lowerCall(call *hir.Call) (Operand, error) {
	args := make([]Operand, len(call.Args))
	for i, a := range call.Args {
		op, err := b.lower(a)
		if err != nil {
			return Operand{}, err
		}
		args[i] = op
	}
	if op, ok := verbToBinOp[call.Name]; ok && len(args) == 2 {
		dst := b.newValue()
		b.emit(BinaryOp{Dst: dst, Op: op, Lhs: args[0], Rhs: args[1]})
		return refOp(dst), nil
	}
	dst := b.newValue()
	b.emit(Call{Dst: dst, Name: call.Name, Args: args})
	return refOp(dst), nil
}

func (b *builder) lowerIf(v *hir.If) (Operand, error) {
	cond, err := b.lower(v.Cond)
	if err != nil {
		return Operand{}, err
	}
	condBlock := b.current
	joinVal := b.newValue()

	thenBlock := b.newBlock()
	elseBlock := b.newBlock()
	condBlock.Terminator = CondBranch{Cond: cond, Then: thenBlock.ID, Else: elseBlock.ID}

	b.current = thenBlock
	thenResult, err := b.lower(v.Then)
	if err != nil {
		return Operand{}, err
	}
	b.emit(Assign{Dst: joinVal, Src: thenResult})
	thenEnd := b.current

	b.current = elseBlock
	elseResult, err := b.lower(v.Else)
	if err != nil {
		return Operand{}, err
	}
	b.emit(Assign{Dst: joinVal, Src: elseResult})
	elseEnd := b.current

	join := b.newBlock()
	if thenEnd.Terminator == nil {
		thenEnd.Terminator = Branch{Target: join.ID}
	}
	if elseEnd.Terminator == nil {
		elseEnd.Terminator = Branch{Target: join.ID}
	}
	b.current = join
	return refOp(joinVal), nil
}
