// Package textir parses the small line-based function format
// cmd/corebackend's compile subcommand accepts, turning it directly
// into a *lir.Function ready for internal/compiler.Pipeline.Run. There
// is no HIR-to-LIR translator in this tree (that boundary is meant to
// be satisfied by a caller outside this module, per the Factory
// interface pkg/hir declares) and nothing in the retrieved reference
// material describes a textual surface syntax, so this format is this
// package's own invention rather than a port of anything — it exists
// only to give the command line something to read.
//
// A program is one function: a name, a sequence of argument
// declarations binding a name to the next System V integer argument
// register, and a straight-line sequence of instructions over named
// virtual registers and immediate literals. There is exactly one
// basic block; branches and multi-block control flow aren't part of
// this format.
//
// Grammar, one statement per line, blank lines and ";"-comments
// ignored:
//
//	function NAME
//	arg NAME
//	vreg NAME
//	lit NAME = #INT
//	mov NAME = SRC
//	add NAME = SRC, SRC
//	sub NAME = SRC, SRC
//	bitand NAME = SRC, SRC
//	bitor NAME = SRC, SRC
//	bitxor NAME = SRC, SRC
//	shl NAME = SRC, SRC
//	shr NAME = SRC, SRC
//	sar NAME = SRC, SRC
//	ret [SRC]
//
// SRC is either a previously declared NAME or an immediate "#INT".
// Tokens are whitespace-separated, so a binary instruction's two
// sources must have a space after the comma ("a, b", not "a,b").
package textir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/corebackend/backend/pkg/lir"
)

// argRegisters is the System V AMD64 integer argument order pkg/vm's
// native call trampoline loads a0..a5 into: RDI, RSI, RDX, RCX, R8, R9.
var argRegisters = []int32{7, 6, 2, 1, 8, 9}

var binaryOps = map[string]lir.Opcode{
	"add":    lir.OpAdd,
	"sub":    lir.OpSub,
	"bitand": lir.OpBitAnd,
	"bitor":  lir.OpBitOr,
	"bitxor": lir.OpBitXor,
	"shl":    lir.OpShl,
	"shr":    lir.OpShr,
	"sar":    lir.OpSar,
}

// Parse builds a single-block *lir.Function from src.
func Parse(src string) (*lir.Function, error) {
	p := &parser{env: make(map[string]lir.Value)}
	return p.run(src)
}

type parser struct {
	fn       *lir.Function
	editor   *lir.Editor
	block    *lir.BasicBlock
	env      map[string]lir.Value
	nextArg  int
	haveFunc bool
}

func (p *parser) run(src string) (*lir.Function, error) {
	for n, raw := range strings.Split(src, "\n") {
		lineNo := n + 1
		line := raw
		if i := strings.Index(line, ";"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := p.statement(line); err != nil {
			return nil, fmt.Errorf("textir: line %d: %w", lineNo, err)
		}
	}
	if !p.haveFunc {
		return nil, fmt.Errorf("textir: missing \"function NAME\" line")
	}
	if err := p.editor.Commit(); err != nil {
		return nil, fmt.Errorf("textir: %w", err)
	}
	return p.fn, nil
}

func (p *parser) statement(line string) error {
	fields := strings.Fields(line)
	keyword := fields[0]

	if keyword == "function" {
		if p.haveFunc {
			return fmt.Errorf("a second \"function\" line is not allowed")
		}
		if len(fields) != 2 {
			return fmt.Errorf("\"function\" wants exactly one name, got %q", line)
		}
		p.fn = lir.NewFunction(fields[1])
		p.editor = lir.NewEditor(p.fn)
		p.block = p.editor.NewBasicBlock()
		p.editor.SetEntry(p.block)
		p.editor.SetExit(p.block)
		p.editor.Edit(p.block)
		p.haveFunc = true
		return nil
	}

	if !p.haveFunc {
		return fmt.Errorf("%q before a \"function\" line", keyword)
	}

	switch keyword {
	case "arg":
		return p.declareArg(fields)
	case "vreg":
		return p.declareVreg(fields)
	case "lit":
		return p.instructionLit(fields)
	case "mov":
		return p.instructionMov(fields)
	case "ret":
		return p.instructionRet(fields)
	default:
		if op, ok := binaryOps[keyword]; ok {
			return p.instructionBinary(op, fields)
		}
		return fmt.Errorf("unrecognized instruction %q", keyword)
	}
}

func (p *parser) declareArg(fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("\"arg\" wants exactly one name")
	}
	name := fields[1]
	if _, exists := p.env[name]; exists {
		return fmt.Errorf("%q already declared", name)
	}
	if p.nextArg >= len(argRegisters) {
		return fmt.Errorf("only %d integer argument registers are available", len(argRegisters))
	}
	p.env[name] = lir.NewRegister(lir.Size64, argRegisters[p.nextArg])
	p.nextArg++
	return nil
}

func (p *parser) declareVreg(fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("\"vreg\" wants exactly one name")
	}
	name := fields[1]
	if _, exists := p.env[name]; exists {
		return fmt.Errorf("%q already declared", name)
	}
	p.env[name] = p.fn.NewVirtualRegister(lir.Integer, lir.Size64)
	return nil
}

// assignSlot resolves name to the virtual register it already names
// via "vreg", or declares it fresh on first assignment so that
// "add NAME = ..." can double as both the declaration and the def.
func (p *parser) assignSlot(name string) lir.Value {
	if v, ok := p.env[name]; ok {
		return v
	}
	v := p.fn.NewVirtualRegister(lir.Integer, lir.Size64)
	p.env[name] = v
	return v
}

func (p *parser) operand(token string) (lir.Value, error) {
	if strings.HasPrefix(token, "#") {
		n, err := strconv.ParseInt(token[1:], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("bad immediate %q: %w", token, err)
		}
		return lir.NewImmediate(lir.Size64, int32(n)), nil
	}
	v, ok := p.env[token]
	if !ok {
		return 0, fmt.Errorf("%q was never declared", token)
	}
	return v, nil
}

func splitAssignment(fields []string) (dst string, rhs []string, ok bool) {
	if len(fields) < 3 || fields[2] != "=" {
		return "", nil, false
	}
	return fields[1], fields[3:], true
}

func (p *parser) instructionLit(fields []string) error {
	dst, rhs, ok := splitAssignment(fields)
	if !ok || len(rhs) != 1 {
		return fmt.Errorf("want \"lit NAME = #INT\"")
	}
	src, err := p.operand(rhs[0])
	if err != nil {
		return err
	}
	out := p.assignSlot(dst)
	p.editor.AppendInstruction(lir.NewInstruction(lir.OpLit, []lir.Value{out}, []lir.Value{src}))
	return nil
}

func (p *parser) instructionMov(fields []string) error {
	dst, rhs, ok := splitAssignment(fields)
	if !ok || len(rhs) != 1 {
		return fmt.Errorf("want \"mov NAME = SRC\"")
	}
	src, err := p.operand(rhs[0])
	if err != nil {
		return err
	}
	out := p.assignSlot(dst)
	p.editor.AppendInstruction(lir.NewInstruction(lir.OpMov, []lir.Value{out}, []lir.Value{src}))
	return nil
}

func (p *parser) instructionBinary(op lir.Opcode, fields []string) error {
	dst, rhs, ok := splitAssignment(fields)
	if !ok || len(rhs) != 2 || rhs[0][len(rhs[0])-1] != ',' {
		return fmt.Errorf("want \"%s NAME = SRC, SRC\"", fields[0])
	}
	lhsTok := strings.TrimSuffix(rhs[0], ",")
	lhs, err := p.operand(lhsTok)
	if err != nil {
		return err
	}
	rhsVal, err := p.operand(rhs[1])
	if err != nil {
		return err
	}
	out := p.assignSlot(dst)
	p.editor.AppendInstruction(lir.NewInstruction(op, []lir.Value{out}, []lir.Value{lhs, rhsVal}))
	return nil
}

func (p *parser) instructionRet(fields []string) error {
	var inputs []lir.Value
	if len(fields) == 2 {
		src, err := p.operand(fields[1])
		if err != nil {
			return err
		}
		inputs = []lir.Value{src}
	} else if len(fields) != 1 {
		return fmt.Errorf("want \"ret\" or \"ret SRC\"")
	}
	p.editor.AppendInstruction(lir.NewInstruction(lir.OpRet, nil, inputs))
	p.editor.Exit()
	return nil
}
