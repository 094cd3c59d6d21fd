package compiler

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/mehl/lang/hir"
)

// This asm file implements a human-readable/writable form of a compiled
// program. This is mostly to support testing of the VM without going
// through the parsing phase of the higher-level language. A disassembler
// is also implemented.
//
// The assembly format looks like this (indentation and spacing is
// arbitrary, '#' starts a comment):
//
//	program: NAME                # required, NAME optional
//		createint 42
//		jump 3                     # jump/pushaddress arguments refer to an
//		pushaddress 1              # instruction index in the listing (will
//		pushnearfromstack 0        # be translated to a byte address)
//		createclosure 0
//		call
//
// String and symbol operands are Go-quoted; primitivekind operands use the
// primitive's name. Near and far opcode variants are spelled explicitly,
// so assembling a disassembly reproduces the exact byte encoding.

// Asm loads a compiled program from its assembler textual format.
func Asm(b []byte) (*Program, error) {
	var (
		name   string
		instrs []Instr
		seen   bool
	)
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		line := s.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !seen {
			if fields[0] != "program:" {
				return nil, fmt.Errorf("asm: expected program: section, got %q", fields[0])
			}
			if len(fields) > 1 {
				name = fields[1]
			}
			seen = true
			continue
		}
		ins, err := parseAsmInstr(fields)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, ins)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if !seen {
		return nil, fmt.Errorf("asm: missing program: section")
	}

	// first pass: compute each instruction's byte address so that the
	// second pass can translate index operands of jump/pushaddress.
	addrs := make([]uint64, len(instrs)+1)
	var sz []byte
	for i, ins := range instrs {
		addrs[i] = uint64(len(sz))
		sz = AppendInstr(sz, ins)
	}
	addrs[len(instrs)] = uint64(len(sz))

	var code []byte
	for _, ins := range instrs {
		if ins.Op == JUMP || ins.Op == PUSHADDRESS {
			if ins.Num >= uint64(len(addrs)) {
				return nil, fmt.Errorf("asm: %s target %d out of range", ins.Op, ins.Num)
			}
			ins.Num = addrs[ins.Num]
		}
		code = AppendInstr(code, ins)
	}
	return &Program{Filename: name, Code: code}, nil
}

func parseAsmInstr(fields []string) (Instr, error) {
	op, ok := reverseLookupOpcode[fields[0]]
	if !ok {
		return Instr{}, fmt.Errorf("asm: unknown opcode %q", fields[0])
	}
	ins := Instr{Op: op}
	arg := func() (string, error) {
		if len(fields) != 2 {
			return "", fmt.Errorf("asm: %s wants exactly one argument, got %d", op, len(fields)-1)
		}
		return fields[1], nil
	}
	switch op {
	case NOP, POP, CALL, RETURN, PRIMITIVE:
		if len(fields) != 1 {
			return Instr{}, fmt.Errorf("asm: %s takes no argument", op)
		}
	case CREATEINT:
		a, err := arg()
		if err != nil {
			return Instr{}, err
		}
		ins.Int, err = strconv.ParseInt(a, 10, 64)
		if err != nil {
			return Instr{}, fmt.Errorf("asm: invalid %s argument: %w", op, err)
		}
	case CREATESTRING, CREATESMALLSTRING, CREATESYMBOL:
		if len(fields) < 2 {
			return Instr{}, fmt.Errorf("asm: %s wants a quoted argument", op)
		}
		a, err := strconv.Unquote(strings.Join(fields[1:], " "))
		if err != nil {
			return Instr{}, fmt.Errorf("asm: invalid %s argument: %w", op, err)
		}
		ins.Str = a
	case PRIMITIVEKIND:
		a, err := arg()
		if err != nil {
			return Instr{}, err
		}
		k, ok := hir.ParsePrimitiveKind(a)
		if !ok {
			return Instr{}, fmt.Errorf("asm: unknown primitive %q", a)
		}
		ins.Kind = k
	default:
		a, err := arg()
		if err != nil {
			return Instr{}, err
		}
		ins.Num, err = strconv.ParseUint(a, 10, 64)
		if err != nil {
			return Instr{}, fmt.Errorf("asm: invalid %s argument: %w", op, err)
		}
	}
	return ins, nil
}

// Disasm writes a compiled program to its assembler textual format, such
// that Asm(Disasm(p)) reproduces p's byte code exactly.
func Disasm(p *Program) ([]byte, error) {
	instrs, addrs, err := p.Instrs()
	if err != nil {
		return nil, err
	}
	// map byte address to instruction index for jump/pushaddress operands;
	// the end-of-code address is a valid target too.
	index := make(map[uint64]int, len(addrs)+1)
	for i, a := range addrs {
		index[a] = i
	}
	index[uint64(len(p.Code))] = len(instrs)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "program: %s\n", p.Filename)
	for _, ins := range instrs {
		switch ins.Op {
		case NOP, POP, CALL, RETURN, PRIMITIVE:
			fmt.Fprintf(&buf, "\t%s\n", ins.Op)
		case CREATEINT:
			fmt.Fprintf(&buf, "\t%s %d\n", ins.Op, ins.Int)
		case CREATESTRING, CREATESMALLSTRING, CREATESYMBOL:
			fmt.Fprintf(&buf, "\t%s %s\n", ins.Op, strconv.Quote(ins.Str))
		case PRIMITIVEKIND:
			fmt.Fprintf(&buf, "\t%s %s\n", ins.Op, ins.Kind)
		case JUMP, PUSHADDRESS:
			ix, ok := index[ins.Num]
			if !ok {
				return nil, fmt.Errorf("asm: %s target %d is not an instruction boundary", ins.Op, ins.Num)
			}
			fmt.Fprintf(&buf, "\t%s %d\n", ins.Op, ix)
		default:
			fmt.Fprintf(&buf, "\t%s %d\n", ins.Op, ins.Num)
		}
	}
	return buf.Bytes(), nil
}
