package compiler

// A Program is a fully compiled chunk: a single byte sequence of
// variable-length instructions with little-endian operands. Addresses
// (JUMP and PUSHADDRESS operands, closure body addresses) are absolute
// byte offsets into Code. The format is private to this build: AppendInstr
// and DecodeInstr are inverses of each other, but no cross-version
// stability is guaranteed.
type Program struct {
	// Filename is the name of the chunk this program was compiled from,
	// used in diagnostics.
	Filename string

	// Code is the byte code. Execution starts at address 0; the program is
	// done when the instruction pointer runs past the end.
	Code []byte
}

// Instrs decodes the whole program into its instruction sequence along
// with each instruction's byte address. It is used by the disassembler and
// by tests; the machine decodes lazily, one instruction at a time.
func (p *Program) Instrs() ([]Instr, []uint64, error) {
	var (
		ins   []Instr
		addrs []uint64
	)
	for ip := uint64(0); ip < uint64(len(p.Code)); {
		i, next, err := DecodeInstr(p.Code, ip)
		if err != nil {
			return nil, nil, err
		}
		ins = append(ins, i)
		addrs = append(addrs, ip)
		ip = next
	}
	return ins, addrs, nil
}
