package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/mna/mehl/lang/hir"
)

// Increment this to force recompilation of saved bytecode files.
const Version = 0

type Opcode uint8

// "x DUP x x" is a "stack picture" that describes the state of the stack
// before and after execution of the instruction. Operands are fixed-width
// little-endian immediates following the opcode byte; <n8> is a one-byte
// immediate, <n64> an eight-byte one. Stack offsets count from the top,
// offset 0 being the topmost entry. The NEAR variants encode the offset in
// one byte and are selected by the emitter whenever the offset fits.
const ( //nolint:revive
	NOP Opcode = iota // - NOP -

	// value creation
	CREATEINT         //            - CREATEINT<i64>                v
	CREATESTRING      //            - CREATESTRING<len64+bytes>     v
	CREATESMALLSTRING //            - CREATESMALLSTRING<len8+bytes> v
	CREATESYMBOL      //            - CREATESYMBOL<nul-terminated>  v
	CREATEMAP         // k1 v1..kn vn CREATEMAP<n64>                map
	CREATELIST        //     x1 .. xn CREATELIST<n64>               list
	CREATECLOSURE     //  addr c1..ck CREATECLOSURE<k64>            closure

	// refcount (no stack effect; acts on the object at the offset)
	DUP      // - DUP<off64>     -
	DUPNEAR  // - DUPNEAR<off8>  -
	DROP     // - DROP<off64>    -
	DROPNEAR // - DROPNEAR<off8> -

	// stack shuffling (no refcount effect)
	POP                 //        x POP -
	POPMULTIPLEBELOWTOP // y1..yn x POPMULTIPLEBELOWTOP<n8> x
	PUSHADDRESS         //        - PUSHADDRESS<addr64>     addr
	PUSHFROMSTACK       //        - PUSHFROMSTACK<off64>    copy-of-entry
	PUSHNEARFROMSTACK   //        - PUSHNEARFROMSTACK<off8> copy-of-entry

	// control flow
	JUMP   //           - JUMP<addr64> -
	CALL   // closure arg CALL         retaddr c1..ck arg  (jumps into body)
	RETURN // retaddr out RETURN       out                 (jumps to retaddr)

	// effects
	PRIMITIVE     // [sym, arg] PRIMITIVE         result  (kind resolved at runtime)
	PRIMITIVEKIND //        arg PRIMITIVEKIND<k8> result

	OpcodeMax = PRIMITIVEKIND
)

var opcodeNames = [...]string{
	CALL:                "call",
	CREATECLOSURE:       "createclosure",
	CREATEINT:           "createint",
	CREATELIST:          "createlist",
	CREATEMAP:           "createmap",
	CREATESMALLSTRING:   "createsmallstring",
	CREATESTRING:        "createstring",
	CREATESYMBOL:        "createsymbol",
	DROP:                "drop",
	DROPNEAR:            "dropnear",
	DUP:                 "dup",
	DUPNEAR:             "dupnear",
	JUMP:                "jump",
	NOP:                 "nop",
	POP:                 "pop",
	POPMULTIPLEBELOWTOP: "popmultiplebelowtop",
	PRIMITIVE:           "primitive",
	PRIMITIVEKIND:       "primitivekind",
	PUSHADDRESS:         "pushaddress",
	PUSHFROMSTACK:       "pushfromstack",
	PUSHNEARFROMSTACK:   "pushnearfromstack",
	RETURN:              "return",
}

var reverseLookupOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, s := range opcodeNames {
		m[s] = Opcode(op)
	}
	return m
}()

func (op Opcode) String() string {
	if op <= OpcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// Instr is one decoded byte-code instruction. Only the operand fields
// relevant to Op are meaningful: Num holds a count, offset or address, Int
// the CREATEINT immediate, Str the string/symbol payload, and Kind the
// PRIMITIVEKIND selector.
type Instr struct {
	Op   Opcode
	Num  uint64
	Int  int64
	Str  string
	Kind hir.PrimitiveKind
}

// AppendInstr encodes ins at the end of code and returns the extended
// slice. It is the exact inverse of DecodeInstr; the two share the operand
// layout documented on the Opcode constants.
func AppendInstr(code []byte, ins Instr) []byte {
	code = append(code, byte(ins.Op))
	switch ins.Op {
	case NOP, POP, CALL, RETURN, PRIMITIVE:
		// no operand
	case CREATEINT:
		code = binary.LittleEndian.AppendUint64(code, uint64(ins.Int))
	case CREATESTRING:
		code = binary.LittleEndian.AppendUint64(code, uint64(len(ins.Str)))
		code = append(code, ins.Str...)
	case CREATESMALLSTRING:
		code = append(code, byte(len(ins.Str)))
		code = append(code, ins.Str...)
	case CREATESYMBOL:
		code = append(code, ins.Str...)
		code = append(code, 0)
	case CREATEMAP, CREATELIST, CREATECLOSURE, DUP, DROP, PUSHADDRESS, PUSHFROMSTACK, JUMP:
		code = binary.LittleEndian.AppendUint64(code, ins.Num)
	case DUPNEAR, DROPNEAR, POPMULTIPLEBELOWTOP, PUSHNEARFROMSTACK:
		code = append(code, byte(ins.Num))
	case PRIMITIVEKIND:
		code = append(code, byte(ins.Kind))
	default:
		panic(fmt.Sprintf("compiler: cannot encode opcode %s", ins.Op))
	}
	return code
}

// DecodeInstr decodes the instruction starting at code[ip] and returns it
// along with the address of the next instruction.
func DecodeInstr(code []byte, ip uint64) (Instr, uint64, error) {
	if ip >= uint64(len(code)) {
		return Instr{}, 0, fmt.Errorf("compiler: instruction address %d out of range", ip)
	}
	op := Opcode(code[ip])
	ip++
	ins := Instr{Op: op}

	u64 := func() (uint64, error) {
		if ip+8 > uint64(len(code)) {
			return 0, fmt.Errorf("compiler: truncated %s operand at %d", op, ip)
		}
		v := binary.LittleEndian.Uint64(code[ip:])
		ip += 8
		return v, nil
	}
	u8 := func() (byte, error) {
		if ip >= uint64(len(code)) {
			return 0, fmt.Errorf("compiler: truncated %s operand at %d", op, ip)
		}
		b := code[ip]
		ip++
		return b, nil
	}

	switch op {
	case NOP, POP, CALL, RETURN, PRIMITIVE:
		// no operand
	case CREATEINT:
		v, err := u64()
		if err != nil {
			return Instr{}, 0, err
		}
		ins.Int = int64(v)
	case CREATESTRING:
		n, err := u64()
		if err != nil {
			return Instr{}, 0, err
		}
		if ip+n > uint64(len(code)) {
			return Instr{}, 0, fmt.Errorf("compiler: truncated string payload at %d", ip)
		}
		ins.Str = string(code[ip : ip+n])
		ip += n
	case CREATESMALLSTRING:
		n, err := u8()
		if err != nil {
			return Instr{}, 0, err
		}
		if ip+uint64(n) > uint64(len(code)) {
			return Instr{}, 0, fmt.Errorf("compiler: truncated string payload at %d", ip)
		}
		ins.Str = string(code[ip : ip+uint64(n)])
		ip += uint64(n)
	case CREATESYMBOL:
		start := ip
		for ip < uint64(len(code)) && code[ip] != 0 {
			ip++
		}
		if ip >= uint64(len(code)) {
			return Instr{}, 0, fmt.Errorf("compiler: unterminated symbol at %d", start)
		}
		ins.Str = string(code[start:ip])
		ip++ // nul
	case CREATEMAP, CREATELIST, CREATECLOSURE, DUP, DROP, PUSHADDRESS, PUSHFROMSTACK, JUMP:
		v, err := u64()
		if err != nil {
			return Instr{}, 0, err
		}
		ins.Num = v
	case DUPNEAR, DROPNEAR, POPMULTIPLEBELOWTOP, PUSHNEARFROMSTACK:
		b, err := u8()
		if err != nil {
			return Instr{}, 0, err
		}
		ins.Num = uint64(b)
	case PRIMITIVEKIND:
		b, err := u8()
		if err != nil {
			return Instr{}, 0, err
		}
		ins.Kind = hir.PrimitiveKind(b)
	default:
		return Instr{}, 0, fmt.Errorf("compiler: unknown opcode %d at %d", byte(op), ip-1)
	}
	return ins, ip, nil
}
