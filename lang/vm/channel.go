package vm

import (
	"sort"

	"github.com/mna/mehl/lang/machine"
)

// pendingRef is one suspended operation on a channel resident in this VM,
// unified across direct fiber children (tracked in internalPending) and
// nested VM children (derived from their pending operations on demand).
type pendingRef struct {
	child  int
	op     Operation
	direct bool
	index  int // position in internalPending when direct
}

// matchPending matches suspended operations against the resident channels
// until a fixed point: sends enqueue into buffers with room (resuming the
// sender), receives take buffered messages (resuming the receiver), and on
// capacity-0 channels a send hands its message directly to a suspended
// receiver (strict rendezvous; such a send never buffers).
func (vm *Vm) matchPending() {
	for {
		refs := vm.collectResident()
		if !vm.matchOnce(refs) {
			return
		}
	}
}

// collectResident gathers the suspended operations that target channels
// resident in this VM, direct fiber operations first in arrival order,
// then nested VM operations in child order.
func (vm *Vm) collectResident() []pendingRef {
	var refs []pendingRef
	for idx, p := range vm.internalPending {
		refs = append(refs, pendingRef{child: p.child, op: p.op, direct: true, index: idx})
	}
	for i := range vm.children {
		nested := vm.children[i].vm
		if nested == nil {
			continue
		}
		for _, op := range nested.PendingOperations() {
			if entry, ok := vm.channels[op.Channel]; ok && entry.ch != nil {
				refs = append(refs, pendingRef{child: i, op: op})
			}
		}
	}
	return refs
}

// matchOnce performs the first possible resolution among refs and reports
// whether one happened; the caller then re-collects, since resolving an
// operation can unblock others.
func (vm *Vm) matchOnce(refs []pendingRef) bool {
	for _, r := range refs {
		ch := vm.channels[r.op.Channel].ch
		switch r.op.Kind {
		case OpSend:
			if uint64(len(ch.buffer)) < ch.capacity {
				ch.buffer = append(ch.buffer, r.op.Message)
				vm.resolveSend(r)
				vm.removeDirect(r)
				return true
			}
			if ch.capacity == 0 {
				if recv, ok := findReceive(refs, r.op.Channel); ok {
					vm.resolveReceive(recv, r.op.Message)
					vm.resolveSend(r)
					vm.removeDirect(recv, r)
					return true
				}
			}
		case OpReceive:
			if len(ch.buffer) > 0 {
				msg := ch.buffer[0]
				ch.buffer = ch.buffer[1:]
				vm.resolveReceive(r, msg)
				vm.removeDirect(r)
				return true
			}
		}
	}
	return false
}

func findReceive(refs []pendingRef, id machine.ChannelID) (pendingRef, bool) {
	for _, r := range refs {
		if r.op.Kind == OpReceive && r.op.Channel == id {
			return r, true
		}
	}
	return pendingRef{}, false
}

// resolveSend resumes the child behind a matched send: a fiber directly,
// a nested VM by forwarding down.
func (vm *Vm) resolveSend(r pendingRef) {
	if r.direct {
		vm.children[r.child].fiber.ResolveSending()
		return
	}
	vm.children[r.child].vm.ResolveSend(r.op.Channel, r.op.Message)
}

func (vm *Vm) resolveReceive(r pendingRef, msg machine.Value) {
	if r.direct {
		vm.children[r.child].fiber.ResolveReceiving(msg)
		return
	}
	vm.children[r.child].vm.ResolveReceive(r.op.Channel, msg)
}

// removeDirect drops the resolved refs that live in internalPending,
// highest index first so the earlier removals do not shift the later ones.
func (vm *Vm) removeDirect(refs ...pendingRef) {
	var indices []int
	for _, r := range refs {
		if r.direct {
			indices = append(indices, r.index)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, i := range indices {
		vm.internalPending = append(vm.internalPending[:i], vm.internalPending[i+1:]...)
	}
}
