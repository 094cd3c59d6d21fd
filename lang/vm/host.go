package vm

import "github.com/mna/mehl/lang/machine"

// The host surface: pending operations on channels the VM does not own
// are exposed to whoever owns them (the host process, or a parent VM),
// which completes them with ResolveSend and ResolveReceive. Channel ids
// cross the boundary in the caller's id space; messages have their channel
// ends translated the same way.

// PendingOperations returns the suspended operations that this VM cannot
// resolve itself because they target channels owned by the caller: those
// of direct fiber children, and those bubbled up from nested VMs.
func (vm *Vm) PendingOperations() []Operation {
	var ops []Operation
	for _, p := range vm.externalPending {
		ops = append(ops, vm.opOut(p.op))
	}
	for i := range vm.children {
		nested := vm.children[i].vm
		if nested == nil {
			continue
		}
		for _, op := range nested.PendingOperations() {
			// surface everything not resolvable here: proxied channels, and
			// ids this VM never mapped (the nested VM was handed ends of a
			// channel the caller owns directly).
			if entry, ok := vm.channels[op.Channel]; !ok || entry.ch == nil {
				ops = append(ops, vm.opOut(op))
			}
		}
	}
	return ops
}

// ResolveSend completes a pending send on channel id (in the caller's id
// space): the caller has accepted the message, and the child whose send
// matches it resumes with unit.
func (vm *Vm) ResolveSend(id machine.ChannelID, message machine.Value) {
	internal, ok := vm.extToInt[id]
	if !ok {
		// an id this VM never mapped passes through to nested children
		// unchanged.
		internal = id
	}
	msg := vm.mapIn(message)
	for idx, p := range vm.externalPending {
		if p.op.Kind == OpSend && p.op.Channel == internal && machine.Equal(p.op.Message, msg) {
			vm.children[p.child].fiber.ResolveSending()
			vm.externalPending = append(vm.externalPending[:idx], vm.externalPending[idx+1:]...)
			vm.unwait()
			return
		}
	}
	for i := range vm.children {
		nested := vm.children[i].vm
		if nested == nil {
			continue
		}
		for _, op := range nested.PendingOperations() {
			if op.Kind == OpSend && op.Channel == internal && machine.Equal(op.Message, msg) {
				nested.ResolveSend(internal, msg)
				vm.unwait()
				return
			}
		}
	}
	panic("vm: no child with a matching pending send")
}

// ResolveReceive completes a pending receive on channel id (in the
// caller's id space) by delivering message to the waiting child.
func (vm *Vm) ResolveReceive(id machine.ChannelID, message machine.Value) {
	internal, ok := vm.extToInt[id]
	if !ok {
		internal = id
	}
	msg := vm.mapIn(message)
	for idx, p := range vm.externalPending {
		if p.op.Kind == OpReceive && p.op.Channel == internal {
			vm.children[p.child].fiber.ResolveReceiving(msg)
			vm.externalPending = append(vm.externalPending[:idx], vm.externalPending[idx+1:]...)
			vm.unwait()
			return
		}
	}
	for i := range vm.children {
		nested := vm.children[i].vm
		if nested == nil {
			continue
		}
		for _, op := range nested.PendingOperations() {
			if op.Kind == OpReceive && op.Channel == internal {
				nested.ResolveReceive(internal, msg)
				vm.unwait()
				return
			}
		}
	}
	panic("vm: no child with a matching pending receive")
}

// unwait flips a Waiting VM back to Running after a host resolution made a
// child runnable again.
func (vm *Vm) unwait() {
	if _, ok := vm.status.(Waiting); ok {
		vm.status = Running{}
	}
}

// opOut translates an operation from this VM's id space to the caller's.
func (vm *Vm) opOut(op Operation) Operation {
	out := Operation{Kind: op.Kind, Channel: vm.idOut(op.Channel)}
	if op.Message != nil {
		out.Message = vm.mapOut(op.Message)
	}
	return out
}

// idOut translates a channel id to the caller's space. Ids of channels
// resident in this VM have no name outside it and pass through unchanged;
// a resident channel's end that leaves the VM cannot be used to reach the
// channel from out there.
func (vm *Vm) idOut(id machine.ChannelID) machine.ChannelID {
	if entry, ok := vm.channels[id]; ok && entry.ch == nil {
		return entry.external
	}
	return id
}

// idIn translates a channel id arriving from the caller into this VM's
// space, allocating a proxy entry the first time an id is seen.
func (vm *Vm) idIn(id machine.ChannelID) machine.ChannelID {
	if internal, ok := vm.extToInt[id]; ok {
		return internal
	}
	internal := vm.nextChannel
	vm.nextChannel++
	vm.channels[internal] = &channelEntry{external: id}
	vm.extToInt[id] = internal
	return internal
}

// mapIn rewrites every channel end in a value crossing into the VM to the
// VM's id space; mapOut is its counterpart for values crossing out. Both
// copy only along paths that contain channel ends.
func (vm *Vm) mapIn(v machine.Value) machine.Value {
	return mapEnds(v, vm.idIn)
}

func (vm *Vm) mapOut(v machine.Value) machine.Value {
	return mapEnds(v, vm.idOut)
}

func mapEnds(v machine.Value, f func(machine.ChannelID) machine.ChannelID) machine.Value {
	switch v := v.(type) {
	case machine.SendEnd:
		return machine.SendEnd(f(machine.ChannelID(v)))
	case machine.ReceiveEnd:
		return machine.ReceiveEnd(f(machine.ChannelID(v)))
	case *machine.List:
		elems := make([]machine.Value, len(v.Elems))
		for i, el := range v.Elems {
			elems[i] = mapEnds(el, f)
		}
		return &machine.List{Elems: elems}
	case *machine.Map:
		m := machine.NewMap(v.Len())
		for _, kv := range v.Items() {
			m.Set(mapEnds(kv[0], f), mapEnds(kv[1], f))
		}
		return m
	case *machine.Closure:
		captured := make([]machine.Value, len(v.Captured))
		for i, c := range v.Captured {
			captured[i] = mapEnds(c, f)
		}
		return &machine.Closure{Body: v.Body, Captured: captured}
	default:
		return v
	}
}
