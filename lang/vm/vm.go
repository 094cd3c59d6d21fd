// Package vm composes fibers and nested VMs into a scheduled unit: a
// weighted-random cooperative scheduler, the channels its children
// communicate over, and the host-facing surface for the channel operations
// that cross the VM boundary (pending sends and receives the host resolves
// to perform I/O).
package vm

import (
	"fmt"
	"math/rand"

	"github.com/mna/mehl/lang/compiler"
	"github.com/mna/mehl/lang/machine"
)

// A Status is a VM's execution state.
type Status interface{ isStatus() }

type (
	// Running means at least one child can make progress.
	Running struct{}

	// Done carries the final value of the first child fiber to finish.
	Done struct{ Value machine.Value }

	// Panicked carries a panic propagated from a child.
	Panicked struct{ Value machine.Value }

	// Waiting means no child is runnable: every one of them is suspended
	// on an operation nothing has matched yet, either one the host must
	// resolve or one on a channel resident in this VM.
	Waiting struct{}
)

func (Running) isStatus()  {}
func (Done) isStatus()     {}
func (Panicked) isStatus() {}
func (Waiting) isStatus()  {}

// OpKind discriminates the two channel operations that cross a VM
// boundary.
type OpKind uint8

const (
	OpSend OpKind = iota
	OpReceive
)

func (k OpKind) String() string {
	if k == OpSend {
		return "send"
	}
	return "receive"
}

// Operation is one channel operation. In PendingOperations results the
// channel id is in the caller's id space; internally the VM tracks
// operations in its own space.
type Operation struct {
	Kind    OpKind
	Channel machine.ChannelID
	Message machine.Value // OpSend only
}

// channel is a bounded FIFO resident in this VM.
type channel struct {
	capacity uint64
	buffer   []machine.Value
}

// channelEntry is one slot of the VM's channel table: a resident channel,
// or a proxy for a channel owned by the enclosing scope (ch nil, external
// set to the id the channel has out there).
type channelEntry struct {
	ch       *channel
	external machine.ChannelID
}

// child is one schedulable unit. The set of runnable kinds is closed
// (fiber or nested VM), so dispatch is by explicit tag rather than an open
// interface.
type child struct {
	priority float64
	fiber    *machine.Fiber
	vm       *Vm
}

func (c *child) runnable() bool {
	if c.fiber != nil {
		_, ok := c.fiber.Status().(machine.Running)
		return ok
	}
	_, ok := c.vm.Status().(Running)
	return ok
}

func (c *child) run(budget int) {
	if c.fiber != nil {
		c.fiber.Run(budget)
	} else {
		c.vm.Run(budget)
	}
}

// pendingOp is a suspended channel operation of a direct fiber child,
// recorded (in this VM's id space) when the fiber suspends.
type pendingOp struct {
	child int
	op    Operation
}

// Vm schedules a set of children and mediates their channel operations.
type Vm struct {
	// Rand is the randomness source for the weighted choice of the next
	// runnable child. If nil, it is seeded from the global generator on
	// first use; tests install a fixed seed for reproducible scheduling.
	Rand *rand.Rand

	children    []child
	channels    map[machine.ChannelID]*channelEntry
	nextChannel machine.ChannelID
	extToInt    map[machine.ChannelID]machine.ChannelID

	// suspended operations of direct fiber children: on channels resident
	// here, and on proxied channels (resolved by the host or parent).
	internalPending []pendingOp
	externalPending []pendingOp

	status Status
}

// New creates a VM with a single fiber child of priority 1 executing the
// program, with the unit value as the initial dot. Channel ends inside the
// ambient values refer to channels of the caller; they are re-mapped into
// the VM's own channel id space.
func New(p *compiler.Program, ambients map[string]machine.Value) *Vm {
	vm := newEmpty()
	vm.AddProgram(1, p, ambients, machine.Unit)
	return vm
}

func newEmpty() *Vm {
	return &Vm{
		channels: make(map[machine.ChannelID]*channelEntry),
		extToInt: make(map[machine.ChannelID]machine.ChannelID),
		status:   Running{},
	}
}

// AddFiber registers a fiber as a schedulable child with the given
// scheduling weight. The fiber's ambients must already use this VM's
// channel id space; AddProgram handles the re-mapping for fibers built
// from caller-space ambients.
func (vm *Vm) AddFiber(priority float64, f *machine.Fiber) {
	vm.children = append(vm.children, child{priority: priority, fiber: f})
}

// AddProgram registers a new fiber child executing p, re-mapping the
// channel ends of its ambient values into the VM's channel id space.
func (vm *Vm) AddProgram(priority float64, p *compiler.Program, ambients map[string]machine.Value, dot machine.Value) {
	mapped := make(map[string]machine.Value, len(ambients))
	for name, v := range ambients {
		mapped[name] = vm.mapIn(v)
	}
	vm.AddFiber(priority, machine.NewFiber(p, mapped, dot))
}

// AddVm registers a nested VM as a schedulable child with the given
// scheduling weight.
func (vm *Vm) AddVm(priority float64, nested *Vm) {
	vm.children = append(vm.children, child{priority: priority, vm: nested})
}

// Status returns the VM's execution state.
func (vm *Vm) Status() Status { return vm.status }

// Run picks one runnable child by weighted random choice, advances it by
// at most budget instructions, reacts to the status it suspends with, and
// matches pending channel operations until a fixed point. With no runnable
// child it transitions to Waiting and returns; the host then resolves a
// pending operation and calls Run again.
func (vm *Vm) Run(budget int) {
	switch vm.status.(type) {
	case Done, Panicked:
		panic("vm: Run called on a finalized VM")
	}

	runnable := vm.runnableChildren()
	if len(runnable) == 0 {
		vm.status = Waiting{}
		return
	}
	vm.status = Running{}

	i := vm.pick(runnable)
	vm.children[i].run(budget)
	vm.inspect(i)
	if _, ok := vm.status.(Running); !ok {
		return
	}

	vm.matchPending()
	if len(vm.runnableChildren()) == 0 {
		vm.status = Waiting{}
	}
}

func (vm *Vm) runnableChildren() []int {
	var idx []int
	for i := range vm.children {
		if vm.children[i].runnable() {
			idx = append(idx, i)
		}
	}
	return idx
}

// pick chooses among the runnable children, each child's probability
// proportional to its priority.
func (vm *Vm) pick(runnable []int) int {
	if vm.Rand == nil {
		vm.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	var total float64
	for _, i := range runnable {
		total += vm.children[i].priority
	}
	t := vm.Rand.Float64() * total
	for _, i := range runnable {
		t -= vm.children[i].priority
		if t < 0 {
			return i
		}
	}
	return runnable[len(runnable)-1]
}

// inspect reacts to the post-run status of child i: propagates Done and
// Panicked, allocates channels, and records suspended channel operations.
func (vm *Vm) inspect(i int) {
	c := &vm.children[i]
	if c.fiber == nil {
		switch st := c.vm.Status().(type) {
		case Done:
			vm.status = Done{Value: vm.mapOut(st.Value)}
		case Panicked:
			vm.status = Panicked{Value: vm.mapOut(st.Value)}
		}
		// a Waiting nested VM's pending operations are consulted live in
		// matchPending and PendingOperations; nothing to record here.
		return
	}

	switch st := c.fiber.Status().(type) {
	case machine.Done:
		vm.status = Done{Value: vm.mapOut(st.Value)}
	case machine.Panicked:
		vm.status = Panicked{Value: vm.mapOut(st.Value)}
	case machine.CreatingChannel:
		id := vm.nextChannel
		vm.nextChannel++
		vm.channels[id] = &channelEntry{ch: &channel{capacity: st.Capacity}}
		c.fiber.ResolveChannelCreated(machine.SendEnd(id), machine.ReceiveEnd(id))
	case machine.Sending:
		vm.enqueue(i, Operation{Kind: OpSend, Channel: st.Channel, Message: st.Message})
	case machine.Receiving:
		vm.enqueue(i, Operation{Kind: OpReceive, Channel: st.Channel})
	}
}

func (vm *Vm) enqueue(childIndex int, op Operation) {
	entry, ok := vm.channels[op.Channel]
	if !ok {
		panic(fmt.Sprintf("vm: operation on unknown channel %d", op.Channel))
	}
	p := pendingOp{child: childIndex, op: op}
	if entry.ch != nil {
		vm.internalPending = append(vm.internalPending, p)
	} else {
		vm.externalPending = append(vm.externalPending, p)
	}
}
