package ifmgr

import (
	"fmt"

	"github.com/veesix-networks/vppom/pkg/hw"
)

type IfType uint32

const (
	IfTypeHardware IfType = 0
	IfTypeSub      IfType = 1
	IfTypeP2P      IfType = 2
	IfTypePipe     IfType = 3
)

// Interface is an attachment point for bindings. It is identified by name;
// SwIfIndex is the dataplane's handle for it.
type Interface struct {
	SwIfIndex    uint32
	SupSwIfIndex uint32
	Name         string
	DevType      string
	Type         IfType
	AdminUp      bool
	LinkUp       bool
	MTU          uint32
	MAC          []byte
	Tag          string
}

func (i *Interface) Key() string {
	return i.Name
}

func (i *Interface) Handle() hw.Handle {
	return hw.Handle(i.SwIfIndex)
}

func (i *Interface) IsSubinterface() bool {
	return i.Type == IfTypeSub
}

func (i *Interface) HasParent() bool {
	return i.SupSwIfIndex != i.SwIfIndex
}

func (i *Interface) String() string {
	return fmt.Sprintf("%s:%d", i.Name, i.SwIfIndex)
}
