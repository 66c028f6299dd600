package reconciler

import (
	"fmt"
	"io"

	"github.com/veesix-networks/vppom/pkg/acl"
	"github.com/veesix-networks/vppom/pkg/events"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/ifmgr"
	"github.com/veesix-networks/vppom/pkg/l3"
	"github.com/veesix-networks/vppom/pkg/metrics"
	"github.com/veesix-networks/vppom/pkg/om"
	"github.com/veesix-networks/vppom/pkg/opdb"
)

// Stack is the object model with every store and binding flavour
// registered.
type Stack struct {
	Model      *om.Model
	Interfaces *ifmgr.Manager
	ACLLists   *acl.Lists
	MACIPLists *acl.Lists
	ACL        *acl.L3Bindings
	MACIP      *acl.L2Bindings
	Prefixes   *l3.Bindings
}

func NewStack(q hw.Channel) *Stack {
	s := &Stack{
		Model:      om.New(q),
		Interfaces: ifmgr.New(q),
		ACLLists:   acl.NewLists(acl.KindL3, q),
		MACIPLists: acl.NewLists(acl.KindMACIP, q),
	}
	s.ACL = acl.NewL3Bindings(q, s.Interfaces, s.ACLLists)
	s.MACIP = acl.NewL2Bindings(q, s.Interfaces, s.MACIPLists)
	s.Prefixes = l3.NewBindings(q, s.Interfaces)

	s.Model.Register(s.Interfaces)
	s.Model.Register(s.ACLLists)
	s.Model.Register(s.MACIPLists)
	s.Model.Register(s.ACL)
	s.Model.Register(s.MACIP)
	s.Model.Register(s.Prefixes)
	return s
}

func (s *Stack) SetEventBus(bus events.Bus) {
	s.ACL.SetEventBus(bus)
	s.MACIP.SetEventBus(bus)
	s.Prefixes.SetEventBus(bus)
}

func (s *Stack) SetJournal(store opdb.Store) {
	s.ACL.SetJournal(store)
	s.MACIP.SetJournal(store)
	s.Prefixes.SetJournal(store)
}

// Collectors returns the binding flavours as metric sources.
func (s *Stack) Collectors() []metrics.StatsSource {
	return []metrics.StatsSource{s.ACL, s.MACIP, s.Prefixes}
}

// Records describes every live binding, flavour by flavour.
func (s *Stack) Records() []opdb.Record {
	var out []opdb.Record
	out = append(out, s.ACL.Records()...)
	out = append(out, s.MACIP.Records()...)
	out = append(out, s.Prefixes.Records()...)
	return out
}

// Dump writes every flavour's bindings in key order.
func (s *Stack) Dump(w io.Writer) error {
	type dumper interface {
		Name() string
		Len() int
		Dump(io.Writer) error
	}
	for _, d := range []dumper{s.ACL, s.MACIP, s.Prefixes} {
		if _, err := fmt.Fprintf(w, "# %s (%d)\n", d.Name(), d.Len()); err != nil {
			return err
		}
		if err := d.Dump(w); err != nil {
			return err
		}
	}
	return nil
}
