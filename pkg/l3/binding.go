// Package l3 binds IP prefixes to interfaces.
package l3

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"go.fd.io/govpp/api"
	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/interface_types"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/binapi/ip_types"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppom/pkg/binding"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/ifmgr"
	"github.com/veesix-networks/vppom/pkg/logger"
)

// Key identifies a prefix binding. Changing either field is a new binding.
type Key struct {
	Itf    string
	Prefix netaddr.IPPrefix
}

func (k Key) String() string {
	return fmt.Sprintf("[%s, %s]", k.Itf, k.Prefix)
}

func compareKey(a, b Key) int {
	if c := strings.Compare(a.Itf, b.Itf); c != 0 {
		return c
	}
	if c := a.Prefix.IP().Compare(b.Prefix.IP()); c != 0 {
		return c
	}
	return int(a.Prefix.Bits()) - int(b.Prefix.Bits())
}

// Relation is an address with its prefix length configured on an interface.
type Relation struct {
	Itf    *ifmgr.Interface
	Prefix netaddr.IPPrefix
}

func (r Relation) Key() Key {
	return Key{Itf: r.Itf.Key(), Prefix: r.Prefix}
}

func (r Relation) Equal(o Relation) bool {
	return r.Key() == o.Key()
}

func (r Relation) String() string {
	return fmt.Sprintf("itf:%s prefix:%s", r.Itf, r.Prefix)
}

func (r Relation) BindCmd(item *hw.Item[bool]) hw.Cmd {
	return &Cmd{StateCmd: hw.StateCmd{Item: item, Bind: true}, SwIfIndex: r.Itf.Handle(), Prefix: r.Prefix}
}

func (r Relation) UnbindCmd(item *hw.Item[bool]) hw.Cmd {
	return &Cmd{StateCmd: hw.StateCmd{Item: item}, SwIfIndex: r.Itf.Handle(), Prefix: r.Prefix}
}

type (
	Binding  = binding.Binding[Key, Relation]
	Bindings = binding.Manager[Key, Relation]
)

func NewBindings(q hw.Channel, ifs *ifmgr.Manager) *Bindings {
	return binding.NewManager[Key, Relation]("l3", q, compareKey, populate(q, ifs))
}

func populate(q hw.Channel, ifs *ifmgr.Manager) binding.PopulateFunc[Relation] {
	log := logger.Get(logger.L3)
	return func(ctx context.Context) (iter.Seq[Relation], error) {
		v4 := &DumpCmd{}
		v6 := &DumpCmd{IPv6: true}
		q.Enqueue(v4)
		q.Enqueue(v6)
		if err := q.Write(ctx); err != nil {
			return nil, err
		}
		for _, cmd := range []*DumpCmd{v4, v6} {
			if cmd.Err != nil {
				return nil, cmd.Err
			}
		}

		return func(yield func(Relation) bool) {
			for _, rec := range append(v4.Details, v6.Details...) {
				itf := ifs.Get(uint32(rec.SwIfIndex))
				if itf == nil {
					log.Error("No interface for address", "sw_if_index", uint32(rec.SwIfIndex))
					continue
				}
				pfx, ok := FromAPI(rec.Prefix)
				if !ok {
					log.Error("Invalid address in dump", "sw_if_index", uint32(rec.SwIfIndex), "af", rec.Prefix.Address.Af)
					continue
				}
				if !yield(Relation{Itf: itf, Prefix: pfx}) {
					return
				}
			}
		}, nil
	}
}

// ToAPI converts a prefix to the binary API form, keeping host bits.
func ToAPI(p netaddr.IPPrefix) ip_types.AddressWithPrefix {
	addr := p.IP()
	out := ip_types.AddressWithPrefix{Len: p.Bits()}
	if addr.Is4() {
		out.Address = ip_types.Address{
			Af: ip_types.ADDRESS_IP4,
			Un: ip_types.AddressUnionIP4(ip_types.IP4Address(addr.As4())),
		}
		return out
	}
	out.Address = ip_types.Address{
		Af: ip_types.ADDRESS_IP6,
		Un: ip_types.AddressUnionIP6(ip_types.IP6Address(addr.As16())),
	}
	return out
}

func FromAPI(p ip_types.AddressWithPrefix) (netaddr.IPPrefix, bool) {
	var addr netaddr.IP
	switch p.Address.Af {
	case ip_types.ADDRESS_IP4:
		addr = netaddr.IPFrom4(p.Address.Un.GetIP4())
	case ip_types.ADDRESS_IP6:
		addr = netaddr.IPFrom16(p.Address.Un.GetIP6())
	default:
		return netaddr.IPPrefix{}, false
	}
	pfx := netaddr.IPPrefixFrom(addr, p.Len)
	return pfx, pfx.IsValid()
}

// Cmd is sw_interface_add_del_address.
type Cmd struct {
	hw.StateCmd
	SwIfIndex hw.Handle
	Prefix    netaddr.IPPrefix
}

func (c *Cmd) String() string {
	return fmt.Sprintf("%s sw_if_index:%d prefix:%s", c.Describe("l3"), c.SwIfIndex, c.Prefix)
}

func (c *Cmd) Issue(ch api.Channel) hw.Pending {
	reply := &interfaces.SwInterfaceAddDelAddressReply{}
	wait := hw.SendRPC(ch, &interfaces.SwInterfaceAddDelAddress{
		SwIfIndex: interface_types.InterfaceIndex(c.SwIfIndex),
		IsAdd:     c.Bind,
		Prefix:    ToAPI(c.Prefix),
	}, reply)
	return func() error {
		if err := wait(); err != nil {
			return err
		}
		return hw.Retval(reply.Retval)
	}
}

// DumpCmd is ip_address_dump of one address family on every interface.
type DumpCmd struct {
	IPv6    bool
	Details []*ip.IPAddressDetails
	Err     error
}

func (c *DumpCmd) String() string {
	af := "ip4"
	if c.IPv6 {
		af = "ip6"
	}
	return fmt.Sprintf("l3-binding-dump: af:%s records:%d", af, len(c.Details))
}

func (c *DumpCmd) IsDump() bool { return true }

func (c *DumpCmd) Issue(ch api.Channel) hw.Pending {
	req := &ip.IPAddressDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
		IsIPv6:    c.IPv6,
	}
	return hw.SendDump(ch, req,
		func() *ip.IPAddressDetails { return &ip.IPAddressDetails{} },
		func(d *ip.IPAddressDetails) { c.Details = append(c.Details, d) })
}

func (c *DumpCmd) Complete(err error) { c.Err = err }
