package acl

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"go.fd.io/govpp/api"
	vppacl "go.fd.io/govpp/binapi/acl"
	"go.fd.io/govpp/binapi/interface_types"

	"github.com/veesix-networks/vppom/pkg/binding"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/ifmgr"
	"github.com/veesix-networks/vppom/pkg/logger"
)

// Key identifies an ACL binding. The bound list is not part of it: binding
// another list to the same interface and direction needs the existing binding
// to be released first.
type Key struct {
	Direction Direction
	Itf       string
}

func (k Key) String() string {
	return fmt.Sprintf("[%s %s]", k.Direction, k.Itf)
}

func compareKey(a, b Key) int {
	if c := cmp.Compare(a.Direction, b.Direction); c != 0 {
		return c
	}
	return strings.Compare(a.Itf, b.Itf)
}

// L3Relation binds an L3 ACL to an interface in one direction.
type L3Relation struct {
	Direction Direction
	Itf       *ifmgr.Interface
	ACL       *List
}

func (r L3Relation) Key() Key {
	return Key{Direction: r.Direction, Itf: r.Itf.Key()}
}

func (r L3Relation) Equal(o L3Relation) bool {
	return r.Key() == o.Key() && r.ACL.Key() == o.ACL.Key()
}

func (r L3Relation) String() string {
	return fmt.Sprintf("%s itf:%s acl:%s", r.Direction, r.Itf, r.ACL)
}

func (r L3Relation) BindCmd(item *hw.Item[bool]) hw.Cmd {
	return r.cmd(item, true)
}

func (r L3Relation) UnbindCmd(item *hw.Item[bool]) hw.Cmd {
	return r.cmd(item, false)
}

func (r L3Relation) cmd(item *hw.Item[bool], bind bool) *L3Cmd {
	return &L3Cmd{
		StateCmd:  hw.StateCmd{Item: item, Bind: bind},
		Direction: r.Direction,
		SwIfIndex: r.Itf.Handle(),
		ACLIndex:  r.ACL.Handle(),
	}
}

// L2Relation binds a MACIP ACL to an interface. MACIP ACLs only apply on
// input.
type L2Relation struct {
	Itf *ifmgr.Interface
	ACL *List
}

func (r L2Relation) Key() Key {
	return Key{Direction: Input, Itf: r.Itf.Key()}
}

func (r L2Relation) Equal(o L2Relation) bool {
	return r.Key() == o.Key() && r.ACL.Key() == o.ACL.Key()
}

func (r L2Relation) String() string {
	return fmt.Sprintf("%s itf:%s acl:%s", Input, r.Itf, r.ACL)
}

func (r L2Relation) BindCmd(item *hw.Item[bool]) hw.Cmd {
	return r.cmd(item, true)
}

func (r L2Relation) UnbindCmd(item *hw.Item[bool]) hw.Cmd {
	return r.cmd(item, false)
}

func (r L2Relation) cmd(item *hw.Item[bool], bind bool) *L2Cmd {
	return &L2Cmd{
		StateCmd:  hw.StateCmd{Item: item, Bind: bind},
		SwIfIndex: r.Itf.Handle(),
		ACLIndex:  r.ACL.Handle(),
	}
}

type (
	L3Binding  = binding.Binding[Key, L3Relation]
	L3Bindings = binding.Manager[Key, L3Relation]
	L2Binding  = binding.Binding[Key, L2Relation]
	L2Bindings = binding.Manager[Key, L2Relation]
)

// NewL3Bindings returns the L3 ACL binding flavour. Populate resolves
// interfaces through ifs and lists through lists.
func NewL3Bindings(q hw.Channel, ifs *ifmgr.Manager, lists *Lists) *L3Bindings {
	return binding.NewManager[Key, L3Relation]("l3-acl", q, compareKey, populateL3(q, ifs, lists))
}

// NewL2Bindings returns the MACIP ACL binding flavour.
func NewL2Bindings(q hw.Channel, ifs *ifmgr.Manager, lists *Lists) *L2Bindings {
	return binding.NewManager[Key, L2Relation]("l2-acl", q, compareKey, populateL2(q, ifs, lists))
}

func populateL3(q hw.Channel, ifs *ifmgr.Manager, lists *Lists) binding.PopulateFunc[L3Relation] {
	log := logger.Get(logger.ACL)
	return func(ctx context.Context) (iter.Seq[L3Relation], error) {
		cmd := &L3DumpCmd{}
		q.Enqueue(cmd)
		if err := q.Write(ctx); err != nil {
			return nil, err
		}
		if cmd.Err != nil {
			return nil, cmd.Err
		}

		return func(yield func(L3Relation) bool) {
			for _, rec := range cmd.Details {
				itf := ifs.Get(uint32(rec.SwIfIndex))
				if itf == nil {
					log.Error("No interface for ACL binding", "sw_if_index", uint32(rec.SwIfIndex))
					continue
				}
				// the first n_input entries are input, the rest output
				for i, index := range entries(rec.Acls, int(rec.Count)) {
					list := resolve(log, lists, itf, index)
					if list == nil {
						continue
					}
					dir := Output
					if i < int(rec.NInput) {
						dir = Input
					}
					if !yield(L3Relation{Direction: dir, Itf: itf, ACL: list}) {
						return
					}
				}
			}
		}, nil
	}
}

func populateL2(q hw.Channel, ifs *ifmgr.Manager, lists *Lists) binding.PopulateFunc[L2Relation] {
	log := logger.Get(logger.ACL)
	return func(ctx context.Context) (iter.Seq[L2Relation], error) {
		cmd := &L2DumpCmd{}
		q.Enqueue(cmd)
		if err := q.Write(ctx); err != nil {
			return nil, err
		}
		if cmd.Err != nil {
			return nil, cmd.Err
		}

		return func(yield func(L2Relation) bool) {
			for _, rec := range cmd.Details {
				itf := ifs.Get(uint32(rec.SwIfIndex))
				if itf == nil {
					log.Error("No interface for MACIP ACL binding", "sw_if_index", uint32(rec.SwIfIndex))
					continue
				}
				for _, index := range entries(rec.Acls, int(rec.Count)) {
					list := resolve(log, lists, itf, index)
					if list == nil {
						continue
					}
					if !yield(L2Relation{Itf: itf, ACL: list}) {
						return
					}
				}
			}
		}, nil
	}
}

// entries bounds acls by the record's count.
func entries(acls []uint32, count int) []uint32 {
	return acls[:min(count, len(acls))]
}

func resolve(log *slog.Logger, lists *Lists, itf *ifmgr.Interface, index uint32) *List {
	list := lists.Find(index)
	if list == nil {
		log.Error("No ACL for binding", "acl_index", index, "interface", itf.Name)
	}
	return list
}

// L3Cmd is acl_interface_add_del.
type L3Cmd struct {
	hw.StateCmd
	Direction Direction
	SwIfIndex hw.Handle
	ACLIndex  hw.Handle
}

func (c *L3Cmd) String() string {
	return fmt.Sprintf("%s %s sw_if_index:%d acl_index:%d", c.Describe("l3-acl"), c.Direction, c.SwIfIndex, c.ACLIndex)
}

func (c *L3Cmd) Issue(ch api.Channel) hw.Pending {
	reply := &vppacl.ACLInterfaceAddDelReply{}
	wait := hw.SendRPC(ch, &vppacl.ACLInterfaceAddDel{
		IsAdd:     c.Bind,
		IsInput:   c.Direction == Input,
		SwIfIndex: interface_types.InterfaceIndex(c.SwIfIndex),
		ACLIndex:  uint32(c.ACLIndex),
	}, reply)
	return func() error {
		if err := wait(); err != nil {
			return err
		}
		return hw.Retval(reply.Retval)
	}
}

// L2Cmd is macip_acl_interface_add_del.
type L2Cmd struct {
	hw.StateCmd
	SwIfIndex hw.Handle
	ACLIndex  hw.Handle
}

func (c *L2Cmd) String() string {
	return fmt.Sprintf("%s sw_if_index:%d acl_index:%d", c.Describe("l2-acl"), c.SwIfIndex, c.ACLIndex)
}

func (c *L2Cmd) Issue(ch api.Channel) hw.Pending {
	reply := &vppacl.MacipACLInterfaceAddDelReply{}
	wait := hw.SendRPC(ch, &vppacl.MacipACLInterfaceAddDel{
		IsAdd:     c.Bind,
		SwIfIndex: interface_types.InterfaceIndex(c.SwIfIndex),
		ACLIndex:  uint32(c.ACLIndex),
	}, reply)
	return func() error {
		if err := wait(); err != nil {
			return err
		}
		return hw.Retval(reply.Retval)
	}
}

// L3DumpCmd is acl_interface_list_dump for every interface.
type L3DumpCmd struct {
	Details []*vppacl.ACLInterfaceListDetails
	Err     error
}

func (c *L3DumpCmd) String() string {
	return fmt.Sprintf("l3-acl-binding-dump: records:%d", len(c.Details))
}

func (c *L3DumpCmd) IsDump() bool { return true }

func (c *L3DumpCmd) Issue(ch api.Channel) hw.Pending {
	req := &vppacl.ACLInterfaceListDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
	}
	return hw.SendDump(ch, req,
		func() *vppacl.ACLInterfaceListDetails { return &vppacl.ACLInterfaceListDetails{} },
		func(d *vppacl.ACLInterfaceListDetails) { c.Details = append(c.Details, d) })
}

func (c *L3DumpCmd) Complete(err error) { c.Err = err }

// L2DumpCmd is macip_acl_interface_list_dump for every interface.
type L2DumpCmd struct {
	Details []*vppacl.MacipACLInterfaceListDetails
	Err     error
}

func (c *L2DumpCmd) String() string {
	return fmt.Sprintf("l2-acl-binding-dump: records:%d", len(c.Details))
}

func (c *L2DumpCmd) IsDump() bool { return true }

func (c *L2DumpCmd) Issue(ch api.Channel) hw.Pending {
	req := &vppacl.MacipACLInterfaceListDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
	}
	return hw.SendDump(ch, req,
		func() *vppacl.MacipACLInterfaceListDetails { return &vppacl.MacipACLInterfaceListDetails{} },
		func(d *vppacl.MacipACLInterfaceListDetails) { c.Details = append(c.Details, d) })
}

func (c *L2DumpCmd) Complete(err error) { c.Err = err }
