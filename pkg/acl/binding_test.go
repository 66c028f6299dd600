package acl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vppacl "go.fd.io/govpp/binapi/acl"

	"github.com/veesix-networks/vppom/pkg/binding"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/ifmgr"
	"github.com/veesix-networks/vppom/pkg/om"
)

type fixture struct {
	q     *hw.MockQueue
	model *om.Model
	ifs   *ifmgr.Manager
	lists *Lists
	l3    *L3Bindings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	q := hw.NewMockQueue()
	f := &fixture{
		q:     q,
		model: om.New(q),
		ifs:   ifmgr.New(q),
		lists: NewLists(KindL3, q),
	}
	f.ifs.Add(&ifmgr.Interface{SwIfIndex: 1, Name: "eth0"})
	f.ifs.Add(&ifmgr.Interface{SwIfIndex: 3, Name: "eth2"})
	for i, tag := range []string{"a", "b", "c", "d", "e"} {
		f.lists.Add(&List{Index: uint32(10 + i), Tag: tag})
	}
	f.l3 = NewL3Bindings(q, f.ifs, f.lists)
	f.model.Register(f.l3)
	return f
}

func (f *fixture) respondL3(records ...*vppacl.ACLInterfaceListDetails) {
	f.q.Respond = func(cmd hw.Cmd) error {
		if dump, ok := cmd.(*L3DumpCmd); ok {
			dump.Details = append(dump.Details, records...)
		}
		return nil
	}
}

func TestPopulateSkipsUnknownInterface(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.respondL3(
		&vppacl.ACLInterfaceListDetails{SwIfIndex: 1, Count: 1, NInput: 1, Acls: []uint32{10}},
		&vppacl.ACLInterfaceListDetails{SwIfIndex: 2, Count: 1, NInput: 1, Acls: []uint32{11}},
		&vppacl.ACLInterfaceListDetails{SwIfIndex: 3, Count: 1, NInput: 0, Acls: []uint32{12}},
	)

	require.NoError(t, f.model.Populate(ctx, "boot"))

	all := f.l3.All()
	require.Len(t, all, 2)
	assert.Equal(t, Key{Direction: Input, Itf: "eth0"}, all[0].Key())
	assert.Equal(t, Key{Direction: Output, Itf: "eth2"}, all[1].Key())
	for _, b := range all {
		assert.Equal(t, binding.StateBound, b.State())
	}
	assert.Empty(t, hw.IssuedOf[*L3Cmd](f.q), "imported bindings are not written back")
}

func TestPopulateSkipsUnknownACL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.respondL3(
		&vppacl.ACLInterfaceListDetails{SwIfIndex: 1, Count: 2, NInput: 1, Acls: []uint32{99, 11}},
	)

	require.NoError(t, f.model.Populate(ctx, "boot"))

	all := f.l3.All()
	require.Len(t, all, 1)
	assert.Equal(t, Output, all[0].Key().Direction, "position decides the direction")
	assert.Equal(t, "b", all[0].Relation().ACL.Key())
}

func TestPopulateSplitsByInputCount(t *testing.T) {
	f := newFixture(t)
	f.respondL3(
		&vppacl.ACLInterfaceListDetails{SwIfIndex: 1, Count: 5, NInput: 2, Acls: []uint32{10, 11, 12, 13, 14}},
	)

	rels, err := populateL3(f.q, f.ifs, f.lists)(context.Background())
	require.NoError(t, err)

	var in, out []string
	for rel := range rels {
		if rel.Direction == Input {
			in = append(in, rel.ACL.Key())
		} else {
			out = append(out, rel.ACL.Key())
		}
	}
	assert.Equal(t, []string{"a", "b"}, in)
	assert.Equal(t, []string{"c", "d", "e"}, out)
}

func TestPopulateBoundsEntriesByCount(t *testing.T) {
	f := newFixture(t)
	f.respondL3(
		&vppacl.ACLInterfaceListDetails{SwIfIndex: 1, Count: 1, NInput: 1, Acls: []uint32{10, 11}},
	)

	rels, err := populateL3(f.q, f.ifs, f.lists)(context.Background())
	require.NoError(t, err)

	n := 0
	for range rels {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestPopulateDumpFailure(t *testing.T) {
	f := newFixture(t)
	f.q.Respond = func(hw.Cmd) error { return errors.New("VPPApiError: Unsupported (-30)") }

	err := f.model.Populate(context.Background(), "boot")
	require.Error(t, err)
	assert.Equal(t, 0, f.l3.Len())
}

func TestCommitIssuesAddDel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rel := L3Relation{Direction: Output, Itf: f.ifs.GetByName("eth2"), ACL: f.lists.FindByKey("c")}

	b, err := f.l3.Commit(ctx, f.model, "config", rel)
	require.NoError(t, err)
	assert.Equal(t, binding.StateBound, b.State())
	assert.Equal(t, "l3-acl-binding:[output itf:eth2:3 acl:c:12 hw-item:[rc:ok data:true]]", b.String())

	f.model.Remove(ctx, "config")

	cmds := hw.IssuedOf[*L3Cmd](f.q)
	require.Len(t, cmds, 2)
	assert.True(t, cmds[0].Bind)
	assert.False(t, cmds[1].Bind)
	for _, c := range cmds {
		assert.Equal(t, Output, c.Direction)
		assert.Equal(t, hw.Handle(3), c.SwIfIndex)
		assert.Equal(t, hw.Handle(12), c.ACLIndex)
	}
}

func TestCommitKeepsFirstList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	eth0 := f.ifs.GetByName("eth0")

	first, err := f.l3.Commit(ctx, f.model, "config", L3Relation{Direction: Input, Itf: eth0, ACL: f.lists.FindByKey("a")})
	require.NoError(t, err)
	second, err := f.l3.Commit(ctx, f.model, "config", L3Relation{Direction: Input, Itf: eth0, ACL: f.lists.FindByKey("b")})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "a", second.Relation().ACL.Key())
	assert.Len(t, hw.IssuedOf[*L3Cmd](f.q), 1)
}

func TestL2PopulateIsInputOnly(t *testing.T) {
	ctx := context.Background()
	q := hw.NewMockQueue()
	model := om.New(q)
	ifs := ifmgr.New(q)
	ifs.Add(&ifmgr.Interface{SwIfIndex: 1, Name: "eth0"})
	ifs.Add(&ifmgr.Interface{SwIfIndex: 2, Name: "eth1"})
	macip := NewLists(KindMACIP, q)
	macip.Add(&List{Index: 0, Tag: "hosts"})
	l2 := NewL2Bindings(q, ifs, macip)
	model.Register(l2)

	q.Respond = func(cmd hw.Cmd) error {
		if dump, ok := cmd.(*L2DumpCmd); ok {
			dump.Details = append(dump.Details,
				&vppacl.MacipACLInterfaceListDetails{SwIfIndex: 1, Count: 1, Acls: []uint32{0}},
				&vppacl.MacipACLInterfaceListDetails{SwIfIndex: 2, Count: 1, Acls: []uint32{7}},
			)
		}
		return nil
	}

	require.NoError(t, model.Populate(ctx, "boot"))

	all := l2.All()
	require.Len(t, all, 1)
	assert.Equal(t, Key{Direction: Input, Itf: "eth0"}, all[0].Key())

	model.Remove(ctx, "boot")
	unbind := hw.IssuedOf[*L2Cmd](q)
	require.Len(t, unbind, 1)
	assert.False(t, unbind[0].Bind)
	assert.Equal(t, hw.Handle(0), unbind[0].ACLIndex)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("Egress")
	require.NoError(t, err)
	assert.Equal(t, Output, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
	assert.Equal(t, "[input eth0]", Key{Direction: Input, Itf: "eth0"}.String())
}
