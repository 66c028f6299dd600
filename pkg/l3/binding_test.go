package l3

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/binapi/ip_types"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppom/pkg/binding"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/ifmgr"
	"github.com/veesix-networks/vppom/pkg/om"
)

func TestAPIRoundTrip(t *testing.T) {
	for _, s := range []string{"10.0.0.1/24", "2001:db8::1/64"} {
		pfx := netaddr.MustParseIPPrefix(s)
		back, ok := FromAPI(ToAPI(pfx))
		require.True(t, ok)
		assert.Equal(t, pfx, back, s)
	}

	_, ok := FromAPI(ip_types.AddressWithPrefix{Address: ip_types.Address{Af: 7}})
	assert.False(t, ok)
}

func TestBindAndUnbindAddress(t *testing.T) {
	ctx := context.Background()
	q := hw.NewMockQueue()
	model := om.New(q)
	ifs := ifmgr.New(q)
	ifs.Add(&ifmgr.Interface{SwIfIndex: 4, Name: "eth0"})
	l3 := NewBindings(q, ifs)

	rel := Relation{Itf: ifs.GetByName("eth0"), Prefix: netaddr.MustParseIPPrefix("192.0.2.1/24")}
	b, err := l3.Commit(ctx, model, "config", rel)
	require.NoError(t, err)
	assert.Equal(t, binding.StateBound, b.State())

	found, ok := l3.Find(Key{Itf: "eth0", Prefix: netaddr.MustParseIPPrefix("192.0.2.1/24")})
	require.True(t, ok)
	assert.Same(t, b, found)

	model.Remove(ctx, "config")

	cmds := hw.IssuedOf[*Cmd](q)
	require.Len(t, cmds, 2)
	assert.True(t, cmds[0].Bind)
	assert.False(t, cmds[1].Bind)
	assert.Equal(t, hw.Handle(4), cmds[1].SwIfIndex)
	assert.Equal(t, "192.0.2.1/24", cmds[1].Prefix.String())
	assert.Equal(t, 0, l3.Len())
}

func TestPopulateFromAddressDump(t *testing.T) {
	ctx := context.Background()
	q := hw.NewMockQueue()
	q.Respond = func(cmd hw.Cmd) error {
		dump, ok := cmd.(*DumpCmd)
		if !ok {
			return nil
		}
		if dump.IPv6 {
			dump.Details = append(dump.Details, &ip.IPAddressDetails{
				SwIfIndex: 1,
				Prefix:    ToAPI(netaddr.MustParseIPPrefix("2001:db8::1/64")),
			})
			return nil
		}
		dump.Details = append(dump.Details,
			&ip.IPAddressDetails{SwIfIndex: 1, Prefix: ToAPI(netaddr.MustParseIPPrefix("10.0.0.1/24"))},
			&ip.IPAddressDetails{SwIfIndex: 9, Prefix: ToAPI(netaddr.MustParseIPPrefix("10.9.0.1/24"))},
		)
		return nil
	}
	model := om.New(q)
	ifs := ifmgr.New(q)
	ifs.Add(&ifmgr.Interface{SwIfIndex: 1, Name: "eth0"})
	l3 := NewBindings(q, ifs)
	model.Register(l3)

	require.NoError(t, model.Populate(ctx, "boot"))

	assert.Equal(t, 2, l3.Len())
	assert.Empty(t, hw.IssuedOf[*Cmd](q))
	assert.Len(t, hw.IssuedOf[*DumpCmd](q), 2)

	var buf bytes.Buffer
	require.NoError(t, l3.Dump(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "l3-binding:[itf:eth0:1 prefix:10.0.0.1/24 hw-item:[rc:ok data:true]]", lines[0])
	assert.Contains(t, lines[1], "2001:db8::1/64")
}

func TestKeyOrder(t *testing.T) {
	a := Key{Itf: "eth0", Prefix: netaddr.MustParseIPPrefix("10.0.0.1/24")}
	b := Key{Itf: "eth0", Prefix: netaddr.MustParseIPPrefix("10.0.0.1/32")}
	c := Key{Itf: "eth1", Prefix: netaddr.MustParseIPPrefix("1.1.1.1/32")}

	assert.Negative(t, compareKey(a, b))
	assert.Negative(t, compareKey(b, c))
	assert.Zero(t, compareKey(a, a))
	assert.Equal(t, "[eth0, 10.0.0.1/24]", a.String())
}
