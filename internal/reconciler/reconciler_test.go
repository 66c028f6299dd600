package reconciler

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vppacl "go.fd.io/govpp/binapi/acl"
	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/core"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppom/pkg/acl"
	"github.com/veesix-networks/vppom/pkg/config"
	"github.com/veesix-networks/vppom/pkg/events"
	"github.com/veesix-networks/vppom/pkg/events/local"
	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/ifmgr"
	"github.com/veesix-networks/vppom/pkg/l3"
)

// dataplane answers dumps with a fixed state: eth0 has web bound on input
// and 10.0.0.1/24, eth1 has ssh bound on output.
func dataplane(cmd hw.Cmd) error {
	switch dump := cmd.(type) {
	case *ifmgr.DumpCmd:
		dump.Details = append(dump.Details,
			&interfaces.SwInterfaceDetails{SwIfIndex: 1, SupSwIfIndex: 1, InterfaceName: "eth0"},
			&interfaces.SwInterfaceDetails{SwIfIndex: 2, SupSwIfIndex: 2, InterfaceName: "eth1"},
		)
	case *acl.ListDumpCmd:
		dump.Details = append(dump.Details,
			&vppacl.ACLDetails{ACLIndex: 0, Tag: "web"},
			&vppacl.ACLDetails{ACLIndex: 1, Tag: "ssh"},
		)
	case *acl.MACIPListDumpCmd:
		dump.Details = append(dump.Details, &vppacl.MacipACLDetails{ACLIndex: 0, Tag: "hosts"})
	case *acl.L3DumpCmd:
		dump.Details = append(dump.Details,
			&vppacl.ACLInterfaceListDetails{SwIfIndex: 1, Count: 1, NInput: 1, Acls: []uint32{0}},
			&vppacl.ACLInterfaceListDetails{SwIfIndex: 2, Count: 1, NInput: 0, Acls: []uint32{1}},
		)
	case *l3.DumpCmd:
		if !dump.IPv6 {
			dump.Details = append(dump.Details, &ip.IPAddressDetails{
				SwIfIndex: 1,
				Prefix:    l3.ToAPI(netaddr.MustParseIPPrefix("10.0.0.1/24")),
			})
		}
	}
	return nil
}

type desired struct {
	mu sync.Mutex
	b  config.Bindings
}

func (d *desired) set(b config.Bindings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.b = b
}

func (d *desired) source() (config.Bindings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.b, nil
}

func wanted() config.Bindings {
	return config.Bindings{
		ACL: []config.ACLBinding{
			{Interface: "eth0", Direction: "input", ACL: "web"},
			{Interface: "eth9", Direction: "input", ACL: "web"},
		},
		MACIP: []config.MACIPBinding{
			{Interface: "eth1", ACL: "hosts"},
		},
		Prefixes: []config.PrefixBinding{
			{Interface: "eth0", Prefix: "10.0.0.1/24"},
			{Interface: "eth1", Prefix: "192.0.2.1/24"},
		},
	}
}

func binds[T hw.Cmd](q *hw.MockQueue, bind bool) int {
	n := 0
	for _, c := range hw.IssuedOf[T](q) {
		if isBind(c) == bind {
			n++
		}
	}
	return n
}

func isBind(cmd hw.Cmd) bool {
	switch c := cmd.(type) {
	case *acl.L3Cmd:
		return c.Bind
	case *acl.L2Cmd:
		return c.Bind
	case *l3.Cmd:
		return c.Bind
	}
	return false
}

func TestStartReconcilesAgainstDataplane(t *testing.T) {
	ctx := context.Background()
	q := hw.NewMockQueue()
	q.Respond = dataplane
	stack := NewStack(q)
	d := &desired{b: wanted()}

	c := New(stack, d.source, nil, nil)
	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx)

	assert.Equal(t, 0, binds[*acl.L3Cmd](q, true), "eth0 input web was imported")
	assert.Equal(t, 1, binds[*acl.L3Cmd](q, false), "eth1 output ssh is not configured")
	assert.Equal(t, 1, binds[*acl.L2Cmd](q, true))
	assert.Equal(t, 1, binds[*l3.Cmd](q, true), "only 192.0.2.1/24 is new")
	assert.Equal(t, 0, binds[*l3.Cmd](q, false))

	_, ok := stack.ACL.Find(acl.Key{Direction: acl.Output, Itf: "eth1"})
	assert.False(t, ok)
	assert.Equal(t, 1, stack.ACL.Len())
	assert.Equal(t, 2, stack.Prefixes.Len())

	var buf bytes.Buffer
	require.NoError(t, stack.Dump(&buf))
	assert.Contains(t, buf.String(), "# l3-acl (1)")
	assert.Contains(t, buf.String(), "l2-acl-binding:[input itf:eth1:2 acl:hosts:0")
}

func TestSyncReportsUnresolvedBindings(t *testing.T) {
	q := hw.NewMockQueue()
	q.Respond = dataplane
	d := &desired{b: wanted()}

	err := New(NewStack(q), d.source, nil, nil).Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown interface eth9")
}

func TestReloadSweepsRemovedBindings(t *testing.T) {
	ctx := context.Background()
	q := hw.NewMockQueue()
	q.Respond = dataplane
	stack := NewStack(q)
	d := &desired{b: wanted()}
	c := New(stack, d.source, nil, nil)
	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx)
	q.Reset()

	next := wanted()
	next.Prefixes = nil
	d.set(next)

	require.Error(t, c.Reload(ctx), "eth9 still unresolved")
	assert.Equal(t, 2, binds[*l3.Cmd](q, false))
	assert.Equal(t, 0, binds[*acl.L3Cmd](q, true))
	assert.Equal(t, 0, stack.Prefixes.Len())
	assert.Equal(t, 1, stack.MACIP.Len())
}

func TestReplayOnReconnect(t *testing.T) {
	ctx := context.Background()
	q := hw.NewMockQueue()
	q.Respond = dataplane
	stack := NewStack(q)
	d := &desired{b: wanted()}

	bus := local.NewBus(16)
	defer bus.Close()
	var mu sync.Mutex
	var seen []string
	bus.SubscribeAll(func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Type)
	})

	conn := make(chan core.ConnectionEvent, 2)
	c := New(stack, d.source, bus, conn)
	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx)
	q.Reset()

	conn <- core.ConnectionEvent{Timestamp: time.Now(), State: core.Disconnected}
	conn <- core.ConnectionEvent{Timestamp: time.Now(), State: core.Connected}

	require.Eventually(t, func() bool {
		return binds[*l3.Cmd](q, true) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, binds[*acl.L3Cmd](q, true))
	assert.Equal(t, 1, binds[*acl.L2Cmd](q, true))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2 &&
			slices.Contains(seen, events.TopicPopulate) &&
			slices.Contains(seen, events.TopicReplay)
	}, time.Second, 10*time.Millisecond)
}

// faultyQueue loses the dataplane connection on demand.
type faultyQueue struct {
	*hw.MockQueue
	down atomic.Bool
}

func (q *faultyQueue) Write(ctx context.Context) error {
	err := q.MockQueue.Write(ctx)
	if q.down.Load() {
		return hw.ErrUnavailable
	}
	return err
}

func TestFailedReplayIsPublished(t *testing.T) {
	ctx := context.Background()
	q := &faultyQueue{MockQueue: hw.NewMockQueue()}
	q.Respond = dataplane
	stack := NewStack(q)
	d := &desired{b: wanted()}

	bus := local.NewBus(16)
	defer bus.Close()
	replays := make(chan events.ReplayEvent, 1)
	bus.Subscribe(events.TopicReplay, func(ev events.Event) {
		replays <- ev.Data.(events.ReplayEvent)
	})

	conn := make(chan core.ConnectionEvent, 2)
	c := New(stack, d.source, bus, conn)
	require.NoError(t, c.Start(ctx))
	defer c.Stop(ctx)
	require.Equal(t, 1, stack.MACIP.Len())

	q.Respond = func(hw.Cmd) error { return hw.ErrUnavailable }
	q.down.Store(true)
	conn <- core.ConnectionEvent{Timestamp: time.Now(), State: core.Disconnected}
	conn <- core.ConnectionEvent{Timestamp: time.Now(), State: core.Connected}

	select {
	case ev := <-replays:
		assert.Contains(t, ev.Error, hw.ErrUnavailable.Error())
	case <-time.After(time.Second):
		t.Fatal("no replay event")
	}
	assert.Equal(t, 0, stack.MACIP.Stats().Bound)
	assert.Equal(t, 1, stack.MACIP.Stats().Failed)
}
