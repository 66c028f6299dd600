package hw

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.fd.io/govpp/api"
)

type fakeChannel struct {
	api.Channel
	closed bool
}

func (c *fakeChannel) Close() {
	c.closed = true
}

type fakeProvider struct {
	err   error
	opens int
	last  *fakeChannel
}

func (p *fakeProvider) NewAPIChannel() (api.Channel, error) {
	p.opens++
	if p.err != nil {
		return nil, p.err
	}
	p.last = &fakeChannel{}
	return p.last, nil
}

type fakeCmd struct {
	StateCmd
	name   string
	dump   bool
	reply  error
	order  *[]string
	issued bool
}

func (c *fakeCmd) String() string { return c.name }
func (c *fakeCmd) IsDump() bool   { return c.dump }

func (c *fakeCmd) Issue(ch api.Channel) Pending {
	c.issued = true
	*c.order = append(*c.order, "issue:"+c.name)
	return func() error {
		*c.order = append(*c.order, "reply:"+c.name)
		return c.reply
	}
}

func newFakeCmd(name string, order *[]string) *fakeCmd {
	item := NewItem(false, RCNoop)
	return &fakeCmd{
		StateCmd: StateCmd{Item: &item, Bind: true},
		name:     name,
		order:    order,
	}
}

func TestItemTruthyOnlyWhenOK(t *testing.T) {
	item := NewItem(true, RCNoop)
	assert.False(t, item.Ok())

	item.Set(RCFailed)
	assert.False(t, item.Ok())

	item.Set(RCOK)
	assert.True(t, item.Ok())
	assert.Equal(t, "hw-item:[rc:ok data:true]", item.String())
}

func TestStateCmdComplete(t *testing.T) {
	item := NewItem(false, RCNoop)

	bind := &StateCmd{Item: &item, Bind: true}
	bind.Complete(nil)
	assert.True(t, item.Ok())
	assert.True(t, item.Data())

	unbind := &StateCmd{Item: &item}
	unbind.Complete(nil)
	assert.Equal(t, RCNoop, item.RC())
	assert.False(t, item.Data())

	failed := &StateCmd{Item: &item, Bind: true}
	failed.Complete(errors.New("VPPApiError: No such entry (-6)"))
	assert.Equal(t, RCFailed, item.RC())
	assert.Contains(t, failed.Describe("acl"), "error:")
}

func TestQueuePipelinesInOrder(t *testing.T) {
	var order []string
	p := &fakeProvider{}
	q := NewQueue(p)

	a := newFakeCmd("a", &order)
	b := newFakeCmd("b", &order)
	b.reply = errors.New("rejected")

	q.Enqueue(a)
	q.Enqueue(b)
	require.NoError(t, q.Write(context.Background()))

	assert.Equal(t, []string{"issue:a", "issue:b", "reply:a", "reply:b"}, order)
	assert.Equal(t, RCOK, a.Item.RC())
	assert.Equal(t, RCFailed, b.Item.RC())

	m := q.Metrics()
	assert.Equal(t, uint64(2), m["issued"])
	assert.Equal(t, uint64(1), m["failed"])
	assert.Equal(t, uint64(0), m["queue_current"])
	require.NotNil(t, p.last)
	assert.True(t, p.last.closed)
}

func TestQueueEmptyWriteOpensNoChannel(t *testing.T) {
	p := &fakeProvider{}
	q := NewQueue(p)
	require.NoError(t, q.Write(context.Background()))
	assert.Equal(t, 0, p.opens)
}

func TestQueueDisabledRetiresWritesButIssuesDumps(t *testing.T) {
	var order []string
	q := NewQueue(&fakeProvider{})
	q.Disable()

	bind := newFakeCmd("bind", &order)
	dump := newFakeCmd("dump", &order)
	dump.dump = true

	q.Enqueue(bind)
	q.Enqueue(dump)
	require.NoError(t, q.Write(context.Background()))

	assert.False(t, bind.issued)
	assert.True(t, bind.Item.Ok())
	assert.True(t, dump.issued)
	assert.Equal(t, uint64(1), q.Metrics()["retired"])

	q.Enable()
	assert.True(t, q.Enabled())
}

func TestQueueChannelFault(t *testing.T) {
	var order []string
	q := NewQueue(&fakeProvider{err: errors.New("socket closed")})

	cmd := newFakeCmd("a", &order)
	q.Enqueue(cmd)

	err := q.Write(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, cmd.Err, ErrUnavailable)
	assert.Equal(t, RCFailed, cmd.Item.RC())
	assert.False(t, cmd.issued)
}

func TestMockQueueRecordsAndResponds(t *testing.T) {
	var order []string
	m := NewMockQueue()
	m.Respond = func(cmd Cmd) error {
		if cmd.String() == "bad" {
			return errors.New("rejected")
		}
		return nil
	}

	good := newFakeCmd("good", &order)
	bad := newFakeCmd("bad", &order)
	m.Enqueue(good)
	m.Enqueue(bad)
	assert.Equal(t, 2, m.Pending())
	require.NoError(t, m.Write(context.Background()))

	assert.Len(t, m.Issued, 2)
	assert.Len(t, IssuedOf[*fakeCmd](m), 2)
	assert.True(t, good.Item.Ok())
	assert.Equal(t, RCFailed, bad.Item.RC())
}
