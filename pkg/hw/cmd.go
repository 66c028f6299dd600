package hw

import (
	"fmt"

	"go.fd.io/govpp/api"
)

// Pending blocks until the reply for an issued command has been received.
type Pending func() error

// Cmd is one operation queued for the dataplane.
type Cmd interface {
	fmt.Stringer
	// Issue sends the request on ch without waiting for the reply.
	Issue(ch api.Channel) Pending
	// Complete records the outcome; err is nil on success.
	Complete(err error)
}

// Dump marks commands that only read dataplane state. They are issued even
// while writes are disabled.
type Dump interface {
	Cmd
	IsDump() bool
}

func isDump(cmd Cmd) bool {
	d, ok := cmd.(Dump)
	return ok && d.IsDump()
}

// StateCmd completes bind and unbind commands against the bound state of the
// object that queued them.
type StateCmd struct {
	Item *Item[bool]
	Bind bool
	Err  error
}

func (c *StateCmd) Complete(err error) {
	c.Err = err
	switch {
	case err != nil:
		c.Item.Set(RCFailed)
	case c.Bind:
		c.Item.Update(true, RCOK)
	default:
		c.Item.Update(false, RCNoop)
	}
}

func (c *StateCmd) op() string {
	if c.Bind {
		return "bind"
	}
	return "unbind"
}

// Describe formats a bind/unbind command for logs and dumps.
func (c *StateCmd) Describe(what string) string {
	s := fmt.Sprintf("%s-%s: %s", what, c.op(), c.Item.String())
	if c.Err != nil {
		s += " error:" + c.Err.Error()
	}
	return s
}

// SendRPC sends a single request whose reply is decoded into reply.
func SendRPC(ch api.Channel, req, reply api.Message) Pending {
	reqCtx := ch.SendRequest(req)
	return func() error {
		return reqCtx.ReceiveReply(reply)
	}
}

// SendDump sends a dump request and hands every details message to each.
func SendDump[D api.Message](ch api.Channel, req api.Message, newDetails func() D, each func(D)) Pending {
	reqCtx := ch.SendMultiRequest(req)
	return func() error {
		for {
			details := newDetails()
			stop, err := reqCtx.ReceiveReply(details)
			if stop {
				return nil
			}
			if err != nil {
				return err
			}
			each(details)
		}
	}
}

// Retval turns a reply retval into an error.
func Retval(retval int32) error {
	return api.RetvalToVPPApiError(retval)
}
