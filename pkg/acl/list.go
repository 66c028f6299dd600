package acl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go.fd.io/govpp/api"
	vppacl "go.fd.io/govpp/binapi/acl"

	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/logger"
	"github.com/veesix-networks/vppom/pkg/om"
)

// Kind tells L3 ACLs and MACIP ACLs apart. Their index spaces are separate.
type Kind int

const (
	KindL3 Kind = iota
	KindMACIP
)

func (k Kind) String() string {
	if k == KindMACIP {
		return "macip"
	}
	return "l3"
}

// List is a policy list known to the dataplane.
type List struct {
	Index uint32
	Tag   string
	Rules int
}

// Key is the tag, or acl-<index> for untagged lists.
func (l *List) Key() string {
	if l.Tag != "" {
		return l.Tag
	}
	return fmt.Sprintf("acl-%d", l.Index)
}

func (l *List) Handle() hw.Handle {
	return hw.Handle(l.Index)
}

func (l *List) String() string {
	return fmt.Sprintf("%s:%d", l.Key(), l.Index)
}

// Lists is the store of one kind of policy list. Lists are created outside
// this process; the store is filled by populate or Add.
type Lists struct {
	kind    Kind
	mu      sync.RWMutex
	byIndex map[uint32]*List
	byKey   map[string]*List
	q       hw.Channel
	logger  *slog.Logger
}

var _ om.Listener = (*Lists)(nil)

func NewLists(kind Kind, q hw.Channel) *Lists {
	return &Lists{
		kind:    kind,
		byIndex: make(map[uint32]*List),
		byKey:   make(map[string]*List),
		q:       q,
		logger:  logger.Get(logger.ACL),
	}
}

func (s *Lists) Kind() Kind {
	return s.kind
}

func (s *Lists) Add(l *List) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byIndex[l.Index]; ok {
		delete(s.byKey, old.Key())
	}
	s.byIndex[l.Index] = l
	s.byKey[l.Key()] = l
}

// Find resolves a dataplane acl_index.
func (s *Lists) Find(index uint32) *List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIndex[index]
}

func (s *Lists) FindByKey(key string) *List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byKey[key]
}

func (s *Lists) List() []*List {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*List, 0, len(s.byIndex))
	for _, l := range s.byIndex {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *List) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return out
}

func (s *Lists) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIndex = make(map[uint32]*List)
	s.byKey = make(map[string]*List)
}

func (s *Lists) Name() string {
	return s.kind.String() + "-acl-list"
}

func (s *Lists) Order() om.Dependency {
	return om.DependencyACL
}

// HandlePopulate reloads the store from acl_dump or macip_acl_dump.
func (s *Lists) HandlePopulate(ctx context.Context, scope om.ClientKey, c om.Committer) error {
	var cmd interface {
		hw.Cmd
		lists() []*List
		err() error
	}
	if s.kind == KindMACIP {
		cmd = &MACIPListDumpCmd{}
	} else {
		cmd = &ListDumpCmd{}
	}

	s.q.Enqueue(cmd)
	if err := s.q.Write(ctx); err != nil {
		return err
	}
	if err := cmd.err(); err != nil {
		return fmt.Errorf("dump %s lists: %w", s.kind, err)
	}

	lists := cmd.lists()
	s.clear()
	for _, l := range lists {
		s.Add(l)
	}
	s.logger.Info("Loaded ACL lists", "kind", s.kind.String(), "count", len(lists))
	return nil
}

func (s *Lists) HandleReplay(ctx context.Context) error {
	return nil
}

// ListDumpCmd is acl_dump for every L3 ACL.
type ListDumpCmd struct {
	Details []*vppacl.ACLDetails
	Err     error
}

func (c *ListDumpCmd) String() string {
	return fmt.Sprintf("acl-list-dump: records:%d", len(c.Details))
}

func (c *ListDumpCmd) IsDump() bool { return true }

func (c *ListDumpCmd) Issue(ch api.Channel) hw.Pending {
	return hw.SendDump(ch, &vppacl.ACLDump{ACLIndex: ^uint32(0)},
		func() *vppacl.ACLDetails { return &vppacl.ACLDetails{} },
		func(d *vppacl.ACLDetails) { c.Details = append(c.Details, d) })
}

func (c *ListDumpCmd) Complete(err error) { c.Err = err }

func (c *ListDumpCmd) err() error { return c.Err }

func (c *ListDumpCmd) lists() []*List {
	out := make([]*List, 0, len(c.Details))
	for _, d := range c.Details {
		out = append(out, &List{
			Index: d.ACLIndex,
			Tag:   strings.TrimRight(d.Tag, "\x00"),
			Rules: len(d.R),
		})
	}
	return out
}

// MACIPListDumpCmd is macip_acl_dump for every MACIP ACL.
type MACIPListDumpCmd struct {
	Details []*vppacl.MacipACLDetails
	Err     error
}

func (c *MACIPListDumpCmd) String() string {
	return fmt.Sprintf("macip-acl-list-dump: records:%d", len(c.Details))
}

func (c *MACIPListDumpCmd) IsDump() bool { return true }

func (c *MACIPListDumpCmd) Issue(ch api.Channel) hw.Pending {
	return hw.SendDump(ch, &vppacl.MacipACLDump{ACLIndex: ^uint32(0)},
		func() *vppacl.MacipACLDetails { return &vppacl.MacipACLDetails{} },
		func(d *vppacl.MacipACLDetails) { c.Details = append(c.Details, d) })
}

func (c *MACIPListDumpCmd) Complete(err error) { c.Err = err }

func (c *MACIPListDumpCmd) err() error { return c.Err }

func (c *MACIPListDumpCmd) lists() []*List {
	out := make([]*List, 0, len(c.Details))
	for _, d := range c.Details {
		out = append(out, &List{
			Index: d.ACLIndex,
			Tag:   strings.TrimRight(d.Tag, "\x00"),
			Rules: len(d.R),
		})
	}
	return out
}
