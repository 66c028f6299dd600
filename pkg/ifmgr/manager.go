package ifmgr

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go.fd.io/govpp/api"
	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/interface_types"

	"github.com/veesix-networks/vppom/pkg/hw"
	"github.com/veesix-networks/vppom/pkg/logger"
	"github.com/veesix-networks/vppom/pkg/om"
)

// Manager is the store of known interfaces. Bindings resolve interfaces
// through it; it never programs the dataplane.
type Manager struct {
	mu          sync.RWMutex
	bySwIfIndex map[uint32]*Interface
	byName      map[string]*Interface
	q           hw.Channel
	logger      *slog.Logger
}

var _ om.Listener = (*Manager)(nil)

func New(q hw.Channel) *Manager {
	return &Manager{
		bySwIfIndex: make(map[uint32]*Interface),
		byName:      make(map[string]*Interface),
		q:           q,
		logger:      logger.Get(logger.Interface),
	}
}

func (m *Manager) Add(iface *Interface) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.bySwIfIndex[iface.SwIfIndex]; ok && old.Name != iface.Name {
		delete(m.byName, old.Name)
	}
	m.bySwIfIndex[iface.SwIfIndex] = iface
	if iface.Name != "" {
		m.byName[iface.Name] = iface
	}
}

func (m *Manager) Remove(swIfIndex uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iface, ok := m.bySwIfIndex[swIfIndex]; ok {
		delete(m.bySwIfIndex, swIfIndex)
		if iface.Name != "" {
			delete(m.byName, iface.Name)
		}
	}
}

func (m *Manager) Get(swIfIndex uint32) *Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.bySwIfIndex[swIfIndex]
}

func (m *Manager) GetByName(name string) *Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if iface, ok := m.byName[name]; ok {
		return iface
	}
	return m.byName["host-"+name]
}

// List returns every interface ordered by sw_if_index.
func (m *Manager) List() []*Interface {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Interface, 0, len(m.bySwIfIndex))
	for _, iface := range m.bySwIfIndex {
		result = append(result, iface)
	}
	slices.SortFunc(result, func(a, b *Interface) int {
		return int(a.SwIfIndex) - int(b.SwIfIndex)
	})
	return result
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bySwIfIndex = make(map[uint32]*Interface)
	m.byName = make(map[string]*Interface)
}

func (m *Manager) Name() string {
	return "interface"
}

func (m *Manager) Order() om.Dependency {
	return om.DependencyInterface
}

// HandlePopulate reloads the store from sw_interface_dump. Interfaces are not
// committed to scope: they are owned by the dataplane.
func (m *Manager) HandlePopulate(ctx context.Context, scope om.ClientKey, c om.Committer) error {
	cmd := &DumpCmd{}
	m.q.Enqueue(cmd)
	if err := m.q.Write(ctx); err != nil {
		return err
	}
	if cmd.Err != nil {
		return fmt.Errorf("dump interfaces: %w", cmd.Err)
	}

	m.Clear()
	for _, d := range cmd.Details {
		m.Add(fromDetails(d))
	}
	m.logger.Info("Loaded interfaces", "count", len(cmd.Details))
	return nil
}

// HandleReplay does nothing: interfaces are not created through this store.
func (m *Manager) HandleReplay(ctx context.Context) error {
	return nil
}

func fromDetails(d *interfaces.SwInterfaceDetails) *Interface {
	iface := &Interface{
		SwIfIndex:    uint32(d.SwIfIndex),
		SupSwIfIndex: d.SupSwIfIndex,
		Name:         strings.TrimRight(d.InterfaceName, "\x00"),
		DevType:      strings.TrimRight(d.InterfaceDevType, "\x00"),
		Type:         IfType(d.Type),
		AdminUp:      d.Flags&interface_types.IF_STATUS_API_FLAG_ADMIN_UP != 0,
		LinkUp:       d.Flags&interface_types.IF_STATUS_API_FLAG_LINK_UP != 0,
		MAC:          slices.Clone(d.L2Address[:]),
		Tag:          strings.TrimRight(d.Tag, "\x00"),
	}
	if len(d.Mtu) > 0 {
		iface.MTU = d.Mtu[0]
	}
	return iface
}

// DumpCmd is sw_interface_dump for every interface.
type DumpCmd struct {
	Details []*interfaces.SwInterfaceDetails
	Err     error
}

func (c *DumpCmd) String() string {
	return fmt.Sprintf("interface-dump: records:%d", len(c.Details))
}

func (c *DumpCmd) IsDump() bool { return true }

func (c *DumpCmd) Issue(ch api.Channel) hw.Pending {
	req := &interfaces.SwInterfaceDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
	}
	return hw.SendDump(ch, req,
		func() *interfaces.SwInterfaceDetails { return &interfaces.SwInterfaceDetails{} },
		func(d *interfaces.SwInterfaceDetails) { c.Details = append(c.Details, d) })
}

func (c *DumpCmd) Complete(err error) {
	c.Err = err
}
