package hw

// RC is the outcome of the last command issued for an object.
type RC int

const (
	// RCNoop means no command has been attempted.
	RCNoop RC = iota
	RCOK
	RCFailed
)

func (rc RC) String() string {
	switch rc {
	case RCNoop:
		return "noop"
	case RCOK:
		return "ok"
	case RCFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is an index assigned by the dataplane, e.g. a sw_if_index or an
// acl_index.
type Handle uint32

const InvalidHandle = Handle(^uint32(0))

func (h Handle) Valid() bool {
	return h != InvalidHandle
}
