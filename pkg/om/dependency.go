package om

// Dependency orders object kinds for populate and replay. A kind is only
// populated or replayed after every kind with a lower class.
type Dependency int

const (
	DependencyGlobal Dependency = iota
	DependencyInterface
	DependencyTable
	DependencyACL
	DependencyBinding
	DependencyEntry
)

func (d Dependency) String() string {
	switch d {
	case DependencyGlobal:
		return "global"
	case DependencyInterface:
		return "interface"
	case DependencyTable:
		return "table"
	case DependencyACL:
		return "acl"
	case DependencyBinding:
		return "binding"
	case DependencyEntry:
		return "entry"
	default:
		return "unknown"
	}
}
