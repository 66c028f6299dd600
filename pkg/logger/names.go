package logger

const (
	Main       = "main"
	OM         = "om"
	HW         = "hw"
	Interface  = "interface"
	ACL        = "acl"
	L3         = "l3"
	Binding    = "binding"
	Events     = "events"
	Journal    = "opdb"
	Metrics    = "metrics"
	Reconciler = "reconciler"
)
