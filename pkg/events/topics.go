package events

const (
	TopicBinding  = "vppom:events:binding"
	TopicPopulate = "vppom:events:populate"
	TopicReplay   = "vppom:events:replay"
)
