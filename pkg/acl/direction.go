package acl

import (
	"fmt"
	"strings"
)

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "input", "in", "ingress":
		return Input, nil
	case "output", "out", "egress":
		return Output, nil
	}
	return 0, fmt.Errorf("invalid direction %q", s)
}
