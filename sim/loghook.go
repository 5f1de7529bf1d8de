package sim

import (
	"log"
)

// A LogHook is a hook that writes the events it observes into a logger.
type LogHook interface {
	Hook
}

// LogHookBase holds the logger that a LogHook writes to.
type LogHookBase struct {
	*log.Logger
}
