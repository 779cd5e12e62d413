package handlers

import (
	"radioqueue/internal/taskmanager"
)

type ConnectFailRegistrar interface {
	RegisterHandlers(handlers map[string]taskmanager.ConnectFailHandler)
}

// RegisterAllHandlers ...
func RegisterAllHandlers(
	r ConnectFailRegistrar,
	neverRetry []string,
) {
	handlers := make(map[string]taskmanager.ConnectFailHandler, len(neverRetry))
	for _, address := range neverRetry {
		if address == "" {
			continue
		}
		handlers[address] = NeverRetry
	}
	r.RegisterHandlers(handlers)
}
