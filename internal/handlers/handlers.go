package handlers

import (
	"github.com/ferrovax/voicebridge/internal/config"
	"github.com/ferrovax/voicebridge/internal/ledger"
	"github.com/ferrovax/voicebridge/internal/push"
	"github.com/ferrovax/voicebridge/internal/relay"
	"github.com/ferrovax/voicebridge/internal/turn"

	"github.com/gorilla/websocket"
)

type Handlers struct {
	config     *config.Config
	turnServer *turn.Server
	calls      *ledger.Ledger
	registry   *relay.Registry
	relay      *relay.Relay
	notifier   *push.Notifier
	wsUpgrader websocket.Upgrader
}

func New(
	config *config.Config,
	turnServer *turn.Server,
	calls *ledger.Ledger,
	registry *relay.Registry,
	r *relay.Relay,
	notifier *push.Notifier,
	wsUpgrader websocket.Upgrader,
) *Handlers {
	return &Handlers{
		config:     config,
		turnServer: turnServer,
		calls:      calls,
		registry:   registry,
		relay:      r,
		notifier:   notifier,
		wsUpgrader: wsUpgrader,
	}
}
