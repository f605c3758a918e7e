package relay

import (
	"log/slog"

	"github.com/ferrovax/voicebridge/internal/models"
)

// Error texts delivered to clients. Both failures are recoverable: the
// sender's channel stays open.
const (
	errInvalidFormat     = "Invalid message format"
	errTargetUnreachable = "Target user not connected"
)

// CallLog is the slice of the ledger the router drives as a side effect
// of routing call-request and call-end messages.
type CallLog interface {
	CreateRecord(caller, callee string) (*models.CallRecord, error)
	MarkStatus(identityA, identityB, status string) error
}

// OfflineNotifier is told about call requests that could not be delivered
// because the callee has no live channel.
type OfflineNotifier interface {
	NotifyIncomingCall(from, to string)
}

// Router binds senders in the registry and forwards messages between
// identities. It never inspects negotiation payloads.
type Router struct {
	registry *Registry
	calls    CallLog
	notifier OfflineNotifier
	logger   *slog.Logger
}

func NewRouter(registry *Registry, calls CallLog, notifier OfflineNotifier, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		calls:    calls,
		notifier: notifier,
		logger:   logger,
	}
}

// Route processes one inbound payload from sender. Malformed input and
// unreachable recipients are answered on the sender's channel; neither is
// fatal to the connection.
func (r *Router) Route(payload []byte, sender *Client) {
	msg, err := models.ParseSignalingMessage(payload)
	if err != nil {
		r.logger.Debug("invalid message", "conn_id", sender.ID(), "error", err)
		r.replyError(sender, errInvalidFormat, "")
		return
	}

	// Uniform binding transition: any valid message carrying a from
	// identity binds (or rebinds) the sender's channel.
	if sender.Identity() != msg.From {
		r.registry.Bind(msg.From, sender)
		sender.setIdentity(msg.From)
		r.logger.Info("user connected", "user", msg.From, "conn_id", sender.ID())
	}

	if msg.Type == models.MessageRegister {
		return
	}
	if msg.To == "" {
		return
	}

	target, ok := r.registry.Resolve(msg.To)
	if !ok || !target.trySend(payload) {
		if ok {
			// Queue full or send channel closed: the channel is as good
			// as gone, close it and let its read pump unbind.
			target.closeConn()
		}
		r.logger.Debug("target unreachable", "from", msg.From, "to", msg.To, "type", msg.Type)
		r.replyError(sender, errTargetUnreachable, msg.To)
		if msg.Type == models.MessageCallRequest && r.notifier != nil {
			go r.notifier.NotifyIncomingCall(msg.From, msg.To)
		}
		return
	}

	// Ledger side effects apply only after a successful forward.
	switch msg.Type {
	case models.MessageCallRequest:
		if _, err := r.calls.CreateRecord(msg.From, msg.To); err != nil {
			r.logger.Error("failed to record call", "from", msg.From, "to", msg.To, "error", err)
		}
	case models.MessageCallEnd:
		if err := r.calls.MarkStatus(msg.From, msg.To, models.CallStatusCompleted); err != nil {
			r.logger.Error("failed to update call status", "from", msg.From, "to", msg.To, "error", err)
		}
	}
}

func (r *Router) replyError(sender *Client, text, targetUser string) {
	if !sender.trySend(models.ErrorMessage(text, targetUser)) {
		sender.closeConn()
	}
}
