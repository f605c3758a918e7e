package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ferrovax/voicebridge/internal/config"
	"github.com/ferrovax/voicebridge/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// Notifier stores Web Push subscriptions per identity and delivers
// incoming-call notifications to users without a live channel. Delivery
// is best effort and never influences routing.
type Notifier struct {
	db     *gorm.DB
	keys   *config.VAPIDKeys
	logger *slog.Logger
}

func New(db *gorm.DB, keys *config.VAPIDKeys, logger *slog.Logger) *Notifier {
	return &Notifier{
		db:     db,
		keys:   keys,
		logger: logger,
	}
}

// PublicKey returns the VAPID public key browsers need to subscribe.
func (n *Notifier) PublicKey() string {
	return n.keys.PublicKey
}

// Subscribe replaces the user's stored subscriptions with the given one.
// One subscription per user: the newest browser registration wins.
func (n *Notifier) Subscribe(userID, endpoint, p256dh, auth string) (*models.PushSubscription, error) {
	if err := n.db.Where("user_id = ?", userID).Delete(&models.PushSubscription{}).Error; err != nil {
		return nil, fmt.Errorf("delete old subscriptions: %w", err)
	}

	subscription := &models.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256DH:   p256dh,
		Auth:     auth,
	}
	if err := n.db.Create(subscription).Error; err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return subscription, nil
}

// Unsubscribe removes the subscription matching userID and endpoint.
func (n *Notifier) Unsubscribe(userID, endpoint string) error {
	result := n.db.
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return fmt.Errorf("delete subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// NotifyIncomingCall pushes an incoming-call notification to every
// subscription registered for to. Expired endpoints are pruned.
func (n *Notifier) NotifyIncomingCall(from, to string) {
	var subscriptions []models.PushSubscription
	if err := n.db.Where("user_id = ?", to).Find(&subscriptions).Error; err != nil {
		n.logger.Error("failed to load push subscriptions", "user", to, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title": "Incoming call",
		"body":  fmt.Sprintf("%s is calling you", from),
		"data":  map[string]string{"caller": from},
	})
	if err != nil {
		return
	}

	for _, sub := range subscriptions {
		resp, err := webpush.SendNotification(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256DH,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      n.keys.Subject,
			VAPIDPublicKey:  n.keys.PublicKey,
			VAPIDPrivateKey: n.keys.PrivateKey,
			TTL:             30,
			Urgency:         webpush.UrgencyHigh,
		})
		if err != nil {
			n.logger.Warn("push delivery failed", "user", to, "error", err)
			continue
		}
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			// Endpoint expired, drop the subscription.
			n.db.Delete(&models.PushSubscription{}, "id = ?", sub.ID)
		}
		_ = resp.Body.Close()
		n.logger.Debug("push delivered", "user", to, "status", resp.StatusCode)
	}
}
