// Package events stores raffle lifecycle events in a transactional outbox.
// Downstream delivery (notifications, analytics) reads the outbox; this
// service only guarantees the row commits atomically with the draw.
package events

// Raffle event types written by the draw orchestrator.
const (
	EventRaffleCompleted = "raffle.completed"
	EventRaffleCancelled = "raffle.cancelled"
	EventRewardIssued    = "reward.issued"
)

// DrawCompletedPayload captures the minimal data a consumer needs to announce
// a winner.
type DrawCompletedPayload struct {
	RaffleID   string `json:"raffle_id"`
	WinnerID   string `json:"winner_id"`
	WinnerName string `json:"winner_name"`
	Title      string `json:"title"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p DrawCompletedPayload) ToMap() map[string]any {
	return map[string]any{
		"raffle_id":   p.RaffleID,
		"winner_id":   p.WinnerID,
		"winner_name": p.WinnerName,
		"title":       p.Title,
	}
}

// RewardIssuedPayload captures the voucher grant for reward consumers.
type RewardIssuedPayload struct {
	RewardID  string `json:"reward_id"`
	RaffleID  string `json:"raffle_id"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p RewardIssuedPayload) ToMap() map[string]any {
	return map[string]any{
		"reward_id":  p.RewardID,
		"raffle_id":  p.RaffleID,
		"user_id":    p.UserID,
		"expires_at": p.ExpiresAt,
	}
}
