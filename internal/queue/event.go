// Package queue publishes domain events to RabbitMQ.
package queue

// QueueVerificationRequested carries codes for the out-of-process WhatsApp/SMS sender.
const QueueVerificationRequested = "verification.requested"

// VerificationRequestedEvent is published when a client asks for a phone
// verification code. The sender worker delivers Code to Phone.
type VerificationRequestedEvent struct {
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	Phone         string `json:"phone"`
	Code          string `json:"code"`
	ExpiresAt     string `json:"expires_at"`
	ExpiryMinutes int    `json:"expiry_minutes"`
}
