package model

import "time"

// TimeLayout is the HH:MM layout of Envelope.Time.
const TimeLayout = "15:04"

// StatusOffline is the Envelope.Message sent when a client's last
// connection closes.
const StatusOffline = "Offline"

// StatusRateLimited is sent only to the offending connection.
const StatusRateLimited = "Rate limit exceeded"

// Envelope is the payload broadcast to every connection for one chat event,
// either a message or a presence change.
type Envelope struct {
	Time     string `json:"time"`
	ClientID int64  `json:"clientId"`
	Message  string `json:"message"`
}

// NewEnvelope stamps an Envelope with t formatted as HH:MM.
func NewEnvelope(t time.Time, clientID int64, message string) Envelope {
	return Envelope{
		Time:     t.Format(TimeLayout),
		ClientID: clientID,
		Message:  message,
	}
}
