// Package types defines the wire types of the ringbridge HTTP API.
package types

// HealthResponse is the response from /api/v1/health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int64  `json:"uptime"`
	Online bool   `json:"modem_online"`
}

// StatsResponse is the response from /api/v1/stats
type StatsResponse struct {
	Online            bool `json:"modem_online"`
	Calls             int  `json:"calls"`
	ActiveCalls       int  `json:"active_calls"`
	HeldCalls         int  `json:"held_calls"`
	RingingCalls      int  `json:"ringing_calls"`
	Conferences       int  `json:"conferences"`
	ConferenceMembers int  `json:"conference_members"`
}

// Channel represents a call or conference channel
type Channel struct {
	ID              string   `json:"id"`
	Kind            string   `json:"kind"`
	Peer            string   `json:"peer,omitempty"`
	Direction       string   `json:"direction,omitempty"`
	State           string   `json:"state"`
	Hold            string   `json:"hold"`
	Conference      string   `json:"conference,omitempty"`
	Members         []string `json:"members,omitempty"`
	Emergency       bool     `json:"emergency,omitempty"`
	PendingRequests int      `json:"pending_requests,omitempty"`
	Stream          string   `json:"stream,omitempty"`
	Media           string   `json:"media,omitempty"`
	CallFlags       uint32   `json:"call_flags,omitempty"`
	GroupFlags      uint32   `json:"group_flags,omitempty"`
}

// DialRequest is the body of POST /api/v1/channels
type DialRequest struct {
	Target string `json:"target"`
	// Ensure returns an existing call to Target instead of dialing again.
	Ensure bool `json:"ensure,omitempty"`
	Video  bool `json:"video,omitempty"`
	// CLIR is "enabled", "disabled" or empty for the network default.
	CLIR string `json:"clir,omitempty"`
}

// DialResponse is the response to a dial
type DialResponse struct {
	Channel  string `json:"channel"`
	Existing bool   `json:"existing,omitempty"`
}

// ConferenceRequest is the body of POST /api/v1/conferences
type ConferenceRequest struct {
	Channels []string `json:"channels"`
}

// HangupRequest is the body of POST /api/v1/channels/{id}/hangup
type HangupRequest struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// RemoveRequest is the body of POST /api/v1/channels/{id}/remove
type RemoveRequest struct {
	Handle  string `json:"handle"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// HoldRequest is the body of POST /api/v1/channels/{id}/hold
type HoldRequest struct {
	Hold bool `json:"hold"`
}

// DTMFRequest is the body of POST /api/v1/channels/{id}/dtmf. Exactly one
// of Digits, Event or Stop is used.
type DTMFRequest struct {
	Digits string `json:"digits,omitempty"`
	Event  *int   `json:"event,omitempty"`
	Stop   bool   `json:"stop,omitempty"`
}

// MergeRequest is the body of POST /api/v1/channels/{conference}/merge
type MergeRequest struct {
	Channel string `json:"channel"`
}

// OperationResponse reports a completed channel operation
type OperationResponse struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Name is the fully-qualified modem error name, if the modem failed.
	Name string `json:"name,omitempty"`
}
