package models

import (
	"strings"
	"time"
)

// Traffic event actions. The redirect action represents a visitor that
// was sent through to the campaign target. Everything in the safe_page
// family represents a request that was filtered to a safe page instead,
// with the suffix naming the reason.
const (
	ActionRedirect = "redirect"

	ActionSafePage             = "safe_page"
	ActionSafePageInactive     = "safe_page_inactive"
	ActionSafePageWrongCountry = "safe_page_wrong_country"
	ActionSafePageMissingParam = "safe_page_missing_param"
	ActionSafePageWrongParam   = "safe_page_wrong_param_val"
)

// IsSafeAction reports whether an action belongs to the safe_page family.
func IsSafeAction(action string) bool {
	return strings.HasPrefix(action, ActionSafePage)
}

// TrafficEvent is a single immutable traffic log row. Events are written
// by the gateway; this service only reads them.
type TrafficEvent struct {
	ID         int64     `json:"id"`
	CampaignID string    `json:"campaign_id"`
	DomainID   string    `json:"domain_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Country    string    `json:"country"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	OSName     string    `json:"os_name,omitempty"`
	BrowserName string   `json:"browser_name,omitempty"`
	Action     string    `json:"action"`
	Referer    string    `json:"referer,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Meta is decoded from the packed Referer column when the event is
	// included in a report. It is never persisted.
	Meta *EventMeta `json:"meta,omitempty"`
}

// EventMeta is the structured metadata the gateway packs into the
// referer column as "ref=... | url=... | detail=..." segments.
type EventMeta struct {
	Referrer   string `json:"referrer,omitempty"`
	RequestURL string `json:"request_url,omitempty"`
	Detail     string `json:"detail,omitempty"`
}
