package models

import (
	"time"
)

// Campaign is a tracked redirect campaign. Campaigns are owned by the
// admin service; this service only reads them to resolve reports. The
// creation time doubles as the lower bound of the "all time" window
// when a campaign has no traffic yet.
type Campaign struct {
	ID         string    `json:"id"`
	DomainID   string    `json:"domain_id,omitempty"`
	Name       string    `json:"name"`
	TargetURL  string    `json:"target_url"`
	ParamKey   string    `json:"param_key,omitempty"`
	ParamValue string    `json:"param_value,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
