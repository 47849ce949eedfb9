package domain

import (
	"errors"
	"strings"
	"time"
)

// RelyingParty is a verifying entity keyed by an opaque external rp_id string.
type RelyingParty struct {
	ID          string
	RPID        string
	DisplayName string
	CreatedAt   time.Time
}

// Validate rejects rp_id values that would make the device-proof canonical
// message ambiguous.
func (rp *RelyingParty) Validate() error {
	if rp.RPID == "" {
		return errors.New("rp_id is required")
	}
	if strings.Contains(rp.RPID, "|") {
		return errors.New("rp_id must not contain '|'")
	}
	if rp.DisplayName == "" {
		return errors.New("display_name is required")
	}
	return nil
}
