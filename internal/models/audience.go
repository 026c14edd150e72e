package models

// AudienceScope is the coarse visibility tag of a shareable record
type AudienceScope string

const (
	ScopeFamily     AudienceScope = "family"
	ScopeRelatives  AudienceScope = "relatives"
	ScopeCaregivers AudienceScope = "caregivers"
	ScopeCustom     AudienceScope = "custom"
)

// Audience restricts who may see a record. A nil *Audience means every
// active member of the record's circle.
type Audience struct {
	Scope   AudienceScope `json:"scope"`
	UserIDs []int64       `json:"user_ids,omitempty"`
}

// Includes reports whether userID is listed explicitly.
func (a *Audience) Includes(userID int64) bool {
	for _, id := range a.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
