package model

// ChargerType identifies a charger speed class.
type ChargerType string

const (
	ChargerRapid ChargerType = "rapid"
	ChargerFast  ChargerType = "fast"
	ChargerSlow  ChargerType = "slow"
)

// Preferences are optional user preferences. A nil *Preferences means the
// caller supplied none.
type Preferences struct {
	ChargerType ChargerType `json:"charger_type,omitempty"`
}

// WantsRapid reports whether p asks for a rapid charger. It is nil-safe.
func (p *Preferences) WantsRapid() bool {
	return p != nil && p.ChargerType == ChargerRapid
}
