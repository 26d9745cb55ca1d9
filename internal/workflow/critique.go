package workflow

import "encoding/json"

// CritiqueVerdict is the mandatory shape of the critique phase's final
// agent output (spec §4.5.4).
type CritiqueVerdict struct {
	Status   string `json:"status"` // "approved" or "rejected"
	Reason   string `json:"reason"`
	Critique string `json:"critique"`
}

// ParseCritiqueVerdict decodes raw into a verdict. A malformed critique
// (bad JSON, or a status other than approved/rejected) is reported as
// an error; the caller treats it as a failure with no state change
// (spec §4.5.4 "A malformed critique is treated as a failure").
func ParseCritiqueVerdict(raw string) (*CritiqueVerdict, error) {
	var v CritiqueVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	if v.Status != "approved" && v.Status != "rejected" {
		return nil, &MalformedCritique{Raw: raw}
	}
	return &v, nil
}

// MalformedCritique signals a critique output that doesn't fit the
// required shape.
type MalformedCritique struct {
	Raw string
}

func (e *MalformedCritique) Error() string { return "malformed critique output: " + e.Raw }

func (v *CritiqueVerdict) Approved() bool { return v.Status == "approved" }
