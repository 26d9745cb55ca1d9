package workflow

import "testing"

func TestParseCritiqueVerdict_Approved(t *testing.T) {
	v, err := ParseCritiqueVerdict(`{"status":"approved","reason":"looks good","critique":""}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Approved() {
		t.Fatalf("expected approved")
	}
}

func TestParseCritiqueVerdict_Rejected(t *testing.T) {
	v, err := ParseCritiqueVerdict(`{"status":"rejected","reason":"missing tests","critique":"add coverage"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Approved() {
		t.Fatalf("expected not approved")
	}
}

func TestParseCritiqueVerdict_InvalidStatus(t *testing.T) {
	_, err := ParseCritiqueVerdict(`{"status":"maybe","reason":"","critique":""}`)
	if err == nil {
		t.Fatalf("expected an error for an invalid status")
	}
	if _, ok := err.(*MalformedCritique); !ok {
		t.Fatalf("expected *MalformedCritique, got %T", err)
	}
}

func TestParseCritiqueVerdict_NotJSON(t *testing.T) {
	_, err := ParseCritiqueVerdict("not json at all")
	if err == nil {
		t.Fatalf("expected an error for non-JSON input")
	}
}
