package geocode

import "testing"

func TestPlaceQuery_JoinsPresentFieldsInOrder(t *testing.T) {
	p := Place{
		FeatureName: "Hauptbahnhof",
		Locality:    "Frankfurt",
		Region:      "Hessen",
		Country:     "Germany",
	}
	want := "Hauptbahnhof,Frankfurt,Hessen,Germany"
	if got := p.Query(); got != want {
		t.Fatalf("Query() = %q, want %q", got, want)
	}
}

func TestPlaceQuery_AllFields(t *testing.T) {
	p := Place{
		FeatureName: "Alte Oper",
		Street:      "Opernplatz",
		Locality:    "Frankfurt",
		PostalCode:  "60313",
		Subregion:   "Darmstadt",
		Region:      "Hessen",
		Country:     "Germany",
	}
	want := "Alte Oper,Opernplatz,Frankfurt,60313,Darmstadt,Hessen,Germany"
	if got := p.Query(); got != want {
		t.Fatalf("Query() = %q, want %q", got, want)
	}
}

func TestDisplayName_PrefersLocalityStreetNumber(t *testing.T) {
	p := Place{
		FeatureName: "Some Feature",
		Locality:    "Mannheim",
		Street:      "Bismarckstr.",
		HouseNumber: "10",
	}
	name, ok := p.DisplayName()
	if !ok || name != "Mannheim, Bismarckstr. 10" {
		t.Fatalf("DisplayName() = (%q, %v)", name, ok)
	}
}

func TestDisplayName_FallsBackToFeatureName(t *testing.T) {
	p := Place{FeatureName: "Golden Gate Bridge", Locality: "San Francisco"}
	name, ok := p.DisplayName()
	if !ok || name != "Golden Gate Bridge" {
		t.Fatalf("DisplayName() = (%q, %v)", name, ok)
	}
}

func TestDisplayName_NothingAvailable(t *testing.T) {
	if name, ok := (Place{}).DisplayName(); ok {
		t.Fatalf("DisplayName() on empty place = (%q, true)", name)
	}
}
