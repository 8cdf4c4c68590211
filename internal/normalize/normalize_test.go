package normalize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gyeh/claimrisk/internal/model"
)

func strp(s string) *string { return &s }

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-15", "2024-03-15T00:00:00Z"},
		{"2024-03-15T14:30:00", "2024-03-15T14:30:00Z"},
		{"2024-03-15 14:30:00", "2024-03-15T14:30:00Z"},
		{"2024-03-15T14:30:00Z", "2024-03-15T14:30:00Z"},
		{"03/15/2024", "2024-03-15T00:00:00Z"},
		{"3/5/2024", "2024-03-05T00:00:00Z"},
		{"March 15, 2024", "2024-03-15T00:00:00Z"},
	}
	for _, tt := range tests {
		got := ParseDate(tt.in)
		if got == nil {
			t.Errorf("ParseDate(%q) = nil", tt.in)
			continue
		}
		if s := got.UTC().Format(time.RFC3339); s != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.in, s, tt.want)
		}
	}

	for _, bad := range []string{"", "   ", "not a date", "2024-13-45"} {
		if got := ParseDate(bad); got != nil {
			t.Errorf("ParseDate(%q) = %v, want nil", bad, got)
		}
	}
	if ParseOptDate(nil) != nil {
		t.Error("ParseOptDate(nil) should be nil")
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   *string
		want string
	}{
		{nil, ""},
		{strp("  "), ""},
		{strp("j45.909"), "J45909"},
		{strp(" 99213 "), "99213"},
	}
	for _, tt := range tests {
		if got := NormalizeCode(tt.in); got != tt.want {
			t.Errorf("NormalizeCode(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCategoryAndGender(t *testing.T) {
	if got := Category(strp("  Internal   Medicine ")); got != "Internal Medicine" {
		t.Errorf("Category = %q", got)
	}
	if OptCategory(strp("   ")) != nil {
		t.Error("OptCategory of blank should be nil")
	}
	for in, want := range map[string]string{"m": "M", "Male": "M", "F": "F", "female": "F", "X": "X"} {
		if got := Gender(strp(in)); got != want {
			t.Errorf("Gender(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAmount(t *testing.T) {
	if _, err := Amount("claim_amount", -0.01); err == nil {
		t.Error("expected error for negative amount")
	}
	if v, err := Amount("claim_amount", 12.5); err != nil || v != 12.5 {
		t.Errorf("Amount(12.5) = %v, %v", v, err)
	}
	if v, err := OptAmount("paid_amount", nil); err != nil || v != 0 {
		t.Errorf("OptAmount(nil) = %v, %v", v, err)
	}
}

func TestToClaim(t *testing.T) {
	fraud := true
	row := &model.ClaimRow{
		ClaimID:      " C1 ",
		PatientID:    "P1",
		ProviderID:   "PR1",
		PolicyID:     strp("POL1"),
		ServiceDate:  strp("2024-01-06"),
		ClaimAmount:  250,
		ClaimType:    strp(" Outpatient "),
		ClaimStatus:  strp("Paid"),
		IsFraudulent: &fraud,
	}
	c, err := ToClaim(row)
	if err != nil {
		t.Fatalf("ToClaim: %v", err)
	}
	if c.ID != "C1" || c.PolicyID != "POL1" || c.Type != "Outpatient" {
		t.Errorf("unexpected claim: %+v", c)
	}
	if c.ServiceDate == nil || c.ServiceDate.Weekday() != time.Saturday {
		t.Errorf("service date = %v", c.ServiceDate)
	}
	if !c.Fraudulent() || !c.Labeled() {
		t.Error("label lost")
	}

	neg := *row
	neg.ClaimAmount = -5
	if _, err := ToClaim(&neg); err == nil {
		t.Error("expected rejection of negative amount")
	}
	noProvider := *row
	noProvider.ProviderID = ""
	if _, err := ToClaim(&noProvider); err == nil {
		t.Error("expected rejection of missing provider id")
	}
}

func TestToPatientAndProvider(t *testing.T) {
	p, err := ToPatient(&model.PatientRow{PatientID: "P1", Gender: strp("male"), DateOfBirth: strp("garbage")})
	if err != nil {
		t.Fatalf("ToPatient: %v", err)
	}
	if p.Gender != "M" || p.BirthDate != nil {
		t.Errorf("unexpected patient: %+v", p)
	}
	if _, err := ToPatient(&model.PatientRow{}); err == nil {
		t.Error("expected error for missing patient id")
	}

	years := int32(12)
	pr, err := ToProvider(&model.ProviderRow{ProviderID: "PR1", Specialty: strp("Cardiology"), YearsInPractice: &years})
	if err != nil {
		t.Fatalf("ToProvider: %v", err)
	}
	if pr.Specialty == nil || *pr.Specialty != "Cardiology" || pr.YearsInPractice != 12 {
		t.Errorf("unexpected provider: %+v", pr)
	}
}

func TestNamesHash(t *testing.T) {
	a := NamesHash([]string{"ab", "c"})
	b := NamesHash([]string{"a", "bc"})
	if a == b {
		t.Error("hash should depend on name boundaries")
	}
	if a != NamesHash([]string{"ab", "c"}) {
		t.Error("hash should be stable")
	}
}

func TestFilesHash(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.parquet")
	b := filepath.Join(dir, "b.parquet")
	if err := os.WriteFile(a, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := FilesHash(a, b)
	if err != nil {
		t.Fatalf("FilesHash: %v", err)
	}
	h2, _ := FilesHash(b, a)
	if h1 == h2 {
		t.Error("hash should depend on file order")
	}

	if err := os.WriteFile(b, []byte("three"), 0o644); err != nil {
		t.Fatal(err)
	}
	h3, _ := FilesHash(a, b)
	if h1 == h3 {
		t.Error("hash should change with file contents")
	}

	if _, err := FilesHash(filepath.Join(dir, "missing.parquet")); err == nil {
		t.Error("expected error for missing file")
	}
}
