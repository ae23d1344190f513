package extractor

import "testing"

func TestExtractCandidateInfo(t *testing.T) {
	text := "Jane Doe\njane.doe@example.com | +1 (555) 123-4567\n\nExperience\nAcme Corp"
	info := ExtractCandidateInfo(text)
	if info.Name != "Jane Doe" {
		t.Fatalf("expected name Jane Doe, got %q", info.Name)
	}
	if info.Email != "jane.doe@example.com" {
		t.Fatalf("expected email, got %q", info.Email)
	}
	if info.Phone == "" {
		t.Fatalf("expected a phone number")
	}
}

func TestExtractNameRejectsHeaderLine(t *testing.T) {
	info := ExtractCandidateInfo("Curriculum Vitae\nJohn Smith")
	if info.Name != UnknownCandidate {
		t.Fatalf("expected %q, got %q", UnknownCandidate, info.Name)
	}
}

func TestExtractNameRejectsLongLine(t *testing.T) {
	long := "Senior software engineer with more than fifteen years of experience"
	info := ExtractCandidateInfo(long + "\nJane Doe")
	if info.Name != UnknownCandidate {
		t.Fatalf("expected %q, got %q", UnknownCandidate, info.Name)
	}
}

func TestExtractNameSkipsBlankLines(t *testing.T) {
	info := ExtractCandidateInfo("\n\n  \nJohn Smith\n")
	if info.Name != "John Smith" {
		t.Fatalf("expected John Smith, got %q", info.Name)
	}
}

func TestExtractPhoneRequiresSevenDigits(t *testing.T) {
	info := ExtractCandidateInfo("Jane Doe\nborn 1990-01, id 42-17")
	if info.Phone != "" {
		t.Fatalf("expected no phone, got %q", info.Phone)
	}
}

func TestExtractEmptyText(t *testing.T) {
	info := ExtractCandidateInfo("")
	if info.Name != UnknownCandidate || info.Email != "" || info.Phone != "" {
		t.Fatalf("unexpected info for empty text: %+v", info)
	}
}
