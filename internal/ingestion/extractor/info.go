package extractor

import (
	"regexp"
	"strings"
)

const UnknownCandidate = "Unknown Candidate"

// CandidateInfo holds identity fields pulled from raw resume text.
type CandidateInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Lines that open a resume section are never candidate names.
var headerLines = map[string]bool{
	"summary": true, "objective": true, "experience": true, "education": true,
	"skills": true, "projects": true, "certifications": true, "references": true,
	"contact": true, "work experience": true, "professional experience": true,
	"technical skills": true, "profile": true, "about": true, "about me": true,
	"career objective": true, "qualifications": true, "achievements": true,
	"interests": true, "hobbies": true, "publications": true, "awards": true,
	"languages": true, "volunteer": true, "personal information": true,
	"personal details": true, "curriculum vitae": true, "resume": true, "cv": true,
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`[+]?[\d\s\-().]{7,20}`)
)

// ExtractCandidateInfo pulls name, email and phone from plain resume
// text. The first non-empty line is taken as the name unless it looks
// like a section header or has an implausible length.
func ExtractCandidateInfo(text string) CandidateInfo {
	return CandidateInfo{
		Name:  extractName(text),
		Email: emailRe.FindString(text),
		Phone: extractPhone(text),
	}
}

func extractName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if len(stripped) < 2 || len(stripped) > 50 {
			return UnknownCandidate
		}
		if headerLines[strings.ToLower(stripped)] {
			return UnknownCandidate
		}
		return stripped
	}
	return UnknownCandidate
}

// extractPhone returns the first phone-shaped run containing at least
// seven digits.
func extractPhone(text string) string {
	for _, m := range phoneRe.FindAllString(text, -1) {
		candidate := strings.TrimSpace(m)
		digits := 0
		for _, c := range candidate {
			if c >= '0' && c <= '9' {
				digits++
			}
		}
		if digits >= 7 {
			return candidate
		}
	}
	return ""
}
