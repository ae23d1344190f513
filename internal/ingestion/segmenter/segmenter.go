package segmenter

import (
	"strings"
)

const (
	DefaultMaxChunkChars = 1500
	DefaultOverlapChars  = 200
)

// Normalized section types. Headers outside the core set (awards,
// languages, references) still open a region but are tagged "other".
const (
	SectionSummary        = "summary"
	SectionExperience     = "experience"
	SectionEducation      = "education"
	SectionSkills         = "skills"
	SectionProjects       = "projects"
	SectionCertifications = "certifications"
	SectionOther          = "other"
)

// Chunk is one retrievable slice of a resume. ChunkIndex starts at 0
// and is contiguous within a (document, section) group.
type Chunk struct {
	Text        string `json:"text"`
	SectionType string `json:"section_type"`
	ChunkIndex  int    `json:"chunk_index"`
}

var sectionKeywords = map[string][]string{
	SectionSummary: {
		"summary", "objective", "profile", "about", "about me",
		"professional summary", "career objective", "personal statement",
		"executive summary", "career summary",
	},
	SectionExperience: {
		"experience", "work experience", "employment", "professional experience",
		"work history", "employment history", "career history",
		"relevant experience", "professional background",
	},
	SectionEducation: {
		"education", "academic", "academic background", "qualifications",
		"educational background", "academic qualifications",
	},
	SectionSkills: {
		"skills", "technical skills", "core competencies", "competencies",
		"key skills", "areas of expertise", "expertise", "technologies",
		"technical competencies", "proficiencies", "tools",
	},
	SectionProjects: {
		"projects", "personal projects", "key projects", "selected projects",
		"notable projects", "academic projects",
	},
	SectionCertifications: {
		"certifications", "certificates", "licenses", "credentials",
		"professional certifications", "licenses and certifications",
		"certifications and licenses",
	},
	SectionOther: {
		"awards", "achievements", "honors", "accomplishments",
		"awards and honors", "recognition",
		"languages", "language skills", "language proficiency",
		"references", "professional references",
	},
}

// maxHeaderLen rejects long lines before keyword lookup; real section
// headers are short standalone lines.
const maxHeaderLen = 48

var keywordToSection = func() map[string]string {
	m := make(map[string]string)
	for stype, kws := range sectionKeywords {
		for _, kw := range kws {
			m[kw] = stype
		}
	}
	return m
}()

// Segment splits raw resume text into section-tagged, size-bounded
// chunks. Text before the first recognized header is tagged summary;
// text with no recognized headers becomes a single summary region.
// Empty or whitespace-only input yields no chunks.
func Segment(text string, maxChunkChars, overlapChars int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	if overlapChars < 0 {
		overlapChars = DefaultOverlapChars
	}

	var chunks []Chunk
	for _, sec := range detectSections(text) {
		for i, piece := range window(sec.text, maxChunkChars, overlapChars) {
			chunks = append(chunks, Chunk{
				Text:        piece,
				SectionType: sec.stype,
				ChunkIndex:  i,
			})
		}
	}
	return chunks
}

type section struct {
	stype string
	text  string
}

type headerMatch struct {
	lineStart    int
	contentStart int
	stype        string
}

// classifyHeader reports the section type a line opens, or "" when the
// line is not a header. Detection keys on the whole trimmed line being
// a known keyword (optionally followed by :, - or em-dash) so a keyword
// appearing mid-sentence never starts a region.
func classifyHeader(line string) string {
	t := strings.TrimSpace(line)
	if t == "" || len(t) > maxHeaderLen {
		return ""
	}
	t = strings.TrimRight(t, ":-— \t")
	stype, ok := keywordToSection[strings.ToLower(t)]
	if !ok {
		return ""
	}
	return stype
}

func detectSections(text string) []section {
	var headers []headerMatch
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if stype := classifyHeader(line); stype != "" {
			headers = append(headers, headerMatch{
				lineStart:    offset,
				contentStart: offset + len(line),
				stype:        stype,
			})
		}
		offset += len(line)
	}

	if len(headers) == 0 {
		return []section{{stype: SectionSummary, text: strings.TrimSpace(text)}}
	}

	var sections []section
	if pre := strings.TrimSpace(text[:headers[0].lineStart]); pre != "" {
		sections = append(sections, section{stype: SectionSummary, text: pre})
	}
	for i, h := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1].lineStart
		}
		body := strings.TrimSpace(text[h.contentStart:end])
		if body == "" {
			continue
		}
		sections = append(sections, section{stype: h.stype, text: body})
	}
	return sections
}

// window splits a section body into overlapping pieces of at most
// maxSize characters. Consecutive pieces repeat roughly overlap
// characters of trailing context.
func window(text string, maxSize, overlap int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			if piece := strings.TrimSpace(text[start:]); piece != "" {
				pieces = append(pieces, piece)
			}
			break
		}

		breakPos := findBreakPoint(text[start:end])
		if piece := strings.TrimSpace(text[start : start+breakPos]); piece != "" {
			pieces = append(pieces, piece)
		}

		next := start + breakPos - overlap
		if next <= start {
			next = start + breakPos
		}
		start = next
	}
	return pieces
}

// findBreakPoint picks where to cut a full-size window, searching
// backward from 60% of the segment. Preference order: paragraph break,
// sentence end, newline, space, hard cut.
func findBreakPoint(segment string) int {
	searchStart := len(segment) * 6 / 10

	if pos := strings.LastIndex(segment, "\n\n"); pos >= searchStart {
		return pos + 2
	}
	if pos := lastSentenceEnd(segment, searchStart); pos != -1 {
		return pos
	}
	if pos := strings.LastIndex(segment, "\n"); pos >= searchStart {
		return pos + 1
	}
	if pos := strings.LastIndex(segment, " "); pos >= searchStart {
		return pos + 1
	}
	return len(segment)
}

// lastSentenceEnd returns the position just past the last ".", "!" or
// "?" followed by whitespace at or after from, or -1.
func lastSentenceEnd(segment string, from int) int {
	for i := len(segment) - 2; i >= from; i-- {
		c := segment[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		next := segment[i+1]
		if next == ' ' || next == '\n' || next == '\t' || next == '\r' {
			return i + 2
		}
	}
	return -1
}
