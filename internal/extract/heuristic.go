package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/status"
)

var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)application (?:for|to)(?: the)?\s+(.+?)(?:\s+(?:at|with)\s+|\s+-\s+|\s*\(|\s+(?:position|role)\b|[!.]|$)`),
		regexp.MustCompile(`(?i)(?:position|role|job title|job)\s*:\s*(.+?)(?:\s+at\s+|\s+-\s+|\s*\(|$)`),
		regexp.MustCompile(`(?i)(?:for|regarding) the\s+(.+?)\s+(?:position|role|opening)\b`),
		regexp.MustCompile(`(?i)interview (?:for|invitation:?)(?: the)?\s+(.+?)(?:\s+(?:at|with)\s+|\s+-\s+|\s*\(|\s+(?:position|role)\b|$)`),
	}

	// subject forms like "at Acme", "from Acme", "to Acme"; capitalized names only
	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bat\s+([A-Z][A-Za-z0-9&.' ]*?)(?:\s+-\s+|\s*\(|\s*[!,:|]|\.\s|\.$|$)`),
		regexp.MustCompile(`\bfrom\s+([A-Z][A-Za-z0-9&.' ]*?)(?:\s+-\s+|\s*\(|\s*[!,:|]|\.\s|\.$|$)`),
		regexp.MustCompile(`\bto\s+([A-Z][A-Za-z0-9&.' ]*?)(?:\s+-\s+|\s*\(|\s*[!,:|]|\.\s|\.$|$)`),
	}

	reSenderDomain = regexp.MustCompile(`@([A-Za-z0-9.-]+)`)
)

// words that the company patterns pick up but are never a company
var notCompany = map[string]bool{
	"interview": true, "apply": true, "applying": true, "our": true, "the": true,
	"your": true, "you": true, "us": true, "next steps": true, "an interview": true,
}

// sender domains that belong to mail providers or hiring platforms, not employers
var platformDomains = map[string]bool{
	"gmail": true, "googlemail": true, "yahoo": true, "outlook": true, "hotmail": true,
	"greenhouse": true, "greenhouse-mail": true, "lever": true, "hire": true,
	"myworkday": true, "workday": true, "myworkdayjobs": true, "smartrecruiters": true,
	"icims": true, "jobvite": true, "linkedin": true, "indeed": true, "ashbyhq": true,
	"taleo": true, "successfactors": true, "bamboohr": true, "workablemail": true,
}

var senderNameSuffixes = []string{
	" hiring team", " recruiting team", " talent acquisition", " talent team",
	" recruiting", " recruitment", " careers", " talent", " jobs", " team", " hr",
}

// status keywords in priority order; earlier entries win.
var statusKeywords = []struct {
	st    status.Status
	words []string
}{
	{status.Offer, []string{"job offer", "offer letter", "pleased to offer", "congratulations", "we are pleased to extend"}},
	{status.Rejected, []string{"rejected", "not selected", "unfortunately", "declined", "not moving forward", "not to move forward", "other candidates"}},
	{status.Interview, []string{"interview", "final round", "onsite", "on-site"}},
	{status.RecruiterScreen, []string{"recruiter", "phone screen", "initial screening", "screening call", "next step"}},
	{status.Dropped, []string{"withdrawn", "withdraw", "cancelled", "canceled"}},
	{status.Ghosted, []string{"no response", "ghosted", "radio silence"}},
}

var applicationSignals = []string{
	"application", "applied", "applying", "candidacy", "candidate", "interview",
	"position", "role", "recruiter", "offer", "hiring", "opportunity", "resume",
}

// Heuristic is a regex and keyword extractor. It needs no network and produces
// low or medium confidence candidates.
type Heuristic struct{}

func (Heuristic) Extract(ctx context.Context, m mailbox.Message) (domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return domain.Candidate{}, err
	}

	body := mailbox.Decode(m.Raw, m.Subject)
	subject := cleanText(body.Subject)
	if subject == "" {
		subject = cleanText(mailbox.DecodeHeader(m.Subject))
	}

	text := body.Text
	var location string
	if strings.TrimSpace(body.HTML) != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body.HTML)); err == nil {
			location = findLocation(doc)
			if strings.TrimSpace(text) == "" {
				text = htmlText(doc)
			}
		}
	}

	blob := strings.ToLower(subject + " " + text)
	if !containsAny(blob, applicationSignals) {
		return domain.Candidate{}, ErrNotApplication
	}

	c := domain.Candidate{
		EmailID:      m.ID(),
		ObservedDate: m.Date.UTC(),
		Sender:       cleanText(m.From),
		Subject:      subject,
		Confidence:   domain.ConfidenceLow,
	}

	c.JobTitle = firstMatch(titlePatterns, subject)
	if c.JobTitle == "" {
		c.JobTitle = firstMatch(titlePatterns, text)
	}
	c.JobTitle = clip(c.JobTitle, 200)

	company, fromSubject := companyFrom(subject, m.From)
	c.Company = clip(company, 100)

	if location == "" {
		location = labeledLocation(text)
	}
	c.Location = clip(location, 100)

	c.InferredStatus = string(InferStatus(subject + " " + text))

	if fromSubject && c.JobTitle != "" {
		c.Confidence = domain.ConfidenceMedium
	}
	return c, nil
}

// InferStatus picks the highest-priority status whose keywords appear in s, Applied
// when none do.
func InferStatus(s string) status.Status {
	low := strings.ToLower(s)
	for _, k := range statusKeywords {
		if containsAny(low, k.words) {
			return k.st
		}
	}
	return status.Applied
}

func companyFrom(subject, sender string) (company string, fromSubject bool) {
	for _, re := range companyPatterns {
		m := re.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		name := strings.Trim(cleanText(m[1]), ".' ")
		if name == "" || notCompany[strings.ToLower(name)] {
			continue
		}
		return name, true
	}
	if name := companyFromDomain(sender); name != "" {
		return name, false
	}
	return companyFromSenderName(sender), false
}

func companyFromDomain(sender string) string {
	m := reSenderDomain.FindStringSubmatch(sender)
	if m == nil {
		return ""
	}
	labels := strings.Split(strings.ToLower(strings.Trim(m[1], ".")), ".")
	if len(labels) < 2 {
		return ""
	}
	i := len(labels) - 2
	// acme.co.uk
	if len(labels[i]) <= 3 && i > 0 {
		i--
	}
	name := labels[i]
	if name == "" || platformDomains[name] {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func companyFromSenderName(sender string) string {
	i := strings.Index(sender, "<")
	if i <= 0 {
		return ""
	}
	name := strings.Trim(strings.TrimSpace(sender[:i]), `"`)
	low := strings.ToLower(name)
	for _, suf := range senderNameSuffixes {
		if strings.HasSuffix(low, suf) {
			name = strings.TrimSpace(name[:len(name)-len(suf)])
			low = strings.ToLower(name)
		}
	}
	if name == "" || strings.Contains(low, "no-reply") || strings.Contains(low, "noreply") || notCompany[low] {
		return ""
	}
	return name
}

func firstMatch(res []*regexp.Regexp, s string) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			if t := strings.Trim(cleanText(m[1]), ".,:;!\"' "); t != "" {
				return t
			}
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}
