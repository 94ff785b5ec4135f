// internal/scoring/prompt.go
package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"tender-scanner/internal/models"
)

const (
	tenderDescriptionLimit = 2000
	orgDescriptionLimit    = 1000
)

// ComposeBasePrompt renders the company profile into the shared system
// prompt prefix. Every column over the same scanner reuses this prefix
// verbatim, which is what makes provider-side prompt caching effective.
func ComposeBasePrompt(profile *models.CompanyProfile) string {
	var b strings.Builder

	b.WriteString("You are an analyst evaluating business opportunities for a specific company.\n\n")
	b.WriteString("## Company Profile\n\n")
	writeField(&b, "Company", profile.CompanyName)
	writeField(&b, "Summary", profile.Summary)
	writeListField(&b, "Sectors", profile.Sectors)
	writeListField(&b, "Capabilities", profile.Capabilities)
	writeListField(&b, "Keywords", profile.Keywords)
	writeListField(&b, "Certifications", profile.Certifications)
	writeField(&b, "Ideal contract", profile.IdealContractDescription)
	writeListField(&b, "Regions", profile.Regions)
	writeField(&b, "Company size", profile.CompanySize)

	b.WriteString("\n## Scoring Rubric\n\n")
	b.WriteString("When asked to score, rate fit on a 1-10 scale:\n")
	b.WriteString("- 9-10: perfect match, squarely in the company's core capabilities and sectors\n")
	b.WriteString("- 7-8.9: strong match, clearly deliverable with existing capabilities\n")
	b.WriteString("- 5-6.9: partial match, some relevant capability but notable gaps\n")
	b.WriteString("- 3-4.9: weak match, tangential relevance only\n")
	b.WriteString("- 1-2.9: no match, outside the company's business entirely\n")

	b.WriteString("\n## CPV Division Reference\n\n")
	b.WriteString(cpvReference)

	return b.String()
}

// BuildSystemPrompt appends the column's task to the shared base prefix.
// The base stays byte-identical across columns so the cached prefix is hit.
func BuildSystemPrompt(basePrompt string, column models.Column) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n## Current Analysis Task\n\n")
	b.WriteString(column.Prompt)
	b.WriteString("\n\n")

	if column.UseCase.IsText() {
		b.WriteString(`Respond with a JSON object: {"response": "<your analysis>"}. Respond with JSON only, no surrounding text.`)
	} else {
		b.WriteString(`Respond with a JSON object: {"score": <number 1-10 or null>, "reasoning": "<one or two sentences>"}. Respond with JSON only, no surrounding text.`)
	}

	return b.String()
}

// BuildUserPrompt projects an entity into the per-call user message. Long
// free-text fields are truncated so a single run stays inside token limits.
func BuildUserPrompt(entity models.Entity, searchQuery string) string {
	var b strings.Builder

	switch entity.Domain {
	case models.DomainTenders:
		t := entity.Tender
		b.WriteString("Evaluate this tender:\n\n")
		writeField(&b, "Title", t.Title)
		writeField(&b, "Buyer", t.BuyerName)
		writeField(&b, "Description", truncate(t.Description, tenderDescriptionLimit))
		writeField(&b, "Sector", t.Sector)
		writeField(&b, "Region", t.BuyerRegion)
		writeField(&b, "Value", formatValueRange(t.ValueMin, t.ValueMax))
		writeListField(&b, "CPV codes", t.CPVCodes)
		if t.DeadlineDate != nil {
			writeField(&b, "Deadline", t.DeadlineDate.Format("2006-01-02"))
		}

	case models.DomainSignals:
		s := entity.Signal
		b.WriteString("Evaluate this market signal:\n\n")
		writeField(&b, "Organization", s.OrganizationName)
		writeField(&b, "Signal type", s.SignalType)
		writeField(&b, "Title", s.Title)
		writeField(&b, "Insight", s.Insight)
		writeField(&b, "Sector", s.Sector)
		if s.SourceDate != nil {
			writeField(&b, "Source date", s.SourceDate.Format("2006-01-02"))
		}

	case models.DomainOrganizations:
		o := entity.Organization
		b.WriteString("Evaluate this organization:\n\n")
		writeField(&b, "Name", o.Name)
		writeField(&b, "Sector", o.Sector)
		writeField(&b, "Region", o.Region)
		writeField(&b, "Description", truncate(o.Description, orgDescriptionLimit))
		if o.ContractCount > 0 {
			writeField(&b, "Contract count", fmt.Sprintf("%d", o.ContractCount))
		}
		if o.Website != "" {
			writeField(&b, "Website", o.Website)
		}
	}

	if searchQuery != "" {
		b.WriteString("\nThe scanner that surfaced this entity was searching for: ")
		b.WriteString(searchQuery)
		b.WriteString("\n")
	}

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func writeListField(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}

func formatValueRange(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%.0f - %.0f", *min, *max)
	case min != nil:
		return fmt.Sprintf("from %.0f", *min)
	case max != nil:
		return fmt.Sprintf("up to %.0f", *max)
	}
	return ""
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// cpvReference pads the shared prefix past the provider's minimum cacheable
// prompt length and doubles as domain grounding for CPV-coded tenders.
const cpvReference = `03 Agricultural, farming, fishing, forestry and related products
09 Petroleum products, fuel, electricity and other sources of energy
14 Mining, basic metals and related products
15 Food, beverages, tobacco and related products
16 Agricultural machinery
18 Clothing, footwear, luggage articles and accessories
19 Leather and textile fabrics, plastic and rubber materials
22 Printed matter and related products
24 Chemical products
30 Office and computing machinery, equipment and supplies
31 Electrical machinery, apparatus, equipment and consumables; lighting
32 Radio, television, communication, telecommunication and related equipment
33 Medical equipments, pharmaceuticals and personal care products
34 Transport equipment and auxiliary products to transportation
35 Security, fire-fighting, police and defence equipment
37 Musical instruments, sport goods, games, toys, handicraft and art supplies
38 Laboratory, optical and precision equipments
39 Furniture, furnishings, domestic appliances and cleaning products
41 Collected and purified water
42 Industrial machinery
43 Machinery for mining, quarrying, construction equipment
44 Construction structures and materials; auxiliary products to construction
45 Construction work
48 Software package and information systems
50 Repair and maintenance services
51 Installation services (except software)
55 Hotel, restaurant and retail trade services
60 Transport services (excl. waste transport)
63 Supporting and auxiliary transport services; travel agencies services
64 Postal and telecommunications services
65 Public utilities
66 Financial and insurance services
70 Real estate services
71 Architectural, construction, engineering and inspection services
72 IT services: consulting, software development, Internet and support
73 Research and development services and related consultancy services
75 Administration, defence and social security services
76 Services related to the oil and gas industry
77 Agricultural, forestry, horticultural, aquacultural and apicultural services
79 Business services: law, marketing, consulting, recruitment, printing and security
80 Education and training services
85 Health and social work services
90 Sewage, refuse, cleaning and environmental services
92 Recreational, cultural and sporting services
98 Other community, social and personal services`
