package scoring

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"tender-scanner/internal/models"
)

func testProfile() *models.CompanyProfile {
	return &models.CompanyProfile{
		UserID:                   "user-1",
		CompanyName:              "Acme Civil Engineering",
		Summary:                  "Mid-size civil engineering contractor",
		Sectors:                  []string{"Construction", "Infrastructure"},
		Capabilities:             []string{"Road surfacing", "Bridge maintenance"},
		Keywords:                 []string{"highways", "resurfacing"},
		Certifications:           []string{"ISO 9001"},
		IdealContractDescription: "Regional highway maintenance frameworks",
		Regions:                  []string{"North West"},
		CompanySize:              "50-200",
	}
}

func TestComposeBasePrompt(t *testing.T) {
	prompt := ComposeBasePrompt(testProfile())

	assert.Contains(t, prompt, "Acme Civil Engineering")
	assert.Contains(t, prompt, "Road surfacing, Bridge maintenance")
	assert.Contains(t, prompt, "## Scoring Rubric")
	assert.Contains(t, prompt, "## CPV Division Reference")

	// Same profile must produce an identical prefix so the provider-side
	// prompt cache is hit on every call of a run.
	assert.Equal(t, prompt, ComposeBasePrompt(testProfile()))
}

func TestBuildSystemPrompt_ScoreColumn(t *testing.T) {
	base := "BASE"
	col := models.Column{ColumnID: "c1", Name: "Fit", Prompt: "How well does this fit?", UseCase: models.UseCaseScore}

	out := BuildSystemPrompt(base, col)

	assert.True(t, strings.HasPrefix(out, "BASE"))
	assert.Contains(t, out, "## Current Analysis Task")
	assert.Contains(t, out, "How well does this fit?")
	assert.Contains(t, out, `"score"`)
	assert.NotContains(t, out, `"response"`)
}

func TestBuildSystemPrompt_TextColumn(t *testing.T) {
	col := models.Column{ColumnID: "c2", Name: "Research", Prompt: "Research this buyer", UseCase: models.UseCaseResearch}

	out := BuildSystemPrompt("BASE", col)

	assert.Contains(t, out, `"response"`)
	assert.NotContains(t, out, `"score"`)
}

func TestBuildUserPrompt_Tender(t *testing.T) {
	min, max := 100000.0, 250000.0
	deadline := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	entity := models.Entity{
		Domain: models.DomainTenders,
		Tender: &models.Tender{
			ID:           "t-1",
			Title:        "Highway resurfacing framework",
			Description:  strings.Repeat("x", 3000),
			BuyerName:    "Lancashire County Council",
			Sector:       "Transport",
			BuyerRegion:  "North West",
			ValueMin:     &min,
			ValueMax:     &max,
			CPVCodes:     []string{"45233141", "45233142"},
			DeadlineDate: &deadline,
		},
	}

	out := BuildUserPrompt(entity, "highway maintenance")

	assert.Contains(t, out, "Highway resurfacing framework")
	assert.Contains(t, out, "Lancashire County Council")
	assert.Contains(t, out, "100000 - 250000")
	assert.Contains(t, out, "45233141, 45233142")
	assert.Contains(t, out, "2026-10-01")
	assert.Contains(t, out, "highway maintenance")
	// Description is capped.
	assert.Less(t, len(out), 2500)
}

func TestBuildUserPrompt_Signal(t *testing.T) {
	date := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	entity := models.Entity{
		Domain: models.DomainSignals,
		Signal: &models.Signal{
			ID:               "s-1",
			OrganizationName: "NHS Trust",
			SignalType:       "budget-approval",
			Title:            "Capital works budget approved",
			Insight:          "Board approved estates refurbishment",
			Sector:           "Health",
			SourceDate:       &date,
		},
	}

	out := BuildUserPrompt(entity, "")

	assert.Contains(t, out, "NHS Trust")
	assert.Contains(t, out, "budget-approval")
	assert.Contains(t, out, "2026-07-14")
	assert.NotContains(t, out, "searching for")
}

func TestBuildUserPrompt_Organization(t *testing.T) {
	entity := models.Entity{
		Domain: models.DomainOrganizations,
		Organization: &models.Organization{
			ID:            "o-1",
			Name:          "Manchester City Council",
			Sector:        "Local Government",
			Region:        "North West",
			Description:   strings.Repeat("y", 1500),
			ContractCount: 42,
			Website:       "https://manchester.gov.uk",
		},
	}

	out := BuildUserPrompt(entity, "")

	assert.Contains(t, out, "Manchester City Council")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "https://manchester.gov.uk")
	assert.Less(t, len(out), 1400)
}

func TestTruncate_KeepsRuneBoundaries(t *testing.T) {
	// Two bytes per rune; a limit landing mid-rune backs up to the boundary.
	s := strings.Repeat("é", 6)
	out := truncate(s, 5)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("é", 2), out)

	assert.Equal(t, "plain", truncate("plain", 10))
	assert.Equal(t, "pl", truncate("plain", 2))
}

func TestBuildUserPrompt_TruncatedDescriptionStaysValidUTF8(t *testing.T) {
	entity := models.Entity{
		Domain: models.DomainTenders,
		Tender: &models.Tender{
			ID:          "t-1",
			Title:       "Señalización vial",
			Description: strings.Repeat("€", 1500),
		},
	}

	out := BuildUserPrompt(entity, "")
	assert.True(t, utf8.ValidString(out))
}
