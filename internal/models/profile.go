// internal/models/profile.go
package models

// CompanyProfile is the onboarding record the base scoring context is built
// from. Absence of a profile is a hard precondition failure for scoring.
type CompanyProfile struct {
	UserID                   string   `json:"userId"`
	CompanyName              string   `json:"companyName"`
	Summary                  string   `json:"summary"`
	Sectors                  []string `json:"sectors"`
	Capabilities             []string `json:"capabilities"`
	Keywords                 []string `json:"keywords"`
	Certifications           []string `json:"certifications"`
	IdealContractDescription string   `json:"idealContractDescription"`
	Regions                  []string `json:"regions"`
	CompanySize              string   `json:"companySize"`
}
