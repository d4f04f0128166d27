package extract

const (
	// DefaultSectionStart and DefaultSectionEnd bound the clinical studies
	// section of a label.
	DefaultSectionStart = "Section 14"
	DefaultSectionEnd   = "Section 15"

	// NotAvailable is the sentinel for fields with no match.
	NotAvailable = "N/A"
)

// DefaultRules returns the pharmaceutical label rule table in output column
// order.
func DefaultRules() []Rule {
	return []Rule{
		// Boxed warning
		{
			Field:       "Black Box Warning",
			Scope:       ScopeDocument,
			Pattern:     `\b(?:black\s*box|boxed)\s+warning\b`,
			Extract:     ExtractFlag,
			Value:       "Y",
			Default:     "N",
			Description: "Y when the label carries a boxed warning",
		},
		{
			Field:       "Black Box Text",
			Scope:       ScopeDocument,
			Pattern:     `((?:black\s*box|boxed)\s+warning\b.*)`,
			Extract:     ExtractCapture,
			Default:     NotAvailable,
			Description: "Boxed warning heading line from the phrase onward",
		},

		// Product identity
		{
			Field:       "Compound",
			Scope:       ScopeDocument,
			Pattern:     `\bcompound(?:\s+name)?\s*:\s*(.+)`,
			Extract:     ExtractCapture,
			Default:     NotAvailable,
			Description: "Compound name",
		},
		{
			Field:       "Approval",
			Scope:       ScopeDocument,
			Pattern:     `\b(?:initial\s+u\.?\s*s\.?\s+)?approval(?:\s+date)?\s*:\s*(.+)`,
			Extract:     ExtractCapture,
			Default:     NotAvailable,
			Description: "Approval date",
		},

		// Clinical studies section
		{
			Field:       "Study",
			Scope:       ScopeSection,
			Pattern:     `\bstudy\s*(?:number|no\.?)\s*[:=]\s*([^\s;,]+)`,
			Extract:     ExtractCapture,
			Multi:       true,
			Default:     NotAvailable,
			Description: "Study identifiers",
		},
		{
			Field:       "N for each study",
			Scope:       ScopeSection,
			Pattern:     `\bn\s*=\s*([^\s;,]+)`,
			Extract:     ExtractCapture,
			Multi:       true,
			Default:     NotAvailable,
			Description: "Enrolled subjects per study",
		},
		{
			Field:       "Dose for each study",
			Scope:       ScopeSection,
			Pattern:     `\bdose\s*[:=]\s*([^;]+)`,
			Extract:     ExtractCapture,
			Multi:       true,
			Default:     NotAvailable,
			Description: "Dose per study",
		},
		{
			Field:       "Clinical Efficacy",
			Scope:       ScopeSection,
			Pattern:     `\befficacy\s*[:=]\s*([^;]+)`,
			Extract:     ExtractCapture,
			Multi:       true,
			Default:     NotAvailable,
			Description: "Efficacy outcomes",
		},
		{
			Field:       "Clinical Safety",
			Scope:       ScopeSection,
			Pattern:     `\bsafety\s*[:=]\s*([^;]+)`,
			Extract:     ExtractCapture,
			Multi:       true,
			Default:     NotAvailable,
			Description: "Safety outcomes",
		},
		{
			Field:       "Clinical Discontinuation",
			Scope:       ScopeSection,
			Pattern:     `\bdiscontinuation\s*[:=]\s*([^;]+)`,
			Extract:     ExtractCapture,
			Multi:       true,
			Default:     NotAvailable,
			Description: "Discontinuation rates",
		},
	}
}

// DefaultRuleSet pairs DefaultRules with the default section markers.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Section: SectionMarkers{Start: DefaultSectionStart, End: DefaultSectionEnd},
		Rules:   DefaultRules(),
	}
}
