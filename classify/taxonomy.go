package classify

// DefaultTaxonomy maps domain names to their keyword lists. Single words
// are matched as whole tokens; multi-word phrases are matched as
// substrings. Matching one third of a domain's list already saturates that
// domain's per-message confidence at 1.0.
func DefaultTaxonomy() map[string][]string {
	return map[string][]string{
		"coding": {
			"code", "function", "bug", "compile", "refactor", "api",
			"debug", "repository", "commit", "test", "typescript", "python",
			"golang", "pull request", "stack trace",
		},
		"devops": {
			"deploy", "docker", "kubernetes", "pipeline", "terraform",
			"server", "monitoring", "rollback", "incident", "nginx",
			"ci/cd", "load balancer", "blue green",
		},
		"data": {
			"dataset", "query", "database", "schema", "analytics",
			"warehouse", "etl", "dashboard", "metric", "sql",
			"data pipeline", "machine learning",
		},
		"design": {
			"mockup", "wireframe", "figma", "typography", "palette",
			"layout", "prototype", "accessibility", "branding", "logo",
			"user experience", "design system",
		},
		"writing": {
			"draft", "essay", "article", "paragraph", "editor", "blog",
			"chapter", "manuscript", "proofread", "headline",
			"writing style", "table of contents",
		},
		"marketing": {
			"campaign", "audience", "conversion", "seo", "funnel",
			"engagement", "newsletter", "branding", "advertising", "outreach",
			"social media", "landing page",
		},
		"finance": {
			"budget", "invoice", "revenue", "forecast", "expense",
			"portfolio", "tax", "accounting", "cashflow", "valuation",
			"balance sheet", "profit margin",
		},
		"legal": {
			"contract", "clause", "compliance", "liability", "lawsuit",
			"trademark", "jurisdiction", "arbitration", "statute", "gdpr",
			"terms of service", "intellectual property",
		},
		"medical": {
			"patient", "diagnosis", "symptom", "treatment", "dosage",
			"clinical", "prescription", "therapy", "pathology", "triage",
			"side effect", "medical history",
		},
		"research": {
			"hypothesis", "experiment", "citation", "literature", "survey",
			"methodology", "peer", "abstract", "dataset", "findings",
			"literature review", "statistical significance",
		},
	}
}

// greetingTokens is the closed set of greeting/filler words. A message
// composed only of these contributes no domain score, so "hi"/"thanks"
// never dilute a project's classification.
var greetingTokens = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "howdy": {},
	"thanks": {}, "thank": {}, "thx": {}, "ty": {},
	"ok": {}, "okay": {}, "sure": {}, "yes": {}, "no": {}, "yep": {}, "nope": {},
	"bye": {}, "goodbye": {}, "goodnight": {}, "morning": {}, "evening": {},
	"please": {}, "cool": {}, "great": {}, "nice": {}, "awesome": {},
	"you": {}, "there": {}, "good": {}, "lol": {}, "haha": {},
}
