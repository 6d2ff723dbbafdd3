package workflow

import (
	"regexp"
	"strings"

	"outreach_backend/internal/campaigns/repository"
)

var unresolvedToken = regexp.MustCompile(`\{\{\s*[a-zA-Z_]+\s*\}\}`)

// Render substitutes the lead's fields into a message template. Supported
// tokens: {{first_name}}, {{last_name}}, {{title}}, {{company_name}},
// {{company}}, {{industry}}. Unresolved tokens become empty strings.
func Render(text string, lead *repository.Lead) string {
	if text == "" || lead == nil {
		return text
	}

	replacer := strings.NewReplacer(
		"{{first_name}}", lead.FirstName,
		"{{last_name}}", lead.LastName,
		"{{title}}", lead.Title,
		"{{company_name}}", lead.CompanyName,
		"{{company}}", lead.CompanyName,
		"{{industry}}", lead.Industry,
	)
	rendered := replacer.Replace(text)

	return unresolvedToken.ReplaceAllString(rendered, "")
}
