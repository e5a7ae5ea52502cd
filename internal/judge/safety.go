package judge

import (
	"fmt"
	"regexp"
	"strings"

	"sqlgym/internal/common"
)

// Once sample data has been loaded into a disposable schema the submitted
// query has to be a pure read, or result comparison stops being meaningful
// (a mutating query could trivially pass by deleting every row). This is a
// lexical check, not a parser: it can over-reject keywords inside string
// literals and it is not a security boundary. Real isolation comes from the
// disposable, unprivileged schema.
var forbiddenStatementPattern = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|ALTER|CREATE|TRUNCATE)\b`)

// CheckQuerySafety rejects queries containing destructive or mutating
// keywords, case-insensitively.
func CheckQuerySafety(query string) error {
	if match := forbiddenStatementPattern.FindString(query); match != "" {
		return fmt.Errorf("query contains forbidden statement %s: %w", strings.ToUpper(match), common.ErrForbiddenStatement)
	}
	return nil
}
