package parser

import (
	"testing"

	"github.com/vburojevic/nginv/internal/domain"
)

func FuzzParse(f *testing.F) {
	// Seeds: one valid line of each grammar and junk.
	f.Add(`203.0.113.7 - - [10/Oct/2024:13:55:36 -0700] "GET /index.html HTTP/1.1" 200 2326 "-" "curl"`)
	f.Add(`2024/10/10 13:55:36 [error] 1234#1234: *5678 open() "/x" failed`)
	f.Add("\x00\xff[]\"\"")

	f.Fuzz(func(t *testing.T, s string) {
		for _, kind := range []domain.SourceKind{domain.SourceAccess, domain.SourceError} {
			if Parse(kind, s) == nil {
				t.Fatalf("Parse(%s) returned nil event", kind)
			}
		}
	})
}
