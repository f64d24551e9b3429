package jinja

import "strings"

// escapeReplacer is the exact five-entity table spec.md §4.7 requires:
// & < > ' " become &amp; &lt; &gt; &#39; &#34;.
var escapeReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&#39;",
	`"`, "&#34;",
)

// Escape implements the escape(x) operation: Safe values and Undefined
// pass through unchanged (escaping an already-safe value is a no-op, per
// the composition law escape(safe(x)) == safe(x)); everything else is
// stringified then entity-escaped and rewrapped as Safe.
func Escape(v interface{}) Safe {
	switch t := v.(type) {
	case Safe:
		return t
	case *Undefined:
		return Safe(t.String())
	}
	return Safe(escapeReplacer.Replace(ToString(v)))
}

// MarkSafe wraps a string as Safe without escaping it, implementing the
// `safe` filter and Markup(...) construction.
func MarkSafe(v interface{}) Safe {
	return Safe(ToString(v))
}

// ConcatAutoescape joins rendered fragments under autoescape: any Safe
// fragment stays verbatim, any plain string is escaped, and the result is
// Safe overall once every fragment has passed through — this is the law
// that makes `{{ "<b>" }}{{ mysafe }}` behave correctly next to each other.
func ConcatAutoescape(autoescape bool, parts ...interface{}) Safe {
	var sb strings.Builder
	for _, p := range parts {
		if !autoescape {
			sb.WriteString(ToString(p))
			continue
		}
		sb.WriteString(string(Escape(p)))
	}
	return Safe(sb.String())
}
