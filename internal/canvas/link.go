package canvas

import "strings"

// nextLink extracts the rel="next" target from an RFC 5988 Link header,
// the pagination contract Canvas uses. Returns "" when the chain ends.
func nextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		if target == "" {
			continue
		}
		for _, param := range segments[1:] {
			key, value, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(key), "rel") && strings.Trim(strings.TrimSpace(value), `"`) == "next" {
				return target
			}
		}
	}
	return ""
}
