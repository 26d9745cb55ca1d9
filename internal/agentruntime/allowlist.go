package agentruntime

// PhaseAllowlists are the default tool sets per workflow phase (spec
// §4.3.3 examples: research {Read, Glob, Grep, Write}; implement
// broader; media {Read, Write, Glob, Grep, Bash}).
var PhaseAllowlists = map[string][]string{
	"research":   {"Read", "Glob", "Grep", "Write"},
	"plan":       {"Read", "Glob", "Grep", "Write"},
	"implement":  {"Read", "Glob", "Grep", "Write", "Bash", "Edit"},
	"critique":   {"Read", "Glob", "Grep"},
	"pr":         {"Read", "Bash"},
	"media":      {"Read", "Write", "Glob", "Grep", "Bash"},
}

// EffectiveAllowlist computes the tool set a turn may use: explicit
// opts.AllowedTools if provided, else the phase default, else
// unrestricted (nil means unrestricted). Skill-declared tools may
// augment the set, but the result is always intersected with the phase
// allowlist — never a superset (spec §4.3.3).
func EffectiveAllowlist(phase string, explicit, skillTools []string) []string {
	base := explicit
	if base == nil {
		base = PhaseAllowlists[phase]
	}
	if base == nil {
		return nil // unrestricted
	}
	if len(skillTools) == 0 {
		return base
	}
	allowed := toSet(base)
	union := toSet(base)
	for _, t := range skillTools {
		union[t] = true
	}
	var out []string
	for t := range union {
		if allowed[t] {
			out = append(out, t)
		}
	}
	return out
}

func toSet(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

// ToolDenied reports whether tool is outside allowlist. A nil allowlist
// means unrestricted (never denied).
func ToolDenied(allowlist []string, tool string) bool {
	if allowlist == nil {
		return false
	}
	for _, t := range allowlist {
		if t == tool {
			return false
		}
	}
	return true
}
