package access

import (
	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// Visible reports whether the configuration is visible to the caller.
//
// Rule: admin OR a non-empty intersection between the caller's roles and the
// configuration's granted roles. A configuration with an empty grant set is
// therefore visible to administrators only.
func Visible(s Scope, cfg *domain.Configuration) bool {
	if s.IsAdmin {
		return true
	}
	if len(cfg.Roles) == 0 {
		return false
	}
	granted := make(map[string]struct{}, len(cfg.Roles))
	for _, r := range cfg.Roles {
		granted[r.Name] = struct{}{}
	}
	for _, r := range s.Roles {
		if _, ok := granted[r]; ok {
			return true
		}
	}
	return false
}

// FilterConfigurations returns only the configurations visible to the
// caller, preserving input order. The same rule governs list endpoints and
// direct lookups; callers must surface a filtered-out direct lookup as
// not-found so restricted configurations stay indistinguishable from absent
// ones.
func FilterConfigurations(s Scope, cfgs []domain.Configuration) []domain.Configuration {
	out := make([]domain.Configuration, 0, len(cfgs))
	for i := range cfgs {
		if Visible(s, &cfgs[i]) {
			out = append(out, cfgs[i])
		}
	}
	return out
}
