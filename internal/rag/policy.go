package rag

import "mauassist/internal/logging"

// ContextPolicy decides whether knowledge entries may be sent to a provider.
// Local providers always get context; cloud providers only when allowed.
type ContextPolicy struct {
	allowCloud bool
	logger     *logging.Logger
}

// NewContextPolicy creates a policy. allowCloud mirrors llm.allow_context.
func NewContextPolicy(allowCloud bool, logger *logging.Logger) *ContextPolicy {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ContextPolicy{allowCloud: allowCloud, logger: logger}
}

// Allow reports whether context may be included for a provider
func (p *ContextPolicy) Allow(providerIsLocal bool) bool {
	if providerIsLocal {
		p.logger.Debug("context enabled: local provider")
		return true
	}
	if p.allowCloud {
		p.logger.Debug("context enabled: cloud provider with allow_context")
		return true
	}
	p.logger.Debug("context withheld from cloud provider")
	return false
}

// Status returns a short description for the admin UI
func (p *ContextPolicy) Status(providerIsLocal bool) string {
	switch {
	case providerIsLocal:
		return "Context Enabled (Local)"
	case p.allowCloud:
		return "Context Enabled"
	default:
		return "Context Disabled (Cloud Policy)"
	}
}
