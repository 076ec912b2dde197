package plugin

import (
	"errors"
	"fmt"
	"slices"
)

// IsolationStrategy enforces the capability restrictions a policy declares.
type IsolationStrategy interface {
	Validate(info Info, policy IsolationPolicy) error
	Prepare(info Info) error
	Cleanup(info Info) error
}

// CapabilityIsolation is the default strategy: it checks the declared
// capabilities against the policy and does nothing at runtime.
type CapabilityIsolation struct{}

// Validate ensures the capabilities the plugin declares are permitted.
func (CapabilityIsolation) Validate(info Info, policy IsolationPolicy) error {
	allowed := map[Capability]struct{}{}
	for _, cap := range policy.AllowedCapabilities {
		allowed[cap] = struct{}{}
	}
	for _, cap := range policy.DeniedCapabilities {
		if slices.Contains(info.Capabilities, cap) {
			return fmt.Errorf("capability %s is explicitly denied", cap)
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, cap := range info.Capabilities {
		if _, ok := allowed[cap]; !ok {
			return fmt.Errorf("capability %s not permitted", cap)
		}
	}
	return nil
}

// Prepare implements IsolationStrategy.
func (CapabilityIsolation) Prepare(Info) error { return nil }

// Cleanup implements IsolationStrategy.
func (CapabilityIsolation) Cleanup(Info) error { return nil }

// NewIsolationStrategy returns the default strategy when none is supplied.
func NewIsolationStrategy(strategy IsolationStrategy) IsolationStrategy {
	if strategy == nil {
		return CapabilityIsolation{}
	}
	return strategy
}

// MergePolicies combines the default and plugin specific isolation policies.
func MergePolicies(defaults IsolationPolicy, plugin *IsolationPolicy) IsolationPolicy {
	if plugin == nil {
		return defaults
	}
	merged := plugin.Merge(defaults)
	if len(merged.AllowedCapabilities) == 0 && len(merged.DeniedCapabilities) == 0 {
		return defaults
	}
	return merged
}

// EnsurePolicy rejects plugins that declare capabilities without any policy
// governing them.
func EnsurePolicy(info Info, policy IsolationPolicy) error {
	if len(info.Capabilities) == 0 {
		return nil
	}
	if len(policy.AllowedCapabilities) == 0 && len(policy.DeniedCapabilities) == 0 {
		return errors.New("plugins declaring capabilities require an isolation policy")
	}
	return nil
}
