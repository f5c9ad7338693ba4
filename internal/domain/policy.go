package domain

// OptimisticPolicy decides what a write does with its local mutation when the
// remote command fails.
type OptimisticPolicy int

const (
	// PolicyKeepOnFailure applies locally first and keeps the change on failure.
	// The failure is logged and not reported to the caller.
	PolicyKeepOnFailure OptimisticPolicy = iota
	// PolicyRollbackOnFailure applies locally first and restores the previous
	// snapshot on failure. The failure is reported.
	PolicyRollbackOnFailure
	// PolicyRemoteFirst changes nothing locally; on success the store refreshes
	// from the remote state, on failure the error is reported.
	PolicyRemoteFirst
)

func (p OptimisticPolicy) String() string {
	switch p {
	case PolicyKeepOnFailure:
		return "keep_on_failure"
	case PolicyRollbackOnFailure:
		return "rollback_on_failure"
	case PolicyRemoteFirst:
		return "remote_first"
	default:
		return "unknown"
	}
}

// WritePolicies is the per-action contract. Responses are low stakes so a failed
// delete stays deleted; stories must track the sheet.
var WritePolicies = map[Action]OptimisticPolicy{
	ActionSubmitAnswer:   PolicyKeepOnFailure,
	ActionDeleteResponse: PolicyKeepOnFailure,
	ActionDeleteStory:    PolicyRollbackOnFailure,
	ActionAddStory:       PolicyRemoteFirst,
	ActionEditStory:      PolicyRemoteFirst,
}

// PolicyFor returns the policy for an action, defaulting to PolicyRemoteFirst.
func PolicyFor(a Action) OptimisticPolicy {
	if p, ok := WritePolicies[a]; ok {
		return p
	}
	return PolicyRemoteFirst
}
