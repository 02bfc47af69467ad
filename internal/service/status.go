package service

type BuildState int

const (
	BuildStateSuccess BuildState = iota
	BuildStateConfigInvalid
	BuildStateResolveFailed
	BuildStateRegisterFailed
	BuildStatePolicyFailed
	BuildStateRevisionFailed
	BuildStatePublishFailed
)

func (s BuildState) String() string {
	switch s {
	case BuildStateSuccess:
		return "SUCCESS"
	case BuildStateConfigInvalid:
		return "CONFIG_INVALID"
	case BuildStateResolveFailed:
		return "RESOLVE_FAILED"
	case BuildStateRegisterFailed:
		return "REGISTER_FAILED"
	case BuildStatePolicyFailed:
		return "POLICY_FAILED"
	case BuildStateRevisionFailed:
		return "REVISION_FAILED"
	case BuildStatePublishFailed:
		return "PUBLISH_FAILED"
	default:
		return "UNKNOWN"
	}
}

type Status struct {
	State   BuildState `json:"state"`
	Message string     `json:"message,omitempty"`
}
