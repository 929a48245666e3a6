package grab

import "fmt"

// State 抓取流程所处的阶段
//
//	Start -> RegistryConnecting -> (RegistryFailed | Looking) -> (LookupFailed | Holding)
//
// Holding 是唯一的稳定状态，其余失败状态都是终态。
type State int32

const (
	StateStart State = iota
	StateRegistryConnecting
	StateRegistryFailed
	StateLooking
	StateLookupFailed
	StateHolding
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateRegistryConnecting:
		return "registry_connecting"
	case StateRegistryFailed:
		return "registry_failed"
	case StateLooking:
		return "looking"
	case StateLookupFailed:
		return "lookup_failed"
	case StateHolding:
		return "holding"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal 是否为失败终态
func (s State) Terminal() bool {
	return s == StateRegistryFailed || s == StateLookupFailed
}
