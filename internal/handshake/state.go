package handshake

// State is a participant state.
type State string

// Participant states.
const (
	StateWaiting       State = "WAITING_FOR_CREDENTIALS"
	StateEndpointFound State = "ENDPOINT_FOUND"
	StateFallback      State = "FALLBACK_DISCOVERY"
	StateHealthy       State = "HEALTHY"
	StateJoining       State = "JOINING"
	StateJoined        State = "JOINED"
	StateFailed        State = "FAILED"
)

var transitions = map[State][]State{
	"":                 {StateWaiting},
	StateWaiting:       {StateEndpointFound, StateFallback, StateFailed},
	StateEndpointFound: {StateHealthy, StateFallback, StateFailed},
	StateHealthy:       {StateJoining, StateEndpointFound, StateFailed},
	StateFallback:      {StateHealthy, StateFailed},
	StateJoining:       {StateJoined, StateFailed},
}

// CanTransition reports whether the participant may move from one state to
// another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateJoined || s == StateFailed
}
