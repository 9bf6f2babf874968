package arena

import (
	"fmt"
	"sync"
)

// State is a step of the client's top-level flow.
type State int

const (
	StateMenu State = iota
	StateOnlineConnecting
	StateOnlineWaiting
	StateOnlineActive
	StateOfflineSetup
	StateOfflineActive
	StateGameOver
	StateExit
)

var stateNames = map[State]string{
	StateMenu:             "menu",
	StateOnlineConnecting: "online_connecting",
	StateOnlineWaiting:    "online_waiting",
	StateOnlineActive:     "online_active",
	StateOfflineSetup:     "offline_setup",
	StateOfflineActive:    "offline_active",
	StateGameOver:         "game_over",
	StateExit:             "exit",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the allowed next states. Every non-terminal state may
// fall back to the menu: connection failures, relay errors and a quit all
// return the user there.
var transitions = map[State][]State{
	StateMenu:             {StateOnlineConnecting, StateOfflineSetup, StateExit},
	StateOnlineConnecting: {StateOnlineWaiting, StateMenu},
	StateOnlineWaiting:    {StateOnlineActive, StateMenu},
	StateOnlineActive:     {StateGameOver, StateMenu},
	StateOfflineSetup:     {StateOfflineActive, StateMenu},
	StateOfflineActive:    {StateGameOver, StateMenu},
	StateGameOver:         {StateMenu, StateExit},
}

type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// Machine tracks the current state and rejects transitions not in the table.
type Machine struct {
	mu      sync.Mutex
	current State
	onEnter func(from, to State)
}

func NewMachine() *Machine { return &Machine{current: StateMenu} }

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	from := m.current
	if !allowed(from, to) {
		m.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	m.current = to
	hook := m.onEnter
	m.mu.Unlock()
	if hook != nil {
		hook(from, to)
	}
	return nil
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
