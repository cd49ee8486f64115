package core

import "sync"

// State is the host-side view of the strip. The device never reports back,
// so this only reflects what has been sent.
type State struct {
	mu             sync.RWMutex
	IsConnected    bool   `json:"connected"`
	Address        string `json:"address"`
	Name           string `json:"name"`
	RSSI           int16  `json:"rssi"`
	Power          bool   `json:"isOn"`
	ColorR         int    `json:"r"`
	ColorG         int    `json:"g"`
	ColorB         int    `json:"b"`
	Brightness     int    `json:"brightness"`
	Speed          int    `json:"speed"`
	Mode           string `json:"mode"`
	RunningPattern string `json:"runningPattern"`
}

// NewState creates a new State instance.
func NewState() *State {
	return &State{Brightness: 100, Speed: 50}
}

// Clone returns a snapshot of the current state for safe reading.
func (s *State) Clone() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		IsConnected:    s.IsConnected,
		Address:        s.Address,
		Name:           s.Name,
		RSSI:           s.RSSI,
		Power:          s.Power,
		ColorR:         s.ColorR,
		ColorG:         s.ColorG,
		ColorB:         s.ColorB,
		Brightness:     s.Brightness,
		Speed:          s.Speed,
		Mode:           s.Mode,
		RunningPattern: s.RunningPattern,
	}
}

// SetConnection updates connection state.
func (s *State) SetConnection(connected bool, address, name string, rssi int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsConnected = connected
	s.Address = address
	s.Name = name
	s.RSSI = rssi
}

// SetPower updates the power state.
func (s *State) SetPower(power bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Power = power
}

// SetColor updates the RGB color state. A static color replaces any mode.
func (s *State) SetColor(r, g, b int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ColorR = r
	s.ColorG = g
	s.ColorB = b
	s.Mode = ""
}

// SetBrightness updates the brightness state.
func (s *State) SetBrightness(brightness int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Brightness = brightness
}

// SetSpeed updates the speed state.
func (s *State) SetSpeed(speed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Speed = speed
}

// SetMode records the active hardware mode by name.
func (s *State) SetMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mode = mode
}

// SetRunningPattern updates the running pattern state.
func (s *State) SetRunningPattern(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunningPattern = pattern
}
