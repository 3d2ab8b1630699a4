package storage

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)
