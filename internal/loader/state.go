package loader

// State is the lifecycle state of a loaded-mod record.
type State int

const (
	// Discovered means the mod's descriptor is known but nothing ran yet.
	Discovered State = iota
	// Loaded means the mod's code module was instantiated.
	Loaded
	// Initialized means the mod completed initialization and is active.
	Initialized
	// Failed is terminal for this attempt; a later reload may retry.
	Failed
	// Unloaded means the mod was shut down and its patches removed.
	Unloaded
)

// String returns the state name used in logs and events.
func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Loaded:
		return "loaded"
	case Initialized:
		return "initialized"
	case Failed:
		return "failed"
	case Unloaded:
		return "unloaded"
	}
	return "unknown"
}
