package domain

// Stage names a pipeline step. They double as span names and metric labels.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageNaming     Stage = "naming"
	StageDownload   Stage = "download"
	StageRename     Stage = "rename"
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
	StageCleanup    Stage = "cleanup"
)

// RunState is a position in the linear run state machine.
type RunState string

const (
	StateStart          RunState = "start"
	StateNamingComputed RunState = "naming_computed"
	StateDownloaded     RunState = "downloaded"
	StateRenamed        RunState = "renamed"
	StateAudioExtracted RunState = "audio_extracted"
	StateTranscribed    RunState = "transcribed"
	StateResponded      RunState = "responded"
	StateFailed         RunState = "failed"
)

var nextState = map[RunState]RunState{
	StateStart:          StateNamingComputed,
	StateNamingComputed: StateDownloaded,
	StateDownloaded:     StateRenamed,
	StateRenamed:        StateAudioExtracted,
	StateAudioExtracted: StateTranscribed,
	StateTranscribed:    StateResponded,
}

// Next returns the successor state. Terminal states have none.
func (s RunState) Next() (RunState, bool) {
	n, ok := nextState[s]
	return n, ok
}

// Terminal reports whether no further transition is allowed.
func (s RunState) Terminal() bool {
	return s == StateResponded || s == StateFailed
}
