package models

// StageStatus tracks the progress of one pipeline stage.
type StageStatus int

const (
	StagePending StageStatus = iota
	StageRunning
	StageDone
	StageSkipped
	StageFailed
)

func (s StageStatus) String() string {
	switch s {
	case StageRunning:
		return "running"
	case StageDone:
		return "done"
	case StageSkipped:
		return "skipped"
	case StageFailed:
		return "failed"
	default:
		return "pending"
	}
}
