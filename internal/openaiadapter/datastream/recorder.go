package datastream

import "time"

// Recorder observes transcoding. Implementations must be safe for concurrent use
// because one Recorder serves all sessions.
type Recorder interface {
	Frame(tag Tag)
	DroppedFrame(reason DropReason)
	UpstreamResponse(statusCode int)
	StreamFinished(outcome Outcome, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Frame(Tag)                             {}
func (nopRecorder) DroppedFrame(DropReason)               {}
func (nopRecorder) UpstreamResponse(int)                  {}
func (nopRecorder) StreamFinished(Outcome, time.Duration) {}
