// Package contracts declares the interfaces botcore depends on for every
// collaborator that lives outside this core: the browser-automation layer,
// the object-storage uploader, the transcription word-poster, the live
// streaming sink, and the DOM/browser resources the cleanup coordinator
// tears down. Production wiring supplies real implementations; tests
// supply fakes against the same interfaces.
package contracts

import "context"

// MeetingPage is the handle on the live meeting page held by the
// browser-automation layer. The capture session uses it only to request
// emission of the sync tone; the wall-clock moment the meeting itself began
// reaches the session separately, through Session.SetMeetingStartTime.
type MeetingPage interface {
	// RequestSyncTone asks the page to play the sync tone. Returns an error
	// only if the page could not be reached at all; a wrong or missing tone
	// surfaces later as a SyncFailure once the planner can't locate it.
	RequestSyncTone(ctx context.Context) error
}

// StreamingSink is the real-time transcription consumer's ingestion point
// for the live float-PCM feed. Delivery is best-effort: dropped frames are
// never retransmitted.
type StreamingSink interface {
	// WriteFrames hands off a batch of mono float32 samples. Implementations
	// must not block the caller for long; botcore treats any error as a
	// dropped batch, not a fatal condition.
	WriteFrames(samples []float32) error
}

// SinkStopper is implemented by StreamingSink backends that hold a
// connection worth closing explicitly. The cleanup coordinator type-
// asserts for it rather than widening StreamingSink itself, since not every
// sink needs an explicit stop.
type SinkStopper interface {
	Stop(ctx context.Context) error
}

// Uploader is the object-storage collaborator. UploadOptions.Chunk, when
// set, asks the backend to attach shorter-TTL metadata. Delete is used to
// remove objects that a later stage has made redundant, such as chunk
// uploads once the final merged artifact they were extracted from is
// itself safely uploaded.
type Uploader interface {
	Upload(ctx context.Context, localPath, bucket, key string, opts UploadOptions) error
	Delete(ctx context.Context, bucket, key string) error
}

// UploadOptions carries per-upload hints to the storage backend.
type UploadOptions struct {
	Chunk       bool
	ContentType string
}

// TranscriptionPoster consumes word lists tagged with segment offsets, one
// of the collaborators referenced only through its contract.
type TranscriptionPoster interface {
	PostWords(ctx context.Context, segmentOffsetSeconds float64, words []string) error
}

// DialogObserver, SpeakersObserver, and HTMLCleaner are the best-effort
// teardown targets the cleanup coordinator drives. They are kept
// deliberately minimal: botcore only ever calls Stop on them.
type DialogObserver interface {
	Stop()
}

type SpeakersObserver interface {
	Stop(ctx context.Context) error
}

type HTMLCleaner interface {
	Stop(ctx context.Context) error
}

// BrowserPage is the page/context handle closed in the cleanup
// coordinator's final sequential step. Errors are swallowed by design.
type BrowserPage interface {
	Close() error
}

// BrandingProcess is the optional branding overlay subprocess terminated
// during cleanup step 3.
type BrandingProcess interface {
	Terminate() error
}
