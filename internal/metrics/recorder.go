package metrics

import "time"

// Cache names used with IncCacheHit.
const (
	CacheLoad     = "load"
	CacheInclude  = "include"
	CacheFile     = "file"
	CacheCopy     = "copy"
	CacheIncluder = "includer"
	CacheDump     = "dump"
)

// Recorder defines observability hooks for toc resolution. Implementations
// may forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	ObserveLoadDuration(d time.Duration, success bool)
	IncFileRead()
	IncCacheHit(cache string)
	IncInclude(mode string)
	IncIncluderRun(name string)
	AddCopiedFiles(n int)
	SetEntries(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveLoadDuration(time.Duration, bool) {}
func (NoopRecorder) IncFileRead()                            {}
func (NoopRecorder) IncCacheHit(string)                      {}
func (NoopRecorder) IncInclude(string)                       {}
func (NoopRecorder) IncIncluderRun(string)                   {}
func (NoopRecorder) AddCopiedFiles(int)                      {}
func (NoopRecorder) SetEntries(int)                          {}
