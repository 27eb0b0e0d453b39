package build

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/tocbuilder/internal/config"
)

// BuildService is the canonical interface for executing toc builds.
type BuildService interface {
	// Run opens a session, builds once and closes it.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a build.
type BuildRequest struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	// Roots overrides the configured top-level tocs when non-empty.
	Roots []string

	// DryRun resolves everything but writes no output.
	DryRun bool
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	Status BuildStatus

	// OutputPath is the directory the resolved tocs were written to.
	OutputPath string

	// Tocs lists the top-level tocs that resolved, Skipped those whose
	// stage is ignored.
	Tocs    []string
	Skipped []string

	// Entries lists every content file referenced by the resolved tocs.
	Entries []string

	// FilesWritten is the number of files written below OutputPath.
	FilesWritten int

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	BuildStatusSuccess   BuildStatus = "success"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	options []SessionOption
}

// NewBuildService creates a DefaultBuildService; options are passed to every
// session it opens.
func NewBuildService(options ...SessionOption) *DefaultBuildService {
	return &DefaultBuildService{options: options}
}

// Run executes the complete build pipeline.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()
	sess, err := Open(ctx, req.Config, s.options...)
	if err != nil {
		return failed(start, err), err
	}
	defer sess.Close()

	if len(req.Roots) > 0 {
		sess.roots = req.Roots
	}
	if req.DryRun {
		res, err := sess.Resolve(ctx)
		if err != nil {
			return failed(start, err), err
		}
		return res, nil
	}
	res, err := sess.Build(ctx)
	if err != nil {
		return failed(start, err), err
	}
	return res, nil
}

func failed(start time.Time, err error) *BuildResult {
	status := BuildStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = BuildStatusCancelled
	}
	end := time.Now()
	return &BuildResult{Status: status, StartTime: start, EndTime: end, Duration: end.Sub(start)}
}
