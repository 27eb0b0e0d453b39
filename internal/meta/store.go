// Package meta stores per-file metadata gathered while resolving tocs: the
// origin of files copied by merge includes and the restricted-access groups
// declared on toc items.
package meta

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/tocbuilder/internal/foundation/normalization"
)

// FileMeta is the metadata known for one file.
type FileMeta struct {
	Path             string   `yaml:"path"`
	SourcePath       string   `yaml:"source-path,omitempty"`
	RestrictedAccess []string `yaml:"restricted-access,omitempty"`
}

// Store records and answers per-file metadata.
type Store interface {
	RecordSourcePath(ctx context.Context, target, origin string) error
	RecordRestrictedAccess(ctx context.Context, file string, access []string) error
	SourcePath(ctx context.Context, file string) (string, bool, error)
	RestrictedAccess(ctx context.Context, file string) ([]string, error)
	Files(ctx context.Context) ([]FileMeta, error)
	Close() error
}

// Driver selects a Store implementation.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
)

var drivers = normalization.NewNormalizer("meta driver", map[string]Driver{
	"memory": DriverMemory,
	"sqlite": DriverSQLite,
}, DriverMemory)

// ParseDriver parses a driver name; the empty string selects memory.
func ParseDriver(raw string) (Driver, error) {
	return drivers.NormalizeWithError(raw)
}

// Open returns a Store for driver. dsn is the database path for sqlite.
func Open(driver Driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.ConfigError("sqlite meta store requires a path").Build()
		}
		return NewSQLiteStore(dsn)
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown meta driver %q", driver)).Build()
	}
}

// appendUnique appends the values of add missing from list.
func appendUnique(list []string, add []string) []string {
	for _, a := range add {
		found := false
		for _, l := range list {
			if l == a {
				found = true
				break
			}
		}
		if !found && a != "" {
			list = append(list, a)
		}
	}
	return list
}
