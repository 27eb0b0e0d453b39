package config

import (
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/normalization"
	"git.home.luguber.info/inful/tocbuilder/internal/meta"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Input, validation.Required),
		validation.Field(&c.Output, validation.Required),
	); err != nil {
		return err
	}
	if err := c.Toc.Validate(); err != nil {
		return fmt.Errorf("toc: %w", err)
	}
	if err := c.Copy.Validate(); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := c.Meta.Validate(); err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return validation.ValidateStruct(&c.Watch,
		validation.Field(&c.Watch.Debounce, validation.Min(0)),
	)
}

// Validate validates the toc configuration.
func (c *TocConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Filename, validation.Required, validation.By(plainFilename)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(1024)),
		validation.Field(&c.DefaultExtension, validation.Required, validation.By(extension)),
		validation.Field(&c.MaxIncludeDepth, validation.Min(0)),
		validation.Field(&c.Roots, validation.Each(validation.Required)),
	)
}

// Validate checks that every exclude pattern compiles.
func (c *CopyConfig) Validate() error {
	for _, p := range c.Exclude {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}
	return nil
}

// Validate validates the meta store configuration.
func (c *MetaConfig) Validate() error {
	driver, err := meta.ParseDriver(c.Driver)
	if err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(driver == meta.DriverSQLite, validation.Required)),
	)
}

// Validate rejects unknown levels and formats rather than silently defaulting.
func (c *LoggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.By(oneOf(logLevelNormalizer))),
		validation.Field(&c.Format, validation.By(oneOf(logFormatNormalizer))),
	)
}

func oneOf[T comparable](n *normalization.Normalizer[T]) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		_, err := n.NormalizeWithError(s)
		return err
	}
}

func plainFilename(value any) error {
	s, _ := value.(string)
	if s != path.Base(s) || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("must be a file name without directories")
	}
	return nil
}

func extension(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, ".") || len(s) < 2 {
		return fmt.Errorf("must start with a dot")
	}
	return nil
}
