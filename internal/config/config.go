// Package config holds the validated settings of a pipeline run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/lox/flightcounts/internal/merge"
)

type Config struct {
	SourceDir  string `validate:"required"`
	OutputPath string `validate:"required"`
	FocalCode  string `validate:"required,uppercase,alphanum,min=3,max=4"`

	// MergePath is optional; the merge step is skipped when the file is absent.
	MergePath       string
	MergeOutputPath string
	MergeKey        string

	DBPath       string
	MetricsFile  string
	MappingsPath string
	Workers      int `validate:"min=1,max=64"`
}

// Default returns the settings used when no flags or env vars override them.
func Default() Config {
	return Config{
		SourceDir:  "data/raw/bts_flights",
		OutputPath: "data/processed/jfk_daily_scheduled_flights.csv",
		FocalCode:  "JFK",
		MergePath:  "data/processed/jfk_daily_merged.csv",
		MergeKey:   merge.DefaultKey,
		Workers:    4,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field in one error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// MergeOutput returns where the merged table is written.
func (c Config) MergeOutput() string {
	if c.MergeOutputPath != "" {
		return c.MergeOutputPath
	}
	return merge.DefaultOutput(c.MergePath)
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
