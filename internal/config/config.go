// Package config collects run settings from flags, environment variables
// (prefix TOMO_ANON) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tomo-anonymizer/internal/audit"
	dcm "tomo-anonymizer/internal/dicom"
)

// EnvPrefix is prepended to every environment variable, e.g. TOMO_ANON_STUDY_ID.
const EnvPrefix = "TOMO_ANON"

// Keys shared by flags, environment and config file.
const (
	KeyInput          = "input"
	KeyOutput         = "output"
	KeyFields         = "fields"
	KeyStudyID        = "study-id"
	KeyRecursive      = "recursive"
	KeyVerbose        = "verbose"
	KeyLogFile        = "logfile"
	KeyPolicy         = "policy"
	KeyActionColumn   = "action-column"
	KeyPattern        = "pattern"
	KeyWorkers        = "workers"
	KeyKeepWorkspace  = "keep-workspace"
	KeyResume         = "resume"
	KeyDryRun         = "dry-run"
	KeyDecompressTool = "decompress-tool"
	KeyExpandTool     = "expand-tool"
	KeyAuditTable     = "audit-table"
	KeyLockTimeout    = "lock-timeout"
	KeyTempDir        = "temp-dir"
)

// ErrNoInput is returned by Validate when no input directory is set.
var ErrNoInput = errors.New("no input directory given")

// Settings is a snapshot of the run configuration. It is built once and
// passed by value.
type Settings struct {
	InputDir       string
	OutputDir      string
	RemoveTags     []string
	StudyID        string
	Recursive      bool
	Verbosity      int
	LogFile        string
	PolicyTable    string
	ActionColumn   string
	PatternFile    string
	Workers        int
	KeepWorkspace  bool
	Resume         bool
	DryRun         bool
	DecompressTool string
	ExpandTool     string
	AuditTable     string
	LockTimeout    time.Duration
	TempDir        string
}

// RegisterFlags declares every setting on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyInput, "i", "", "input directory with DICOM files")
	fs.StringP(KeyOutput, "o", "", "output directory (default: the input directory)")
	fs.StringSliceP(KeyFields, "f", nil, "tags to remove, replaces the policy's Remove set (e.g. 0x00100010)")
	fs.StringP(KeyStudyID, "s", "", "study ID written into StudyID and used as output subdirectory")
	fs.BoolP(KeyRecursive, "r", false, "descend into subdirectories")
	fs.CountP(KeyVerbose, "v", "verbosity (-v info, -vv debug)")
	fs.StringP(KeyLogFile, "l", "", "also write the log to this file")
	fs.String(KeyPolicy, "", "policy table CSV (default: built-in profile)")
	fs.String(KeyActionColumn, "", "action column of the policy table (default \"Action\")")
	fs.String(KeyPattern, "", "shift-pattern file: line 1 identifier pattern, line 2 date pattern")
	fs.Int(KeyWorkers, 1, "number of files processed concurrently")
	fs.Bool(KeyKeepWorkspace, false, "keep the workspace of files with a failed codec stage")
	fs.Bool(KeyResume, false, "skip files that already succeeded in a previous run")
	fs.BoolP(KeyDryRun, "n", false, "only show what would be done, write nothing")
	fs.String(KeyDecompressTool, dcm.DefaultDecompressTool, "decompression tool")
	fs.String(KeyExpandTool, dcm.DefaultExpandTool, "frame expansion tool")
	fs.String(KeyAuditTable, audit.DefaultTableName, "audit table name, relative to the output directory")
	fs.Duration(KeyLockTimeout, audit.DefaultLockTimeout, "maximum wait for the audit table lock")
	fs.String(KeyTempDir, "", "parent directory for per-file workspaces (default: system temp)")
}

// New returns a viper instance bound to fs and the environment. A non-empty
// configFile is read as YAML.
func New(fs *pflag.FlagSet, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("could not bind flags: %w", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads the settings from v.
func Load(v *viper.Viper) Settings {
	return Settings{
		InputDir:       v.GetString(KeyInput),
		OutputDir:      v.GetString(KeyOutput),
		RemoveTags:     v.GetStringSlice(KeyFields),
		StudyID:        v.GetString(KeyStudyID),
		Recursive:      v.GetBool(KeyRecursive),
		Verbosity:      v.GetInt(KeyVerbose),
		LogFile:        v.GetString(KeyLogFile),
		PolicyTable:    v.GetString(KeyPolicy),
		ActionColumn:   v.GetString(KeyActionColumn),
		PatternFile:    v.GetString(KeyPattern),
		Workers:        v.GetInt(KeyWorkers),
		KeepWorkspace:  v.GetBool(KeyKeepWorkspace),
		Resume:         v.GetBool(KeyResume),
		DryRun:         v.GetBool(KeyDryRun),
		DecompressTool: v.GetString(KeyDecompressTool),
		ExpandTool:     v.GetString(KeyExpandTool),
		AuditTable:     v.GetString(KeyAuditTable),
		LockTimeout:    v.GetDuration(KeyLockTimeout),
		TempDir:        v.GetString(KeyTempDir),
	}
}

// Validate checks that the settings describe a runnable batch.
func (s Settings) Validate() error {
	if s.InputDir == "" {
		return ErrNoInput
	}
	info, err := os.Stat(s.InputDir)
	if err != nil {
		return fmt.Errorf("could not access input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input %s is not a directory", s.InputDir)
	}
	if s.PatternFile == "" {
		return errors.New("no shift-pattern file given (--pattern)")
	}
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	return nil
}

// OutputRoot is the directory pseudonym trees are written to: the output
// directory (or the input directory), plus the study ID when one is set.
func (s Settings) OutputRoot() string {
	root := s.OutputDir
	if root == "" {
		root = s.InputDir
	}
	if s.StudyID != "" {
		root = filepath.Join(root, s.StudyID)
	}
	return root
}

// AuditPath resolves the audit table against the output root.
func (s Settings) AuditPath() string {
	name := s.AuditTable
	if name == "" {
		name = audit.DefaultTableName
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.OutputRoot(), name)
}
