package identity

import "log/slog"

// KeySource indicates which value a pseudonym was derived from
type KeySource string

const (
	KeyAccession KeySource = "accession"
	KeyDirectory KeySource = "directory"
)

// Linker maps real identifiers to pseudonyms. It holds only the immutable
// patterns, so one Linker is shared by all workers.
type Linker struct {
	patterns Patterns
	logger   *slog.Logger
}

// NewLinker creates a linker for the given patterns.
func NewLinker(patterns Patterns, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{patterns: patterns, logger: logger}
}

// Pseudonymize shifts an identifier with the identifier pattern.
func (l *Linker) Pseudonymize(key string) string {
	return Shift(key, l.patterns.Shift)
}

// ShiftDate shifts a date value with the date pattern.
func (l *Linker) ShiftDate(value string) string {
	return Shift(value, l.patterns.Date)
}

// PseudonymFor derives the exam pseudonym. A numeric accession number is
// used directly; otherwise fallbackKey (the input directory name) is shifted
// instead and a warning is logged.
func (l *Linker) PseudonymFor(accession, fallbackKey string) (string, KeySource) {
	if IsNumeric(accession) {
		id := l.Pseudonymize(accession)
		l.logger.Debug("pseudonym from accession number", "pseudonym", id)
		return id, KeyAccession
	}

	l.logger.Warn("accession number is not numeric; shifting is degraded, using directory name instead",
		"directory", fallbackKey)
	return l.Pseudonymize(fallbackKey), KeyDirectory
}
