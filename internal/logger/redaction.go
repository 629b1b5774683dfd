package logger

import (
	"io"
	"regexp"
)

// Redactor redacts sensitive information from logs
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// OpenAI API keys
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			// Bearer tokens
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// Gateway shared secrets
			regexp.MustCompile(`shared_secret["\s:=]+[^\s"]+`),
			regexp.MustCompile(`secret["\s:=]+[^\s"]+`),

			// Generic API keys and tokens
			regexp.MustCompile(`api_key["\s:=]+[^\s"]+`),
			regexp.MustCompile(`token["\s:=]+[a-zA-Z0-9._-]{20,}`),
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces sensitive substrings with a placeholder
func (r *Redactor) Redact(data []byte) []byte {
	for _, re := range r.patterns {
		data = re.ReplaceAll(data, []byte("[REDACTED]"))
	}
	return data
}

// Wrap wraps a writer so everything written through it is redacted
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{redactor: r, inner: w}
}

type redactingWriter struct {
	redactor *Redactor
	inner    io.Writer
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.inner.Write(w.redactor.Redact(p)); err != nil {
		return 0, err
	}
	// Report the original length so zerolog does not treat redaction
	// shrinkage as a short write.
	return len(p), nil
}
