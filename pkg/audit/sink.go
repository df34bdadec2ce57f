package audit

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink receives audit records
type Sink interface {
	Write(rec Record) error
}

// lineFormatter renders "<timestamp> - audit - INFO - <message>"
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(entry.Time.UTC().Format(time.RFC3339))
	b.WriteString(" - audit - ")
	b.WriteString(levelName(entry.Level))
	b.WriteString(" - ")
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "WARNING"
	}
	return strings.ToUpper(level.String())
}

// LogrusSink renders records with a logrus.Formatter and writes the bytes
// to out itself. No logrus.Logger is involved, so write errors reach the
// caller instead of being printed to stderr.
type LogrusSink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter logrus.Formatter
	now       func() time.Time
}

// NewLogrusSink creates a sink writing audit lines to out
func NewLogrusSink(out io.Writer) *LogrusSink {
	return &LogrusSink{
		out:       out,
		formatter: lineFormatter{},
		now:       time.Now,
	}
}

// Write appends one line for rec
func (s *LogrusSink) Write(rec Record) error {
	entry := &logrus.Entry{
		Time:    s.now(),
		Level:   logrus.InfoLevel,
		Message: rec.String(),
	}

	line, err := s.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("failed to format audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(line); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}
