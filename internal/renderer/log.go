package renderer

import (
	"fmt"
	"strings"
	"time"
)

// buildLog collects the render transcript stored as the pdf_log artifact.
type buildLog struct {
	b   strings.Builder
	now func() time.Time
}

func newBuildLog(now func() time.Time) *buildLog {
	return &buildLog{now: now}
}

func (l *buildLog) Printf(format string, args ...any) {
	l.b.WriteString(l.now().UTC().Format(time.RFC3339))
	l.b.WriteByte(' ')
	l.b.WriteString(fmt.Sprintf(format, args...))
	l.b.WriteByte('\n')
}

func (l *buildLog) Bytes() []byte {
	return []byte(l.b.String())
}
