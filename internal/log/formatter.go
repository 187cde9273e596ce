package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultTimeLayout = "2006-01-02 15:04:05.000"

// formatter renders entries through a pattern with the placeholders
// %time, %level, %field, %msg, %caller, %func and %n (newline).
type formatter struct {
	pattern string
	time    string
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	layout := f.time
	if layout == "" {
		layout = defaultTimeLayout
	}

	caller, fn := "unknown", "unknown"
	if strings.Contains(f.pattern, "%caller") || strings.Contains(f.pattern, "%func") {
		if frame, ok := callSite(); ok {
			caller, fn = formatCaller(frame), funcName(frame.Function)
		}
	}

	r := strings.NewReplacer(
		"%time", entry.Time.Format(layout),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%caller", caller,
		"%func", fn,
		"%n", "\n",
	)
	out := r.Replace(f.pattern)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return []byte(out), nil
}

// callSite finds the first frame outside logrus and this package's adapter.
func callSite() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "github.com/sirupsen/logrus") &&
			!strings.Contains(frame.Function, "internal/log.(*logrusAdapter)") &&
			!strings.Contains(frame.Function, "internal/log.(*formatter)") {
			return frame, frame.Function != ""
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

// formatCaller returns package/file.go:line.
func formatCaller(frame runtime.Frame) string {
	fn := frame.Function
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	pkg, _, _ := strings.Cut(fn, ".")
	return fmt.Sprintf("%s/%s:%d", pkg, filepath.Base(frame.File), frame.Line)
}

// funcName keeps only the function or method name.
func funcName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// buildFields renders fields as sorted key=value pairs.
func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, k+"="+fmt.Sprint(entry.Data[k]))
	}
	return strings.Join(fields, ",")
}
