package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTableName is the table that an ExecRecorder writes.
const ExecTableName = "exec_info"

// ExecInfo is a row of the execution table.
type ExecInfo struct {
	Property string
	Value    string
}

// An ExecRecorder records how the program was started and when it ended.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the execution table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTableName, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start remembers the start time, the command line, and the working
// directory of the current execution.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", timestamp()},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if cwd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", cwd})
	}
}

// AddProperty records an extra fact about the execution, such as a
// configuration value.
func (e *ExecRecorder) AddProperty(property, value string) {
	e.entries = append(e.entries, ExecInfo{property, value})
}

// End writes the execution information along with the end time.
func (e *ExecRecorder) End() {
	e.entries = append(e.entries, ExecInfo{"End Time", timestamp()})

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTableName, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
