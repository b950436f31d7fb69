package executor

import (
	"strconv"
	"strings"
	"time"
)

// JobState is a Slurm job lifecycle state as reported by sacct.
type JobState string

const (
	StatePending   JobState = "PENDING"
	StateRunning   JobState = "RUNNING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
	StateCancelled JobState = "CANCELLED"
	StateTimeout   JobState = "TIMEOUT"
	StateNodeFail  JobState = "NODE_FAIL"
)

// Terminal reports whether no further state transition can occur.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout, StateNodeFail:
		return true
	}
	return false
}

// accountingFields is the field list requested from sacct. Parsing below
// depends on this exact order.
const accountingFields = "JobID,State,ExitCode,Elapsed,AllocCPUS,NodeList"

// StatusRecord is one parsed sacct accounting record: a snapshot of a batch
// job (or job step) at a point in time.
type StatusRecord struct {
	JobID     string
	State     JobState
	ExitCode  string // raw "code:signal" field
	Elapsed   string
	AllocCPUS string
	NodeList  string
}

// IsStep reports whether the record describes a job step (12345.batch,
// 12345+0) rather than the job itself.
func (r StatusRecord) IsStep() bool {
	return strings.ContainsAny(r.JobID, ".+")
}

// ParseExitCode splits a Slurm "code:signal" field. Missing or malformed
// halves come back as ExitUnknown.
func ParseExitCode(field string) (code, signal int) {
	code, signal = ExitUnknown, ExitUnknown
	before, after, found := strings.Cut(field, ":")
	if c, err := strconv.Atoi(before); err == nil {
		code = c
	}
	if !found {
		return code, signal
	}
	if s, err := strconv.Atoi(after); err == nil {
		signal = s
	}
	return code, signal
}

// ParseElapsed converts a Slurm elapsed field ([days-]hours:minutes:seconds)
// into a duration. Returns zero when the field is malformed.
func ParseElapsed(field string) time.Duration {
	days := 0
	if before, after, found := strings.Cut(field, "-"); found {
		d, err := strconv.Atoi(before)
		if err != nil {
			return 0
		}
		days = d
		field = after
	}
	parts := strings.Split(field, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return time.Duration(days*24+h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second
}

// ParseAccounting parses parsable2 noheader sacct output: one |-delimited
// record per line, fields in accountingFields order. Short or blank lines
// are dropped.
func ParseAccounting(out string) []StatusRecord {
	var records []StatusRecord
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 6 {
			continue
		}
		records = append(records, StatusRecord{
			JobID:     fields[0],
			State:     JobState(fields[1]),
			ExitCode:  fields[2],
			Elapsed:   fields[3],
			AllocCPUS: fields[4],
			NodeList:  fields[5],
		})
	}
	return records
}

// firstTerminal returns the first non-step record in terminal state, or nil.
func firstTerminal(records []StatusRecord) *StatusRecord {
	for i := range records {
		if records[i].IsStep() {
			continue
		}
		if records[i].State.Terminal() {
			return &records[i]
		}
	}
	return nil
}
