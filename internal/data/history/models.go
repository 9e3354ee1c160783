package history

import "time"

const SchemaVersion = 2

// Build is one recorded link run.
type Build struct {
	SchemaVersion int           `json:"schema_version"`
	ID            string        `json:"id"`
	Root          string        `json:"root"`
	Timestamp     time.Time     `json:"timestamp"`
	Duration      time.Duration `json:"duration"`
	ModuleCount   int           `json:"module_count"`
	FileCount     int           `json:"file_count"`
	Errors        []FileError   `json:"errors,omitempty"`
}

// FileError is one error recorded against a file during a build.
type FileError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (b Build) Failed() bool {
	return len(b.Errors) > 0
}

// FailedFiles lists the distinct files with errors, in recorded order.
func (b Build) FailedFiles() []string {
	seen := make(map[string]bool, len(b.Errors))
	var out []string
	for _, e := range b.Errors {
		if !seen[e.File] {
			seen[e.File] = true
			out = append(out, e.File)
		}
	}
	return out
}

type Summary struct {
	Root        string        `json:"root"`
	BuildCount  int           `json:"build_count"`
	FailedCount int           `json:"failed_count"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
	LastSuccess time.Time     `json:"last_success,omitempty"`
	// DeltaModules is the module count change between the oldest and newest build.
	DeltaModules int `json:"delta_modules"`
}

// Summarize aggregates builds in any order.
func Summarize(root string, builds []Build) Summary {
	s := Summary{Root: root, BuildCount: len(builds)}
	if len(builds) == 0 {
		return s
	}

	var total time.Duration
	oldest, newest := builds[0], builds[0]
	for _, b := range builds {
		total += b.Duration
		if b.Duration > s.MaxDuration {
			s.MaxDuration = b.Duration
		}
		if b.Failed() {
			s.FailedCount++
		} else if b.Timestamp.After(s.LastSuccess) {
			s.LastSuccess = b.Timestamp
		}
		if b.Timestamp.Before(oldest.Timestamp) {
			oldest = b
		}
		if b.Timestamp.After(newest.Timestamp) {
			newest = b
		}
	}
	s.AvgDuration = total / time.Duration(len(builds))
	s.DeltaModules = newest.ModuleCount - oldest.ModuleCount
	return s
}
