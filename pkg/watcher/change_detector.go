package watcher

// ChangeAnalysis describes what changed in the trace directory and whether
// the loaded trace set has to be rebuilt
type ChangeAnalysis struct {
	NeedReload   bool
	ChangedFiles []string
	RemovedFiles []string
}

// AnalyzeChanges folds a debounced event into a ChangeAnalysis. Removed files
// always force a reload since their traces must leave the merged graph.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{}

	switch event.Type {
	case ChangeTypeTraceWritten:
		analysis.ChangedFiles = event.Paths
		analysis.NeedReload = len(event.Paths) > 0
	case ChangeTypeTraceRemoved:
		analysis.RemovedFiles = event.Paths
		analysis.NeedReload = true
	}

	return analysis
}

// Merge combines two analyses of consecutive events
func (a *ChangeAnalysis) Merge(other *ChangeAnalysis) {
	a.NeedReload = a.NeedReload || other.NeedReload
	a.ChangedFiles = append(a.ChangedFiles, other.ChangedFiles...)
	a.RemovedFiles = append(a.RemovedFiles, other.RemovedFiles...)
}
