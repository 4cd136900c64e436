package blocking

import "github.com/tracelens/trace-analyzer/pkg/model"

var recommendationTable = map[model.BottleneckType][]string{
	model.BottleneckDatabase: {
		"Consider adding database indexes",
		"Optimize query performance",
		"Implement connection pooling",
	},
	model.BottleneckNetwork: {
		"Implement request caching",
		"Reduce payload size",
		"Use connection keep-alive",
	},
	model.BottleneckIO: {
		"Implement file caching",
		"Use asynchronous I/O operations",
		"Optimize file access patterns",
	},
	model.BottleneckExternal: {
		"Implement circuit breaker pattern",
		"Add request timeout handling",
		"Consider service redundancy",
	},
	model.BottleneckCPU: {
		"Profile CPU-intensive operations",
		"Consider algorithm optimization",
		"Implement caching for expensive calculations",
	},
}

// Recommendations returns the canned advice for a bottleneck type. The
// returned slice is a copy and may be modified by the caller.
func Recommendations(kind model.BottleneckType) []string {
	advice := recommendationTable[kind]
	return append(make([]string, 0, len(advice)), advice...)
}
