package tool

import "sync"

// ToolInvokeObservation captures one dispatched tool call.
type ToolInvokeObservation struct {
	ToolName   string
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// UpstreamObservation captures one logical Oracle request, including retries.
type UpstreamObservation struct {
	// Operation is a short name such as "soap.runReport" or "rest.get".
	Operation  string
	Attempts   int
	StatusCode int
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// UpstreamRetryObservation captures one retry of an Oracle request.
type UpstreamRetryObservation struct {
	Operation string
	Attempt   int
	ErrorCode string
}

// Observer receives tool-level observability events.
type Observer interface {
	ObserveInvoke(observation ToolInvokeObservation)
	ObserveUpstream(observation UpstreamObservation)
	ObserveRetry(observation UpstreamRetryObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveInvoke(ToolInvokeObservation)   {}
func (noopObserver) ObserveUpstream(UpstreamObservation)   {}
func (noopObserver) ObserveRetry(UpstreamRetryObservation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide observer. nil restores the no-op observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

// ActiveObserver returns the current process-wide observer.
func ActiveObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return activeObserver
}

func emitInvokeObservation(observation ToolInvokeObservation) {
	ActiveObserver().ObserveInvoke(observation)
}
