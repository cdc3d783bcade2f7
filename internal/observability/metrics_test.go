package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordBlockSent(512)
	RecordBlockReceived(512)
	RecordRetransmit("read")
	RecordSessionEnd("write", "completed", 3*time.Second)
	RecordHTTPRequest("GET", "/sessions", 200, 12*time.Millisecond)
}
