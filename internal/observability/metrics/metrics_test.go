package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveMessage("ok")
	m.ObserveExtraction(750*time.Millisecond, false)
	m.ObserveExtraction(2*time.Second, true)
	m.ObserveReply(time.Second)
	m.ObserveRejection("role")
	m.ObserveAction("share_scheduling_link")
	m.ObserveInjectionBlock()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestChatMetricsNilSafe(t *testing.T) {
	var m *ChatMetrics
	m.ObserveMessage("ok")
	m.ObserveExtraction(time.Second, true)
	m.ObserveReply(time.Second)
	m.ObserveRejection("role")
	m.ObserveAction("mark_needs_contact")
	m.ObserveInjectionBlock()
}
