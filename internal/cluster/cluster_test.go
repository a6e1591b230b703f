package cluster

import (
	"testing"
	"time"

	"meshsentinel/pkg/mesh"
)

func snapshotFor(id, typ, location string) mesh.EventSnapshot {
	return mesh.EventSnapshot{
		EventID:   id,
		Packet:    mesh.AlertPacket{EventID: id, Type: typ, Location: location},
		FirstSeen: time.Now(),
	}
}

func TestFallbackClusterGroupsByTypeAndLocationPrefix(t *testing.T) {
	events := []mesh.EventSnapshot{
		snapshotFor("E1", "FIRE", "North Dorm Building A"),
		snapshotFor("E2", "FIRE", "North Dorm Building B long tail"),
		snapshotFor("E3", "MEDICAL", "North Dorm Building A"),
	}

	result := fallbackCluster(events)

	if result.Source != "fallback" {
		t.Errorf("expected source=fallback, got %s", result.Source)
	}
	if result.OllamaAvailable {
		t.Error("expected ollama_available=false for fallback result")
	}

	// "North Dorm Building A" and "North Dorm Building B long tail" share
	// the same first-20-char prefix, so both FIRE events land in one cluster.
	var fireCluster *Cluster
	for i := range result.Clusters {
		if result.Clusters[i].Type == "FIRE" {
			fireCluster = &result.Clusters[i]
		}
	}
	if fireCluster == nil {
		t.Fatal("expected a FIRE cluster")
	}
	if len(fireCluster.EventIDs) != 2 {
		t.Errorf("expected both FIRE events grouped together, got %v", fireCluster.EventIDs)
	}
}

func TestExpandEventIDPrefixes(t *testing.T) {
	events := []mesh.EventSnapshot{
		{EventID: "ABCDEF1234567890"},
	}
	out := expandEventIDPrefixes([]string{"ABCDEF12"}, events)
	if len(out) != 1 || out[0] != "ABCDEF1234567890" {
		t.Errorf("expected prefix expanded to full id, got %v", out)
	}
}

func TestExpandEventIDPrefixesLeavesUnknownAlone(t *testing.T) {
	out := expandEventIDPrefixes([]string{"nomatch1"}, nil)
	if len(out) != 1 || out[0] != "nomatch1" {
		t.Errorf("expected unmatched id left as-is, got %v", out)
	}
}

func TestStripCodeFence(t *testing.T) {
	raw := "```json\n[{\"cluster_id\":\"c1\"}]\n```"
	got := stripCodeFence(raw)
	if got != `[{"cluster_id":"c1"}]` {
		t.Errorf("unexpected stripped output: %q", got)
	}
}

func TestParseClustersExtractsArrayAmongProse(t *testing.T) {
	raw := "Sure, here are the clusters:\n[{\"cluster_id\":\"c1\",\"label\":\"Fires\",\"event_ids\":[\"E1\"]}]\nLet me know if you need more."
	clusters, err := parseClusters(raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clusters) != 1 || clusters[0].ClusterID != "c1" {
		t.Errorf("unexpected clusters: %+v", clusters)
	}
}

func TestParseClustersRejectsNoArray(t *testing.T) {
	if _, err := parseClusters("no array here", nil); err == nil {
		t.Error("expected error when no JSON array is present")
	}
}
