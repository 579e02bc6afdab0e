package collab

import (
	"reflect"
	"sort"
	"testing"
)

func TestRegistry_JoinCreatesRoom(t *testing.T) {
	r := NewRegistry()

	if r.Active("cfg-1") {
		t.Error("room should not exist before first join")
	}
	if !r.Join("cfg-1", Participant{ConnID: "c1"}) {
		t.Error("first Join() = false, want true")
	}
	if !r.Active("cfg-1") {
		t.Error("room should be active after join")
	}
	if got := r.ParticipantCount("cfg-1"); got != 1 {
		t.Errorf("ParticipantCount() = %d, want 1", got)
	}
}

func TestRegistry_RejoinIsNotAnnounced(t *testing.T) {
	r := NewRegistry()
	r.Join("cfg-1", Participant{ConnID: "c1", User: "alice"})

	if r.Join("cfg-1", Participant{ConnID: "c1", User: "alice-renamed"}) {
		t.Error("rejoin of same connection should report joined=false")
	}
	if got := r.ParticipantCount("cfg-1"); got != 1 {
		t.Errorf("ParticipantCount() = %d, want 1", got)
	}
}

func TestRegistry_LastLeaveRemovesRoom(t *testing.T) {
	r := NewRegistry()
	r.Join("cfg-1", Participant{ConnID: "c1"})
	r.Join("cfg-1", Participant{ConnID: "c2"})

	if !r.Leave("cfg-1", "c1") {
		t.Error("Leave() = false, want true")
	}
	if !r.Active("cfg-1") {
		t.Error("room should stay active with one participant remaining")
	}

	r.Leave("cfg-1", "c2")
	if r.Active("cfg-1") {
		t.Error("room should be removed after last participant leaves")
	}
	if got := r.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Join("cfg-1", Participant{ConnID: "c1"})

	if !r.Leave("cfg-1", "c1") {
		t.Error("first Leave() = false, want true")
	}
	if r.Leave("cfg-1", "c1") {
		t.Error("second Leave() = true, want false (teardown fires once)")
	}
	if r.Leave("unknown-room", "c1") {
		t.Error("Leave() on unknown room = true, want false")
	}
}

func TestRegistry_LeaveAll(t *testing.T) {
	r := NewRegistry()
	r.Join("cfg-1", Participant{ConnID: "c1"})
	r.Join("cfg-2", Participant{ConnID: "c1"})
	r.Join("cfg-2", Participant{ConnID: "c2"})

	left := r.LeaveAll("c1")
	sort.Strings(left)
	if !reflect.DeepEqual(left, []string{"cfg-1", "cfg-2"}) {
		t.Errorf("LeaveAll() = %v, want [cfg-1 cfg-2]", left)
	}
	if r.Active("cfg-1") {
		t.Error("cfg-1 should be empty and removed")
	}
	if !r.Active("cfg-2") {
		t.Error("cfg-2 should survive; c2 is still present")
	}
	if got := r.LeaveAll("c1"); got != nil {
		t.Errorf("second LeaveAll() = %v, want nil", got)
	}
}

func TestRegistry_PeersExcludesSender(t *testing.T) {
	r := NewRegistry()
	r.Join("cfg-1", Participant{ConnID: "c1"})
	r.Join("cfg-1", Participant{ConnID: "c2"})
	r.Join("cfg-1", Participant{ConnID: "c3"})

	peers := r.Peers("cfg-1", "c1")
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ConnID
	}
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"c2", "c3"}) {
		t.Errorf("Peers() = %v, want [c2 c3]", ids)
	}
}

func TestRegistry_PeersUnknownRoom(t *testing.T) {
	r := NewRegistry()
	if got := r.Peers("nowhere", "c1"); got != nil {
		t.Errorf("Peers() on unknown room = %v, want nil", got)
	}
}

func TestRegistry_EmptyInputsRejected(t *testing.T) {
	r := NewRegistry()
	if r.Join("", Participant{ConnID: "c1"}) {
		t.Error("Join with empty room should be rejected")
	}
	if r.Join("cfg-1", Participant{}) {
		t.Error("Join with empty connection id should be rejected")
	}
	if r.RoomCount() != 0 {
		t.Error("rejected joins must not create rooms")
	}
}
