package checkpoint

import "testing"

func TestResumeStatus(t *testing.T) {
	tests := []struct {
		name string
		run  Run
		want Status
	}{
		{"in progress", Run{Status: StatusMinting}, StatusMinting},
		{"idle", Run{Status: StatusIdle}, StatusIdle},
		{"failed stage recorded", Run{Status: StatusFailed, FailedStage: StatusRegisteringCollection}, StatusRegisteringCollection},
		{"failed without stage, nothing produced", Run{Status: StatusFailed}, StatusPreparing},
		{"failed without stage, collection done", Run{Status: StatusFailed, CollectionMint: "C"}, StatusInitializingMechanism},
		{"failed without stage, lines loaded", Run{Status: StatusFailed, CollectionMint: "C", MechanismAddress: "M", ItemCount: 3, ConfigLinesLoaded: 3}, StatusMinting},
		{"failed without stage, lines partial", Run{Status: StatusFailed, CollectionMint: "C", MechanismAddress: "M", ItemCount: 3, ConfigLinesLoaded: 1}, StatusInitializingMechanism},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.run.ResumeStatus(); got != tc.want {
				t.Fatalf("ResumeStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPrecedes(t *testing.T) {
	if !StatusPreparing.Precedes(StatusMinting) {
		t.Fatal("preparing should precede minting")
	}
	if StatusMinting.Precedes(StatusPreparing) || StatusMinting.Precedes(StatusMinting) {
		t.Fatal("precedes must be strict and forward")
	}
	if StatusFailed.Precedes(StatusComplete) || StatusPreparing.Precedes(StatusFailed) {
		t.Fatal("failed is outside pipeline order")
	}
	if len(Statuses()) != 7 {
		t.Fatalf("unexpected status list: %v", Statuses())
	}
}
