package entities

import (
	"errors"
	"testing"
)

func TestLinkedAccount_DisplayHandle(t *testing.T) {
	tests := []struct {
		name    string
		account LinkedAccount
		want    string
	}{
		{name: "handle without at", account: LinkedAccount{Handle: "creator"}, want: "@creator"},
		{name: "handle with at", account: LinkedAccount{Handle: "@creator"}, want: "@creator"},
		{name: "falls back to username", account: LinkedAccount{ExternalUsername: "creator99"}, want: "@creator99"},
		{name: "empty", account: LinkedAccount{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.DisplayHandle(); got != tt.want {
				t.Errorf("DisplayHandle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuditLog_Builders(t *testing.T) {
	uid := "u1"
	log := NewAuditLog(&uid, ActionLinkFailed, ResourceLinkedAccount).
		WithResourceID("lnk_1").
		WithMetadata("kind", "csrf_violation").
		WithError(errors.New("state mismatch"))

	if log.Success {
		t.Error("expected Success = false after WithError")
	}
	if log.ErrorMsg == nil || *log.ErrorMsg != "state mismatch" {
		t.Errorf("ErrorMsg = %v, want state mismatch", log.ErrorMsg)
	}
	if !log.IsLinkOutcome() {
		t.Error("link.failed should be a link outcome")
	}

	data, err := log.MarshalMetadataToJSON()
	if err != nil {
		t.Fatalf("MarshalMetadataToJSON() error = %v", err)
	}
	if data != `{"kind":"csrf_violation"}` {
		t.Errorf("MarshalMetadataToJSON() = %s", data)
	}

	var restored AuditLog
	if err := restored.UnmarshalMetadataFromJSON(data); err != nil {
		t.Fatalf("UnmarshalMetadataFromJSON() error = %v", err)
	}
	if restored.Metadata["kind"] != "csrf_violation" {
		t.Errorf("restored metadata = %v", restored.Metadata)
	}
}
