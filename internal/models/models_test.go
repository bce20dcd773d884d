package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    UserID
		wantErr bool
	}{
		{"canonical", "6f1c2a9e-3b5d-4e8f-9a7b-1c2d3e4f5a6b", "6f1c2a9e-3b5d-4e8f-9a7b-1c2d3e4f5a6b", false},
		{"upper case and padded", "  6F1C2A9E-3B5D-4E8F-9A7B-1C2D3E4F5A6B ", "6f1c2a9e-3b5d-4e8f-9a7b-1c2d3e4f5a6b", false},
		{"empty", "   ", "", true},
		{"not a uuid", "user-42", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUserID(tt.raw)
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Field != "user_id" {
					t.Fatalf("ParseUserID() error = %v, want user_id ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUserID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseUserID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckPhotoDeletable(t *testing.T) {
	tests := []struct {
		name      string
		isProfile bool
		live      int
		wantErr   bool
	}{
		{"only photo", false, 1, true},
		{"profile photo", true, 3, true},
		{"ordinary photo", false, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPhotoDeletable(tt.isProfile, tt.live)
			var serr *InvalidStateError
			if got := errors.As(err, &serr); got != tt.wantErr {
				t.Errorf("CheckPhotoDeletable() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPermissionGrants(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name string
		perm PermissionRequest
		want bool
	}{
		{"pending", PermissionRequest{Status: PermissionPending}, false},
		{"rejected", PermissionRequest{Status: PermissionRejected}, false},
		{"approved without expiry", PermissionRequest{Status: PermissionApproved}, true},
		{"approved and live", PermissionRequest{Status: PermissionApproved, ExpiresAt: &later}, true},
		{"approved and expired", PermissionRequest{Status: PermissionApproved, ExpiresAt: &earlier}, false},
		{"expires exactly now", PermissionRequest{Status: PermissionApproved, ExpiresAt: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.perm.Grants(now); got != tt.want {
				t.Errorf("Grants() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageCounterpart(t *testing.T) {
	a, b := NewUserID(), NewUserID()
	m := &Message{SenderID: a, RecipientID: b}

	if m.Counterpart(a) != b || m.Counterpart(b) != a {
		t.Error("Counterpart() should return the other party")
	}
	if !m.IsParticipant(a) || m.IsParticipant(NewUserID()) {
		t.Error("IsParticipant() mismatch")
	}
}
