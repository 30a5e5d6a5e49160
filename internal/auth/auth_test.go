package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStatic_ResolveKnownToken(t *testing.T) {
	s := NewStatic()
	s.Register("tok-1", Identity{GuestID: "guest-1"})

	id, err := s.Resolve(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id.GuestID != "guest-1" {
		t.Errorf("GuestID = %q, want guest-1", id.GuestID)
	}
	if !id.IsGuest() {
		t.Error("IsGuest() = false, want true")
	}
}

func TestStatic_ResolveUnknownToken(t *testing.T) {
	s := NewStatic()
	s.Register("tok-1", Identity{GuestID: "guest-1"})

	if _, err := s.Resolve(context.Background(), "wrong"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve(wrong) error = %v, want ErrInvalidToken", err)
	}
	if _, err := s.Resolve(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resolve(empty) error = %v, want ErrInvalidToken", err)
	}
}

func TestStatic_RegisterReplacesIdentity(t *testing.T) {
	s := NewStatic()
	s.Register("tok-1", Identity{GuestID: "guest-1"})

	// Sign-in rebinds the same token to the user identity.
	s.Register("tok-1", Identity{UserID: "user-1"})

	id, err := s.Resolve(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id.UserID != "user-1" || id.GuestID != "" {
		t.Errorf("identity = %+v, want user-1 only", id)
	}
	if id.IsGuest() {
		t.Error("IsGuest() = true after sign-in, want false")
	}
}
