package session

import "testing"

func TestProfilePatchApplyKeepsAbsentFields(t *testing.T) {
	s := *doctor()
	out := ProfilePatch{UserType: UserTypeProvider}.Apply(s)

	if out.Metadata.UserType != UserTypeProvider {
		t.Fatalf("user type not applied: %+v", out.Metadata)
	}
	if out.Metadata.FullName != "Dr. Rana" || out.Metadata.Status != StatusActive {
		t.Fatalf("absent fields overwritten: %+v", out.Metadata)
	}
	if s.Metadata.UserType != UserTypeDoctor {
		t.Fatal("Apply mutated its input")
	}
}

func TestProfilePatchApplyOnMissingMetadata(t *testing.T) {
	s := Session{ID: "u1", Role: RoleAuthenticated}
	out := ProfilePatch{Status: StatusInactive}.Apply(s)
	if out.Metadata == nil || out.Metadata.Status != StatusInactive {
		t.Fatalf("expected metadata to be created, got %+v", out.Metadata)
	}
}

func TestSessionAccessorsOnNil(t *testing.T) {
	var s *Session
	if s.Authenticated() || s.UserType() != "" || s.Status() != "" || s.Clone() != nil {
		t.Fatal("nil session accessors must report zero values")
	}
}

func TestValidEnums(t *testing.T) {
	for _, ut := range []UserType{UserTypeProvider, UserTypeDoctor, UserTypeAdmin} {
		if !ut.Valid() {
			t.Fatalf("%q should be valid", ut)
		}
	}
	if UserType("nurse").Valid() || AccountStatus("banned").Valid() {
		t.Fatal("unknown values reported valid")
	}
}
