package model

import "testing"

func TestTaskStatus_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   TaskStatus
		want TaskStatus
	}{
		{TaskStatusPending, TaskStatusInProgress},
		{TaskStatusInProgress, TaskStatusCompleted},
		{TaskStatusCompleted, TaskStatusPending},
	}

	for _, tt := range tests {
		if got := tt.in.Next(); got != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseTaskStatus(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"pending", "in-progress", "completed"} {
		if _, err := ParseTaskStatus(s); err != nil {
			t.Errorf("ParseTaskStatus(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "done", "Pending", "in_progress"} {
		if _, err := ParseTaskStatus(s); err == nil {
			t.Errorf("ParseTaskStatus(%q) should fail", s)
		}
	}
}

func TestParseTaskPriority(t *testing.T) {
	t.Parallel()

	if p, err := ParseTaskPriority("high"); err != nil || p != TaskPriorityHigh {
		t.Errorf("ParseTaskPriority(high) = %q, %v", p, err)
	}
	if _, err := ParseTaskPriority("urgent"); err == nil {
		t.Error("ParseTaskPriority(urgent) should fail")
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"admin", RoleAdmin, false},
		{"ADMIN", "", true},
		{"superuser", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  Alice@X.com "); got != "alice@x.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestUser_IsAdmin(t *testing.T) {
	t.Parallel()

	var nilUser *User
	if nilUser.IsAdmin() {
		t.Error("nil user should not be admin")
	}
	if (&User{Role: RoleUser}).IsAdmin() {
		t.Error("user role should not be admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role should be admin")
	}
}

func TestIsValidID(t *testing.T) {
	t.Parallel()

	if !IsValidID(NewID()) {
		t.Error("NewID() should produce a valid id")
	}
	for _, bad := range []string{"", "123", "507f1f77bcf86cd799439011", "01ARZ3NDEKTSV4RRFFQ69G5FA!"} {
		if IsValidID(bad) {
			t.Errorf("IsValidID(%q) = true, want false", bad)
		}
	}
}
