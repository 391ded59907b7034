package model

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role     Role
		minimum  Role
		expected bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{RoleUser, RoleUser, true},
		// Unknown roles fail-closed.
		{"unknown", RoleUser, false},
		{RoleAdmin, "unknown", false},
		{"", "", false},
		{"", RoleUser, false},
		{"admin", RoleAdmin, false},
	}

	for _, tt := range tests {
		got := RoleAtLeast(tt.role, tt.minimum)
		if got != tt.expected {
			t.Errorf("RoleAtLeast(%q, %q) = %v, want %v", tt.role, tt.minimum, got, tt.expected)
		}
	}
}

func TestUserIsAdmin(t *testing.T) {
	var nobody *User
	if nobody.IsAdmin() {
		t.Error("nil user must not be admin")
	}
	if (&User{Role: RoleUser}).IsAdmin() {
		t.Error("User role must not be admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Error("Admin role must be admin")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"Admin", RoleAdmin, true},
		{"admin", RoleAdmin, true},
		{"USER", RoleUser, true},
		{"owner", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseRole(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		total, perPage, wantPages int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{95, 10, 10},
		{5, 0, 0},
	}
	for _, tt := range tests {
		p := Pagination{CurrentPage: 1, ItemsPerPage: tt.perPage, TotalItems: tt.total}
		if got := p.TotalPages(); got != tt.wantPages {
			t.Errorf("TotalPages(total=%d, perPage=%d) = %d, want %d", tt.total, tt.perPage, got, tt.wantPages)
		}
	}

	p := Pagination{ItemsPerPage: 10}
	if got := p.Offset(3); got != 20 {
		t.Errorf("Offset(3) = %d, want 20", got)
	}
	if got := p.Offset(0); got != 0 {
		t.Errorf("Offset(0) = %d, want 0", got)
	}
}
