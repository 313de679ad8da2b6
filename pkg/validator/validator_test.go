package validator

import "testing"

func strptr(s string) *string { return &s }

func TestValidateMessage(t *testing.T) {
	cases := []struct {
		name     string
		sender   string
		text     string
		image    *string
		badField string
	}{
		{"text", "u1", "hello", nil, ""},
		{"image only", "u1", "", strptr("https://cdn.example.com/a.jpg"), ""},
		{"blank", "u1", "   ", nil, "text"},
		{"empty image", "u1", "", strptr(""), "text"},
		{"no sender", "", "hi", nil, "sender_id"},
		{"bad image", "u1", "", strptr("not a url"), "image_url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateMessage(tc.sender, tc.text, tc.image)
			if tc.badField == "" {
				if errs.HasErrors() {
					t.Fatalf("unexpected errors %v", errs)
				}
				return
			}
			if _, ok := errs[tc.badField]; !ok {
				t.Fatalf("expected error on %s, got %v", tc.badField, errs)
			}
		})
	}
}

func TestValidateRoom(t *testing.T) {
	if errs := ValidateRoom("general", "General"); errs.HasErrors() {
		t.Fatalf("unexpected errors %v", errs)
	}
	if errs := ValidateRoom("a/b", "General"); errs["id"] == "" {
		t.Fatal("slash in id must be rejected")
	}
	if errs := ValidateRoom("general", " "); errs["name"] == "" {
		t.Fatal("blank name must be rejected")
	}
}
