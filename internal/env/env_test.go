package env

import "testing"

func TestSet_Contains(t *testing.T) {
	tests := []struct {
		name   string
		set    Set
		libc   bool
		shadow bool
	}{
		{"empty", NewSet(), false, false},
		{"libc only", NewSet(Libc), true, false},
		{"shadow only", NewSet(Shadow), false, true},
		{"both", NewSet(Libc, Shadow), true, true},
		{"duplicates", NewSet(Libc, Libc), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.set.Contains(Libc); got != tt.libc {
				t.Errorf("Contains(Libc) = %v, want %v", got, tt.libc)
			}
			if got := tt.set.Contains(Shadow); got != tt.shadow {
				t.Errorf("Contains(Shadow) = %v, want %v", got, tt.shadow)
			}
		})
	}
}

func TestSet_SliceAndString(t *testing.T) {
	s := NewSet(Shadow, Libc)
	got := s.Slice()
	if len(got) != 2 || got[0] != Libc || got[1] != Shadow {
		t.Fatalf("Slice() = %v, want [libc shadow]", got)
	}
	if s.String() != "libc,shadow" {
		t.Errorf("String() = %q, want %q", s.String(), "libc,shadow")
	}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Environment{"libc": Libc, "Shadow": Shadow, " LIBC ": Libc} {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := Parse("kernel"); err == nil {
		t.Error("expected error for unknown environment")
	}
}
