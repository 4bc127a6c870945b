package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"v1.0.0", Version{Major: 1}, false},
		{"v2.13.4", Version{Major: 2, Minor: 13, Patch: 4}, false},
		{"v1.0.0-alpha", Version{Major: 1, Label: "alpha"}, false},
		{"v1.0.0-beta.pre-2", Version{Major: 1, Label: "beta", Pre: 2, HasPre: true}, false},
		{"1.0.0", Version{}, true},
		{"v1.0", Version{}, true},
		{"v1.0.0-rc.1", Version{}, true},
		{"v1.0.0-beta.pre-", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"v1.0.0", "v1.0.0", 0},
		{"v1.0.0", "v1.0.1", -1},
		{"v1.1.0", "v1.0.9", 1},
		{"v2.0.0", "v1.9.9", 1},
		{"v1.0.0-alpha", "v1.0.0-beta", -1},
		{"v1.0.0-beta", "v1.0.0", -1},
		{"v1.0.0", "v1.0.0-alpha", 1},
		{"v1.0.0-beta.pre-1", "v1.0.0-beta.pre-2", -1},
		{"v1.0.0-beta", "v1.0.0-beta.pre-7", 1},
		{"v1.0.0-beta.pre-3", "v1.0.0-beta.pre-3", 0},
	}

	for _, tt := range tests {
		a, err := Parse(tt.a)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Parse(tt.b)
		if err != nil {
			t.Fatal(err)
		}
		if got := Compare(a, b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		required, provided string
		want               bool
	}{
		{"v1.0.0", "v1.0.0", true},
		{"v1.0.0", "v1.0.1", true},
		{"v1.0.1", "v1.0.0", true}, // patch may float
		{"v1.0.0", "v1.1.0", true},
		{"v1.1.0", "v1.0.0", false}, // lower minor
		{"v1.0.0", "v2.0.0", true},
		{"v2.0.0", "v1.0.0", false},
		{"v1.0.0-alpha", "v1.0.0-beta", false},
		{"v1.0.0-beta", "v1.0.0-alpha", false},
		{"v1.0.0-alpha", "v1.0.0-alpha", true},
		{"v1.0.0-alpha.pre-1", "v1.0.0-alpha.pre-2", true},
		{"v1.0.0-alpha.pre-2", "v1.0.0-alpha.pre-1", false},
		{"v1.0.0-alpha", "v1.0.0-alpha.pre-1", false}, // absent pre > any present
		{"v1.0.0-alpha.pre-1", "v1.0.0-alpha", true},
		{"v1.0.0", "v1.0.0-alpha", false}, // labeled < unlabeled
		{"v1.0.0-alpha", "v1.0.0", true},
		{"v1.0.0-alpha.pre-3", "v1.0.0-beta.pre-2", false}, // S6 pair
	}

	for _, tt := range tests {
		got, err := Compatible(tt.required, tt.provided)
		if err != nil {
			t.Fatalf("Compatible(%s, %s): %v", tt.required, tt.provided, err)
		}
		if got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.required, tt.provided, got, tt.want)
		}
	}
}

func TestCompatibleSelf(t *testing.T) {
	versions := []string{"v1.0.0", "v1.2.3", "v1.0.0-alpha", "v1.0.0-beta.pre-9", ServerVersion}
	for _, v := range versions {
		ok, err := Compatible(v, v)
		if err != nil || !ok {
			t.Errorf("Compatible(%s, %s) = %v, %v; every version must satisfy itself", v, v, ok, err)
		}
	}
}

func TestCompatibleRejectsBadInput(t *testing.T) {
	if _, err := Compatible("v1.0.0", "1.0.0"); err == nil {
		t.Fatal("bad provided version should error")
	}
	if _, err := Compatible("banana", "v1.0.0"); err == nil {
		t.Fatal("bad required version should error")
	}
}
