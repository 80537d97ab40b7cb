package domain

import "testing"

func TestParseDestinations_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Destination
	}{
		{
			"single pair",
			"dev1/mod1",
			[]Destination{{DeviceID: "dev1", ModuleID: "mod1"}},
		},
		{
			"multiple pairs",
			"dev1/mod1,dev2/mod2,dev3/mod3",
			[]Destination{
				{DeviceID: "dev1", ModuleID: "mod1"},
				{DeviceID: "dev2", ModuleID: "mod2"},
				{DeviceID: "dev3", ModuleID: "mod3"},
			},
		},
		{
			"whitespace trimmed",
			" dev1/mod1 , dev2/mod2 ",
			[]Destination{
				{DeviceID: "dev1", ModuleID: "mod1"},
				{DeviceID: "dev2", ModuleID: "mod2"},
			},
		},
		{
			"same device different modules",
			"dev1/mod1,dev1/mod2",
			[]Destination{
				{DeviceID: "dev1", ModuleID: "mod1"},
				{DeviceID: "dev1", ModuleID: "mod2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDestinations(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d destinations, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("destination %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseDestinations_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty string", ""},
		{"whitespace only", "   "},
		{"missing module", "dev1"},
		{"missing module after slash", "dev1/"},
		{"missing device", "/mod1"},
		{"too many parts", "dev1/mod1/extra"},
		{"empty entry", "dev1/mod1,,dev2/mod2"},
		{"trailing comma", "dev1/mod1,"},
		{"duplicate pair", "dev1/mod1,dev1/mod1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDestinations(tt.input); err == nil {
				t.Errorf("input %q parsed without error", tt.input)
			}
		})
	}
}

func TestDestinationString(t *testing.T) {
	d := Destination{DeviceID: "dev1", ModuleID: "mod1"}
	if got := d.String(); got != "dev1/mod1" {
		t.Errorf("String() = %q, want dev1/mod1", got)
	}
}
