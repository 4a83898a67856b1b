package publish

import "testing"

func TestIsThread(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"plain", "Sei ships parallel EVM execution this month.", false},
		{"digit before slash", "Sequencer uptime is 24/7 now.", true},
		{"url", "Read more at https://arbitrum.org/blog", false},
		{"word slash", "Builders and/or traders win here.", false},
		{"digit too far from slash", "1 builders and/or traders", false},
		{"paragraphs", "first part\n\nsecond part", true},
		{"empty paragraphs", "first part\n\n   \n\n", false},
		{"marker", "a single post 🧵", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsThread(tc.text); got != tc.want {
				t.Fatalf("IsThread(%q) = %v, want %v", tc.text, got, tc.want)
			}
			if IsThread(tc.text) != IsThread(tc.text) {
				t.Fatalf("classification must be stable")
			}
		})
	}
}

func TestParseThreadStripsNumbering(t *testing.T) {
	parts := ParseThread("first part 🧵\n\n2/3 second part\n\n\n\n3/3   third part")
	want := []string{"first part 🧵", "second part", "third part"}
	if len(parts) != len(want) {
		t.Fatalf("expected %d parts, got %q", len(want), parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("part %d: expected %q, got %q", i, want[i], parts[i])
		}
	}
}
