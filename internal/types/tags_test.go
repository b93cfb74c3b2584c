package types

import "testing"

func TestTags_Equal(t *testing.T) {
	a := &Tags{Title: "Song", Genres: []string{"Rock"}, Year: 2024}

	tests := []struct {
		name  string
		other *Tags
		want  bool
	}{
		{"same values", &Tags{Title: "Song", Genres: []string{"Rock"}, Year: 2024}, true},
		{"different scalar", &Tags{Title: "Other", Genres: []string{"Rock"}, Year: 2024}, false},
		{"different slice", &Tags{Title: "Song", Genres: []string{"Pop"}, Year: 2024}, false},
		{"different number", &Tags{Title: "Song", Genres: []string{"Rock"}, Year: 2024, TrackNumber: 3}, false},
		{"different audiobook field", &Tags{Title: "Song", Genres: []string{"Rock"}, Year: 2024, Series: "Saga"}, false},
		{"nil", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := a.Equal(tc.other); got != tc.want {
				t.Errorf("Equal() = %v, want %v", got, tc.want)
			}
		})
	}

	if !(&Tags{}).Equal(&Tags{Artists: []string{}}) {
		t.Error("nil and empty slices should compare equal")
	}
}

func TestTags_IsEmpty(t *testing.T) {
	if !(&Tags{}).IsEmpty() {
		t.Error("zero Tags should be empty")
	}
	if (&Tags{TrackNumber: 1}).IsEmpty() {
		t.Error("Tags with a track number should not be empty")
	}
}

func TestTags_Clone(t *testing.T) {
	orig := &Tags{Title: "Song", Artists: []string{"A", "B"}}
	c := orig.Clone()
	c.Artists[0] = "changed"
	c.Title = "changed"

	if orig.Artists[0] != "A" || orig.Title != "Song" {
		t.Errorf("Clone shares state with original: %+v", orig)
	}
	if (*Tags)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}
