package notation

import (
	"errors"
	"slices"
	"testing"
)

func TestSGFToGTP(t *testing.T) {
	tests := []struct {
		name  string
		point string
		size  int
		want  string
	}{
		{"upper right star point", "pd", 19, "Q16"},
		{"upper left star point", "dd", 19, "D16"},
		{"corner a1", "as", 19, "A1"},
		{"corner t19", "sa", 19, "T19"},
		{"skips I column", "ij", 19, "J10"},
		{"empty is pass", "", 19, Pass},
		{"tt is pass on 19x19", "tt", 19, Pass},
		{"small board", "cc", 9, "C7"},
		{"large board", "yy", 25, "Z1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SGFToGTP(tt.point, tt.size)
			if err != nil {
				t.Fatalf("SGFToGTP(%q, %d) error = %v", tt.point, tt.size, err)
			}
			if got != tt.want {
				t.Errorf("SGFToGTP(%q, %d) = %q, want %q", tt.point, tt.size, got, tt.want)
			}
		})
	}
}

func TestSGFToGTP_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		point string
		size  int
	}{
		{"single letter", "a", 19},
		{"off board column", "ta", 19},
		{"off board row on small board", "aj", 9},
		{"digits", "11", 19},
		{"size too large", "aa", 26},
		{"size zero", "aa", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SGFToGTP(tt.point, tt.size)
			if !errors.Is(err, ErrMalformedPoint) {
				t.Errorf("SGFToGTP(%q, %d) error = %v, want ErrMalformedPoint", tt.point, tt.size, err)
			}
		})
	}
}

func TestGTPToSGF_Malformed(t *testing.T) {
	for _, vertex := range []string{"", "Q", "I5", "Q0", "Q20", "Z1", "A-1"} {
		t.Run(vertex, func(t *testing.T) {
			_, err := GTPToSGF(vertex, 19)
			if !errors.Is(err, ErrMalformedPoint) {
				t.Errorf("GTPToSGF(%q) error = %v, want ErrMalformedPoint", vertex, err)
			}
		})
	}
}

func TestGTPToSGF_PassIsEmpty(t *testing.T) {
	for _, vertex := range []string{"pass", "PASS"} {
		got, err := GTPToSGF(vertex, 19)
		if err != nil {
			t.Fatalf("GTPToSGF(%q) error = %v", vertex, err)
		}
		if got != "" {
			t.Errorf("GTPToSGF(%q) = %q, want empty", vertex, got)
		}
	}
}

func TestRoundTripEveryPoint(t *testing.T) {
	for _, size := range []int{5, 9, 13, 19, 25} {
		for c := 0; c < size; c++ {
			for r := 0; r < size; r++ {
				point := string(sgfLetters[c]) + string(sgfLetters[r])

				vertex, err := SGFToGTP(point, size)
				if err != nil {
					t.Fatalf("SGFToGTP(%q, %d) error = %v", point, size, err)
				}
				back, err := GTPToSGF(vertex, size)
				if err != nil {
					t.Fatalf("GTPToSGF(%q, %d) error = %v", vertex, size, err)
				}
				if back != point {
					t.Fatalf("size %d: %q -> %q -> %q", size, point, vertex, back)
				}
			}
		}
	}
}

func TestRoundTripPass(t *testing.T) {
	vertex, err := SGFToGTP("", 19)
	if err != nil || vertex != Pass {
		t.Fatalf("SGFToGTP(\"\") = %q, %v; want pass", vertex, err)
	}
	back, err := GTPToSGF(vertex, 19)
	if err != nil || back != "" {
		t.Errorf("GTPToSGF(pass) = %q, %v; want empty", back, err)
	}
}

func TestExpandPointList(t *testing.T) {
	// Arrange
	values := []string{"pd", "aa:bb", "dc:cd"}

	// Act
	got, err := ExpandPointList(values)

	// Assert
	if err != nil {
		t.Fatalf("ExpandPointList() error = %v", err)
	}
	want := []string{"pd", "aa", "ab", "ba", "bb", "cc", "cd", "dc", "dd"}
	if !slices.Equal(got, want) {
		t.Errorf("ExpandPointList() = %v, want %v", got, want)
	}
}

func TestExpandPointList_Malformed(t *testing.T) {
	_, err := ExpandPointList([]string{"a:bb"})
	if !errors.Is(err, ErrMalformedPoint) {
		t.Errorf("error = %v, want ErrMalformedPoint", err)
	}
}

func TestColorOpponent(t *testing.T) {
	if Black.Opponent() != White {
		t.Errorf("Black.Opponent() = %q", Black.Opponent())
	}
	if White.Opponent() != Black {
		t.Errorf("White.Opponent() = %q", White.Opponent())
	}
	if Color("X").Valid() {
		t.Error("Color(X).Valid() = true")
	}
}

func TestBoard_Rectangular(t *testing.T) {
	// Arrange
	b := Board{Cols: 19, Rows: 13}

	// Act
	vertex, err := b.ToGTP("sa")
	if err != nil {
		t.Fatalf("ToGTP() error = %v", err)
	}
	point, err := b.ToSGF(vertex)

	// Assert
	if err != nil {
		t.Fatalf("ToSGF() error = %v", err)
	}
	if vertex != "T13" {
		t.Errorf("ToGTP(sa) = %q, want T13", vertex)
	}
	if point != "sa" {
		t.Errorf("ToSGF(T13) = %q, want sa", point)
	}
	if _, err := b.ToGTP("an"); !errors.Is(err, ErrMalformedPoint) {
		t.Errorf("ToGTP(an) error = %v, want ErrMalformedPoint", err)
	}
}
