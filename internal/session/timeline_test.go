package session

import (
	"errors"
	"math"
	"testing"
)

// threeClipSegments builds three full-span segments of 3, 5, and 2 seconds.
func threeClipSegments() []*Segment {
	return []*Segment{
		{ID: "seg-a", ClipID: "clip-a", InS: 0, OutS: 3, Order: 0},
		{ID: "seg-b", ClipID: "clip-b", InS: 0, OutS: 5, Order: 1},
		{ID: "seg-c", ClipID: "clip-c", InS: 0, OutS: 2, Order: 2},
	}
}

func TestComposedDuration(t *testing.T) {
	if got := ComposedDuration(threeClipSegments()); got != 10 {
		t.Errorf("ComposedDuration() = %v, want 10", got)
	}
	if got := ComposedDuration(nil); got != 0 {
		t.Errorf("ComposedDuration(nil) = %v, want 0", got)
	}
}

func TestGlobalToLocal(t *testing.T) {
	segs := threeClipSegments()

	tests := []struct {
		name      string
		globalS   float64
		wantSeg   string
		wantLocal float64
	}{
		{"start of composition", 0, "seg-a", 0},
		{"inside first segment", 2.5, "seg-a", 2.5},
		{"boundary belongs to the next segment", 3, "seg-b", 0},
		{"inside second segment", 4, "seg-b", 1},
		{"inside last segment", 9.5, "seg-c", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg, local, err := GlobalToLocal(segs, tt.globalS)
			if err != nil {
				t.Fatalf("GlobalToLocal(%v) error = %v", tt.globalS, err)
			}
			if seg.ID != tt.wantSeg {
				t.Errorf("segment = %s, want %s", seg.ID, tt.wantSeg)
			}
			if math.Abs(local-tt.wantLocal) > 1e-9 {
				t.Errorf("local = %v, want %v", local, tt.wantLocal)
			}
		})
	}
}

func TestGlobalToLocal_OutOfRange(t *testing.T) {
	segs := threeClipSegments()

	if _, _, err := GlobalToLocal(segs, -0.1); !errors.Is(err, ErrInvariant) {
		t.Errorf("negative time error = %v, want ErrInvariant", err)
	}
	// The composed duration itself is past the last playable instant.
	if _, _, err := GlobalToLocal(segs, 10); !errors.Is(err, ErrInvariant) {
		t.Errorf("end-of-composition error = %v, want ErrInvariant", err)
	}
}

func TestLocalToGlobal(t *testing.T) {
	segs := threeClipSegments()

	got, err := LocalToGlobal(segs, "seg-b", 1)
	if err != nil {
		t.Fatalf("LocalToGlobal() error = %v", err)
	}
	if got != 4 {
		t.Errorf("LocalToGlobal(seg-b, 1) = %v, want 4", got)
	}

	if _, err := LocalToGlobal(segs, "seg-b", 6); !errors.Is(err, ErrInvariant) {
		t.Errorf("offset past segment error = %v, want ErrInvariant", err)
	}
	if _, err := LocalToGlobal(segs, "missing", 0); !errors.Is(err, ErrInvariant) {
		t.Errorf("unknown segment error = %v, want ErrInvariant", err)
	}
}

func TestGlobalToLocal_RoundTrip(t *testing.T) {
	segs := threeClipSegments()
	for _, globalS := range []float64{0, 1.25, 3, 6.5, 9.99} {
		seg, local, err := GlobalToLocal(segs, globalS)
		if err != nil {
			t.Fatalf("GlobalToLocal(%v) error = %v", globalS, err)
		}
		back, err := LocalToGlobal(segs, seg.ID, local)
		if err != nil {
			t.Fatalf("LocalToGlobal(%s, %v) error = %v", seg.ID, local, err)
		}
		if math.Abs(back-globalS) > 1e-9 {
			t.Errorf("round trip %v -> %v", globalS, back)
		}
	}
}

func TestCheckCoverage(t *testing.T) {
	clip := &Clip{ID: "clip-a", DurationS: 10}
	base := func() *Session {
		return &Session{
			ID:    "s1",
			Clips: map[string]*Clip{clip.ID: clip},
			Segments: []*Segment{
				{ID: "seg-1", ClipID: "clip-a", InS: 0, OutS: 4, Order: 0},
				{ID: "seg-2", ClipID: "clip-a", InS: 4, OutS: 10, Order: 1},
			},
		}
	}

	if err := checkCoverage(base()); err != nil {
		t.Fatalf("checkCoverage() on valid session error = %v", err)
	}

	t.Run("no segments", func(t *testing.T) {
		s := base()
		s.Segments = nil
		if err := checkCoverage(s); !errors.Is(err, ErrInvariant) {
			t.Errorf("error = %v, want ErrInvariant", err)
		}
	})

	t.Run("order gap", func(t *testing.T) {
		s := base()
		s.Segments[1].Order = 5
		if err := checkCoverage(s); !errors.Is(err, ErrInvariant) {
			t.Errorf("error = %v, want ErrInvariant", err)
		}
	})

	t.Run("missing clip", func(t *testing.T) {
		s := base()
		s.Segments[0].ClipID = "gone"
		if err := checkCoverage(s); !errors.Is(err, ErrInvariant) {
			t.Errorf("error = %v, want ErrInvariant", err)
		}
	})

	t.Run("range outside clip", func(t *testing.T) {
		s := base()
		s.Segments[1].OutS = 11
		if err := checkCoverage(s); !errors.Is(err, ErrInvariant) {
			t.Errorf("error = %v, want ErrInvariant", err)
		}
	})

	t.Run("zero-length segment", func(t *testing.T) {
		s := base()
		s.Segments[0].OutS = s.Segments[0].InS
		if err := checkCoverage(s); !errors.Is(err, ErrInvariant) {
			t.Errorf("error = %v, want ErrInvariant", err)
		}
	})
}
