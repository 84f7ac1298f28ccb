package melfeatures

import (
	"math"
	"testing"
)

func TestHannWindow_EndpointsZero(t *testing.T) {
	w := hannWindow(10)
	if w[0] != 0 {
		t.Errorf("hannWindow[0] = %v, want 0", w[0])
	}
	if math.Abs(float64(w[len(w)-1])) > 1e-9 {
		t.Errorf("hannWindow[last] = %v, want ~0", w[len(w)-1])
	}
	mid := w[len(w)/2]
	if mid < 0.9 {
		t.Errorf("hannWindow midpoint = %v, want close to 1", mid)
	}
}

func TestMelFilterbank_Shape(t *testing.T) {
	filters := melFilterbank(NFFT, NMels, SampleRate)
	if len(filters) != NMels {
		t.Fatalf("got %d filters, want %d", len(filters), NMels)
	}
	wantBins := NFFT/2 + 1
	for i, f := range filters {
		if len(f) != wantBins {
			t.Fatalf("filter %d has %d bins, want %d", i, len(f), wantBins)
		}
	}
}

func TestMelFilterbank_NonNegative(t *testing.T) {
	filters := melFilterbank(NFFT, NMels, SampleRate)
	for m, f := range filters {
		for k, v := range f {
			if v < 0 {
				t.Fatalf("filter[%d][%d] = %v, want >= 0", m, k, v)
			}
		}
	}
}

func TestExtractor_Compute_FrameCountAndShape(t *testing.T) {
	e := NewExtractor()
	samples := make([]float32, HopLength*10)
	for i := range samples {
		samples[i] = 0.1
	}
	frames := e.Compute(samples)
	wantFrames := len(samples)/HopLength + 1
	if len(frames) != wantFrames {
		t.Fatalf("got %d frames, want %d", len(frames), wantFrames)
	}
	for i, row := range frames {
		if len(row) != NMels {
			t.Fatalf("frame %d has %d mel bins, want %d", i, len(row), NMels)
		}
	}
}

func TestExtractor_Compute_SilenceFloorsAtLogMinimum(t *testing.T) {
	e := NewExtractor()
	samples := make([]float32, HopLength*4)
	frames := e.Compute(samples)
	floor := float32(math.Log(1e-9))
	for i, row := range frames {
		for m, v := range row {
			if v != floor {
				t.Errorf("frame %d mel %d = %v, want floor %v for silence", i, m, v, floor)
			}
		}
	}
}

func TestPadOrTrim_PadsShortInput(t *testing.T) {
	short := make([][]float32, 5)
	for i := range short {
		short[i] = make([]float32, NMels)
		short[i][0] = 1
	}
	out := PadOrTrim(short)
	if len(out) != MaxFrames {
		t.Fatalf("got %d frames, want %d", len(out), MaxFrames)
	}
	if out[0][0] != 1 {
		t.Errorf("expected original frame data preserved at index 0")
	}
	if out[MaxFrames-1][0] != 0 {
		t.Errorf("expected zero-padded tail frame")
	}
}

func TestPadOrTrim_TruncatesLongInput(t *testing.T) {
	long := make([][]float32, MaxFrames+100)
	for i := range long {
		long[i] = make([]float32, NMels)
	}
	out := PadOrTrim(long)
	if len(out) != MaxFrames {
		t.Fatalf("got %d frames, want %d", len(out), MaxFrames)
	}
}

func TestFlatten_RowMajorChannelsFirst(t *testing.T) {
	frames := [][]float32{
		{1, 2, 3},
		{4, 5, 6},
	}
	flat := Flatten(frames)
	if len(flat) != 3*2 {
		t.Fatalf("got %d values, want %d", len(flat), 3*2)
	}
	// mel 0 across both frames should be contiguous: [1, 4]
	if flat[0] != 1 || flat[1] != 4 {
		t.Errorf("flat[0:2] = %v, want [1 4]", flat[0:2])
	}
	// mel 1 across both frames: [2, 5]
	if flat[2] != 2 || flat[3] != 5 {
		t.Errorf("flat[2:4] = %v, want [2 5]", flat[2:4])
	}
}
