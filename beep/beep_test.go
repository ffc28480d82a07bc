package beep

import "testing"

func n(sec float64) int { return int(float64(sampleRate) * sec) }

func TestPCMLengths(t *testing.T) {
	tests := []struct {
		cue  Cue
		tail float64
		want int
	}{
		{Start, 0, n(0.03)},
		{Stop, 0, n(0.05)},
		{Stop, 0.1, n(0.05) + n(0.1)},
		{Error, 0, 2*n(0.08) + n(0.05)},
	}
	for _, tt := range tests {
		if got := len(pcm(tt.cue, sampleRate, tt.tail)); got != tt.want {
			t.Errorf("len(pcm(%d, %v)) = %d, want %d", tt.cue, tt.tail, got, tt.want)
		}
	}
	if pcm(Cue(99), sampleRate, 0) != nil {
		t.Error("unknown cue rendered samples")
	}
}

func TestPCMDecays(t *testing.T) {
	s := pcm(Start, sampleRate, 0)
	peak := func(from, to int) int16 {
		var m int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			m = max(m, v)
		}
		return m
	}
	if head, tail := peak(0, 200), peak(len(s)-200, len(s)); tail >= head {
		t.Errorf("tone does not decay: head %d, tail %d", head, tail)
	}
}

func TestDisable(t *testing.T) {
	Disable()
	if Enabled() {
		t.Error("still enabled after Disable")
	}
	Play(Start)
}
