package transcript

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/kbukum/mediascribe/errors"
)

func TestClock(t *testing.T) {
	tests := map[float64]string{
		0:       "00:00",
		59.9:    "00:59",
		61:      "01:01",
		3599:    "59:59",
		3600:    "01:00:00",
		7384.5:  "02:03:04",
		-3:      "00:00",
		36000.0: "10:00:00",
	}
	for in, want := range tests {
		if got := Clock(in); got != want {
			t.Errorf("Clock(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestAssembleSingleWithoutMarkers(t *testing.T) {
	got, err := Assemble([]Segment{{Index: 0, End: 10, Text: "  hello world \n"}}, false)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestAssembleMarkers(t *testing.T) {
	segs := []Segment{
		{Index: 0, Start: 0, End: 600, Text: "first"},
		{Index: 1, Start: 600, End: 1200, Text: ""},
		{Index: 2, Start: 1200, End: 3700, Text: "third"},
	}
	got, err := Assemble(segs, true)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := strings.Join([]string{
		"[Segment 1: 00:00 - 10:00]",
		"first",
		"[Segment 2: 10:00 - 20:00]",
		"[Segment 3: 20:00 - 01:01:40]",
		"third",
	}, "\n")
	if got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
	if strings.Contains(got, "\n\n") {
		t.Error("assembled text contains a blank line")
	}
}

func TestAssembleEmpty(t *testing.T) {
	_, err := Assemble([]Segment{{Index: 0, Text: "  "}, {Index: 1}}, true)
	if !errors.IsCode(err, errors.ErrCodeEmptyTranscript) {
		t.Errorf("expected EMPTY_TRANSCRIPT, got %v", err)
	}
	if _, err := Assemble(nil, false); !errors.IsCode(err, errors.ErrCodeEmptyTranscript) {
		t.Errorf("expected EMPTY_TRANSCRIPT for no segments, got %v", err)
	}
}

func TestAssembleShuffledInput(t *testing.T) {
	var segs []Segment
	for i := range 12 {
		segs = append(segs, Segment{
			Index: i, Start: float64(i * 300), End: float64((i + 1) * 300),
			Text: "text " + string(rune('a'+i)),
		})
	}
	want, err := Assemble(segs, true)
	if err != nil {
		t.Fatal(err)
	}

	r := rand.New(rand.NewPCG(7, 7))
	for range 50 {
		shuffled := append([]Segment(nil), segs...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := Assemble(shuffled, true)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("shuffled input changed output:\n%s", got)
		}
	}
}
