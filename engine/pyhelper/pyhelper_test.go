package pyhelper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/mediascribe/engine"
	"github.com/kbukum/mediascribe/process"
)

// fakeHelper serves scripted events over in-memory pipes.
type fakeHelper struct {
	mu     sync.Mutex
	starts int
	// boot lines are written before any request is read.
	boot []string
	// reply maps a request line to the lines written in response.
	reply func(line string) []string
	tail  string
}

func (f *fakeHelper) start(process.Command) (*Conn, error) {
	f.mu.Lock()
	f.starts++
	f.mu.Unlock()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer outW.Close()
		for _, l := range f.boot {
			if _, err := fmt.Fprintln(outW, l); err != nil {
				return
			}
		}
		if f.reply == nil {
			return
		}
		sc := bufio.NewScanner(inR)
		for sc.Scan() {
			for _, l := range f.reply(sc.Text()) {
				if _, err := fmt.Fprintln(outW, l); err != nil {
					return
				}
			}
		}
	}()
	var once sync.Once
	stop := func() error {
		once.Do(func() {
			_ = inW.Close()
			_ = outR.Close()
		})
		<-done
		return nil
	}
	return &Conn{In: inW, Out: outR, Done: done, Tail: func(int) string { return f.tail }, Stop: stop}, nil
}

const result = `{"event":"result","language":"en","segments":[{"start":0,"end":1.5,"text":" hi"},{"start":1.5,"end":3,"text":" there"}]}`

func TestStartAndCallReuseOneProcess(t *testing.T) {
	f := &fakeHelper{
		boot: []string{`{"event":"progress","value":40}`, "loading weights", `{"event":"ready"}`},
		reply: func(string) []string {
			return []string{`{"event":"progress","value":50}`, result}
		},
	}
	var load []int
	c, err := Start(context.Background(), "whisper", f.start, process.Command{Binary: "python3"},
		func(p int) { load = append(load, p) }, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()
	if !slices.Equal(load, []int{40, 100}) {
		t.Errorf("load progress %v", load)
	}

	for i := range 3 {
		var progress []int
		res, err := c.Call(context.Background(), NewRequest("/tmp/seg.wav", engine.DefaultOptions()),
			func(p int) { progress = append(progress, p) })
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if res.Text != "hi there" || res.Duration != 3 || res.Language != "en" {
			t.Errorf("call %d: unexpected result %+v", i, res)
		}
		if !slices.Equal(progress, []int{10, 50, 100}) {
			t.Errorf("call %d: progress %v", i, progress)
		}
	}
	if f.starts != 1 {
		t.Errorf("helper started %d times, want 1", f.starts)
	}
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name string
		f    *fakeHelper
		want string
	}{
		{"error event", &fakeHelper{boot: []string{`{"event":"error","message":"whisper is not installed"}`}}, "whisper is not installed"},
		{"exit before ready", &fakeHelper{tail: "Traceback: boom"}, "helper exited: Traceback: boom"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Start(context.Background(), "whisper", tc.f.start, process.Command{}, nil, nil)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestCallErrorEvent(t *testing.T) {
	f := &fakeHelper{
		boot:  []string{`{"event":"ready"}`},
		reply: func(string) []string { return []string{`{"event":"error","message":"decode failed"}`} },
	}
	c, err := Start(context.Background(), "whisper", f.start, process.Command{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Call(context.Background(), NewRequest("a.wav", engine.DefaultOptions()), nil); err == nil || !strings.Contains(err.Error(), "decode failed") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestCallHonoursContext(t *testing.T) {
	f := &fakeHelper{
		boot:  []string{`{"event":"ready"}`},
		reply: func(string) []string { return nil },
	}
	c, err := Start(context.Background(), "whisper", f.start, process.Command{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Call(ctx, NewRequest("a.wav", engine.DefaultOptions()), nil); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestCallAfterClose(t *testing.T) {
	f := &fakeHelper{boot: []string{`{"event":"ready"}`}, reply: func(string) []string { return nil }}
	c, err := Start(context.Background(), "whisper", f.start, process.Command{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := c.Call(context.Background(), NewRequest("a.wav", engine.DefaultOptions()), nil); err == nil {
		t.Error("expected error after Close")
	}
}

func TestNewRequestLanguageHint(t *testing.T) {
	o := engine.DefaultOptions()
	if r := NewRequest("a.wav", o); r.Language != "" || r.BeamSize != 5 {
		t.Errorf("unexpected request %+v", r)
	}
	o.Language = "ja"
	if r := NewRequest("a.wav", o); r.Language != "ja" {
		t.Errorf("language = %q", r.Language)
	}
}

func TestWriteScript(t *testing.T) {
	dir := t.TempDir()
	path, remove, err := WriteScript(dir, "helper.py", []byte("print('hi')"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("script written to %s, want inside %s", path, dir)
	}
	remove()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("script not removed")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("work dir must survive script removal")
	}

	path, remove, err = WriteScript("", "helper.py", []byte("print('hi')"))
	if err != nil {
		t.Fatal(err)
	}
	remove()
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Error("private temp dir not removed")
	}
}
