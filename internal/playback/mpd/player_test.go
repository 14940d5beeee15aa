package mpd

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"NeuralClient/internal/domain"
)

// fakeDaemon speaks just enough of the MPD protocol for command tests.
type fakeDaemon struct {
	ln    net.Listener
	state string

	mu    sync.Mutex
	lines []string
}

func startDaemon(t *testing.T, state string) *fakeDaemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	d := &fakeDaemon{ln: ln, state: state}
	t.Cleanup(func() { ln.Close() })
	go d.serve()
	return d
}

func (d *fakeDaemon) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.handle(conn)
	}
}

func (d *fakeDaemon) handle(conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	w.WriteString("OK MPD 0.23.5\n")
	w.Flush()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Text()
		if line == "close" {
			return
		}
		d.mu.Lock()
		d.lines = append(d.lines, line)
		d.mu.Unlock()
		if line == "status" {
			w.WriteString("volume: 50\nstate: " + d.state + "\n")
		}
		w.WriteString("OK\n")
		w.Flush()
	}
}

func (d *fakeDaemon) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func TestLoadReplacesQueueAndPlays(t *testing.T) {
	d := startDaemon(t, "play")
	p := New(d.ln.Addr().String(), "", nil)

	if err := p.Load(context.Background(), domain.Track{ID: "1", URL: "https://cdn.example/a.mp3"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := d.commands()
	if len(got) != 3 || got[0] != "clear" || !strings.HasPrefix(got[1], "add ") || got[2] != "play 0" {
		t.Fatalf("unexpected commands: %q", got)
	}
	if !strings.Contains(got[1], "https://cdn.example/a.mp3") {
		t.Fatalf("add without url: %q", got[1])
	}
	if !p.playing.Load() {
		t.Fatalf("expected playing after load")
	}
}

func TestResumeAfterStopRestartsQueue(t *testing.T) {
	d := startDaemon(t, "stop")
	p := New(d.ln.Addr().String(), "", nil)

	if err := p.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	got := d.commands()
	if len(got) != 2 || got[0] != "status" || got[1] != "play 0" {
		t.Fatalf("unexpected commands: %q", got)
	}
}

func TestSetVolumeScalesToPercent(t *testing.T) {
	d := startDaemon(t, "play")
	p := New(d.ln.Addr().String(), "", nil)

	if err := p.SetVolume(context.Background(), 0.42); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	got := d.commands()
	if len(got) != 1 || got[0] != "setvol 42" {
		t.Fatalf("unexpected commands: %q", got)
	}
}

func TestDialFailure(t *testing.T) {
	p := New("127.0.0.1:1", "", nil)
	if err := p.Stop(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestPlayerChangedReportsTrackEndOnce(t *testing.T) {
	p := New("/tmp/mpd.sock", "", nil)
	if p.Network != "unix" {
		t.Fatalf("expected unix network, got %q", p.Network)
	}
	ends := 0
	p.OnTrackEnd = func() { ends++ }

	p.playing.Store(true)
	p.playerChanged("play")
	p.playerChanged("stop")
	p.playerChanged("stop")
	if ends != 1 {
		t.Fatalf("expected one track end, got %d", ends)
	}

	// A stop we asked for is not a track end.
	p.playing.Store(false)
	p.playerChanged("stop")
	if ends != 1 {
		t.Fatalf("requested stop reported as end")
	}
}
