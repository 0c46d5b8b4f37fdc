package framer

import (
	"reflect"
	"strings"
	"testing"
)

func TestFeed_EverySplitOfTwoMessages(t *testing.T) {
	stream := []byte("A\nB\n")
	want := []string{"A", "B"}

	// Every way of cutting the stream into up to three chunks.
	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			f := New(0)
			var got []string
			for _, chunk := range [][]byte{stream[:i], stream[i:j], stream[j:]} {
				got = append(got, f.Feed(chunk)...)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("split (%d,%d): got %q, want %q", i, j, got, want)
			}
			if f.Buffered() != 0 {
				t.Errorf("split (%d,%d): %d bytes left buffered", i, j, f.Buffered())
			}
		}
	}
}

func TestFeed_ByteAtATime(t *testing.T) {
	f := New(0)
	var got []string
	for _, b := range []byte("MOV,10\nTURN,-90\nOBJ,45,30\n") {
		got = append(got, f.Feed([]byte{b})...)
	}
	want := []string{"MOV,10", "TURN,-90", "OBJ,45,30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFeed_PartialStaysBuffered(t *testing.T) {
	f := New(0)
	if got := f.Feed([]byte("MOV,1")); len(got) != 0 {
		t.Fatalf("partial message emitted: %q", got)
	}
	if f.Buffered() != 5 {
		t.Errorf("buffered = %d, want 5", f.Buffered())
	}
	if string(f.Pending()) != "MOV,1" {
		t.Errorf("pending = %q", f.Pending())
	}

	got := f.Feed([]byte("2.5\nTU"))
	if !reflect.DeepEqual(got, []string{"MOV,12.5"}) {
		t.Errorf("got %q", got)
	}
	if string(f.Pending()) != "TU" {
		t.Errorf("pending = %q, want %q", f.Pending(), "TU")
	}
}

func TestFeed_EmptyChunk(t *testing.T) {
	f := New(0)
	if got := f.Feed(nil); len(got) != 0 {
		t.Errorf("got %q from empty chunk", got)
	}
}

func TestFeed_CRLF(t *testing.T) {
	f := New(0)
	got := f.Feed([]byte("REQ,go?\r\nMOV,1\r\n"))
	want := []string{"REQ,go?", "MOV,1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFeed_BlankLinesPreserved(t *testing.T) {
	f := New(0)
	got := f.Feed([]byte("\nA\n\n"))
	want := []string{"", "A", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFeed_InvalidUTF8Dropped(t *testing.T) {
	f := New(0)
	got := f.Feed([]byte("MOV,\xff1\xfe0\n"))
	if !reflect.DeepEqual(got, []string{"MOV,10"}) {
		t.Errorf("got %q", got)
	}
}

func TestFeed_MaxLineFlush(t *testing.T) {
	f := New(8)
	got := f.Feed([]byte(strings.Repeat("x", 20)))
	want := []string{"xxxxxxxx", "xxxxxxxx"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if f.Buffered() != 4 {
		t.Errorf("buffered = %d, want 4", f.Buffered())
	}
	got = f.Feed([]byte("\n"))
	if !reflect.DeepEqual(got, []string{"xxxx"}) {
		t.Errorf("tail: got %q", got)
	}
}
