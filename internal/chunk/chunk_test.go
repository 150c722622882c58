package chunk_test

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/ringlink/noded/internal/chunk"
)

func TestFragmentMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()

	f := chunk.Fragment{ChunkID: 42, Index: 1, Total: 3, Body: []byte("payload")}
	decoded, err := chunk.Unmarshal(f.Marshal())
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ChunkID != f.ChunkID || decoded.Index != f.Index || decoded.Total != f.Total {
		t.Errorf("decoded header = %+v, want %+v", decoded, f)
	}
	if !bytes.Equal(decoded.Body, f.Body) {
		t.Errorf("Body = %q, want %q", decoded.Body, f.Body)
	}
}

func TestUnmarshalTooShort(t *testing.T) {
	t.Parallel()

	_, err := chunk.Unmarshal([]byte{1, 2, 3})
	if !errors.Is(err, chunk.ErrTooShort) {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}

func TestSplitEmptyMessageYieldsOneFragment(t *testing.T) {
	t.Parallel()

	frags := chunk.Split(1, nil, 10)
	if len(frags) != 1 {
		t.Fatalf("len(frags) = %d, want 1", len(frags))
	}
	if frags[0].Total != 1 || frags[0].Index != 0 || len(frags[0].Body) != 0 {
		t.Errorf("frags[0] = %+v, want empty single fragment", frags[0])
	}
}

func TestSplitExactMultiple(t *testing.T) {
	t.Parallel()

	msg := bytes.Repeat([]byte{'a'}, 20)
	frags := chunk.Split(7, msg, 5)
	if len(frags) != 4 {
		t.Fatalf("len(frags) = %d, want 4", len(frags))
	}
	for i, f := range frags {
		if f.ChunkID != 7 || f.Index != uint32(i) || f.Total != 4 {
			t.Errorf("frags[%d] = %+v", i, f)
		}
	}
}

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	t.Parallel()

	msg := bytes.Repeat([]byte("0123456789"), 37)
	frags := chunk.Split(99, msg, 13)

	r := chunk.New(nil)
	var (
		got   []byte
		ready bool
	)
	for _, f := range frags {
		full, isReady, err := r.Handle(f)
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if isReady {
			got, ready = full, true
		}
	}

	if !ready {
		t.Fatal("group never became ready")
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("reassembled = %q, want %q", got, msg)
	}
}

func TestReassembleOutOfOrder(t *testing.T) {
	t.Parallel()

	msg := []byte("shuffle-these-fragments-around")
	frags := chunk.Split(5, msg, 6)

	shuffled := make([]chunk.Fragment, len(frags))
	copy(shuffled, frags)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	r := chunk.New(nil)
	var got []byte
	for _, f := range shuffled {
		full, ready, err := r.Handle(f)
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if ready {
			got = full
		}
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("reassembled = %q, want %q", got, msg)
	}
}

func TestReassembleDuplicateIndexIdempotent(t *testing.T) {
	t.Parallel()

	msg := []byte("abcdefghij")
	frags := chunk.Split(3, msg, 4)

	r := chunk.New(nil)
	for _, f := range frags[:len(frags)-1] {
		if _, ready, err := r.Handle(f); err != nil || ready {
			t.Fatalf("Handle(%+v) = ready=%v err=%v, want not ready", f, ready, err)
		}
	}
	// Resend the first fragment before delivering the last.
	if _, ready, err := r.Handle(frags[0]); err != nil || ready {
		t.Fatalf("duplicate Handle = ready=%v err=%v, want not ready", ready, err)
	}

	full, ready, err := r.Handle(frags[len(frags)-1])
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !ready {
		t.Fatal("group never became ready")
	}
	if !bytes.Equal(full, msg) {
		t.Errorf("reassembled = %q, want %q", full, msg)
	}
}

func TestHandleZeroTotal(t *testing.T) {
	t.Parallel()

	r := chunk.New(nil)
	_, _, err := r.Handle(chunk.Fragment{ChunkID: 1, Total: 0})
	if !errors.Is(err, chunk.ErrZeroTotal) {
		t.Fatalf("err = %v, want ErrZeroTotal", err)
	}
}

func TestDistinctChunkIDsIndependent(t *testing.T) {
	t.Parallel()

	r := chunk.New(nil)
	msgA := []byte("message-a")
	msgB := []byte("message-b-longer")

	fragsA := chunk.Split(1, msgA, 4)
	fragsB := chunk.Split(2, msgB, 4)

	for _, f := range fragsA[:len(fragsA)-1] {
		r.Handle(f)
	}
	for _, f := range fragsB[:len(fragsB)-1] {
		r.Handle(f)
	}

	gotA, readyA, err := r.Handle(fragsA[len(fragsA)-1])
	if err != nil || !readyA {
		t.Fatalf("Handle(A last) = ready=%v err=%v", readyA, err)
	}
	if !bytes.Equal(gotA, msgA) {
		t.Errorf("gotA = %q, want %q", gotA, msgA)
	}

	gotB, readyB, err := r.Handle(fragsB[len(fragsB)-1])
	if err != nil || !readyB {
		t.Fatalf("Handle(B last) = ready=%v err=%v", readyB, err)
	}
	if !bytes.Equal(gotB, msgB) {
		t.Errorf("gotB = %q, want %q", gotB, msgB)
	}
}
