package oto_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cwolffff/m00sic/oto"
)

func TestFloatBufferToLE(t *testing.T) {
	in := []float32{0, 0.5, -0.25, 2, -3}
	out := oto.FloatBufferToLE(in, nil)
	if len(out) != 4*len(in) {
		t.Fatalf("expected %v bytes, got %v", 4*len(in), len(out))
	}
	expected := []float32{0, 0.5, -0.25, 1, -1}
	for i, e := range expected {
		v := math.Float32frombits(binary.LittleEndian.Uint32(out[4*i:]))
		if v != e {
			t.Fatalf("sample %v was %v, expected %v", i, v, e)
		}
	}
	reused := oto.FloatBufferToLE(in[:1], out[:0])
	if len(reused) != 4 || &reused[0] != &out[0] {
		t.Fatal("FloatBufferToLE should reuse the capacity of dst")
	}
}
