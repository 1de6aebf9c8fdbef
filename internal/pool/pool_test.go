package pool

import (
	"bytes"
	"sync"
	"testing"
)

func TestGet_Capacity(t *testing.T) {
	tests := []struct {
		name   string
		hint   int
		minCap int
	}{
		{"zero", 0, 0},
		{"4K_exact", 4096, 4096},
		{"4K_small", 100, 100},
		{"64K_mid", 10000, 10000},
		{"1M_exact", 1048576, 1048576},
		{"16M_mid", 2 * 1048576, 2 * 1048576},
		{"oversized", Size16M + 1, Size16M + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Get(tt.hint)
			if b.Len() != 0 {
				t.Errorf("Get(%d): len = %d, want 0", tt.hint, b.Len())
			}
			if b.Cap() < tt.minCap {
				t.Errorf("Get(%d): cap = %d, want >= %d", tt.hint, b.Cap(), tt.minCap)
			}
			Put(b)
		})
	}
}

func TestGet_ReturnsEmptyAfterReuse(t *testing.T) {
	b := Get(64)
	b.WriteString("stale payload")
	Put(b)

	for i := 0; i < 8; i++ {
		b := Get(64)
		if b.Len() != 0 {
			t.Fatalf("reused buffer has len %d, want 0", b.Len())
		}
		Put(b)
	}
}

func TestPut_Nil(t *testing.T) {
	Put(nil) // Should not panic.
}

func TestPut_Oversized(t *testing.T) {
	b := bytes.NewBuffer(make([]byte, 0, Size16M+1))
	Put(b) // Dropped, should not panic.
}

func TestBytes_IsCopy(t *testing.T) {
	b := Get(16)
	b.WriteString("abc")
	out := Bytes(b)
	Put(b)

	b2 := Get(16)
	b2.WriteString("xyz")
	if string(out) != "abc" {
		t.Errorf("Bytes() = %q after buffer reuse, want %q", out, "abc")
	}
	Put(b2)
}

func TestConcurrency(t *testing.T) {
	const goroutines = 16
	const iterations = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				for _, size := range []int{128, 8192, 131072} {
					b := Get(size)
					if b.Len() != 0 {
						t.Errorf("concurrent Get(%d): len = %d", size, b.Len())
						return
					}
					b.Write(make([]byte, size))
					Put(b)
				}
			}
		}()
	}

	wg.Wait()
}
