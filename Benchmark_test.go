package bptree

import (
	"math/rand"
	"path/filepath"
	"testing"
)

// Benchmarks below follow the shape of the original source's bulk
// sequential insert, bulk random insert, and bulk find benchmarks -
// carried forward as testing.B functions rather than a separate harness,
// per Go idiom.

func newBenchTree(b *testing.B) *Btree {
	b.Helper()

	path := filepath.Join(b.TempDir(), "index.db")
	bt, err := New(Options{
		Path:        path,
		BlockSize:   4096,
		Alpha:       2,
		MaxFileSize: 1 << 24,
		CacheSize:   4096,
	})
	if err != nil {
		b.Fatalf("New: %v", err)
	}
	b.Cleanup(func() { bt.Close() })

	return bt
}

func BenchmarkInsertSequential(b *testing.B) {
	bt := newBenchTree(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := bt.Insert(Key(i), Val(i)); err != nil {
			b.Fatalf("Insert: %v", err)
		}
	}
}

func BenchmarkInsertRandom(b *testing.B) {
	bt := newBenchTree(b)

	keys := make([]Key, b.N)
	for i := range keys {
		keys[i] = Key(i)
	}
	rand.New(rand.NewSource(1)).Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	b.ResetTimer()
	for _, k := range keys {
		if err := bt.Insert(k, Val(k)); err != nil {
			b.Fatalf("Insert: %v", err)
		}
	}
}

func BenchmarkFind(b *testing.B) {
	bt := newBenchTree(b)

	const n = 100_000
	for i := Key(0); i < n; i++ {
		if err := bt.Insert(i, Val(i)); err != nil {
			b.Fatalf("Insert: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bt.Find(Key(i % n)); err != nil {
			b.Fatalf("Find: %v", err)
		}
	}
}
