package testing

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"sync/atomic"
	"testing"
)

// RunDocDBBenchmarks runs all benchmarks for a document store engine
func RunDocDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory(b))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory(b))
		})

		b.Run("CollectionGet", func(b *testing.B) {
			benchmarkCollectionGet(b, factory(b))
		})

		b.Run("SetWithSubscriber", func(b *testing.B) {
			benchmarkSetWithSubscriber(b, factory(b))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, database docdb.IDatabase) {
	b.Cleanup(func() {
		database.Close()
	})

	col := database.Collection("bench")
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := counter.Add(1)
			_ = col.Doc(fmt.Sprintf("doc-%d", n)).Set(context.Background(), docdb.Payload{"n": float64(n)})
		}
	})
}

func benchmarkGet(b *testing.B, database docdb.IDatabase) {
	b.Cleanup(func() {
		database.Close()
	})

	col := database.Collection("bench")
	for i := 0; i < 100; i++ {
		_ = col.Doc(fmt.Sprintf("doc-%d", i)).Set(context.Background(), docdb.Payload{"n": float64(i)})
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = col.Doc(fmt.Sprintf("doc-%d", counter%100)).Get(context.Background())
			counter++
		}
	})
}

func benchmarkCollectionGet(b *testing.B, database docdb.IDatabase) {
	b.Cleanup(func() {
		database.Close()
	})

	col := database.Collection("bench")
	for i := 0; i < 100; i++ {
		_ = col.Doc(fmt.Sprintf("doc-%d", i)).Set(context.Background(), docdb.Payload{"n": float64(i)})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = col.Get(context.Background())
	}
}

func benchmarkSetWithSubscriber(b *testing.B, database docdb.IDatabase) {
	b.Cleanup(func() {
		database.Close()
	})

	col := database.Collection("bench")
	var received atomic.Int64
	cancel, err := col.OnChange(context.Background(), func(s docdb.QuerySnapshot) {
		received.Add(int64(len(s.Changes)))
	})
	if err != nil {
		b.Fatalf("OnChange failed: %v", err)
	}
	b.Cleanup(cancel)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = col.Doc(fmt.Sprintf("doc-%d", i%100)).Set(context.Background(), docdb.Payload{"n": float64(i)})
	}
}
