package modlog

import (
	"bytes"
	"testing"
	"time"
)

func benchSpec(b *testing.B, text string) *LogSpecification {
	b.Helper()
	spec, err := ParseSpec(text)
	if err != nil {
		b.Fatal(err)
	}
	return spec
}

func BenchmarkSpecification_Enabled(b *testing.B) {
	spec := benchSpec(b, "info,server=debug,server.db=trace,server.db.pool=warn,client=error")

	b.Run("directive hit", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			spec.Enabled("server.db.pool.conn", LevelWarn)
		}
	})

	b.Run("default fallthrough", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			spec.Enabled("unrelated.module", LevelInfo)
		}
	})
}

func BenchmarkRegistry_Current(b *testing.B) {
	reg := NewRegistry(benchSpec(b, "info"))
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = reg.Current()
		}
	})
}

func BenchmarkEngine_DisabledRecord(b *testing.B) {
	var diagBuf bytes.Buffer
	reg := NewRegistry(benchSpec(b, "error"))
	eng, err := NewEngine(EngineConfig{Registry: reg, Primary: &memorySink{}}, testDiag(&diagBuf))
	if err != nil {
		b.Fatal(err)
	}

	r := Record{Time: time.Now(), Level: LevelDebug, Module: "server.db", Message: "dropped"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		eng.Log(r)
	}
}
