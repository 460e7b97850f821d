package testutil

import (
	"context"
	"math"
	"testing"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a1, err := e.Embed(ctx, "học phí năm 2026")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := e.Embed(ctx, "học phí năm 2026")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("same text produced different vectors at %d", i)
		}
	}

	b, err := e.Embed(ctx, "lịch công tác")
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a1 {
		if a1[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	e := NewHashEmbedder(128)

	vec, err := e.Embed(context.Background(), "chuẩn hóa")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 128 {
		t.Fatalf("dimension = %d, want 128", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", math.Sqrt(norm))
	}
}
