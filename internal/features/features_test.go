package features

import "testing"

func TestVectorSetGet(t *testing.T) {
	v := New[uint16](4, 0xFFFF)

	if _, ok := v.Get(0); ok {
		t.Fatalf("expected fresh slot to be absent")
	}

	if err := v.Set(1, 42); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := v.Get(1)
	if !ok || got != 42 {
		t.Fatalf("Get(1) = (%v, %v), want (42, true)", got, ok)
	}

	for _, i := range []int{0, 2, 3} {
		if _, ok := v.Get(i); ok {
			t.Fatalf("slot %d should still be absent", i)
		}
	}
}

func TestVectorSetSentinelFails(t *testing.T) {
	v := New[uint32](2, 0xFFFFFFFF)
	if err := v.Set(0, 0xFFFFFFFF); err == nil {
		t.Fatalf("expected Set(sentinel) to fail")
	}
}

func TestVectorParseLengthMismatch(t *testing.T) {
	if _, err := Parse[uint32](make([]byte, 7), 2, 0xFFFFFFFF); err == nil {
		t.Fatalf("expected length mismatch to fail")
	}
}

func TestFeaturesRoundTrip(t *testing.T) {
	f := NewFeatures()

	if err := f.SetUint(IdxNumIngredients, 5); err != nil {
		t.Fatalf("SetUint: %v", err)
	}
	if err := f.SetFloat(IdxFatContent, 12.5); err != nil {
		t.Fatalf("SetFloat: %v", err)
	}

	got, ok := f.GetUint(IdxNumIngredients)
	if !ok || got != 5 {
		t.Fatalf("GetUint = (%v, %v), want (5, true)", got, ok)
	}

	gotF, ok := f.GetFloat(IdxFatContent)
	if !ok || gotF != 12.5 {
		t.Fatalf("GetFloat = (%v, %v), want (12.5, true)", gotF, ok)
	}

	if _, ok := f.GetUint(IdxTotalTime); ok {
		t.Fatalf("unset feature should be absent")
	}
}

func TestFeaturesParseRoundTrip(t *testing.T) {
	f := NewFeatures()
	f.SetUint(IdxCalories, 300)

	parsed, err := ParseFeatures(f.Bytes())
	if err != nil {
		t.Fatalf("ParseFeatures: %v", err)
	}
	got, ok := parsed.GetUint(IdxCalories)
	if !ok || got != 300 {
		t.Fatalf("GetUint(Calories) = (%v, %v), want (300, true)", got, ok)
	}
}
