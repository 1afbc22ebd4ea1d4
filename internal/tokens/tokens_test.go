package tokens

import "testing"

func TestCountKnownModel(t *testing.T) {
	counter := NewCounter()
	count, err := counter.Count("gpt-4o", "hello world")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count == 0 {
		t.Fatal("expected a non-zero token count")
	}
}

func TestCountUnknownModelFallsBack(t *testing.T) {
	counter := NewCounter()
	count, err := counter.Count("some-future-model", "hello world")
	if err != nil {
		t.Fatalf("expected fallback encoding, got error: %v", err)
	}
	if count == 0 {
		t.Fatal("expected a non-zero token count")
	}
}

func TestCountEmptyText(t *testing.T) {
	counter := NewCounter()
	count, err := counter.Count("gpt-4o", "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero tokens for empty text, got %d", count)
	}
}
