package conversation

import "testing"

func TestHistory_Alternation(t *testing.T) {
	var h History

	h, err := h.Append(Human("q1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Pending() {
		t.Error("expected pending after human turn")
	}
	if _, err := h.Append(Human("q2")); err == nil {
		t.Error("expected error for two human turns in a row")
	}

	h, err = h.Append(Assistant("a1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Pending() {
		t.Error("expected no pending turn after answer")
	}
	if _, err := h.Append(Assistant("a2")); err == nil {
		t.Error("expected error for two assistant turns in a row")
	}
}

func TestHistory_AppendDoesNotMutate(t *testing.T) {
	var h History
	h1, _ := h.Append(Human("q1"))
	h2, _ := h1.Append(Assistant("a1"))
	h3a, _ := h2.Append(Human("left"))
	h3b, _ := h2.Append(Human("right"))

	if h1.Len() != 1 || h2.Len() != 2 {
		t.Fatalf("lengths changed: %d, %d", h1.Len(), h2.Len())
	}
	if h3a.Messages()[2].Content != "left" || h3b.Messages()[2].Content != "right" {
		t.Error("sibling histories share backing storage")
	}
}

func TestHistory_DropPending(t *testing.T) {
	var h History
	h, _ = h.Append(Human("q1"))
	h, _ = h.Append(Assistant("a1"))

	if got := h.DropPending(); got.Len() != 2 {
		t.Errorf("DropPending on complete history changed length to %d", got.Len())
	}

	h, _ = h.Append(Human("q2"))
	dropped := h.DropPending()
	if dropped.Len() != 2 || dropped.Pending() {
		t.Fatalf("expected 2 complete messages, got %d (pending=%v)", dropped.Len(), dropped.Pending())
	}
	again, err := dropped.Append(Human("q2 retry"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Messages()[2].Content != "q2" {
		t.Error("append after DropPending overwrote the original history")
	}
	if again.Messages()[2].Content != "q2 retry" {
		t.Errorf("unexpected content %q", again.Messages()[2].Content)
	}
}

func TestHistory_MessagesIsCopy(t *testing.T) {
	var h History
	h, _ = h.Append(Human("q1"))
	msgs := h.Messages()
	msgs[0].Content = "changed"
	if h.Messages()[0].Content != "q1" {
		t.Error("Messages() exposed internal storage")
	}
}
