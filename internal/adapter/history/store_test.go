package history

import (
	"path/filepath"
	"testing"
	"time"

	"promptmatrix/internal/domain"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))
	msgs, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if msgs != nil {
		t.Errorf("msgs = %v, want nil", msgs)
	}
}

func TestSaveLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))

	in := []domain.Message{
		{Role: domain.RoleUser, Content: "帮我设计一个数据分析助手", Timestamp: time.Now().UTC().Truncate(time.Second)},
		{Role: domain.RoleAssistant, Content: "好的", Timestamp: time.Now().UTC().Truncate(time.Second)},
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("messages = %d, want 2", len(out))
	}
	if out[0].Content != in[0].Content || out[1].Role != domain.RoleAssistant {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestDisabledStore(t *testing.T) {
	s := NewStore("")
	if err := s.Save([]domain.Message{{Role: domain.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	msgs, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if msgs != nil {
		t.Error("disabled store should load nothing")
	}
}
