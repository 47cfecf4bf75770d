package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/codecollab/codecollab/ot"
)

func testPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	databaseURL := os.Getenv("CODECOLLAB_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("CODECOLLAB_TEST_DATABASE_URL not set, skipping Postgres tests")
	}
	s, err := NewPostgresStore(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("failed to connect to Postgres: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// uniqueRoomID returns a unique room id for test isolation.
func uniqueRoomID(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

func TestPostgresStore_CreateAndGet(t *testing.T) {
	s := testPostgresStore(t)
	ctx := context.Background()
	id := uniqueRoomID(t)
	t.Cleanup(func() { s.DeleteRoom(ctx, id) })

	if err := s.CreateRoom(ctx, id, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRoom(ctx, id, "again"); !errors.Is(err, ErrRoomExists) {
		t.Errorf("duplicate create error = %v, want ErrRoomExists", err)
	}

	info, err := s.GetRoom(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if info.Content != "hello" || info.Version != 0 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestPostgresStore_OperationsRoundTrip(t *testing.T) {
	s := testPostgresStore(t)
	ctx := context.Background()
	id := uniqueRoomID(t)
	t.Cleanup(func() { s.DeleteRoom(ctx, id) })

	if err := s.CreateRoom(ctx, id, ""); err != nil {
		t.Fatal(err)
	}

	ops := []ot.Operation{
		{Ops: []ot.Component{{Insert: "hello"}}},
		ot.NewInsert(5, " world", 5),
	}
	for i, op := range ops {
		if err := s.AppendOperation(ctx, id, op, i+1); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.UpdateContent(ctx, id, "hello world", 2); err != nil {
		t.Fatal(err)
	}

	got, err := s.Operations(ctx, id, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Operations(1) returned %d ops, want 1", len(got))
	}
	if got[0].TargetLen() != 11 {
		t.Errorf("decoded op target length = %d, want 11", got[0].TargetLen())
	}

	info, _ := s.GetRoom(ctx, id)
	if info.Content != "hello world" || info.Version != 2 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestPostgresStore_Participants(t *testing.T) {
	s := testPostgresStore(t)
	ctx := context.Background()
	id := uniqueRoomID(t)
	t.Cleanup(func() { s.DeleteRoom(ctx, id) })

	if err := s.CreateRoom(ctx, id, ""); err != nil {
		t.Fatal(err)
	}

	p := Participant{
		ID:         "p1",
		Name:       "Alice",
		Color:      "#ff0000",
		Cursor:     Position{Line: 2, Column: 8},
		Selection:  Range{Start: Position{Line: 2, Column: 1}, End: Position{Line: 2, Column: 8}},
		LastActive: time.Now(),
	}
	if err := s.AddParticipant(ctx, id, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Participants(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d participants, want 1", len(got))
	}
	if got[0].Name != "Alice" || got[0].Cursor != p.Cursor || got[0].Selection != p.Selection {
		t.Errorf("round-trip mismatch: %+v", got[0])
	}

	if err := s.RemoveParticipant(ctx, id, "p1"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Participants(ctx, id)
	if len(got) != 0 {
		t.Errorf("got %d participants after remove, want 0", len(got))
	}
}

func TestPostgresStore_MissingRoom(t *testing.T) {
	s := testPostgresStore(t)
	ctx := context.Background()

	if _, err := s.GetRoom(ctx, "does-not-exist"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("GetRoom error = %v, want ErrRoomNotFound", err)
	}
	if err := s.UpdateContent(ctx, "does-not-exist", "x", 1); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("UpdateContent error = %v, want ErrRoomNotFound", err)
	}
	if err := s.DeleteRoom(ctx, "does-not-exist"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("DeleteRoom error = %v, want ErrRoomNotFound", err)
	}
}
