package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/kailas-cloud/popolodex/internal/db"
)

func newMock(t *testing.T) *mtest.T {
	t.Helper()
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestFind(t *testing.T) {
	mt := newMock(t)

	mt.Run("returns plain documents", func(mt *mtest.T) {
		s := New(mt.DB)
		ns := mt.DB.Name() + ".persons"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "p1"}, {Key: "name", Value: "Ada"}},
				bson.D{{Key: "_id", Value: "p2"}, {Key: "other_names", Value: bson.A{bson.D{{Key: "name", Value: "Bob"}}}}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		docs, err := s.Find(context.Background(), "persons", db.FindQuery{Limit: 2, Skip: 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 docs, got %d", len(docs))
		}
		if docs[0]["id"] != "p1" {
			t.Errorf("expected id p1, got %v", docs[0]["id"])
		}
		if _, ok := docs[0]["_id"]; ok {
			t.Error("_id should be exposed as id")
		}
		names, ok := docs[1]["other_names"].([]any)
		if !ok || len(names) != 1 {
			t.Fatalf("other_names not converted: %#v", docs[1]["other_names"])
		}
		if m, ok := names[0].(map[string]any); !ok || m["name"] != "Bob" {
			t.Errorf("nested doc not converted: %#v", names[0])
		}
	})

	mt.Run("command error", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Message: "bad query", Name: "BadValue",
		}))

		_, err := s.Find(context.Background(), "persons", db.FindQuery{})
		var dbErr *db.Error
		if !errors.As(err, &dbErr) || dbErr.Op != db.OpFind {
			t.Errorf("expected find db.Error, got %v", err)
		}
	})
}

func TestCount(t *testing.T) {
	mt := newMock(t)

	mt.Run("counts documents", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, mt.DB.Name()+".persons", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(4500)}},
		))

		n, err := s.Count(context.Background(), "persons")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 4500 {
			t.Errorf("count = %d, want 4500", n)
		}
	})
}

func TestGet(t *testing.T) {
	mt := newMock(t)

	mt.Run("found", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".persons", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "p1"}, {Key: "name", Value: "Ada"}},
		))

		doc, err := s.Get(context.Background(), "persons", "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc["id"] != "p1" || doc["name"] != "Ada" {
			t.Errorf("unexpected doc: %v", doc)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".persons", mtest.FirstBatch))

		_, err := s.Get(context.Background(), "persons", "nope")
		if !errors.Is(err, db.ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestSave(t *testing.T) {
	mt := newMock(t)

	mt.Run("upserts by id", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		out, err := s.Save(context.Background(), "persons", map[string]any{"id": "p1", "name": "Ada"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out["id"] != "p1" {
			t.Errorf("expected id p1, got %v", out["id"])
		}
		if _, ok := out["_id"]; ok {
			t.Error("stored form should expose id only")
		}
	})

	mt.Run("requires id", func(mt *mtest.T) {
		s := New(mt.DB)
		if _, err := s.Save(context.Background(), "persons", map[string]any{"name": "Ada"}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestRemove(t *testing.T) {
	mt := newMock(t)

	mt.Run("deleted", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		if err := s.Remove(context.Background(), "persons", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		s := New(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := s.Remove(context.Background(), "persons", "nope")
		if !errors.Is(err, db.ErrKeyNotFound) {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})
}

func TestPlain(t *testing.T) {
	oid := primitive.NewObjectID()
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	got := fromStorage(bson.M{
		"_id":     oid,
		"born":    primitive.NewDateTimeFromTime(at),
		"n":       int32(7),
		"contact": bson.D{{Key: "type", Value: "email"}},
	})

	if got["id"] != oid.Hex() {
		t.Errorf("id = %v, want %s", got["id"], oid.Hex())
	}
	if got["born"] != "2020-01-02T03:04:05Z" {
		t.Errorf("born = %v", got["born"])
	}
	if got["n"] != int64(7) {
		t.Errorf("n = %#v", got["n"])
	}
	if m, ok := got["contact"].(map[string]any); !ok || m["type"] != "email" {
		t.Errorf("contact = %#v", got["contact"])
	}
}

func TestToStorage(t *testing.T) {
	got := toStorage(map[string]any{"id": "p1", "name": "Ada"})
	if got["_id"] != "p1" {
		t.Errorf("_id = %v", got["_id"])
	}
	if _, ok := got["id"]; ok {
		t.Error("id should be renamed")
	}
}
