package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"streetscan/internal/models"
)

type stubSource struct {
	messages chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newStubSource(values ...[]byte) *stubSource {
	s := &stubSource{messages: make(chan kafka.Message, len(values))}
	for i, v := range values {
		s.messages <- kafka.Message{Offset: int64(i), Value: v}
	}
	close(s.messages)
	return s
}

func (s *stubSource) Messages() <-chan kafka.Message { return s.messages }

func (s *stubSource) CommitOffset(_ context.Context, msg kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msg.Offset)
	return nil
}

func TestIteratorDecodesAndCommits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := []models.Panorama{
		{PanoID: "aaaaaaaaaaaaaaaaaaaa11", Lat: 51.73, Lon: 0.47},
		{PanoID: "bbbbbbbbbbbbbbbbbbbb22", Lat: 51.74, Lon: 0.48},
	}
	values := make([][]byte, len(want))
	for i, rec := range want {
		values[i], _ = json.Marshal(rec)
	}

	source := newStubSource(values...)
	it := NewIterator[models.Panorama](source)

	var got []models.Panorama
	for rec := range it.Items(ctx) {
		got = append(got, rec)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.committed) != len(want) {
		t.Errorf("committed %d offsets, want %d", len(source.committed), len(want))
	}
}

func TestIteratorSkipsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	good, _ := json.Marshal(models.Panorama{PanoID: "goodGoodGoodGoodGood11", Lat: 51.73, Lon: 0.47})
	source := newStubSource([]byte("{not json"), good)
	it := NewIterator[models.Panorama](source)

	var got []models.Panorama
	for rec := range it.Items(ctx) {
		got = append(got, rec)
	}

	if len(got) != 1 || got[0].PanoID != "goodGoodGoodGoodGood11" {
		t.Fatalf("expected only the well-formed record, got %v", got)
	}
}
