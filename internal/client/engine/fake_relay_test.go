package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
)

// fakeRelay keeps an in-memory event log and snapshot store.
type fakeRelay struct {
	mu        sync.Mutex
	log       []relaysdk.SyncEvent
	reject    map[string]string
	pushErr   error
	pullErr   error
	pushes    int
	pulls     int
	snapshots []storedSnapshot

	// pushGate, when set, blocks Push until closed; pushEntered is signaled first
	pushGate    chan struct{}
	pushEntered chan struct{}
}

type storedSnapshot struct {
	meta relaysdk.SnapshotMeta
	data []byte
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{reject: map[string]string{}}
}

func (f *fakeRelay) Push(ctx context.Context, events []relaysdk.SyncEvent) (*relaysdk.PushResponse, error) {
	f.mu.Lock()
	gate, entered := f.pushGate, f.pushEntered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	if f.pushErr != nil {
		return nil, f.pushErr
	}

	resp := &relaysdk.PushResponse{}
	for _, ev := range events {
		if code, ok := f.reject[ev.EventID]; ok {
			resp.Results = append(resp.Results, relaysdk.PushResult{
				EventID: ev.EventID, Code: code, Error: "rejected by relay",
			})
			continue
		}
		ev.Seq = int64(len(f.log) + 1)
		f.log = append(f.log, ev)
		resp.Results = append(resp.Results, relaysdk.PushResult{EventID: ev.EventID, Accepted: true, Seq: ev.Seq})
	}
	return resp, nil
}

func (f *fakeRelay) Pull(ctx context.Context, since int64, limit int) (*relaysdk.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	if f.pullErr != nil {
		return nil, f.pullErr
	}

	resp := &relaysdk.PullResponse{NextCursor: since}
	for _, ev := range f.log {
		if ev.Seq <= since {
			continue
		}
		if len(resp.Events) == limit {
			resp.HasMore = true
			break
		}
		resp.Events = append(resp.Events, ev)
		resp.NextCursor = ev.Seq
	}
	return resp, nil
}

// appendRemote adds events as if another device pushed them, keeping their seq.
func (f *fakeRelay) appendRemote(events ...relaysdk.SyncEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, events...)
}

func (f *fakeRelay) received() []relaysdk.SyncEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relaysdk.SyncEvent(nil), f.log...)
}

func (f *fakeRelay) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes
}

func (f *fakeRelay) Upload(ctx context.Context, upload *relaysdk.SnapshotUpload) (*relaysdk.SnapshotMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := relaysdk.SnapshotMeta{
		SnapshotID: uuid.NewString(),
		Seq:        upload.Seq,
		KeyVersion: upload.KeyVersion,
		Checksum:   relaysdk.Checksum(upload.Data),
		SizeBytes:  int64(len(upload.Data)),
		CreatedAt:  time.Now(),
	}
	f.snapshots = append(f.snapshots, storedSnapshot{meta: meta, data: append([]byte(nil), upload.Data...)})
	return &meta, nil
}

func (f *fakeRelay) Latest(ctx context.Context) (*relaysdk.SnapshotMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return nil, nil
	}
	meta := f.snapshots[len(f.snapshots)-1].meta
	return &meta, nil
}

func (f *fakeRelay) Download(ctx context.Context, meta *relaysdk.SnapshotMeta) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.snapshots {
		if s.meta.SnapshotID == meta.SnapshotID {
			return append([]byte(nil), s.data...), nil
		}
	}
	return nil, relaysdk.NewAPIError(404, relaysdk.CodeSnapshotNotFound, "snapshot not found")
}
