package relaysdk

import (
	"context"
	"strconv"

	"github.com/imroc/req/v3"
)

const (
	v1SyncPush   = "/sync/push"
	v1SyncPull   = "/sync/pull"
	v1SyncCursor = "/sync/cursor"
)

type SyncAPI struct {
	client *req.Client
}

// Push sends a batch of events. The relay answers per event; a transport
// failure means no event is known to have been received.
func (s *SyncAPI) Push(ctx context.Context, events []SyncEvent) (resp *PushResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(&PushRequest{Events: events}).
		SetSuccessResult(&resp).
		Post(v1SyncPush)
	if err := handleAPIError(res, err, "sync push"); err != nil {
		return nil, err
	}
	return resp, nil
}

// Pull fetches events with seq greater than since, in ascending seq order.
func (s *SyncAPI) Pull(ctx context.Context, since int64, limit int) (resp *PullResponse, err error) {
	r := s.client.R().
		SetContext(ctx).
		SetQueryParam("since", strconv.FormatInt(since, 10)).
		SetSuccessResult(&resp)
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}
	res, err := r.Get(v1SyncPull)
	if err := handleAPIError(res, err, "sync pull"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *SyncAPI) Cursor(ctx context.Context) (resp *CursorResponse, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1SyncCursor)
	if err := handleAPIError(res, err, "sync cursor"); err != nil {
		return nil, err
	}
	return resp, nil
}
