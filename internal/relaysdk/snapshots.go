package relaysdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/imroc/req/v3"
)

const (
	v1SnapshotUpload   = "/sync/snapshot"
	v1SnapshotLatest   = "/sync/snapshot/latest"
	v1SnapshotDownload = "/sync/snapshot/{id}"
)

type SnapshotAPI struct {
	client *req.Client
}

// Checksum is the "sha256:<hex>" digest the relay verifies on upload.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (s *SnapshotAPI) Upload(ctx context.Context, upload *SnapshotUpload) (resp *SnapshotMeta, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetContentType("application/octet-stream").
		SetHeader(HeaderSnapshotEventID, upload.EventID).
		SetHeader(HeaderSnapshotSeq, strconv.FormatInt(upload.Seq, 10)).
		SetHeader(HeaderSnapshotKeyVersion, strconv.Itoa(upload.KeyVersion)).
		SetHeader(HeaderSnapshotChecksum, Checksum(upload.Data)).
		SetBodyBytes(upload.Data).
		SetSuccessResult(&resp).
		Post(v1SnapshotUpload)
	if err := handleAPIError(res, err, "snapshot upload"); err != nil {
		return nil, err
	}
	return resp, nil
}

// Latest returns the newest snapshot's metadata, or nil when none exists.
func (s *SnapshotAPI) Latest(ctx context.Context) (resp *SnapshotMeta, err error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1SnapshotLatest)
	if err := handleAPIError(res, err, "snapshot latest"); err != nil {
		if HasCode(err, CodeSnapshotNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

// Download fetches a snapshot blob and checks it against the expected checksum.
func (s *SnapshotAPI) Download(ctx context.Context, meta *SnapshotMeta) ([]byte, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", meta.SnapshotID).
		Get(v1SnapshotDownload)
	if err := handleAPIError(res, err, "snapshot download"); err != nil {
		return nil, err
	}

	data := res.Bytes()
	if meta.Checksum != "" && Checksum(data) != meta.Checksum {
		return nil, fmt.Errorf("snapshot download: %w", NewAPIError(res.StatusCode, CodeSnapshotChecksum, "checksum mismatch"))
	}
	return data, nil
}
