// Package canon implements the commit payload format: canonical,
// deterministic serialization of CommitData, its content hash, and the
// compressed payload bytes a Commit stores.
//
// Canonical serialization sorts classes/properties/relationships/derived
// by id (model.Schema.Normalize) before encoding; map key order is handled
// by the JSON encoder itself, which always emits object keys sorted.
// Encoding uses goccy/go-json rather than encoding/json: it is a drop-in
// replacement with the same sorted-map-key behavior, and noticeably
// cheaper on the hashing hot path where every commit serializes its
// full snapshot.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/nickyhof/CommitDB/model"
)

// Serialize returns the canonical JSON bytes for data. data is normalized
// in place first (class/property/relationship/derived sort, instance
// sort) so that equivalent CommitData values serialize identically
// regardless of construction order.
func Serialize(data *model.CommitData) ([]byte, error) {
	data.Normalize()
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal commit data: %w", err)
	}
	return buf, nil
}

// Hash returns the hex-encoded SHA-256 digest of canonical bytes. This is
// the content hash exposed as model.Commit.Hash: a digest of the
// canonical uncompressed bytes, independent of whatever internal object
// hash the underlying git storage layer also computes for its own commit
// object.
func Hash(canonicalBytes []byte) string {
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:])
}

// Compress zstd-compresses canonical bytes into the payload a Commit
// stores.
func Compress(canonicalBytes []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("canon: new zstd writer: %w", err)
	}
	if _, err := w.Write(canonicalBytes); err != nil {
		w.Close()
		return nil, fmt.Errorf("canon: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("canon: close zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(payload []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("canon: new zstd reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("canon: decompress: %w", err)
	}
	return out, nil
}

// Encode is the full payload pipeline: normalize + serialize + hash +
// compress. It returns the content hash, the canonical uncompressed
// bytes (useful to callers that also need DataSize/counts), and the
// compressed payload to store.
func Encode(data *model.CommitData) (hash string, canonical []byte, payload []byte, err error) {
	canonical, err = Serialize(data)
	if err != nil {
		return "", nil, nil, err
	}
	hash = Hash(canonical)
	payload, err = Compress(canonical)
	if err != nil {
		return "", nil, nil, err
	}
	return hash, canonical, payload, nil
}

// Decode reverses Encode: decompress the payload and unmarshal it back
// into a CommitData value.
func Decode(payload []byte) (model.CommitData, error) {
	canonical, err := Decompress(payload)
	if err != nil {
		return model.CommitData{}, err
	}
	var data model.CommitData
	if err := json.Unmarshal(canonical, &data); err != nil {
		return model.CommitData{}, fmt.Errorf("canon: unmarshal commit data: %w", err)
	}
	return data, nil
}
