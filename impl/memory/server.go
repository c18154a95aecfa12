// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/data/stringset"

	"go.chromium.org/dsaccess/service/datastore"
)

// Server is an in-memory datastorepb.DatastoreServer.
//
// The zero value is not usable; use New. Exported fields may be changed
// between calls, not during them.
type Server struct {
	datastorepb.UnimplementedDatastoreServer

	// MaxLookupKeys, if positive, is the number of keys a Lookup serves. The
	// remaining keys come back as deferred.
	MaxLookupKeys int

	// MaxQueryBatch, if positive, caps the number of results of one RunQuery
	// call. Truncated batches report NOT_FINISHED.
	MaxQueryBatch int

	// Clock stamps create, update, commit and read times.
	Clock clock.Clock

	mu       sync.Mutex
	version  int64
	nextID   int64
	entities map[string]*record
	versions map[string]int64 // last version of every key ever written
	txns     map[string]*txnState
}

type record struct {
	entity     *datastore.Entity
	version    int64
	createTime time.Time
	updateTime time.Time
}

type txnState struct {
	readOnly bool
	start    int64
	reads    stringset.Set
}

// New returns an empty server.
func New() *Server {
	return &Server{
		Clock:    clock.GetSystemClock(),
		version:  1,
		nextID:   1,
		entities: map[string]*record{},
		versions: map[string]int64{},
		txns:     map[string]*txnState{},
	}
}

func (s *Server) now() *timestamppb.Timestamp {
	return timestamppb.New(s.Clock.Now().UTC())
}

// Len is the number of stored entities.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// OpenTransactions is the number of transactions neither committed nor
// rolled back.
func (s *Server) OpenTransactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

// Put stores an entity directly, as a non-transactional upsert would.
func (s *Server) Put(e *datastore.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.writeLocked(e.Key().String(), e.Clone(), s.Clock.Now().UTC())
}

func (s *Server) writeLocked(id string, e *datastore.Entity, now time.Time) {
	rec := &record{entity: e, version: s.version, createTime: now, updateTime: now}
	if prev, ok := s.entities[id]; ok {
		rec.createTime = prev.createTime
	}
	s.entities[id] = rec
	s.versions[id] = s.version
}

func (s *Server) BeginTransaction(ctx context.Context, req *datastorepb.BeginTransactionRequest) (*datastorepb.BeginTransactionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.New()
	s.txns[string(token[:])] = &txnState{
		readOnly: req.GetTransactionOptions().GetReadOnly() != nil,
		start:    s.version,
		reads:    stringset.New(0),
	}
	return &datastorepb.BeginTransactionResponse{Transaction: token[:]}, nil
}

func (s *Server) Rollback(ctx context.Context, req *datastorepb.RollbackRequest) (*datastorepb.RollbackResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.txnLocked(req.GetTransaction()); err != nil {
		return nil, err
	}
	delete(s.txns, string(req.GetTransaction()))
	return &datastorepb.RollbackResponse{}, nil
}

func (s *Server) txnLocked(token []byte) (*txnState, error) {
	if len(token) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "missing transaction")
	}
	txn, ok := s.txns[string(token)]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown or expired transaction")
	}
	return txn, nil
}

// readTxnLocked returns the transaction of read options, or nil for reads
// outside of one.
func (s *Server) readTxnLocked(opts *datastorepb.ReadOptions) (*txnState, error) {
	switch c := opts.GetConsistencyType().(type) {
	case *datastorepb.ReadOptions_Transaction:
		return s.txnLocked(c.Transaction)
	case *datastorepb.ReadOptions_NewTransaction:
		return nil, status.Errorf(codes.Unimplemented, "new_transaction read option is not supported")
	}
	return nil, nil
}

func (s *Server) Lookup(ctx context.Context, req *datastorepb.LookupRequest) (*datastorepb.LookupResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, err := s.readTxnLocked(req.GetReadOptions())
	if err != nil {
		return nil, err
	}

	res := &datastorepb.LookupResponse{ReadTime: s.now()}
	for i, pb := range req.GetKeys() {
		if s.MaxLookupKeys > 0 && i >= s.MaxLookupKeys {
			res.Deferred = append(res.Deferred, pb)
			continue
		}
		key, err := parseKey(pb, true)
		if err != nil {
			return nil, err
		}
		id := key.String()
		if txn != nil {
			txn.reads.Add(id)
		}
		rec, ok := s.entities[id]
		if !ok {
			ver := s.versions[id]
			if ver == 0 {
				ver = s.version
			}
			res.Missing = append(res.Missing, &datastorepb.EntityResult{
				Entity:  &datastorepb.Entity{Key: pb},
				Version: ver,
			})
			continue
		}
		res.Found = append(res.Found, rec.result(rec.entity.ToPB()))
	}
	return res, nil
}

func (r *record) result(pb *datastorepb.Entity) *datastorepb.EntityResult {
	return &datastorepb.EntityResult{
		Entity:     pb,
		Version:    r.version,
		CreateTime: timestamppb.New(r.createTime),
		UpdateTime: timestamppb.New(r.updateTime),
	}
}

func (s *Server) AllocateIds(ctx context.Context, req *datastorepb.AllocateIdsRequest) (*datastorepb.AllocateIdsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &datastorepb.AllocateIdsResponse{Keys: make([]*datastorepb.Key, len(req.GetKeys()))}
	for i, pb := range req.GetKeys() {
		key, err := parseKey(pb, false)
		if err != nil {
			return nil, err
		}
		if !key.IsIncomplete() {
			return nil, status.Errorf(codes.InvalidArgument, "key %s is complete", key)
		}
		res.Keys[i] = key.WithID(s.allocateLocked()).ToPB()
	}
	return res, nil
}

func (s *Server) allocateLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Server) ReserveIds(ctx context.Context, req *datastorepb.ReserveIdsRequest) (*datastorepb.ReserveIdsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pb := range req.GetKeys() {
		key, err := parseKey(pb, true)
		if err != nil {
			return nil, err
		}
		if key.Variant() == datastore.Numeric && key.ID() >= s.nextID {
			s.nextID = key.ID() + 1
		}
	}
	return &datastorepb.ReserveIdsResponse{}, nil
}

// parseKey converts a request key. complete requires every path element to
// have an id or a name.
func parseKey(pb *datastorepb.Key, complete bool) (*datastore.Key, error) {
	key, err := datastore.KeyFromPB(pb)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s", err)
	}
	if complete {
		for _, el := range key.Path() {
			if el.IsIncomplete() {
				return nil, status.Errorf(codes.InvalidArgument, "key %s is incomplete", key)
			}
		}
	}
	return key, nil
}
