package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/soundvine/discovery-indexer/internal/adapter"
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/logger"
)

// Request asks for one CID, optionally hinting the replica endpoints most
// likely to hold it.
type Request struct {
	CID  string
	Type domain.CIDType
	// ReplicaSet lists the owning user's content nodes, tried first
	ReplicaSet []string
	// Optional blobs are fetched best-effort: leaving one unresolved after
	// both phases does not fail the block
	Optional bool
}

// Resolver fetches off-chain metadata blobs in two phases: a fast targeted
// pass against each owner's replica set, then a broadcast pass across every
// configured gateway for whatever is still missing. Phase-one failures are
// swallowed; only blobs missing after phase two fail the block.
type Resolver struct {
	http          adapter.HTTPClient
	gateways      []string
	phase1Timeout time.Duration
	phase2Timeout time.Duration
	poolSize      int
}

// NewResolver creates a metadata resolver
func NewResolver(http adapter.HTTPClient, gateways []string, phase1Timeout, phase2Timeout time.Duration, poolSize int) *Resolver {
	if poolSize <= 0 {
		poolSize = 20
	}
	return &Resolver{
		http:          http,
		gateways:      gateways,
		phase1Timeout: phase1Timeout,
		phase2Timeout: phase2Timeout,
		poolSize:      poolSize,
	}
}

// Resolve fetches every requested CID, deduplicating requests for the same
// CID. It returns the raw blobs keyed by CID, or MissingMetadataError naming
// the required CIDs still unresolved after both phases. Optional requests
// never produce an error; their CIDs are simply absent from the result.
func (r *Resolver) Resolve(ctx context.Context, blockNumber int64, requests []Request) (map[string]json.RawMessage, error) {
	resolved := make(map[string]json.RawMessage)

	pending := dedupe(requests)
	if len(pending) == 0 {
		return resolved, nil
	}

	var mu sync.Mutex

	// Phase one: targeted fetch from each owner's replica set. A timeout
	// here is expected when nodes are slow; phase two covers the remainder.
	phase1Ctx, cancel := context.WithTimeout(ctx, r.phase1Timeout)
	r.fetchAll(phase1Ctx, pending, true, resolved, &mu)
	cancel()

	remaining := missing(pending, resolved)
	if len(remaining) == 0 {
		return resolved, nil
	}

	logger.Info("metadata phase one incomplete, broadcasting",
		zap.Int64("block", blockNumber),
		zap.Int("remaining", len(remaining)))

	// Phase two: broadcast to every configured gateway
	phase2Ctx, cancel := context.WithTimeout(ctx, r.phase2Timeout)
	defer cancel()
	r.fetchAll(phase2Ctx, remaining, false, resolved, &mu)

	var requiredMissing []string
	for _, req := range missing(remaining, resolved) {
		if req.Optional {
			logger.Warn("optional metadata left unresolved",
				zap.Int64("block", blockNumber),
				zap.String("cid", req.CID))
			continue
		}
		requiredMissing = append(requiredMissing, req.CID)
	}
	if len(requiredMissing) > 0 {
		return nil, &domain.MissingMetadataError{
			BlockNumber: blockNumber,
			CIDs:        requiredMissing,
		}
	}

	return resolved, nil
}

// fetchAll runs one resolution pass over the pending requests. In targeted
// mode only each request's replica set is queried; otherwise every gateway is.
func (r *Resolver) fetchAll(ctx context.Context, pending []Request, targeted bool, resolved map[string]json.RawMessage, mu *sync.Mutex) {
	pool := pond.NewPool(r.poolSize)
	group := pool.NewGroupContext(ctx)

	for _, req := range pending {
		endpoints := r.gateways
		if targeted {
			endpoints = req.ReplicaSet
		}
		if len(endpoints) == 0 {
			continue
		}

		request := req
		hosts := endpoints
		group.Submit(func() {
			raw, ok := r.fetchOne(ctx, request.CID, hosts)
			if !ok {
				return
			}
			mu.Lock()
			if _, dup := resolved[request.CID]; !dup {
				resolved[request.CID] = raw
			}
			mu.Unlock()
		})
	}

	// Fetch errors within a pass are not failures yet
	_ = group.Wait()
	pool.StopAndWait()
}

// fetchOne tries each endpoint in order until one returns a blob
func (r *Resolver) fetchOne(ctx context.Context, cid string, endpoints []string) (json.RawMessage, bool) {
	for _, endpoint := range endpoints {
		if ctx.Err() != nil {
			return nil, false
		}

		url := blobURL(endpoint, cid)
		var raw json.RawMessage
		if err := r.http.GetJSON(ctx, url, &raw); err != nil {
			logger.Debug("metadata fetch failed",
				zap.String("cid", cid),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			continue
		}
		if len(raw) == 0 {
			continue
		}
		return raw, true
	}
	return nil, false
}

func blobURL(endpoint, cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimRight(endpoint, "/"), cid)
}

func dedupe(requests []Request) []Request {
	index := make(map[string]int, len(requests))
	out := make([]Request, 0, len(requests))
	for _, req := range requests {
		if req.CID == "" {
			continue
		}
		if i, seen := index[req.CID]; seen {
			// A required reference outweighs an optional one for the same cid
			if !req.Optional {
				out[i].Optional = false
			}
			continue
		}
		index[req.CID] = len(out)
		out = append(out, req)
	}
	return out
}

func missing(requests []Request, resolved map[string]json.RawMessage) []Request {
	var out []Request
	for _, req := range requests {
		if _, ok := resolved[req.CID]; !ok {
			out = append(out, req)
		}
	}
	return out
}
