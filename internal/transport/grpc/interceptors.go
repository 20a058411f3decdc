package grpc

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"

	"bookings/backend/internal/auth"
)

// DefaultRequestTimeout bounds requests that arrive without a deadline.
func DefaultRequestTimeout(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type tokenVerifier interface {
	UserID(raw string) (int64, error)
}

// Auth resolves the caller from the "authorization: Bearer <jwt>" metadata.
func Auth(v tokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		vals := md.Get("authorization")
		if len(vals) == 0 || vals[0] == "" {
			return nil, status.Error(codes.Unauthenticated, "token not provided")
		}
		uid, err := v.UserID(vals[0])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "token invalid")
		}
		return handler(auth.WithUserID(ctx, uid), req)
	}
}

type peerLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per peer address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*peerLimiter
	r       rate.Limit
	burst   int
	now     func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*peerLimiter),
		r:       rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *RateLimiter) get(addr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[addr]; ok {
		c.seen = rl.now()
		return c.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[addr] = &peerLimiter{lim: l, seen: rl.now()}
	return l
}

// Sweep drops peers idle for longer than idle.
func (rl *RateLimiter) Sweep(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for addr, c := range rl.clients {
		if rl.now().Sub(c.seen) > idle {
			delete(rl.clients, addr)
		}
	}
}

// Run sweeps idle peers every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.Sweep(3 * time.Minute)
		}
	}
}

func (rl *RateLimiter) Interceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		addr := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			addr = p.Addr.String()
		}
		if !rl.get(addr).Allow() {
			return nil, withDetails(status.New(codes.ResourceExhausted, "too many requests"), &errdetails.RetryInfo{
				RetryDelay: durationpb.New(rl.retryAfter()),
			})
		}
		return handler(ctx, req)
	}
}

// retryAfter is the time one token takes to refill.
func (rl *RateLimiter) retryAfter() time.Duration {
	if rl.r <= 0 || rl.r == rate.Inf {
		return time.Second
	}
	return time.Duration(math.Round(float64(time.Second) / float64(rl.r)))
}

// withDetails attaches details to st, keeping the bare status if they cannot
// be encoded.
func withDetails(st *status.Status, details ...protoadapt.MessageV1) error {
	if d, err := st.WithDetails(details...); err == nil {
		st = d
	}
	return st.Err()
}
