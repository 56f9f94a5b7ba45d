package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/usercache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// scanCount is the COUNT hint for SCAN iterations.
const scanCount = 256

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.Provider  = (*Redis)(nil)
	_ pr.Inspector = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// ClientOptions describes a dedicated connection to one logical database.
type ClientOptions struct {
	Host         string
	Port         int
	DB           int
	Password     string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient builds a go-redis client for opts. The caller owns it.
func NewClient(opts ClientOptions) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		DB:           opts.DB,
		Password:     opts.Password,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

// Del is DEL; a missing key yields 0 deleted and no error.
func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Keys walks the keyspace with SCAN rather than KEYS so a large database
// does not block the server.
func (p *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	it := p.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()
	for it.Next(ctx) {
		out = append(out, it.Val())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Redis) Info(ctx context.Context) (pr.ServerInfo, error) {
	raw, err := p.rdb.Info(ctx).Result()
	if err != nil {
		return pr.ServerInfo{}, err
	}
	return parseInfo(raw), nil
}

// Ping reports whether the server is reachable.
func (p *Redis) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
