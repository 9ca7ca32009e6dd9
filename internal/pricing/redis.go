package pricing

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"
)

// RedisTable backs the pricing Table with admin-editable Redis hashes:
//
//   pricing:paper:<type>  hash  weight -> "<color>:<mono>"
//   pricing:bindings      hash  binding -> price
//   pricing:finishing     hash  token   -> price
//
// Lookups that fail (connectivity, malformed entries) behave as "not found"
// so the engine's fallback chain still produces a quote.
type RedisTable struct {
    client  *redis.Client
    timeout time.Duration
}

func NewRedisTable(redisURL string) (*RedisTable, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    return &RedisTable{client: c, timeout: 2 * time.Second}, nil
}

func (t *RedisTable) Close() error { return t.client.Close() }

func (t *RedisTable) paperKey(paperType string) string { return "pricing:paper:" + paperType }

func (t *RedisTable) PagePrice(paperType string, weight int) (PagePrice, bool) {
    ctx, cancel := t.ctx()
    defer cancel()
    raw, err := t.client.HGet(ctx, t.paperKey(paperType), strconv.Itoa(weight)).Result()
    if err != nil { return PagePrice{}, false }
    p, err := parsePagePrice(raw)
    if err != nil {
        log.Warn().Err(err).Str("paper", paperType).Int("weight", weight).Msg("malformed price entry")
        return PagePrice{}, false
    }
    return p, true
}

func (t *RedisTable) Weights(paperType string) []int {
    ctx, cancel := t.ctx()
    defer cancel()
    fields, err := t.client.HKeys(ctx, t.paperKey(paperType)).Result()
    if err != nil { return nil }
    out := make([]int, 0, len(fields))
    for _, f := range fields {
        if w, err := strconv.Atoi(f); err == nil { out = append(out, w) }
    }
    return out
}

func (t *RedisTable) BindingPrice(bindingType string) (float64, bool) {
    return t.flatPrice("pricing:bindings", bindingType)
}

func (t *RedisTable) FinishingPrice(token string) (float64, bool) {
    return t.flatPrice("pricing:finishing", token)
}

func (t *RedisTable) flatPrice(key, field string) (float64, bool) {
    ctx, cancel := t.ctx()
    defer cancel()
    raw, err := t.client.HGet(ctx, key, field).Result()
    if err != nil { return 0, false }
    v, err := strconv.ParseFloat(raw, 64)
    if err != nil { return 0, false }
    return v, true
}

// SeedIfEmpty loads the static table on first boot only, so admin edits in
// Redis are never clobbered by a restart.
func (t *RedisTable) SeedIfEmpty(ctx context.Context, src *StaticTable) error {
    n, err := t.client.Exists(ctx, "pricing:bindings").Result()
    if err != nil { return err }
    if n > 0 { return nil }
    return t.Seed(ctx, src)
}

// Seed loads a static table into Redis, skipping nothing: intended for first
// boot so admins have records to edit.
func (t *RedisTable) Seed(ctx context.Context, src *StaticTable) error {
    pipe := t.client.TxPipeline()
    for paper, weights := range src.Papers {
        m := map[string]any{}
        for w, p := range weights {
            m[strconv.Itoa(w)] = fmt.Sprintf("%g:%g", p.Color, p.Mono)
        }
        pipe.HSet(ctx, t.paperKey(paper), m)
    }
    for b, p := range src.Bindings {
        pipe.HSet(ctx, "pricing:bindings", b, fmt.Sprintf("%g", p))
    }
    for f, p := range src.Finishing {
        pipe.HSet(ctx, "pricing:finishing", f, fmt.Sprintf("%g", p))
    }
    _, err := pipe.Exec(ctx)
    return err
}

func (t *RedisTable) ctx() (context.Context, context.CancelFunc) {
    return context.WithTimeout(context.Background(), t.timeout)
}

func parsePagePrice(raw string) (PagePrice, error) {
    parts := strings.SplitN(raw, ":", 2)
    if len(parts) != 2 {
        return PagePrice{}, fmt.Errorf("expected color:mono, got %q", raw)
    }
    c, err := strconv.ParseFloat(parts[0], 64)
    if err != nil { return PagePrice{}, err }
    m, err := strconv.ParseFloat(parts[1], 64)
    if err != nil { return PagePrice{}, err }
    return PagePrice{Color: c, Mono: m}, nil
}
