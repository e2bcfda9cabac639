package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// query is an open server browser query. Cancel stops further callbacks.
type query struct {
	d      *Directory
	cancel context.CancelFunc
	once   sync.Once
}

// Cancel implements backend.ServerQuery.
func (q *query) Cancel() {
	q.once.Do(func() {
		q.cancel()

		q.d.mu.Lock()
		q.d.openQueries--
		q.d.mu.Unlock()
	})
}

func (d *Directory) openQuery() (*query, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	d.openQueries++
	d.mu.Unlock()

	return &query{d: d, cancel: cancel}, ctx
}

// LogOn implements backend.GameServer. The listing expires unless the
// heartbeat keeps refreshing it.
func (d *Directory) LogOn(details backend.ServerDetails) *backend.Call[online.ID] {
	d.mu.Lock()
	id := d.serverID
	d.mu.Unlock()

	if id.IsValid() {
		return backend.Resolved(id, nil)
	}

	return run(d, func(ctx context.Context) (online.ID, error) {
		seq, err := d.rdb.Incr(ctx, d.key("server", "seq")).Result()
		if err != nil {
			return online.InvalidID, fmt.Errorf("failed to allocate server id: %w", err)
		}

		details.ServerID = online.NewGameServerID(uint32(seq))
		if err = d.putServer(ctx, details); err != nil {
			return online.InvalidID, err
		}

		if err = d.rdb.SAdd(ctx, d.key("servers"), details.ServerID.String()).Err(); err != nil {
			return online.InvalidID, fmt.Errorf("failed to list server %s: %w", details.ServerID, err)
		}

		beat, stop := context.WithCancel(context.Background())

		d.mu.Lock()
		d.serverID = details.ServerID
		d.stopBeat = stop
		d.mu.Unlock()

		go d.heartbeat(beat, details.ServerID)

		d.cfg.Logger.
			WithField("server", details.ServerID.String()).
			Info("server listed")

		return details.ServerID, nil
	})
}

func (d *Directory) putServer(ctx context.Context, details backend.ServerDetails) error {
	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode server %s: %w", details.ServerID, err)
	}

	if err = d.rdb.Set(ctx, d.serverKey(details.ServerID, ""), b, d.cfg.ServerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store server %s: %w", details.ServerID, err)
	}

	return nil
}

// heartbeat refreshes the listing TTL until ctx is done.
func (d *Directory) heartbeat(ctx context.Context, id online.ID) {
	ticker := time.NewTicker(d.cfg.ServerTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		_, err := d.rdb.Pipelined(rctx, func(pipe redis.Pipeliner) error {
			pipe.Expire(rctx, d.serverKey(id, ""), d.cfg.ServerTTL)
			pipe.Expire(rctx, d.serverKey(id, "rules"), d.cfg.ServerTTL)

			return nil
		})
		cancel()

		if err != nil && !errors.Is(err, context.Canceled) {
			d.cfg.Logger.
				WithFields(logrus.Fields{
					"server": id.String(),
					"error":  err.Error(),
				}).
				Warn("server heartbeat failed")
		}
	}
}

// LogOff implements backend.GameServer.
func (d *Directory) LogOff() *backend.Call[struct{}] {
	d.mu.Lock()
	id := d.serverID
	stop := d.stopBeat
	d.serverID = online.InvalidID
	d.stopBeat = nil
	d.mu.Unlock()

	if stop != nil {
		stop()
	}

	if !id.IsValid() {
		return backend.Resolved(struct{}{}, nil)
	}

	return run(d, func(ctx context.Context) (struct{}, error) {
		_, err := d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, d.serverKey(id, ""), d.serverKey(id, "rules"))
			pipe.SRem(ctx, d.key("servers"), id.String())

			return nil
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to unlist server %s: %w", id, err)
		}

		return struct{}{}, nil
	})
}

// ServerLoggedOn implements backend.GameServer.
func (d *Directory) ServerLoggedOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.serverID.IsValid()
}

func (d *Directory) loggedOnServer() (online.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.serverID.IsValid() {
		return online.InvalidID, backend.ResultNoConnection.Err()
	}

	return d.serverID, nil
}

// UpdateDetails implements backend.GameServer.
func (d *Directory) UpdateDetails(details backend.ServerDetails) error {
	id, err := d.loggedOnServer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	details.ServerID = id

	return wrapErr(d.putServer(ctx, details))
}

// SetRules implements backend.GameServer.
func (d *Directory) SetRules(rules map[string]string) error {
	id, err := d.loggedOnServer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, d.serverKey(id, "rules"))
		if len(rules) > 0 {
			pipe.HSet(ctx, d.serverKey(id, "rules"), pairs(rules)...)
			pipe.Expire(ctx, d.serverKey(id, "rules"), d.cfg.ServerTTL)
		}

		return nil
	})

	return wrapErr(err)
}

// RequestServerList implements backend.ServerBrowser. Listings whose TTL
// lapsed are pruned. With a QueryClient every match is pinged and servers
// that do not answer are reported as failed.
func (d *Directory) RequestServerList(filter backend.ServerFilter, l backend.ServerListener) backend.ServerQuery {
	q, ctx := d.openQuery()

	go func() {
		found, err := d.listServers(ctx, filter)
		if err != nil {
			d.cfg.Logger.
				WithField("error", err.Error()).
				Warn("server list request failed")
		}

		for _, s := range found {
			if ctx.Err() != nil {
				return
			}

			if d.cfg.Query != nil && !s.DoNotRefresh {
				qctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
				info, err := d.cfg.Query.QueryInfo(qctx, s.QueryAddr.String())
				cancel()

				if err != nil {
					if ctx.Err() == nil {
						l.ServerFailedToRespond(s.QueryAddr)
					}

					continue
				}

				s.Ping = info.Ping
				s.Players = int32(info.Players)
			}

			if ctx.Err() != nil {
				return
			}

			l.ServerResponded(s)
		}

		if ctx.Err() == nil {
			l.RefreshComplete()
		}
	}()

	return q
}

func (d *Directory) listServers(ctx context.Context, filter backend.ServerFilter) ([]backend.ServerDetails, error) {
	rctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	ids, err := d.rdb.SMembers(rctx, d.key("servers")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	found := make([]backend.ServerDetails, 0, len(ids))
	for _, id := range parseIDs(ids) {
		b, err := d.rdb.Get(rctx, d.serverKey(id, "")).Bytes()
		if errors.Is(err, redis.Nil) {
			d.rdb.SRem(rctx, d.key("servers"), id.String())
			continue
		}

		if err != nil {
			return found, fmt.Errorf("failed to read server %s: %w", id, err)
		}

		var s backend.ServerDetails
		if err = json.Unmarshal(b, &s); err != nil {
			d.cfg.Logger.
				WithFields(logrus.Fields{
					"server": id.String(),
					"error":  err.Error(),
				}).
				Warn("skipping malformed server listing")

			continue
		}

		if filter.Matches(s) {
			found = append(found, s)
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ServerID < found[j].ServerID })

	return found, nil
}

// RequestRules implements backend.ServerBrowser. With a QueryClient the
// server is asked directly, otherwise the rules stored by SetRules are
// returned.
func (d *Directory) RequestRules(queryAddr netip.AddrPort, l backend.RulesListener) backend.ServerQuery {
	q, ctx := d.openQuery()

	go func() {
		rules, err := d.rules(ctx, queryAddr)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			d.cfg.Logger.
				WithFields(logrus.Fields{
					"addr":  queryAddr.String(),
					"error": err.Error(),
				}).
				Debug("rules request failed")

			l.RulesFailedToRespond()

			return
		}

		keys := make([]string, 0, len(rules))
		for k := range rules {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			if ctx.Err() != nil {
				return
			}

			l.RulesResponded(k, rules[k])
		}

		l.RulesRefreshComplete()
	}()

	return q
}

func (d *Directory) rules(ctx context.Context, queryAddr netip.AddrPort) (map[string]string, error) {
	rctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if d.cfg.Query != nil {
		return d.cfg.Query.QueryRules(rctx, queryAddr.String())
	}

	found, err := d.listServers(rctx, backend.ServerFilter{})
	if err != nil {
		return nil, err
	}

	for _, s := range found {
		if s.QueryAddr != queryAddr {
			continue
		}

		rules, err := d.rdb.HGetAll(rctx, d.serverKey(s.ServerID, "rules")).Result()
		if err != nil {
			return nil, err
		}

		return rules, nil
	}

	return nil, backend.ResultFileNotFound.Err()
}
