package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/internal/backend"
	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/redis/go-redis/v9"
)

// CreateLobby implements backend.Lobbies.
func (d *Directory) CreateLobby(typ backend.LobbyType, maxMembers int) *backend.Call[online.ID] {
	return run(d, func(ctx context.Context) (online.ID, error) {
		seq, err := d.rdb.Incr(ctx, d.key("lobby", "seq")).Result()
		if err != nil {
			return online.InvalidID, fmt.Errorf("failed to allocate lobby id: %w", err)
		}

		id := online.NewLobbyID(uint32(seq))
		user := d.cfg.User.String()

		_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, d.lobbyKey(id, ""),
				fieldOwner, user,
				fieldType, strconv.Itoa(int(typ)),
				fieldJoinable, "1",
				fieldMax, strconv.Itoa(maxMembers),
			)
			pipe.RPush(ctx, d.lobbyKey(id, "members"), user)
			pipe.SAdd(ctx, d.key("lobbies"), id.String())

			return nil
		})
		if err != nil {
			return online.InvalidID, fmt.Errorf("failed to create lobby %s: %w", id, err)
		}

		if err = d.watch(ctx, id); err != nil {
			return online.InvalidID, err
		}

		d.mu.Lock()
		d.cache[id] = &lobbyState{owner: d.cfg.User, data: map[string]string{}, members: []online.ID{d.cfg.User}}
		d.mu.Unlock()

		return id, nil
	})
}

func (d *Directory) requireOwner(ctx context.Context, id online.ID) error {
	owner, err := d.rdb.HGet(ctx, d.lobbyKey(id, ""), fieldOwner).Result()
	if err != nil {
		return fmt.Errorf("failed to read lobby %s: %w", id, wrapResult(err))
	}

	if parseID(owner) != d.cfg.User {
		return backend.ResultAccessDenied.Err()
	}

	return nil
}

// SetLobbyData implements backend.Lobbies. The metadata is replaced and the
// members are told to refresh it.
func (d *Directory) SetLobbyData(id online.ID, data map[string]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	if err := d.requireOwner(ctx, id); err != nil {
		return err
	}

	_, err := d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, d.lobbyKey(id, "data"))
		if len(data) > 0 {
			pipe.HSet(ctx, d.lobbyKey(id, "data"), pairs(data)...)
		}

		pipe.Publish(ctx, d.lobbyKey(id, "events"), encodeEvent(lobbyEvent{Member: d.cfg.User, Data: true}))

		return nil
	})
	if err != nil {
		return wrapResult(err)
	}

	d.mu.Lock()
	if st, ok := d.cache[id]; ok {
		st.data = copyData(data)
	}
	d.mu.Unlock()

	return nil
}

// SetLobbyType implements backend.Lobbies.
func (d *Directory) SetLobbyType(id online.ID, typ backend.LobbyType) error {
	return d.setLobbyField(id, fieldType, strconv.Itoa(int(typ)))
}

// SetLobbyJoinable implements backend.Lobbies.
func (d *Directory) SetLobbyJoinable(id online.ID, joinable bool) error {
	v := "0"
	if joinable {
		v = "1"
	}

	return d.setLobbyField(id, fieldJoinable, v)
}

func (d *Directory) setLobbyField(id online.ID, field, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	if err := d.requireOwner(ctx, id); err != nil {
		return err
	}

	if err := d.rdb.HSet(ctx, d.lobbyKey(id, ""), field, value).Err(); err != nil {
		return wrapResult(err)
	}

	return nil
}

// LobbyData implements backend.Lobbies.
func (d *Directory) LobbyData(id online.ID) (map[string]string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.cache[id]
	if !ok {
		return nil, false
	}

	return copyData(st.data), true
}

// LobbyOwner implements backend.Lobbies.
func (d *Directory) LobbyOwner(id online.ID) online.ID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st, ok := d.cache[id]; ok {
		return st.owner
	}

	return online.InvalidID
}

// LobbyMembers implements backend.Lobbies.
func (d *Directory) LobbyMembers(id online.ID) []online.ID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st, ok := d.cache[id]; ok {
		return append([]online.ID(nil), st.members...)
	}

	return nil
}

// fetch reads the full state of a lobby.
func (d *Directory) fetch(ctx context.Context, id online.ID) (meta, data map[string]string, members []online.ID, err error) {
	var (
		metaCmd    *redis.MapStringStringCmd
		dataCmd    *redis.MapStringStringCmd
		membersCmd *redis.StringSliceCmd
	)

	_, err = d.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		metaCmd = pipe.HGetAll(ctx, d.lobbyKey(id, ""))
		dataCmd = pipe.HGetAll(ctx, d.lobbyKey(id, "data"))
		membersCmd = pipe.LRange(ctx, d.lobbyKey(id, "members"), 0, -1)

		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	meta = metaCmd.Val()
	if len(meta) == 0 {
		return nil, nil, nil, backend.ResultFileNotFound.Err()
	}

	return meta, dataCmd.Val(), parseIDs(membersCmd.Val()), nil
}

// RequestLobbyList implements backend.Lobbies. Only public joinable lobbies
// are listed.
func (d *Directory) RequestLobbyList(filter backend.LobbyFilter) *backend.Call[[]online.ID] {
	return run(d, func(ctx context.Context) ([]online.ID, error) {
		ids, err := d.rdb.SMembers(ctx, d.key("lobbies")).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list lobbies: %w", err)
		}

		candidates := make([]backend.LobbyCandidate, 0, len(ids))
		for _, id := range parseIDs(ids) {
			meta, data, members, err := d.fetch(ctx, id)
			if err != nil {
				// Lobby removed between the listing and the read.
				continue
			}

			if atoi(meta[fieldType]) != int(backend.LobbyPublic) || meta[fieldJoinable] != "1" {
				continue
			}

			candidates = append(candidates, backend.LobbyCandidate{
				ID:        id,
				Data:      data,
				OpenSlots: atoi(meta[fieldMax]) - len(members),
			})
		}

		sortCandidates(candidates)

		return filter.Apply(candidates), nil
	})
}

// RequestLobbyData implements backend.Lobbies.
func (d *Directory) RequestLobbyData(id online.ID) error {
	if !id.IsLobby() {
		return backend.ResultFail.Err()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		defer cancel()

		meta, data, members, err := d.fetch(ctx, id)
		if err == nil {
			d.mu.Lock()
			d.cache[id] = &lobbyState{owner: parseID(meta[fieldOwner]), data: data, members: members}
			d.mu.Unlock()
		}

		d.notify(func(l backend.Listener) { l.LobbyDataUpdated(id, id, err == nil) })
	}()

	return nil
}

// JoinLobby implements backend.Lobbies.
func (d *Directory) JoinLobby(id online.ID) *backend.Call[backend.LobbyEnter] {
	return run(d, func(ctx context.Context) (backend.LobbyEnter, error) {
		meta, data, members, err := d.fetch(ctx, id)
		if err != nil {
			return backend.LobbyEnter{}, err
		}

		member := false
		for _, m := range members {
			member = member || m == d.cfg.User
		}

		if !member {
			switch {
			case meta[fieldJoinable] != "1":
				return backend.LobbyEnter{}, backend.ResultAccessDenied.Err()
			case len(members) >= atoi(meta[fieldMax]):
				return backend.LobbyEnter{}, backend.ResultFull.Err()
			}

			change := backend.MemberEntered
			_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.RPush(ctx, d.lobbyKey(id, "members"), d.cfg.User.String())
				pipe.Publish(ctx, d.lobbyKey(id, "events"), encodeEvent(lobbyEvent{Member: d.cfg.User, Change: &change}))

				return nil
			})
			if err != nil {
				return backend.LobbyEnter{}, fmt.Errorf("failed to join lobby %s: %w", id, err)
			}

			members = append(members, d.cfg.User)
		}

		if err = d.watch(ctx, id); err != nil {
			return backend.LobbyEnter{}, err
		}

		owner := parseID(meta[fieldOwner])

		d.mu.Lock()
		d.cache[id] = &lobbyState{owner: owner, data: data, members: members}
		d.mu.Unlock()

		return backend.LobbyEnter{
			Lobby:   id,
			Owner:   owner,
			Data:    copyData(data),
			Members: append([]online.ID(nil), members...),
		}, nil
	})
}

// LeaveLobby implements backend.Lobbies. Ownership passes to the oldest
// remaining member and an empty lobby is removed.
func (d *Directory) LeaveLobby(id online.ID) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	d.unwatch(id)

	user := d.cfg.User.String()
	removed, err := d.rdb.LRem(ctx, d.lobbyKey(id, "members"), 0, user).Result()
	if err != nil {
		return wrapResult(err)
	}

	if removed == 0 {
		return backend.ResultFileNotFound.Err()
	}

	remaining, err := d.rdb.LRange(ctx, d.lobbyKey(id, "members"), 0, -1).Result()
	if err != nil {
		return wrapResult(err)
	}

	if len(remaining) == 0 {
		_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, d.lobbyKey(id, ""), d.lobbyKey(id, "data"), d.lobbyKey(id, "members"))
			pipe.SRem(ctx, d.key("lobbies"), id.String())

			return nil
		})

		return wrapErr(err)
	}

	owner := d.requireOwner(ctx, id) == nil
	change := backend.MemberLeft
	_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if owner {
			pipe.HSet(ctx, d.lobbyKey(id, ""), fieldOwner, remaining[0])
		}

		pipe.Publish(ctx, d.lobbyKey(id, "events"), encodeEvent(lobbyEvent{Member: d.cfg.User, Change: &change}))

		return nil
	})

	return wrapErr(err)
}

// InviteUserToLobby implements backend.Lobbies. Invites are delivered by the
// notification feed, not the directory.
func (d *Directory) InviteUserToLobby(_, _ online.ID) error {
	return backend.ResultAccessDenied.Err()
}

// watch subscribes to the events channel of a lobby.
func (d *Directory) watch(ctx context.Context, id online.ID) error {
	d.mu.Lock()
	_, ok := d.subs[id]
	d.mu.Unlock()

	if ok {
		return nil
	}

	sub := d.rdb.Subscribe(ctx, d.lobbyKey(id, "events"))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to lobby %s: %w", id, err)
	}

	d.mu.Lock()
	d.subs[id] = sub
	d.mu.Unlock()

	go d.forward(id, sub)

	return nil
}

func (d *Directory) unwatch(id online.ID) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	delete(d.subs, id)
	delete(d.cache, id)
	d.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// forward turns lobby channel messages into listener notifications until
// the subscription closes.
func (d *Directory) forward(id online.ID, sub *redis.PubSub) {
	for msg := range sub.Channel() {
		var e lobbyEvent
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			d.cfg.Logger.
				WithField("error", err.Error()).
				Warn("dropping malformed lobby event")

			continue
		}

		if e.Member == d.cfg.User {
			continue
		}

		if e.Data {
			// Members refresh their cache before being told about it.
			_ = d.RequestLobbyData(id)
			continue
		}

		if e.Change != nil {
			d.updateMembers(id, e.Member, *e.Change)

			change := *e.Change
			d.notify(func(l backend.Listener) { l.LobbyMemberChanged(id, e.Member, change) })
		}
	}
}

func (d *Directory) updateMembers(id, member online.ID, change backend.MemberChange) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.cache[id]
	if !ok {
		return
	}

	if change == backend.MemberEntered {
		st.members = append(st.members, member)
		return
	}

	for i, m := range st.members {
		if m == member {
			st.members = append(st.members[:i], st.members[i+1:]...)
			break
		}
	}

	if st.owner == member && len(st.members) > 0 {
		st.owner = st.members[0]
	}
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}

	return wrapResult(err)
}
