package app

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomInactive   = errors.New("room inactive")
	ErrRoomIDEmpty    = errors.New("room id is empty")
	ErrRoomContention = errors.New("room write contention")
)

type RegistryOptions struct {
	// Cache keeps committed rooms in memory between operations.
	Cache bool
	// MaxRetries bounds how often a conditional write is retried after a
	// storage-level conflict.
	MaxRetries int
	Now        func() time.Time
}

type CreateRoomOptions struct {
	Name               string
	HostID             domain.UserID
	WaitingRoomEnabled bool
	RecordingEnabled   bool
}

// lockShards bounds the lock table; rooms hashing to one shard share a mutex.
const lockShards = 256

// RoomRegistry owns room existence, membership and privilege sets.
// Every mutation of a room runs under that room's lock, so two concurrent
// writers to one room never overwrite each other; different rooms proceed
// in parallel. The cache is only written under the room lock.
type RoomRegistry struct {
	store core.RoomStore
	opts  RegistryOptions

	seed  maphash.Seed
	locks [lockShards]sync.Mutex

	cacheMu sync.RWMutex
	cache   map[domain.RoomID]*domain.Room
}

func NewRoomRegistry(store core.RoomStore, opts RegistryOptions) *RoomRegistry {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RoomRegistry{
		store: store,
		opts:  opts,
		seed:  maphash.MakeSeed(),
		cache: make(map[domain.RoomID]*domain.Room),
	}
}

// Lookup returns the room or ErrRoomNotFound. Inactive rooms still resolve.
// It reads the cache but never fills it.
func (r *RoomRegistry) Lookup(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	room, err := r.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return room.Clone(), nil
}

func (r *RoomRegistry) Exists(ctx context.Context, id domain.RoomID) (bool, error) {
	if _, ok := r.cached(id); ok {
		return true, nil
	}
	return r.store.ExistsRoom(ctx, id)
}

func (r *RoomRegistry) ListActive(ctx context.Context) ([]*domain.Room, error) {
	return r.store.ListActiveRooms(ctx)
}

// Create makes a room with a fresh id; the caller becomes host.
func (r *RoomRegistry) Create(ctx context.Context, o CreateRoomOptions) (*domain.Room, error) {
	if err := o.HostID.Validate(); err != nil {
		return nil, err
	}
	id := domain.RoomID(uuid.NewString())
	return r.mutate(ctx, id, func() *domain.Room {
		room := domain.NewRoom(id, o.Name, o.HostID, r.opts.Now())
		room.WaitingRoomEnabled = o.WaitingRoomEnabled
		room.RecordingEnabled = o.RecordingEnabled
		return room
	}, noChange)
}

// GetOrCreate returns the room, creating it with user as host, sole
// moderator and sole participant when it does not exist yet.
func (r *RoomRegistry) GetOrCreate(ctx context.Context, id domain.RoomID, user domain.UserID) (*domain.Room, error) {
	return r.mutate(ctx, id, r.lazyRoom(id, user), noChange)
}

// Join is GetOrCreate followed by AddParticipant in one serialized step.
func (r *RoomRegistry) Join(ctx context.Context, id domain.RoomID, user domain.UserID) (*domain.Room, error) {
	return r.mutate(ctx, id, r.lazyRoom(id, user), func(room *domain.Room) (bool, error) {
		if !room.Active {
			return false, ErrRoomInactive
		}
		return room.AddParticipant(user), nil
	})
}

func (r *RoomRegistry) AddParticipant(ctx context.Context, id domain.RoomID, user domain.UserID) (*domain.Room, error) {
	return r.mutate(ctx, id, nil, func(room *domain.Room) (bool, error) {
		if !room.Active {
			return false, ErrRoomInactive
		}
		return room.AddParticipant(user), nil
	})
}

// RemoveParticipant is idempotent; the room stays active when it empties.
func (r *RoomRegistry) RemoveParticipant(ctx context.Context, id domain.RoomID, user domain.UserID) (*domain.Room, error) {
	return r.mutate(ctx, id, nil, func(room *domain.Room) (bool, error) {
		return room.RemoveParticipant(user), nil
	})
}

func (r *RoomRegistry) AddModerator(ctx context.Context, id domain.RoomID, user domain.UserID) (*domain.Room, error) {
	return r.mutate(ctx, id, nil, func(room *domain.Room) (bool, error) {
		return room.AddModerator(user), nil
	})
}

// RemoveModerator is a no-op for the host.
func (r *RoomRegistry) RemoveModerator(ctx context.Context, id domain.RoomID, user domain.UserID) (*domain.Room, error) {
	return r.mutate(ctx, id, nil, func(room *domain.Room) (bool, error) {
		return room.RemoveModerator(user), nil
	})
}

// Deactivate soft-deletes the room. It stays resolvable by Lookup and
// leaves the cache.
func (r *RoomRegistry) Deactivate(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return r.mutate(ctx, id, nil, func(room *domain.Room) (bool, error) {
		return room.Deactivate(), nil
	})
}

func noChange(*domain.Room) (bool, error) { return false, nil }

func (r *RoomRegistry) lazyRoom(id domain.RoomID, user domain.UserID) func() *domain.Room {
	return func() *domain.Room {
		room := domain.NewRoom(id, string(id), user, r.opts.Now())
		room.AddParticipant(user)
		return room
	}
}

// mutate is the single read-modify-write path. create, when non-nil, builds
// the room if it does not exist; apply reports whether it changed the room.
func (r *RoomRegistry) mutate(
	ctx context.Context,
	id domain.RoomID,
	create func() *domain.Room,
	apply func(*domain.Room) (bool, error),
) (*domain.Room, error) {
	if id == "" {
		return nil, ErrRoomIDEmpty
	}
	mu := r.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 1; attempt <= r.opts.MaxRetries; attempt++ {
		room, err := r.load(ctx, id, true)
		created := false
		switch {
		case errors.Is(err, ErrRoomNotFound) && create != nil:
			room = create()
			created = true
		case err != nil:
			return nil, err
		default:
			room = room.Clone()
		}

		changed, err := apply(room)
		if err != nil {
			return nil, err
		}
		if !changed && !created {
			return room, nil
		}

		err = r.store.SaveRoom(ctx, room)
		if errors.Is(err, core.ErrConflict) {
			log.Debug().Str("module", "app.rooms").Str("room", string(id)).Int("attempt", attempt).Msg("write conflict, reloading")
			r.evict(id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save room %s: %w", id, err)
		}
		r.remember(room)
		log.Debug().Str("module", "app.rooms").
			Str("room", string(id)).
			Bool("created", created).
			Int64("version", room.Version).
			Int("participants", room.Participants.Len()).
			Msg("room committed")
		return room.Clone(), nil
	}
	return nil, fmt.Errorf("room %s after %d attempts: %w", id, r.opts.MaxRetries, ErrRoomContention)
}

// load reads through the cache. fill may only be set by callers holding
// the room lock.
func (r *RoomRegistry) load(ctx context.Context, id domain.RoomID, fill bool) (*domain.Room, error) {
	if room, ok := r.cached(id); ok {
		return room, nil
	}
	room, err := r.store.FindRoom(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}
	room.EnsureHostModerator()
	if fill {
		r.remember(room)
	}
	return room, nil
}

func (r *RoomRegistry) lockFor(id domain.RoomID) *sync.Mutex {
	return &r.locks[maphash.String(r.seed, string(id))%lockShards]
}

func (r *RoomRegistry) cached(id domain.RoomID) (*domain.Room, bool) {
	if !r.opts.Cache {
		return nil, false
	}
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	room, ok := r.cache[id]
	return room, ok
}

// remember stores a private copy. An inactive room drops the entry, and a
// cached entry at a higher version is never replaced.
func (r *RoomRegistry) remember(room *domain.Room) {
	if !r.opts.Cache {
		return
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	if !room.Active {
		delete(r.cache, room.ID)
		return
	}
	if cur, ok := r.cache[room.ID]; ok && cur.Version > room.Version {
		return
	}
	r.cache[room.ID] = room.Clone()
}

func (r *RoomRegistry) evict(id domain.RoomID) {
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()
}
