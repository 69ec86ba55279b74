package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// FailoverStore uses primary and falls back to fallback when primary errors.
// Sessions that only ever lived in primary are unreachable while primary is
// down, so a visitor who started before an outage gets ErrNotFound until it
// recovers.
type FailoverStore struct {
	primary    Store
	fallback   Store
	logger     *zerolog.Logger
	onFallback func(op string)
}

// NewFailoverStore wraps two stores. onFallback, if set, is called with the
// operation name each time the fallback serves a request.
func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger, onFallback func(op string)) *FailoverStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverStore{primary: primary, fallback: fallback, logger: logger, onFallback: onFallback}
}

func (f *FailoverStore) usedFallback(op string, err error) {
	f.logger.Warn().Err(err).Str("op", op).Msg("session store primary failed, using fallback")
	if f.onFallback != nil {
		f.onFallback(op)
	}
}

// Get reads from primary. A copy written to the fallback during an outage wins
// over the primary copy when it is newer.
func (f *FailoverStore) Get(ctx context.Context, id string) (*Session, error) {
	s, err := f.primary.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		f.usedFallback("get", err)
		return f.fallback.Get(ctx, id)
	}

	fb, ferr := f.fallback.Get(ctx, id)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil || fb.UpdatedAt.After(s.UpdatedAt) {
		return fb, nil
	}
	return s, nil
}

// Save writes to primary and drops any stale fallback copy. If primary fails
// the fallback takes the write.
func (f *FailoverStore) Save(ctx context.Context, s *Session) error {
	err := f.primary.Save(ctx, s)
	if err == nil {
		if derr := f.fallback.Delete(ctx, s.ID); derr != nil {
			f.logger.Warn().Err(derr).Str("session", s.ID).Msg("drop fallback session copy")
		}
		return nil
	}
	f.usedFallback("save", err)
	return f.fallback.Save(ctx, s)
}

func (f *FailoverStore) Delete(ctx context.Context, id string) error {
	perr := f.primary.Delete(ctx, id)
	ferr := f.fallback.Delete(ctx, id)
	if perr != nil {
		f.usedFallback("delete", perr)
		return ferr
	}
	return nil
}

// Ping reports the primary's health. A degraded primary is logged but not an
// error since the fallback keeps serving.
func (f *FailoverStore) Ping(ctx context.Context) error {
	if err := f.primary.Ping(ctx); err != nil {
		f.logger.Warn().Err(err).Msg("session store primary unhealthy")
		return f.fallback.Ping(ctx)
	}
	return nil
}
