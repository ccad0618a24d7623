package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// BatchKey identifies a batch across invocations: the same collection, asset
// source, item count, and signer resume the same run.
func BatchKey(settings Settings, sourceKey, identity string) string {
	h := sha256.New()
	for _, part := range []string{
		settings.Collection.Name,
		sourceKey,
		strconv.Itoa(settings.ItemCount),
		identity,
	} {
		h.Write([]byte(strings.TrimSpace(part)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// identityLock is an advisory file lock held for the duration of a run.
type identityLock struct {
	lock *flock.Flock
}

func lockPath(dir, identity string) string {
	return filepath.Join(dir, "identity-"+identity+".lock")
}

func acquireIdentityLock(dir, identity string) (*identityLock, error) {
	lock := flock.New(lockPath(dir, identity))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrIdentityBusy
	}
	return &identityLock{lock: lock}, nil
}

func (l *identityLock) release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
