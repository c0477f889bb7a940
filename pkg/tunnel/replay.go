package tunnel

import (
	"sync"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

// ReplayWindow is a sliding-window sequence acceptor backed by a
// word-sized bitmap, generalized from a fixed 64-bit window to a
// configurable size (default 256, capped at 4096 per constants.MaxReplayWindow).
type ReplayWindow struct {
	mu      sync.Mutex
	size    uint64
	words   []uint64
	highest uint64
	seenAny bool
}

// NewReplayWindow constructs a ReplayWindow of the given size. size == 0
// uses the default; a negative size or one above constants.MaxReplayWindow
// returns ErrInvalidState.
func NewReplayWindow(size int) (*ReplayWindow, error) {
	if size == 0 {
		size = constants.DefaultReplayWindow
	}
	if size < 0 || size > constants.MaxReplayWindow {
		return nil, qerrors.ErrInvalidState
	}
	return &ReplayWindow{
		size:  uint64(size),
		words: make([]uint64, (size+63)/64+1),
	}, nil
}

// Check reports whether seq is acceptable (not a replay, not too far
// behind the window) and, if so, marks it seen. It never reorders frames:
// a sequence at or below highest-size is rejected even if never observed.
func (w *ReplayWindow) Check(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.seenAny {
		w.seenAny = true
		w.highest = seq
		w.setBit(0)
		return nil
	}

	if seq > w.highest {
		shift := seq - w.highest
		w.shiftWords(shift)
		w.highest = seq
		w.setBit(0)
		return nil
	}

	offset := w.highest - seq
	if offset >= w.size {
		return qerrors.ErrReplay
	}
	if w.testBit(offset) {
		return qerrors.ErrReplay
	}
	w.setBit(offset)
	return nil
}

func (w *ReplayWindow) setBit(offset uint64) {
	idx := offset / 64
	bit := offset % 64
	if idx >= uint64(len(w.words)) {
		return
	}
	w.words[idx] |= 1 << bit
}

func (w *ReplayWindow) testBit(offset uint64) bool {
	idx := offset / 64
	bit := offset % 64
	if idx >= uint64(len(w.words)) {
		return false
	}
	return w.words[idx]&(1<<bit) != 0
}

// shiftWords advances the window by n sequence positions, discarding bits
// that fall outside the configured size.
func (w *ReplayWindow) shiftWords(n uint64) {
	if n >= w.size {
		for i := range w.words {
			w.words[i] = 0
		}
		return
	}
	wordShift := n / 64
	bitShift := n % 64

	for i := len(w.words) - 1; i >= 0; i-- {
		var hi uint64
		if srcIdx := i - int(wordShift); srcIdx >= 0 {
			hi = w.words[srcIdx]
		}
		var lo uint64
		if srcIdx := i - int(wordShift) - 1; srcIdx >= 0 && bitShift != 0 {
			lo = w.words[srcIdx]
		}
		if bitShift == 0 {
			w.words[i] = hi
		} else {
			w.words[i] = (hi << bitShift) | (lo >> (64 - bitShift))
		}
	}
}
