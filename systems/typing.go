package systems

import "github.com/pthm-cable/tracer/config"

// TypingBoost is an overlay that enlarges particles and raises emission while
// the user is entering text. It is independent of the ambient State and
// switches itself off after a quiet interval without keystrokes.
type TypingBoost struct {
	cfg config.TypingConfig

	typing    bool
	chars     int
	lastInput float64
	now       float64
	size      float64 // eased extra size fraction
}

// NewTypingBoost creates an idle overlay.
func NewTypingBoost(cfg config.TypingConfig) *TypingBoost {
	return &TypingBoost{cfg: cfg}
}

// SetTyping sets the typing signal. Turning it on counts as a keystroke.
func (b *TypingBoost) SetTyping(on bool) {
	b.typing = on
	if on {
		b.lastInput = b.now
	} else {
		b.chars = 0
	}
}

// SetCharacterCount records the current input length. A change counts as a
// keystroke and re-arms the boost.
func (b *TypingBoost) SetCharacterCount(n int) {
	if n < 0 {
		n = 0
	}
	if n != b.chars {
		b.lastInput = b.now
		if n > 0 {
			b.typing = true
		}
	}
	b.chars = n
}

// Step advances the overlay clock to now (seconds) and eases the size boost.
func (b *TypingBoost) Step(now, smoothing float64) {
	b.now = now
	if b.typing && now-b.lastInput > b.cfg.QuietInterval {
		b.typing = false
		b.chars = 0
	}
	target := 0.0
	if b.typing {
		target = b.cfg.SizeBoost
	}
	b.size = lerp(b.size, target, smoothing)
}

// Typing reports whether the boost is currently on.
func (b *TypingBoost) Typing() bool { return b.typing }

// Chars returns the recorded character count.
func (b *TypingBoost) Chars() int { return b.chars }

// EmissionFactor is min(1 + chars·k, max) while typing, else 1. Thinking
// suppresses the boost.
func (b *TypingBoost) EmissionFactor(s State) float64 {
	if !b.typing || s == StateThinking {
		return 1
	}
	return min(1+float64(b.chars)*b.cfg.CharFactor, b.cfg.MaxFactor)
}

// SizeFactor is the multiplier applied to particle size.
func (b *TypingBoost) SizeFactor() float64 {
	return 1 + b.size
}
