package markov

import "fmt"

// StopReason describes why a walk ended.
type StopReason int

const (
	// StopDeadEnd means the current window has no recorded successor.
	StopDeadEnd StopReason = iota
	// StopMaxLength means the output reached the WithMaxLength cap.
	StopMaxLength
	// StopCancelled means the context of a streamed walk was cancelled.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopDeadEnd:
		return "dead_end"
	case StopMaxLength:
		return "max_length"
	case StopCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// walkOptions Is used by the walk functions to configure default options.
type walkOptions struct {
	maxLength int
	start     []string
}

// WalkOption is a function that configures a walk. It's used as a variadic
// argument in Walk and the Generator methods.
type WalkOption func(*walkOptions)

// WithMaxLength caps the number of tokens in the output. A value of 0 or less
// leaves the walk unbounded, so it only stops at a dead end. A cap smaller than
// the chain order is raised to the order, since the seed window is always emitted.
func WithMaxLength(n int) WalkOption {
	return func(o *walkOptions) { o.maxLength = n }
}

// WithStart seeds the walk with the given window instead of a uniformly
// sampled key. The window must have exactly Order() valid tokens and be a key
// of the chain.
func WithStart(tokens ...string) WalkOption {
	return func(o *walkOptions) { o.start = append([]string(nil), tokens...) }
}

// WalkResult is the outcome of a completed walk.
type WalkResult struct {
	Tokens []string
	Reason StopReason
}

// Walk performs a random walk over c: it seeds the output with one key's
// tokens, then repeatedly appends a uniformly chosen successor of the last
// Order() tokens until that window is not a key. The output always holds at
// least Order() tokens. Walk returns ErrEmptyChain if c has no keys.
func Walk(c *Chain, src Source, opts ...WalkOption) ([]string, error) {
	res, err := WalkDetailed(c, src, opts...)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

// WalkDetailed is Walk, also reporting why the walk stopped.
func WalkDetailed(c *Chain, src Source, opts ...WalkOption) (WalkResult, error) {
	w, err := newWalker(c, src, opts)
	if err != nil {
		return WalkResult{}, err
	}

	tokens := w.seed()
	for {
		token, ok := w.next()
		if !ok {
			break
		}
		tokens = append(tokens, token)
	}
	return WalkResult{Tokens: tokens, Reason: w.reason}, nil
}

// walker holds the state of a single walk. It is shared by Walk and the
// streaming generator.
type walker struct {
	chain     *Chain
	src       Source
	window    []string
	current   Key
	length    int
	maxLength int
	reason    StopReason
}

func newWalker(c *Chain, src Source, opts []WalkOption) (*walker, error) {
	if c.Empty() {
		return nil, ErrEmptyChain
	}
	if src == nil {
		src = DefaultSource()
	}

	options := &walkOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var start Key
	if options.start != nil {
		if len(options.start) != c.order {
			return nil, fmt.Errorf("%w: start window has %d tokens, chain order is %d", ErrInvalidNGram, len(options.start), c.order)
		}
		if err := checkTokens(options.start); err != nil {
			return nil, err
		}
		start = NewKey(options.start...)
		if !c.Has(start) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStart, start)
		}
	} else {
		start = pick(src, c.keys)
	}

	maxLength := options.maxLength
	if maxLength > 0 && maxLength < c.order {
		maxLength = c.order
	}

	return &walker{
		chain:     c,
		src:       src,
		window:    start.Tokens(),
		current:   start,
		length:    c.order,
		maxLength: maxLength,
	}, nil
}

// seed returns a copy of the starting window.
func (w *walker) seed() []string {
	return append([]string(nil), w.window...)
}

// next samples the successor of the current window and slides the window
// forward. It returns false once the walk is over, with w.reason set.
func (w *walker) next() (string, bool) {
	if w.maxLength > 0 && w.length >= w.maxLength {
		w.reason = StopMaxLength
		return "", false
	}
	successors, ok := w.chain.successors(w.current)
	if !ok {
		w.reason = StopDeadEnd
		return "", false
	}

	token := pick(w.src, successors)
	copy(w.window, w.window[1:])
	w.window[len(w.window)-1] = token
	w.current = NewKey(w.window...)
	w.length++
	return token, true
}
