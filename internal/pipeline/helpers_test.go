// ABOUTME: Shared fakes for pipeline tests
// ABOUTME: Sequence decoders, scripted openers and catalogs built from in-memory storage
package pipeline

import (
	"errors"
	"io"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/Resonate-Protocol/cardplayer/internal/catalog"
	"github.com/Resonate-Protocol/cardplayer/internal/decode"
	"github.com/Resonate-Protocol/cardplayer/internal/storage"
)

const seqModulo = 30000

// seqValue is the sample value at absolute stream position i. Never zero,
// so silence padding is distinguishable.
func seqValue(i int) int16 {
	return int16(i%seqModulo) + 1
}

// seqDecoder produces total samples continuing a global sequence from start
type seqDecoder struct {
	start  int
	total  int
	pos    int
	chunk  int // max samples per Read, 0 = unlimited
	fail   error
	closed bool
}

func (d *seqDecoder) Read(pcm []int16) (int, error) {
	if d.pos >= d.total {
		if d.fail != nil {
			return 0, d.fail
		}
		return 0, io.EOF
	}
	n := len(pcm)
	if d.chunk > 0 && n > d.chunk {
		n = d.chunk
	}
	if n > d.total-d.pos {
		n = d.total - d.pos
	}
	for i := 0; i < n; i++ {
		pcm[i] = seqValue(d.start + d.pos + i)
	}
	d.pos += n
	return n, nil
}

func (d *seqDecoder) SampleRate() int { return 44100 }

func (d *seqDecoder) Close() error {
	d.closed = true
	return nil
}

// scriptedOpener hands out seqDecoders per track name. Tracks listed in
// broken fail to open. Each open continues the global sequence.
type scriptedOpener struct {
	mu       sync.Mutex
	lengths  map[string]int
	broken   map[string]bool
	failOpen func(name string, opens int) bool
	next     int
	opened   []string
	decoders []*seqDecoder
}

var errBrokenTrack = errors.New("broken track")

func (o *scriptedOpener) Open(name string, cache []byte) (decode.Decoder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.broken[name] || (o.failOpen != nil && o.failOpen(name, len(o.opened))) {
		return nil, errBrokenTrack
	}

	d := &seqDecoder{start: o.next, total: o.lengths[name]}
	o.next += d.total
	o.opened = append(o.opened, name)
	o.decoders = append(o.decoders, d)
	return d, nil
}

func (o *scriptedOpener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

// buildCatalog builds a real catalog over in-memory files
func buildCatalog(t *testing.T, names ...string) *catalog.Catalog {
	t.Helper()

	fsys := fstest.MapFS{}
	for _, name := range names {
		fsys[name] = &fstest.MapFile{}
	}

	cat, err := catalog.Build(storage.NewVolume(fsys), catalog.Config{Patterns: []string{"*.mp3"}})
	if err != nil {
		t.Fatalf("catalog build failed: %v", err)
	}
	return cat
}
