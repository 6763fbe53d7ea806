package quicklist

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/pengdafu/zlcore/ziplist"
	"github.com/stretchr/testify/require"
)

func contents(t *testing.T, ql *Quicklist, direction int) []string {
	t.Helper()
	var out []string
	it := ql.Iterator(direction)
	defer it.Release()
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		out = append(out, e.Value.String())
	}
	return out
}

func requireStrings(t *testing.T, want, got []string) {
	t.Helper()
	require.Len(t, got, len(want))
	if len(want) > 0 {
		require.Equal(t, want, got)
	}
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

func pushAll(t *testing.T, ql *Quicklist, values ...string) {
	t.Helper()
	for _, v := range values {
		_, err := ql.PushTail([]byte(v))
		require.NoError(t, err)
	}
}

func ints(from, to int) []string {
	var out []string
	for i := from; i < to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

func compressible(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, strings.Repeat("a", 32)+strconv.Itoa(i))
	}
	return out
}

// checkList verifies contents in both directions together with the node
// bookkeeping, the fill limit for count based fills and the uncompressed
// window at both ends.
func checkList(t *testing.T, ql *Quicklist, want []string) {
	t.Helper()
	requireStrings(t, want, contents(t, ql, Head))
	requireStrings(t, reversed(want), contents(t, ql, Tail))
	require.Equal(t, len(want), ql.Count())

	stats := ql.Nodes()
	bufs := ql.Buffers()
	require.Len(t, stats, ql.Len())
	require.Len(t, bufs, ql.Len())
	total := 0
	for i, st := range stats {
		require.Positive(t, st.Count)
		if ql.fill > 0 {
			require.LessOrEqual(t, st.Count, ql.fill)
		}
		require.NoError(t, ziplist.Validate(bufs[i], true))
		require.Equal(t, st.Count, ziplist.Len(bufs[i]))
		require.Equal(t, st.Size, len(bufs[i]))
		if ql.compress > 0 && (i < ql.compress || i >= len(stats)-ql.compress) {
			require.False(t, st.Compressed, "node %d of %d inside the window", i, len(stats))
		}
		total += st.Count
	}
	require.Equal(t, ql.Count(), total)
}

func TestPushAndIterate(t *testing.T) {
	ql := New(DefaultOptions())
	want := ints(0, 500)
	pushAll(t, ql, want...)
	checkList(t, ql, want)

	_, err := ql.PushHead([]byte("first"))
	require.NoError(t, err)
	require.NoError(t, ql.Push([]byte("last"), Tail))
	want = append(append([]string{"first"}, want...), "last")
	checkList(t, ql, want)
}

func TestFillCount(t *testing.T) {
	ql := New(Options{Fill: 4})
	pushAll(t, ql, ints(0, 10)...)
	var counts []int
	for _, st := range ql.Nodes() {
		counts = append(counts, st.Count)
	}
	require.Equal(t, []int{4, 4, 2}, counts)
	require.Equal(t, 3, ql.Len())

	created, err := ql.PushHead([]byte("x"))
	require.NoError(t, err)
	require.True(t, created)
	created, err = ql.PushTail([]byte("y"))
	require.NoError(t, err)
	require.False(t, created)
}

func TestFillSizeLimit(t *testing.T) {
	ql := New(Options{Fill: -2})
	var want []string
	for i := 0; i < 1000; i++ {
		want = append(want, fmt.Sprintf("%s%04d", strings.Repeat("x", 60), i))
	}
	pushAll(t, ql, want...)
	require.Greater(t, ql.Len(), 1)
	for _, st := range ql.Nodes() {
		require.LessOrEqual(t, st.Size, 8192)
	}

	big := strings.Repeat("b", 10000)
	created, err := ql.PushTail([]byte(big))
	require.NoError(t, err)
	require.True(t, created)
	created, err = ql.PushTail([]byte("small"))
	require.NoError(t, err)
	require.True(t, created)

	stats := ql.Nodes()
	require.Equal(t, 1, stats[len(stats)-2].Count)
	require.Greater(t, stats[len(stats)-2].Size, 8192)
	checkList(t, ql, append(want, big, "small"))
}

func TestInsertSplitKeepsSizeLimit(t *testing.T) {
	ql := New(Options{Fill: -2})
	var want []string
	for i := 0; i < 60; i++ {
		want = append(want, fmt.Sprintf("%s%03d", strings.Repeat("v", 247), i))
	}
	pushAll(t, ql, want...)
	require.Equal(t, 32, ql.Nodes()[0].Count)

	e, ok := ql.Index(15)
	require.True(t, ok)
	big := strings.Repeat("B", 6000)
	require.NoError(t, ql.InsertAfter(&e, []byte(big)))

	for i, st := range ql.Nodes() {
		if st.Count > 1 {
			require.LessOrEqual(t, st.Size, 8192, "node %d", i)
		}
	}
	want = append(want[:16], append([]string{big}, want[16:]...)...)
	checkList(t, ql, want)

	e, ok = ql.Index(40)
	require.True(t, ok)
	require.NoError(t, ql.InsertBefore(&e, []byte(big)))
	for i, st := range ql.Nodes() {
		if st.Count > 1 {
			require.LessOrEqual(t, st.Size, 8192, "node %d", i)
		}
	}
	want = append(want[:40], append([]string{big}, want[40:]...)...)
	checkList(t, ql, want)
}

func TestSetFillAndDepthClamp(t *testing.T) {
	ql := New(Options{Fill: 1 << 20, CompressDepth: -3})
	require.Equal(t, FillMax, ql.fill)
	require.Equal(t, 0, ql.compress)

	ql.SetFill(-10)
	require.Equal(t, FillMin, ql.fill)
	ql.SetCompressDepth(1 << 20)
	require.Equal(t, CompressMax, ql.compress)
	ql.SetCompressDepth(2)
	require.Equal(t, 2, ql.compress)
}

func TestNodeCompressionIdempotent(t *testing.T) {
	zl := ziplist.New()
	for i := 0; i <= 300; i++ {
		n := &node{data: bytes.Clone(zl), encoding: encodingRaw}
		n.updateSz()
		compressed := n.compress()
		if len(zl) < minCompressBytes {
			require.False(t, compressed)
		}
		if compressed {
			require.Equal(t, encodingLZF, int(n.encoding))
			require.Less(t, len(n.data), len(zl))
			require.True(t, n.compress())
		}
		n.decompress()
		require.Equal(t, zl, n.data)
		require.Equal(t, len(zl), n.sz)

		var err error
		zl, err = ziplist.Push(zl, []byte(fmt.Sprintf("item-%03d-%s", i, strings.Repeat("ab", 10))), ziplist.Tail)
		require.NoError(t, err)
	}
}

func TestNodeCompressionDeclined(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	noise := make([]byte, 200)
	rnd.Read(noise)
	zl, err := ziplist.Push(ziplist.New(), noise, ziplist.Tail)
	require.NoError(t, err)

	n := &node{data: zl, encoding: encodingRaw}
	n.updateSz()
	require.False(t, n.compress())
	require.True(t, n.attemptedCompress)
	require.False(t, n.compress())

	n.data, err = ziplist.Push(n.data, []byte("more"), ziplist.Tail)
	require.NoError(t, err)
	n.updateSz()
	require.False(t, n.attemptedCompress)
}

func TestCompressDepthWindow(t *testing.T) {
	for _, depth := range []int{1, 2} {
		t.Run(strconv.Itoa(depth), func(t *testing.T) {
			ql := New(Options{Fill: 4, CompressDepth: depth})
			want := compressible(200)
			pushAll(t, ql, want...)
			require.Equal(t, 50, ql.Len())

			check := func() {
				t.Helper()
				for i, st := range ql.Nodes() {
					inWindow := i < depth || i >= 50-depth
					require.Equal(t, !inWindow, st.Compressed, "node %d", i)
					if st.Compressed {
						require.Less(t, st.CompressedSize, st.Size)
					}
				}
			}
			check()

			e, ok := ql.Index(100)
			require.True(t, ok)
			require.Equal(t, want[100], e.Value.String())
			check()

			checkList(t, ql, want)
			check()
		})
	}
}

func TestCompressionShortLists(t *testing.T) {
	ql := New(Options{Fill: 4, CompressDepth: 1})
	pushAll(t, ql, compressible(8)...)
	for _, st := range ql.Nodes() {
		require.False(t, st.Compressed)
	}
	pushAll(t, ql, compressible(1)...)
	stats := ql.Nodes()
	require.Len(t, stats, 3)
	require.True(t, stats[1].Compressed)
}

func TestIndex(t *testing.T) {
	ql := New(Options{Fill: 4, CompressDepth: 1})
	want := ints(0, 20)
	pushAll(t, ql, want...)
	for i := range want {
		e, ok := ql.Index(i)
		require.True(t, ok)
		require.Equal(t, want[i], e.Value.String())
		e, ok = ql.Index(-i - 1)
		require.True(t, ok)
		require.Equal(t, want[len(want)-1-i], e.Value.String())
	}
	_, ok := ql.Index(20)
	require.False(t, ok)
	_, ok = ql.Index(-21)
	require.False(t, ok)
	_, ok = New(DefaultOptions()).Index(0)
	require.False(t, ok)
}

func TestInsertSplitsFullNode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ql := New(Options{Fill: 4, Logger: logger})
	pushAll(t, ql, "a", "b", "c", "d")

	e, ok := ql.Index(2)
	require.True(t, ok)
	require.NoError(t, ql.InsertBefore(&e, []byte("x")))
	checkList(t, ql, []string{"a", "b", "x", "c", "d"})
	require.Equal(t, 2, ql.Len())
	require.Contains(t, buf.String(), "quicklist node split")

	e, ok = ql.Index(0)
	require.True(t, ok)
	require.NoError(t, ql.InsertAfter(&e, []byte("y")))
	checkList(t, ql, []string{"a", "y", "b", "x", "c", "d"})
}

func TestInsertAtNodeEdges(t *testing.T) {
	ql := New(Options{Fill: 2})
	pushAll(t, ql, "a", "b", "c", "d")
	require.Equal(t, 2, ql.Len())

	// after the last entry of a full node, next node full as well
	e, ok := ql.Index(1)
	require.True(t, ok)
	require.NoError(t, ql.InsertAfter(&e, []byte("x")))
	checkList(t, ql, []string{"a", "b", "x", "c", "d"})
	require.Equal(t, 3, ql.Len())

	// before the first entry of a full node, previous node has room
	e, ok = ql.Index(3)
	require.True(t, ok)
	require.Equal(t, "c", e.Value.String())
	require.NoError(t, ql.InsertBefore(&e, []byte("y")))
	checkList(t, ql, []string{"a", "b", "x", "y", "c", "d"})
	require.Equal(t, 3, ql.Len())
}

func TestMergeAfterSplit(t *testing.T) {
	ql := New(Options{Fill: 6})
	pushAll(t, ql, ints(0, 6)...)
	pushAll(t, ql, "6")
	require.Equal(t, 2, ql.Len())
	require.Equal(t, 4, ql.DelRange(1, 4))
	require.Equal(t, 2, ql.Len())

	// splitting the tail node lets the head absorb one of the halves
	pushAll(t, ql, "7", "8", "9", "10", "11")
	e, ok := ql.Index(4)
	require.True(t, ok)
	require.NoError(t, ql.InsertBefore(&e, []byte("z")))
	checkList(t, ql, []string{"0", "5", "6", "7", "z", "8", "9", "10", "11"})
	require.Equal(t, 2, ql.Len())
}

func TestDelRange(t *testing.T) {
	for _, tc := range []struct {
		name         string
		start, count int
		deleted      int
		want         []string
	}{
		{"middle", 3, 10, 10, append(ints(0, 3), ints(13, 30)...)},
		{"whole", 0, 30, 30, nil},
		{"past the end", 25, 100, 5, ints(0, 25)},
		{"from the tail", -5, 10, 5, ints(0, 25)},
		{"inside one node", -7, 2, 2, append(ints(0, 23), ints(25, 30)...)},
		{"nothing", 4, 0, 0, ints(0, 30)},
		{"out of range", 30, 1, 0, ints(0, 30)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ql := New(Options{Fill: 4, CompressDepth: 1})
			pushAll(t, ql, ints(0, 30)...)
			require.Equal(t, tc.deleted, ql.DelRange(tc.start, tc.count))
			checkList(t, ql, tc.want)
		})
	}

	ql := New(DefaultOptions())
	pushAll(t, ql, "a", "b")
	require.True(t, ql.DelIndex(-1))
	require.False(t, ql.DelIndex(5))
	checkList(t, ql, []string{"a"})
}

func TestReplaceAtIndex(t *testing.T) {
	ql := New(Options{Fill: -1, CompressDepth: 1})
	var want []string
	for i := 0; i < 300; i++ {
		want = append(want, fmt.Sprintf("%s%03d", strings.Repeat("v", 27), i))
	}
	pushAll(t, ql, want...)

	ok, err := ql.ReplaceAtIndex(10, []byte(strings.Repeat("w", 30)))
	require.NoError(t, err)
	require.True(t, ok)
	want[10] = strings.Repeat("w", 30)

	ok, err = ql.ReplaceAtIndex(-1, []byte("42"))
	require.NoError(t, err)
	require.True(t, ok)
	want[len(want)-1] = "42"

	big := strings.Repeat("B", 3000)
	ok, err = ql.ReplaceAtIndex(150, []byte(big))
	require.NoError(t, err)
	require.True(t, ok)
	want[150] = big
	checkList(t, ql, want)

	ok, err = ql.ReplaceAtIndex(300, []byte("x"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReplaceAtIndexOutOfRange(t *testing.T) {
	ql := New(DefaultOptions())
	pushAll(t, ql, "a", "b", "c")
	for _, idx := range []int{3, -4, -6, -100} {
		ok, err := ql.ReplaceAtIndex(idx, []byte("X"))
		require.NoError(t, err)
		require.False(t, ok, "index %d", idx)
	}
	ok, err := ql.ReplaceAtIndex(-3, []byte("X"))
	require.NoError(t, err)
	require.True(t, ok)
	checkList(t, ql, []string{"X", "b", "c"})
}

func TestPop(t *testing.T) {
	ql := New(Options{Fill: 3, CompressDepth: 1})
	pushAll(t, ql, ints(0, 10)...)

	v, ok := ql.Pop(Head)
	require.True(t, ok)
	require.Equal(t, "0", v.String())
	v, ok = ql.Pop(Tail)
	require.True(t, ok)
	require.Equal(t, "9", v.String())
	checkList(t, ql, ints(1, 9))

	for ql.Count() > 0 {
		_, ok = ql.Pop(Tail)
		require.True(t, ok)
	}
	_, ok = ql.Pop(Head)
	require.False(t, ok)
	require.Equal(t, 0, ql.Len())
}

func TestRotate(t *testing.T) {
	ql := New(Options{Fill: 3})
	pushAll(t, ql, ints(0, 10)...)
	require.NoError(t, ql.Rotate())
	checkList(t, ql, append([]string{"9"}, ints(0, 9)...))

	one := New(DefaultOptions())
	pushAll(t, one, "only")
	require.NoError(t, one.Rotate())
	checkList(t, one, []string{"only"})
}

func TestDup(t *testing.T) {
	ql := New(Options{Fill: 4, CompressDepth: 1})
	want := compressible(40)
	pushAll(t, ql, want...)
	stats := ql.Nodes()

	cp := ql.Dup()
	require.Equal(t, stats, cp.Nodes())
	require.Equal(t, ql.Digest(), cp.Digest())

	pushAll(t, ql, "extra")
	_, ok := ql.Pop(Head)
	require.True(t, ok)
	checkList(t, cp, want)
	require.NotEqual(t, ql.Digest(), cp.Digest())
}

func TestDigest(t *testing.T) {
	values := append(ints(0, 50), compressible(50)...)
	a := New(Options{Fill: 2})
	b := New(Options{Fill: -2, CompressDepth: 1})
	pushAll(t, a, values...)
	pushAll(t, b, values...)
	require.Equal(t, a.Digest(), b.Digest())

	c := New(DefaultOptions())
	pushAll(t, c, reversed(values)...)
	require.NotEqual(t, a.Digest(), c.Digest())

	// length prefixes keep concatenations apart
	d, e := New(DefaultOptions()), New(DefaultOptions())
	pushAll(t, d, "ab", "c")
	pushAll(t, e, "a", "bc")
	require.NotEqual(t, d.Digest(), e.Digest())
}

func TestDigestSeed(t *testing.T) {
	values := ints(0, 30)
	build := func(seed []byte) *Quicklist {
		ql := New(Options{Fill: 4, DigestSeed: seed})
		pushAll(t, ql, values...)
		return ql
	}
	plain := build(nil)
	seeded := build([]byte("0123456789abcdef"))
	require.NotEqual(t, plain.Digest(), seeded.Digest())
	require.Equal(t, seeded.Digest(), build([]byte("0123456789abcdef")).Digest())

	// seeds are zero padded and cut to 16 bytes
	require.Equal(t, plain.Digest(), build(make([]byte, 4)).Digest())
	require.Equal(t, seeded.Digest(), build([]byte("0123456789abcdefXYZ")).Digest())

	// lists keep their own seed
	require.Equal(t, seeded.Digest(), seeded.Dup().Digest())
	require.NotEqual(t, plain.Digest(), seeded.Dup().Digest())
}

func TestAppendBuffer(t *testing.T) {
	zl := ziplist.New()
	for _, v := range []string{"p", "q", "7"} {
		var err error
		zl, err = ziplist.Push(zl, []byte(v), ziplist.Tail)
		require.NoError(t, err)
	}

	ql := New(DefaultOptions())
	pushAll(t, ql, "a", "b")
	require.NoError(t, ql.AppendBuffer(bytes.Clone(zl)))
	require.Equal(t, 2, ql.Len())
	checkList(t, ql, []string{"a", "b", "p", "q", "7"})

	require.NoError(t, ql.AppendBuffer(ziplist.New()))
	require.Equal(t, 2, ql.Len())

	bad := bytes.Clone(zl)
	bad[len(bad)-1] = 0
	err := ql.AppendBuffer(bad)
	require.Error(t, err)
	require.True(t, errors.Is(err, ziplist.ErrCorrupt))
	require.Equal(t, 5, ql.Count())
}

func TestNewFromBuffer(t *testing.T) {
	zl := ziplist.New()
	want := append(ints(0, 5), "five", "six", "seven", "eight", "nine")
	for _, v := range want {
		var err error
		zl, err = ziplist.Push(zl, []byte(v), ziplist.Tail)
		require.NoError(t, err)
	}

	ql, err := NewFromBuffer(Options{Fill: 3}, zl)
	require.NoError(t, err)
	require.Equal(t, 4, ql.Len())
	checkList(t, ql, want)

	_, err = NewFromBuffer(DefaultOptions(), zl[:len(zl)-1])
	require.True(t, errors.Is(err, ziplist.ErrCorrupt))
}

func TestRelease(t *testing.T) {
	ql := New(DefaultOptions())
	pushAll(t, ql, ints(0, 10)...)
	it := ql.Iterator(Head)
	ql.Release()
	require.Equal(t, 0, ql.Count())
	require.Equal(t, 0, ql.Len())
	require.PanicsWithValue(t, ErrIteratorInvalidated, func() { it.Next() })
}

func TestRandomOperationsMatchModel(t *testing.T) {
	for _, tc := range []struct {
		name        string
		fill, depth int
		maxLen      int
	}{
		{"count fill", 4, 0, 60},
		{"count fill compressed", 4, 2, 60},
		{"size fill compressed", -1, 1, 1500},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rnd := rand.New(rand.NewSource(7))
			ql := New(Options{Fill: tc.fill, CompressDepth: tc.depth})
			var model []string
			value := func() string {
				if rnd.Intn(4) == 0 {
					return strconv.Itoa(rnd.Intn(100000) - 50000)
				}
				return strings.Repeat("z", 1+rnd.Intn(tc.maxLen)) + strconv.Itoa(rnd.Intn(1000))
			}

			for step := 0; step < 2000; step++ {
				op := rnd.Intn(10)
				if len(model) == 0 {
					op = 0
				}
				switch op {
				case 0, 1, 2:
					v := value()
					if rnd.Intn(2) == 0 {
						_, err := ql.PushHead([]byte(v))
						require.NoError(t, err)
						model = append([]string{v}, model...)
					} else {
						_, err := ql.PushTail([]byte(v))
						require.NoError(t, err)
						model = append(model, v)
					}
				case 3, 4:
					i := rnd.Intn(len(model))
					e, ok := ql.Index(i)
					require.True(t, ok)
					require.Equal(t, model[i], e.Value.String())
					v := value()
					if op == 3 {
						require.NoError(t, ql.InsertBefore(&e, []byte(v)))
					} else {
						require.NoError(t, ql.InsertAfter(&e, []byte(v)))
						i++
					}
					model = append(model[:i], append([]string{v}, model[i:]...)...)
				case 5:
					i := rnd.Intn(len(model))
					require.True(t, ql.DelIndex(i))
					model = append(model[:i], model[i+1:]...)
				case 6:
					i := rnd.Intn(2*len(model)) - len(model)
					v := value()
					ok, err := ql.ReplaceAtIndex(i, []byte(v))
					require.NoError(t, err)
					require.True(t, ok)
					if i < 0 {
						i += len(model)
					}
					model[i] = v
				case 7:
					if rnd.Intn(2) == 0 {
						v, ok := ql.Pop(Head)
						require.True(t, ok)
						require.Equal(t, model[0], v.String())
						model = model[1:]
					} else {
						v, ok := ql.Pop(Tail)
						require.True(t, ok)
						require.Equal(t, model[len(model)-1], v.String())
						model = model[:len(model)-1]
					}
				case 8:
					start := rnd.Intn(2*len(model)) - len(model)
					count := 1 + rnd.Intn(5)
					s := start
					if s < 0 {
						s += len(model)
					}
					end := s + count
					if end > len(model) {
						end = len(model)
					}
					require.Equal(t, end-s, ql.DelRange(start, count))
					model = append(model[:s], model[end:]...)
				case 9:
					model = deleteWhileIterating(t, ql, model, rnd)
				}
				require.Equal(t, len(model), ql.Count())
				if step%50 == 0 {
					checkList(t, ql, model)
				}
			}
			checkList(t, ql, model)
		})
	}
}

func deleteWhileIterating(t *testing.T, ql *Quicklist, model []string, rnd *rand.Rand) []string {
	t.Helper()
	if rnd.Intn(2) == 0 {
		it := ql.Iterator(Head)
		i := 0
		for e, ok := it.Next(); ok; e, ok = it.Next() {
			require.Equal(t, model[i], e.Value.String())
			if rnd.Intn(8) == 0 {
				ql.DelEntry(it, &e)
				model = append(model[:i], model[i+1:]...)
			} else {
				i++
			}
		}
		require.Equal(t, len(model), i)
		it.Release()
		return model
	}

	it := ql.Iterator(Tail)
	i := len(model) - 1
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		require.Equal(t, model[i], e.Value.String())
		if rnd.Intn(8) == 0 {
			ql.DelEntry(it, &e)
			model = append(model[:i], model[i+1:]...)
		}
		i--
	}
	require.Equal(t, -1, i)
	it.Release()
	return model
}
