package detect

import (
	"bytes"
	"errors"
	"io"
	"os"
)

const sniffChunk = 256 << 10

// sniffer scans files for a fixed list of content signatures in one
// streaming read per file.
type sniffer struct {
	sigs     []ContentSignature
	patterns [][]byte
	// patternOf maps each signature to indices into patterns.
	patternOf [][]int
	overlap   int
	head      int
}

func newSniffer(sigs []ContentSignature) *sniffer {
	s := &sniffer{sigs: sigs, patternOf: make([][]int, len(sigs))}
	index := map[string]int{}
	for i, sig := range sigs {
		for _, p := range sig.All {
			j, ok := index[p]
			if !ok {
				j = len(s.patterns)
				index[p] = j
				s.patterns = append(s.patterns, []byte(p))
				s.overlap = max(s.overlap, len(p)-1)
			}
			s.patternOf[i] = append(s.patternOf[i], j)
		}
		s.head = max(s.head, len(sig.Prefix))
	}
	return s
}

// Match returns the index of the first signature, in registration order,
// that the file satisfies, or -1.
func (s *sniffer) Match(path string, limit int64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return -1, err
	}
	defer f.Close()

	found := make([]bool, len(s.patterns))
	remaining := len(s.patterns)
	var head []byte

	buf := make([]byte, s.overlap+sniffChunk)
	carry := 0
	var read int64
	for read < limit {
		want := int64(sniffChunk)
		if limit-read < want {
			want = limit - read
		}
		n, err := io.ReadFull(f, buf[carry:carry+int(want)])
		if n > 0 {
			window := buf[:carry+n]
			if read == 0 {
				head = bytes.Clone(window[:min(len(window), s.head)])
			}
			read += int64(n)
			for j, p := range s.patterns {
				if !found[j] && bytes.Contains(window, p) {
					found[j] = true
					remaining--
				}
			}
			keep := min(s.overlap, len(window))
			copy(buf, window[len(window)-keep:])
			carry = keep
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return -1, err
		}
		if remaining == 0 {
			break
		}
	}

	for i, sig := range s.sigs {
		if sig.Prefix != "" && !bytes.HasPrefix(head, []byte(sig.Prefix)) {
			continue
		}
		ok := true
		for _, j := range s.patternOf[i] {
			if !found[j] {
				ok = false
				break
			}
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}
