package manifest

// Layout maps rows of an input manifest onto the output schema. It is built
// once per manifest from the header; missing derived columns are appended,
// access URL first.
type Layout struct {
	header    []string
	inWidth   int
	accessIdx int
	waveIdx   int
}

func NewLayout(header []string) *Layout {
	l := &Layout{
		inWidth:   len(header),
		accessIdx: indexOf(header, HeaderAccessURL),
		waveIdx:   indexOf(header, HeaderWaveform),
	}

	out := make([]string, len(header), len(header)+2)
	copy(out, header)
	if l.accessIdx < 0 {
		l.accessIdx = len(out)
		out = append(out, HeaderAccessURL)
	}
	if l.waveIdx < 0 {
		l.waveIdx = len(out)
		out = append(out, HeaderWaveform)
	}
	l.header = out

	return l
}

func (l *Layout) Header() []string {
	h := make([]string, len(l.header))
	copy(h, l.header)
	return h
}

func (l *Layout) Width() int { return len(l.header) }

// Grown reports how many columns the output adds to the input.
func (l *Layout) Grown() int { return len(l.header) - l.inWidth }

// Project copies row into a new slice of the output width, keeping every
// original cell at its position. Ragged rows are padded or truncated to the
// header width.
func (l *Layout) Project(row []string) []string {
	out := make([]string, len(l.header))
	n := len(row)
	if n > l.inWidth {
		n = l.inWidth
	}
	copy(out, row[:n])
	return out
}

// Fill writes the derived values into a projected row. Empty values leave
// the existing cell untouched.
func (l *Layout) Fill(row []string, accessURL, waveformURL string) {
	if accessURL != "" {
		row[l.accessIdx] = accessURL
	}
	if waveformURL != "" {
		row[l.waveIdx] = waveformURL
	}
}
