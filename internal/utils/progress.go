package utils

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressCallback receives the bytes transferred so far
type ProgressCallback func(sent, total int64)

// ProgressReader wraps an io.Reader and reports every read to a callback
type ProgressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	callback ProgressCallback
}

// NewProgressReader creates a new progress reader
func NewProgressReader(reader io.Reader, total int64, callback ProgressCallback) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		total:    total,
		callback: callback,
	}
}

// Read implements io.Reader and triggers the callback
func (pr *ProgressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		if pr.callback != nil {
			sent := pr.read
			if pr.total > 0 && sent > pr.total {
				sent = pr.total
			}
			pr.callback(sent, pr.total)
		}
	}
	return n, err
}

// ProgressBar draws a single-line transfer bar on a terminal stream
type ProgressBar struct {
	mu          sync.Mutex
	out         io.Writer
	description string
	startTime   time.Time
	lastPrint   time.Time
	lastLineLen int
	sent        int64
	total       int64
	finished    bool
}

// NewProgressBar creates a bar that writes to out, usually os.Stderr
func NewProgressBar(out io.Writer, description string) *ProgressBar {
	now := time.Now()
	return &ProgressBar{
		out:         out,
		description: description,
		startTime:   now,
		lastPrint:   now.Add(-time.Second),
	}
}

// Update records progress and redraws at most every 200ms
func (pb *ProgressBar) Update(sent, total int64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.sent, pb.total = sent, total
	now := time.Now()
	if now.Sub(pb.lastPrint) > 200*time.Millisecond || (total > 0 && sent >= total) {
		pb.print()
		pb.lastPrint = now
	}
}

// Finish draws the final state and ends the line
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.finished {
		return
	}
	pb.finished = true
	pb.print()
	fmt.Fprintln(pb.out)
}

func (pb *ProgressBar) print() {
	if pb.total <= 0 {
		return
	}

	percentage := float64(pb.sent) / float64(pb.total) * 100

	var speed string
	if elapsed := time.Since(pb.startTime); elapsed.Seconds() > 0.1 {
		speed = fmt.Sprintf(" %s/s", humanize.Bytes(uint64(float64(pb.sent)/elapsed.Seconds())))
	}

	barWidth := 40
	filled := int(percentage * float64(barWidth) / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]"

	line := fmt.Sprintf("%s %s %.1f%% (%s/%s)%s",
		pb.description,
		bar,
		percentage,
		humanize.Bytes(uint64(pb.sent)),
		humanize.Bytes(uint64(pb.total)),
		speed)

	if pb.lastLineLen > len(line) {
		fmt.Fprintf(pb.out, "\r%s\r", strings.Repeat(" ", pb.lastLineLen))
	}
	fmt.Fprintf(pb.out, "\r%s", line)
	pb.lastLineLen = len(line)
}
